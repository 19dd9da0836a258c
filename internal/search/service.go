package search

import (
	"context"
	"log"
)

type fallbackSearcher interface {
	Searcher
	LoadAllRecords(ctx context.Context) ([]BookmarkRecord, error)
}

type primaryIndex interface {
	Searcher
	Indexer
	IndexBookmarks(records []BookmarkRecord) error
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili primaryIndex
	pgfts fallbackSearcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{}
	if meili != nil {
		s.meili = meili
	}
	if pgfts != nil {
		s.pgfts = pgfts
	}
	return s
}

func (s *Service) primaryReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search returns matching ids, best first. Errors are logged and yield an
// empty result.
func (s *Service) Search(ctx context.Context, q Query) []int64 {
	if s.primaryReady() {
		ids, err := s.meili.Search(ctx, q)
		if err == nil {
			return nonNil(ids)
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}
	if s.pgfts == nil {
		return []int64{}
	}

	ids, err := s.pgfts.Search(ctx, q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return []int64{}
	}
	return nonNil(ids)
}

// IndexBookmark indexes a bookmark (fire-and-forget to Meilisearch).
func (s *Service) IndexBookmark(record BookmarkRecord) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.meili.IndexBookmark(record); err != nil {
			log.Printf("search: index bookmark %d: %v", record.ID, err)
		}
	}()
}

// DeleteBookmark removes a bookmark from the index (fire-and-forget).
func (s *Service) DeleteBookmark(id int64) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.meili.DeleteBookmark(id); err != nil {
			log.Printf("search: delete bookmark %d: %v", id, err)
		}
	}()
}

// ReindexAllFromPG pushes every bookmark in PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.primaryReady() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexBookmarks(records); err != nil {
		log.Printf("search: reindex bookmarks: %v", err)
	}
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
