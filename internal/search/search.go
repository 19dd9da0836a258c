package search

import "context"

// Query describes a bookmark search.
type Query struct {
	Text     string
	Category string
	Limit    int
}

// Searcher returns matching bookmark ids, best match first.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]int64, error)
	Healthy() bool
}

// Indexer can push bookmarks into a search index.
type Indexer interface {
	IndexBookmark(record BookmarkRecord) error
	DeleteBookmark(id int64) error
}

// BookmarkRecord is the data we index for a bookmark.
type BookmarkRecord struct {
	ID          int64    `json:"id"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
