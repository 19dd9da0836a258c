package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"
	"time"

	"shelf/api/internal/broadcast"
	"shelf/api/internal/config"
	"shelf/api/internal/export"
	"shelf/api/internal/search"
	"shelf/api/internal/store"
	"shelf/api/internal/suggest"
	"shelf/api/internal/wire"
)

const (
	defaultListLimit   = 100
	maxListLimit       = 1000
	recentActionsLimit = 10
	suggestedTagCount  = 5
	untitledBookmark   = "Untitled Bookmark"
)

type dataStore interface {
	ListBookmarks(context.Context, string, int, int) ([]store.Bookmark, error)
	ListAllBookmarks(context.Context) ([]store.Bookmark, error)
	GetBookmark(context.Context, int64) (store.Bookmark, error)
	GetBookmarksByIDs(context.Context, []int64) ([]store.Bookmark, error)
	InsertBookmark(context.Context, store.NewBookmark) (store.Bookmark, error)
	UpdateBookmark(context.Context, int64, store.BookmarkPatch) (store.Bookmark, error)
	ReorderBookmark(context.Context, int64, float64, string) (store.Bookmark, error)
	DeleteBookmark(context.Context, int64) error
	ListCategories(context.Context) ([]string, error)
	LogInteraction(context.Context, int64, string) error
	LogViews(context.Context, []int64) error
	CategoryCounts(context.Context) (map[string]int, error)
	TagCounts(context.Context) (map[string]int, error)
	RecentInteractions(context.Context, int) ([]store.Interaction, error)
	Ping(ctx context.Context) error
}

type searchService interface {
	Search(context.Context, search.Query) []int64
	IndexBookmark(search.BookmarkRecord)
	DeleteBookmark(int64)
}

type suggestService interface {
	Title(context.Context, string) (string, error)
	Tags(context.Context, string, int) ([]string, string, error)
	Describe(context.Context, string, int) (suggest.Suggestion, error)
}

type exportService interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	search    searchService
	suggest   suggestService
	export    exportService
	publisher broadcast.Publisher
}

// New wires the service. uploader may be nil when exports are only
// downloaded.
func New(cfg config.Config, dataStore *store.PostgresStore, searchSvc *search.Service, suggestSvc *suggest.Service, publisher broadcast.Publisher, uploader export.Uploader) *Service {
	s := &Service{
		cfg:       cfg,
		store:     dataStore,
		publisher: publisher,
	}
	if searchSvc != nil {
		s.search = searchSvc
	}
	if suggestSvc != nil {
		s.suggest = suggestSvc
	}
	s.export = export.NewService(s, uploader)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ListBookmarks returns one page in display order and records a view for
// each bookmark on it.
func (s *Service) ListBookmarks(ctx context.Context, category string, skip, limit int) ([]wire.Record, error) {
	if skip < 0 {
		return nil, invalidField("skip", "skip must not be negative")
	}
	limit = clampLimit(limit)

	items, err := s.store.ListBookmarks(ctx, strings.TrimSpace(category), skip, limit)
	if err != nil {
		return nil, err
	}
	s.logViews(ctx, items)
	return toRecords(items), nil
}

// SearchBookmarks ranks bookmarks against query. An empty query lists the
// collection instead.
func (s *Service) SearchBookmarks(ctx context.Context, query string, limit int) ([]wire.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListBookmarks(ctx, "", 0, limit)
	}
	limit = clampLimit(limit)
	if s.search == nil {
		return []wire.Record{}, nil
	}

	ids := s.search.Search(ctx, search.Query{Text: query, Limit: limit})
	items, err := s.store.GetBookmarksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	s.logViews(ctx, items)
	return toRecords(items), nil
}

func (s *Service) GetBookmark(ctx context.Context, id int64) (wire.Record, error) {
	item, err := s.store.GetBookmark(ctx, id)
	if err != nil {
		return wire.Record{}, notFound(err)
	}
	s.logInteraction(ctx, id, store.ActionView)
	return toRecord(item), nil
}

// CreateBookmark stores a bookmark at the end of its category. A missing
// title or category is filled in from the page when possible.
func (s *Service) CreateBookmark(ctx context.Context, req wire.CreateRequest) (wire.Record, error) {
	pageURL, err := validateURL(req.URL)
	if err != nil {
		return wire.Record{}, err
	}

	title := strings.TrimSpace(req.Title)
	category := strings.TrimSpace(req.Category)
	if title == "" || category == "" {
		page := s.describePage(ctx, pageURL)
		if title == "" {
			title = strings.TrimSpace(page.Title)
		}
		if category == "" {
			category = page.Category
		}
	}
	if title == "" {
		title = untitledBookmark
	}

	item, err := s.store.InsertBookmark(ctx, store.NewBookmark{
		URL:         pageURL,
		Title:       title,
		Description: optional(req.Description),
		Category:    optional(category),
		Tags:        req.Tags,
	})
	if errors.Is(err, store.ErrDuplicateURL) {
		return wire.Record{}, duplicateURL(pageURL)
	}
	if err != nil {
		return wire.Record{}, err
	}

	record := toRecord(item)
	s.logInteraction(ctx, item.ID, store.ActionCreate)
	s.index(item)
	s.publish(ctx, wire.Created(record))
	return record, nil
}

func (s *Service) UpdateBookmark(ctx context.Context, id int64, req wire.UpdateRequest) (wire.Record, error) {
	patch := store.BookmarkPatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		Position:    req.Position,
	}
	if req.URL != nil {
		pageURL, err := validateURL(*req.URL)
		if err != nil {
			return wire.Record{}, err
		}
		patch.URL = &pageURL
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return wire.Record{}, invalidField("title", "title must not be empty")
	}
	if patch.Position != nil && !finite(*patch.Position) {
		return wire.Record{}, invalidField("position", "position must be a finite number")
	}

	item, err := s.store.UpdateBookmark(ctx, id, patch)
	if errors.Is(err, store.ErrDuplicateURL) {
		return wire.Record{}, duplicateURL(deref(patch.URL))
	}
	if err != nil {
		return wire.Record{}, notFound(err)
	}

	record := toRecord(item)
	s.logInteraction(ctx, id, store.ActionEdit)
	s.index(item)
	s.publish(ctx, wire.Updated(record))
	return record, nil
}

// ReorderBookmark stores the moved bookmark's new key and broadcasts the
// stored record. Only that one record changes; other keys stay as they are.
func (s *Service) ReorderBookmark(ctx context.Context, req wire.ReorderRequest) (wire.Record, error) {
	if req.BookmarkID <= 0 {
		return wire.Record{}, invalidField("bookmark_id", "bookmark_id is required")
	}
	if !finite(req.NewPosition) {
		return wire.Record{}, invalidField("new_position", "new_position must be a finite number")
	}
	category := ""
	if req.Category != nil {
		category = strings.TrimSpace(*req.Category)
	}

	item, err := s.store.ReorderBookmark(ctx, req.BookmarkID, req.NewPosition, category)
	if err != nil {
		return wire.Record{}, notFound(err)
	}

	record := toRecord(item)
	s.logInteraction(ctx, item.ID, store.ActionReorder)
	if category != "" {
		s.index(item)
	}
	s.publish(ctx, wire.Updated(record))
	return record, nil
}

func (s *Service) DeleteBookmark(ctx context.Context, id int64) error {
	if err := s.store.DeleteBookmark(ctx, id); err != nil {
		return notFound(err)
	}
	if s.search != nil {
		s.search.DeleteBookmark(id)
	}
	s.publish(ctx, wire.Deleted(id))
	return nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) Analytics(ctx context.Context) (wire.Analytics, error) {
	categoryCounts, err := s.store.CategoryCounts(ctx)
	if err != nil {
		return wire.Analytics{}, err
	}
	tagCounts, err := s.store.TagCounts(ctx)
	if err != nil {
		return wire.Analytics{}, err
	}
	recent, err := s.store.RecentInteractions(ctx, recentActionsLimit)
	if err != nil {
		return wire.Analytics{}, err
	}

	actions := make([]wire.RecentAction, 0, len(recent))
	for _, item := range recent {
		actions = append(actions, wire.RecentAction{
			BookmarkID: item.BookmarkID,
			Title:      item.Title,
			Action:     item.Action,
			Timestamp:  item.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return wire.Analytics{CategoryCounts: categoryCounts, TagCounts: tagCounts, RecentActions: actions}, nil
}

func (s *Service) SuggestTitle(ctx context.Context, rawURL string) (wire.TitleSuggestion, error) {
	pageURL, err := validateURL(rawURL)
	if err != nil {
		return wire.TitleSuggestion{}, err
	}
	if s.suggest != nil {
		title, err := s.suggest.Title(ctx, pageURL)
		if err == nil {
			return wire.TitleSuggestion{SuggestedTitle: &title}, nil
		}
		log.Printf("suggest: title for %s: %v", pageURL, err)
	}
	message := "Could not fetch title"
	return wire.TitleSuggestion{Error: &message}, nil
}

func (s *Service) SuggestTags(ctx context.Context, rawURL string) (wire.TagsSuggestion, error) {
	pageURL, err := validateURL(rawURL)
	if err != nil {
		return wire.TagsSuggestion{}, err
	}
	result := wire.TagsSuggestion{SuggestedTags: []string{}}
	if s.suggest != nil {
		tags, category, err := s.suggest.Tags(ctx, pageURL, suggestedTagCount)
		if err != nil {
			log.Printf("suggest: tags for %s: %v", pageURL, err)
		}
		if len(tags) > 0 {
			result.SuggestedTags = tags
		}
		if category != "" {
			result.SuggestedCategory = &category
		}
	}
	if len(result.SuggestedTags) == 0 {
		message := "Could not fetch tags"
		result.Error = &message
	}
	return result, nil
}

func (s *Service) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	result, err := s.export.Export(ctx, req)
	switch {
	case errors.Is(err, export.ErrUnsupportedFormat):
		return nil, invalidField("format", "format must be html or pdf")
	case errors.Is(err, export.ErrUploadUnavailable):
		return nil, exportUnavailable(codeUploadDisabled, "Export storage is not configured")
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return nil, exportUnavailable(codePDFUnavailable, "PDF export is not available on this server")
	}
	return result, err
}

// ExportEntries lists bookmarks for the export service.
func (s *Service) ExportEntries(ctx context.Context, category string) ([]export.Entry, error) {
	var (
		items []store.Bookmark
		err   error
	)
	if category == "" {
		items, err = s.store.ListAllBookmarks(ctx)
	} else {
		items, err = s.store.ListBookmarks(ctx, category, 0, math.MaxInt32)
	}
	if err != nil {
		return nil, err
	}
	entries := make([]export.Entry, 0, len(items))
	for _, item := range items {
		record := toRecord(item)
		entries = append(entries, export.Entry{
			URL:         record.URL,
			Title:       record.Title,
			Description: deref(record.Description),
			Category:    record.CategoryName(),
			Tags:        record.TagNames(),
			Position:    record.Position,
			CreatedAt:   record.CreatedAt,
		})
	}
	return entries, nil
}

// describePage fetches the page once for whatever CreateBookmark is missing.
// Failures yield an empty suggestion.
func (s *Service) describePage(ctx context.Context, pageURL string) suggest.Suggestion {
	if s.suggest == nil {
		return suggest.Suggestion{}
	}
	ctx, cancel := s.suggestContext(ctx)
	defer cancel()
	page, err := s.suggest.Describe(ctx, pageURL, suggestedTagCount)
	if err != nil {
		log.Printf("suggest: describe %s: %v", pageURL, err)
		return suggest.Suggestion{}
	}
	return page
}

func (s *Service) suggestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.SuggestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) logInteraction(ctx context.Context, id int64, action string) {
	if err := s.store.LogInteraction(ctx, id, action); err != nil {
		log.Printf("app: %v", err)
	}
}

func (s *Service) logViews(ctx context.Context, items []store.Bookmark) {
	if len(items) == 0 {
		return
	}
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	if err := s.store.LogViews(ctx, ids); err != nil {
		log.Printf("app: %v", err)
	}
}

func (s *Service) index(item store.Bookmark) {
	if s.search == nil {
		return
	}
	record := search.BookmarkRecord{
		ID:          item.ID,
		URL:         item.URL,
		Title:       item.Title,
		Description: deref(item.Description),
		Category:    deref(item.Category),
		Tags:        make([]string, 0, len(item.Tags)),
	}
	for _, tag := range item.Tags {
		record.Tags = append(record.Tags, tag.Name)
	}
	s.search.IndexBookmark(record)
}

// publish never fails the request: the write is already committed and
// viewers that miss the event catch up on their next fetch.
func (s *Service) publish(ctx context.Context, event wire.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("broadcast: publish %s: %v", event.Action, err)
	}
}

func toRecord(item store.Bookmark) wire.Record {
	record := wire.Record{
		ID:          item.ID,
		URL:         item.URL,
		Title:       item.Title,
		Description: item.Description,
		Category:    item.Category,
		Position:    item.Position,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
		Tags:        make([]wire.Tag, 0, len(item.Tags)),
	}
	for _, tag := range item.Tags {
		record.Tags = append(record.Tags, wire.Tag{ID: tag.ID, Name: tag.Name})
	}
	return record
}

func toRecords(items []store.Bookmark) []wire.Record {
	records := make([]wire.Record, 0, len(items))
	for _, item := range items {
		records = append(records, toRecord(item))
	}
	return records
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalidField("url", "url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", invalidField("url", "url must be an absolute http(s) URL")
	}
	return parsed.String(), nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return bookmarkNotFound()
	}
	return fmt.Errorf("bookmark: %w", err)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
