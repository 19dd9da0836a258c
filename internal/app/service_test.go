package app

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"shelf/api/internal/config"
	"shelf/api/internal/export"
	"shelf/api/internal/search"
	"shelf/api/internal/store"
	"shelf/api/internal/suggest"
	"shelf/api/internal/wire"
)

type fakeStore struct {
	listBookmarksFn      func(context.Context, string, int, int) ([]store.Bookmark, error)
	listAllBookmarksFn   func(context.Context) ([]store.Bookmark, error)
	getBookmarkFn        func(context.Context, int64) (store.Bookmark, error)
	getBookmarksByIDsFn  func(context.Context, []int64) ([]store.Bookmark, error)
	insertBookmarkFn     func(context.Context, store.NewBookmark) (store.Bookmark, error)
	updateBookmarkFn     func(context.Context, int64, store.BookmarkPatch) (store.Bookmark, error)
	reorderBookmarkFn    func(context.Context, int64, float64, string) (store.Bookmark, error)
	deleteBookmarkFn     func(context.Context, int64) error
	listCategoriesFn     func(context.Context) ([]string, error)
	categoryCountsFn     func(context.Context) (map[string]int, error)
	tagCountsFn          func(context.Context) (map[string]int, error)
	recentInteractionsFn func(context.Context, int) ([]store.Interaction, error)
	pingFn               func(context.Context) error

	mu           sync.Mutex
	interactions []store.Interaction
	views        []int64
}

func (f *fakeStore) ListBookmarks(ctx context.Context, category string, skip, limit int) ([]store.Bookmark, error) {
	if f.listBookmarksFn != nil {
		return f.listBookmarksFn(ctx, category, skip, limit)
	}
	return nil, nil
}

func (f *fakeStore) ListAllBookmarks(ctx context.Context) ([]store.Bookmark, error) {
	if f.listAllBookmarksFn != nil {
		return f.listAllBookmarksFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) GetBookmark(ctx context.Context, id int64) (store.Bookmark, error) {
	if f.getBookmarkFn != nil {
		return f.getBookmarkFn(ctx, id)
	}
	return store.Bookmark{}, sql.ErrNoRows
}

func (f *fakeStore) GetBookmarksByIDs(ctx context.Context, ids []int64) ([]store.Bookmark, error) {
	if f.getBookmarksByIDsFn != nil {
		return f.getBookmarksByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakeStore) InsertBookmark(ctx context.Context, item store.NewBookmark) (store.Bookmark, error) {
	if f.insertBookmarkFn != nil {
		return f.insertBookmarkFn(ctx, item)
	}
	return store.Bookmark{}, errors.New("insert not configured")
}

func (f *fakeStore) UpdateBookmark(ctx context.Context, id int64, patch store.BookmarkPatch) (store.Bookmark, error) {
	if f.updateBookmarkFn != nil {
		return f.updateBookmarkFn(ctx, id, patch)
	}
	return store.Bookmark{}, sql.ErrNoRows
}

func (f *fakeStore) ReorderBookmark(ctx context.Context, id int64, position float64, category string) (store.Bookmark, error) {
	if f.reorderBookmarkFn != nil {
		return f.reorderBookmarkFn(ctx, id, position, category)
	}
	return store.Bookmark{}, sql.ErrNoRows
}

func (f *fakeStore) DeleteBookmark(ctx context.Context, id int64) error {
	if f.deleteBookmarkFn != nil {
		return f.deleteBookmarkFn(ctx, id)
	}
	return sql.ErrNoRows
}

func (f *fakeStore) ListCategories(ctx context.Context) ([]string, error) {
	if f.listCategoriesFn != nil {
		return f.listCategoriesFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) LogInteraction(_ context.Context, id int64, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interactions = append(f.interactions, store.Interaction{BookmarkID: id, Action: action})
	return nil
}

func (f *fakeStore) LogViews(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, ids...)
	return nil
}

func (f *fakeStore) CategoryCounts(ctx context.Context) (map[string]int, error) {
	if f.categoryCountsFn != nil {
		return f.categoryCountsFn(ctx)
	}
	return map[string]int{}, nil
}

func (f *fakeStore) TagCounts(ctx context.Context) (map[string]int, error) {
	if f.tagCountsFn != nil {
		return f.tagCountsFn(ctx)
	}
	return map[string]int{}, nil
}

func (f *fakeStore) RecentInteractions(ctx context.Context, limit int) ([]store.Interaction, error) {
	if f.recentInteractionsFn != nil {
		return f.recentInteractionsFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.interactions))
	for _, item := range f.interactions {
		out = append(out, item.Action)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []wire.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event wire.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) published() []wire.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wire.Event(nil), f.events...)
}

type fakeSearch struct {
	searchFn func(search.Query) []int64
	indexed  []search.BookmarkRecord
	deleted  []int64
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) []int64 {
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return []int64{}
}

func (f *fakeSearch) IndexBookmark(record search.BookmarkRecord) {
	f.indexed = append(f.indexed, record)
}

func (f *fakeSearch) DeleteBookmark(id int64) {
	f.deleted = append(f.deleted, id)
}

type fakeSuggest struct {
	titleFn    func(string) (string, error)
	tagsFn     func(string, int) ([]string, string, error)
	describeFn func(string, int) (suggest.Suggestion, error)
	described  int
}

func (f *fakeSuggest) Title(_ context.Context, url string) (string, error) {
	if f.titleFn != nil {
		return f.titleFn(url)
	}
	return "", errors.New("no title")
}

func (f *fakeSuggest) Tags(_ context.Context, url string, n int) ([]string, string, error) {
	if f.tagsFn != nil {
		return f.tagsFn(url, n)
	}
	return nil, "", errors.New("no tags")
}

func (f *fakeSuggest) Describe(_ context.Context, url string, n int) (suggest.Suggestion, error) {
	f.described++
	if f.describeFn != nil {
		return f.describeFn(url, n)
	}
	return suggest.Suggestion{}, errors.New("no page")
}

type testService struct {
	*Service
	store     *fakeStore
	publisher *fakePublisher
	search    *fakeSearch
	suggest   *fakeSuggest
}

func newTestService(fs *fakeStore) testService {
	publisher := &fakePublisher{}
	searchFake := &fakeSearch{}
	suggestFake := &fakeSuggest{}
	svc := &Service{
		cfg:       config.Config{SuggestTimeout: time.Second},
		store:     fs,
		search:    searchFake,
		suggest:   suggestFake,
		publisher: publisher,
	}
	svc.export = export.NewService(svc, nil)
	return testService{Service: svc, store: fs, publisher: publisher, search: searchFake, suggest: suggestFake}
}

func strPtr(s string) *string { return &s }

func sampleBookmark(id int64, position float64, category string) store.Bookmark {
	item := store.Bookmark{
		ID:        id,
		URL:       "https://example.com/" + string(rune('a'+id)),
		Title:     "Bookmark",
		Position:  position,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Tags:      []store.Tag{{ID: 1, Name: "go"}},
	}
	if category != "" {
		item.Category = strPtr(category)
	}
	return item
}

func assertDomainError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError %s, got %v", code, err)
	}
	if domainErr.Status != status || domainErr.Code != code {
		t.Fatalf("expected %d %s, got %d %s", status, code, domainErr.Status, domainErr.Code)
	}
}

func TestListBookmarksLogsViews(t *testing.T) {
	fs := &fakeStore{
		listBookmarksFn: func(_ context.Context, category string, skip, limit int) ([]store.Bookmark, error) {
			if category != "tech" || skip != 0 || limit != defaultListLimit {
				t.Fatalf("unexpected list args %q %d %d", category, skip, limit)
			}
			return []store.Bookmark{sampleBookmark(2, 1, "tech"), sampleBookmark(5, 2, "tech")}, nil
		},
	}
	svc := newTestService(fs)

	records, err := svc.ListBookmarks(context.Background(), " tech ", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].ID != 2 || records[1].ID != 5 {
		t.Fatalf("unexpected records %+v", records)
	}
	if len(fs.views) != 2 || fs.views[0] != 2 || fs.views[1] != 5 {
		t.Fatalf("expected views for both bookmarks, got %v", fs.views)
	}
}

func TestListBookmarksRejectsNegativeSkip(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.ListBookmarks(context.Background(), "", -1, 10)
	assertDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestClampLimit(t *testing.T) {
	if clampLimit(0) != defaultListLimit || clampLimit(5) != 5 || clampLimit(50000) != maxListLimit {
		t.Fatal("unexpected limit clamping")
	}
}

func TestSearchBookmarksKeepsRankOrder(t *testing.T) {
	fs := &fakeStore{
		getBookmarksByIDsFn: func(_ context.Context, ids []int64) ([]store.Bookmark, error) {
			out := make([]store.Bookmark, 0, len(ids))
			for _, id := range ids {
				out = append(out, sampleBookmark(id, float64(id), ""))
			}
			return out, nil
		},
	}
	svc := newTestService(fs)
	svc.search.searchFn = func(q search.Query) []int64 {
		if q.Text != "golang" {
			t.Fatalf("unexpected query %+v", q)
		}
		return []int64{9, 3}
	}

	records, err := svc.SearchBookmarks(context.Background(), "golang", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(records) != 2 || records[0].ID != 9 || records[1].ID != 3 {
		t.Fatalf("unexpected search order %+v", records)
	}
	if len(fs.views) != 2 || fs.views[0] != 9 || fs.views[1] != 3 {
		t.Fatalf("expected views for search hits, got %v", fs.views)
	}
}

func TestSearchBookmarksEmptyQueryLists(t *testing.T) {
	listed := false
	fs := &fakeStore{
		listBookmarksFn: func(context.Context, string, int, int) ([]store.Bookmark, error) {
			listed = true
			return []store.Bookmark{sampleBookmark(1, 1, "")}, nil
		},
	}
	svc := newTestService(fs)
	svc.search.searchFn = func(search.Query) []int64 {
		t.Fatal("search should not run for an empty query")
		return nil
	}

	records, err := svc.SearchBookmarks(context.Background(), "   ", 0)
	if err != nil || !listed || len(records) != 1 {
		t.Fatalf("expected list fallback, got %+v %v", records, err)
	}
}

func TestCreateBookmarkFillsTitleAndCategory(t *testing.T) {
	var inserted store.NewBookmark
	fs := &fakeStore{
		insertBookmarkFn: func(_ context.Context, item store.NewBookmark) (store.Bookmark, error) {
			inserted = item
			return store.Bookmark{ID: 7, URL: item.URL, Title: item.Title, Category: item.Category, Position: 3}, nil
		},
	}
	svc := newTestService(fs)
	svc.suggest.describeFn = func(url string, n int) (suggest.Suggestion, error) {
		if url != "https://go.dev/doc" || n != suggestedTagCount {
			t.Fatalf("unexpected describe args %q %d", url, n)
		}
		return suggest.Suggestion{Title: "Go Docs", Tags: []string{"development"}, Category: "development"}, nil
	}

	record, err := svc.CreateBookmark(context.Background(), wire.CreateRequest{URL: "https://go.dev/doc", Tags: []string{"go"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if svc.suggest.described != 1 {
		t.Fatalf("expected one page fetch, got %d", svc.suggest.described)
	}
	if inserted.Title != "Go Docs" || inserted.Category == nil || *inserted.Category != "development" {
		t.Fatalf("unexpected insert %+v", inserted)
	}
	if record.ID != 7 || record.Position != 3 {
		t.Fatalf("unexpected record %+v", record)
	}

	events := svc.publisher.published()
	if len(events) != 1 || events[0].Action != wire.ActionCreate || events[0].Bookmark.ID != 7 {
		t.Fatalf("expected one create event, got %+v", events)
	}
	if got := fs.actions(); len(got) != 1 || got[0] != store.ActionCreate {
		t.Fatalf("expected create interaction, got %v", got)
	}
	if len(svc.search.indexed) != 1 || svc.search.indexed[0].ID != 7 {
		t.Fatalf("expected bookmark to be indexed, got %+v", svc.search.indexed)
	}
}

func TestCreateBookmarkFallsBackToUntitled(t *testing.T) {
	var inserted store.NewBookmark
	fs := &fakeStore{
		insertBookmarkFn: func(_ context.Context, item store.NewBookmark) (store.Bookmark, error) {
			inserted = item
			return store.Bookmark{ID: 1, URL: item.URL, Title: item.Title}, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.CreateBookmark(context.Background(), wire.CreateRequest{URL: "https://example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if inserted.Title != untitledBookmark || inserted.Category != nil {
		t.Fatalf("unexpected insert %+v", inserted)
	}
}

func TestCreateBookmarkFetchesOnlyForMissingFields(t *testing.T) {
	var inserted store.NewBookmark
	fs := &fakeStore{
		insertBookmarkFn: func(_ context.Context, item store.NewBookmark) (store.Bookmark, error) {
			inserted = item
			return store.Bookmark{ID: 2, URL: item.URL, Title: item.Title, Category: item.Category}, nil
		},
	}
	svc := newTestService(fs)
	svc.suggest.describeFn = func(string, int) (suggest.Suggestion, error) {
		return suggest.Suggestion{Title: "Page Title", Category: "news"}, nil
	}

	if _, err := svc.CreateBookmark(context.Background(), wire.CreateRequest{URL: "https://example.com", Title: "Mine", Category: "tech"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if svc.suggest.described != 0 {
		t.Fatalf("expected no page fetch, got %d", svc.suggest.described)
	}

	if _, err := svc.CreateBookmark(context.Background(), wire.CreateRequest{URL: "https://example.com/a", Title: "Mine"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if svc.suggest.described != 1 {
		t.Fatalf("expected one page fetch, got %d", svc.suggest.described)
	}
	if inserted.Title != "Mine" || inserted.Category == nil || *inserted.Category != "news" {
		t.Fatalf("given title should win over the page, got %+v", inserted)
	}
}

func TestCreateBookmarkDuplicateURL(t *testing.T) {
	fs := &fakeStore{
		insertBookmarkFn: func(context.Context, store.NewBookmark) (store.Bookmark, error) {
			return store.Bookmark{}, store.ErrDuplicateURL
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateBookmark(context.Background(), wire.CreateRequest{URL: "https://example.com", Title: "x"})
	assertDomainError(t, err, http.StatusBadRequest, "DUPLICATE_URL")
	assertErrorDetail(t, err, "url", "https://example.com")
	if len(svc.publisher.published()) != 0 {
		t.Fatal("failed create should not broadcast")
	}
}

func assertErrorDetail(t *testing.T, err error, key, want string) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %v", err)
	}
	details, ok := domainErr.Details.(map[string]any)
	if !ok || details[key] != want {
		t.Fatalf("expected detail %s=%q, got %#v", key, want, domainErr.Details)
	}
}

func TestCreateBookmarkValidatesURL(t *testing.T) {
	svc := newTestService(&fakeStore{})
	for _, raw := range []string{"", "ftp://example.com", "not a url", "https://"} {
		_, err := svc.CreateBookmark(context.Background(), wire.CreateRequest{URL: raw, Title: "x"})
		assertDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
		assertErrorDetail(t, err, "field", "url")
	}
}

func TestReorderBookmarkBroadcastsUpdate(t *testing.T) {
	fs := &fakeStore{
		reorderBookmarkFn: func(_ context.Context, id int64, position float64, category string) (store.Bookmark, error) {
			if id != 3 || position != 1.5 || category != "" {
				t.Fatalf("unexpected reorder args %d %v %q", id, position, category)
			}
			return sampleBookmark(3, 1.5, "tech"), nil
		},
	}
	svc := newTestService(fs)

	record, err := svc.ReorderBookmark(context.Background(), wire.ReorderRequest{BookmarkID: 3, NewPosition: 1.5})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if record.Position != 1.5 {
		t.Fatalf("unexpected record %+v", record)
	}
	events := svc.publisher.published()
	if len(events) != 1 || events[0].Action != wire.ActionUpdate || events[0].Bookmark.Position != 1.5 {
		t.Fatalf("expected one update event, got %+v", events)
	}
	if got := fs.actions(); len(got) != 1 || got[0] != store.ActionReorder {
		t.Fatalf("expected reorder interaction, got %v", got)
	}
}

func TestReorderBookmarkUnknownID(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.ReorderBookmark(context.Background(), wire.ReorderRequest{BookmarkID: 99, NewPosition: 1})
	assertDomainError(t, err, http.StatusNotFound, "NOT_FOUND")
	if len(svc.publisher.published()) != 0 {
		t.Fatal("failed reorder should not broadcast")
	}
}

func TestReorderBookmarkRejectsNonFinitePosition(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.ReorderBookmark(context.Background(), wire.ReorderRequest{BookmarkID: 1, NewPosition: math.Inf(1)})
	assertDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestUpdateBookmarkPatchesGivenFields(t *testing.T) {
	var patch store.BookmarkPatch
	fs := &fakeStore{
		updateBookmarkFn: func(_ context.Context, id int64, p store.BookmarkPatch) (store.Bookmark, error) {
			patch = p
			item := sampleBookmark(id, 1, "news")
			item.Title = *p.Title
			return item, nil
		},
	}
	svc := newTestService(fs)

	record, err := svc.UpdateBookmark(context.Background(), 4, wire.UpdateRequest{Title: strPtr("Renamed")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if record.Title != "Renamed" || patch.URL != nil || patch.Category != nil {
		t.Fatalf("unexpected patch %+v record %+v", patch, record)
	}
	if got := fs.actions(); len(got) != 1 || got[0] != store.ActionEdit {
		t.Fatalf("expected edit interaction, got %v", got)
	}
	if events := svc.publisher.published(); len(events) != 1 || events[0].Action != wire.ActionUpdate {
		t.Fatalf("expected update event, got %+v", events)
	}
}

func TestUpdateBookmarkRejectsBlankTitle(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.UpdateBookmark(context.Background(), 1, wire.UpdateRequest{Title: strPtr("  ")})
	assertDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestDeleteBookmarkBroadcastsDelete(t *testing.T) {
	fs := &fakeStore{deleteBookmarkFn: func(context.Context, int64) error { return nil }}
	svc := newTestService(fs)

	if err := svc.DeleteBookmark(context.Background(), 8); err != nil {
		t.Fatalf("delete: %v", err)
	}
	events := svc.publisher.published()
	if len(events) != 1 || events[0].Action != wire.ActionDelete || events[0].BookmarkID != 8 {
		t.Fatalf("expected delete event, got %+v", events)
	}
	if len(svc.search.deleted) != 1 || svc.search.deleted[0] != 8 {
		t.Fatalf("expected index removal, got %v", svc.search.deleted)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	fs := &fakeStore{deleteBookmarkFn: func(context.Context, int64) error { return nil }}
	svc := newTestService(fs)
	svc.publisher.err = errors.New("redis down")

	if err := svc.DeleteBookmark(context.Background(), 1); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
}

func TestAnalyticsFormatsRecentActions(t *testing.T) {
	fs := &fakeStore{
		categoryCountsFn: func(context.Context) (map[string]int, error) {
			return map[string]int{"tech": 2, "Uncategorized": 1}, nil
		},
		tagCountsFn: func(context.Context) (map[string]int, error) {
			return map[string]int{"go": 3}, nil
		},
		recentInteractionsFn: func(_ context.Context, limit int) ([]store.Interaction, error) {
			if limit != recentActionsLimit {
				t.Fatalf("unexpected limit %d", limit)
			}
			return []store.Interaction{{
				BookmarkID: 2,
				Title:      "Go",
				Action:     store.ActionReorder,
				Timestamp:  time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
			}}, nil
		},
	}
	svc := newTestService(fs)

	analytics, err := svc.Analytics(context.Background())
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if analytics.CategoryCounts["tech"] != 2 || analytics.TagCounts["go"] != 3 {
		t.Fatalf("unexpected counts %+v", analytics)
	}
	if len(analytics.RecentActions) != 1 || analytics.RecentActions[0].Timestamp != "2024-06-01T10:00:00Z" {
		t.Fatalf("unexpected recent actions %+v", analytics.RecentActions)
	}
}

func TestSuggestTagsReportsFailure(t *testing.T) {
	svc := newTestService(&fakeStore{})

	result, err := svc.SuggestTags(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if result.Error == nil || len(result.SuggestedTags) != 0 || result.SuggestedCategory != nil {
		t.Fatalf("unexpected suggestion %+v", result)
	}
}

func TestExportEntriesUsesCategory(t *testing.T) {
	fs := &fakeStore{
		listBookmarksFn: func(_ context.Context, category string, _, _ int) ([]store.Bookmark, error) {
			if category != "tech" {
				t.Fatalf("unexpected category %q", category)
			}
			item := sampleBookmark(1, 1, "tech")
			item.Description = strPtr("notes")
			return []store.Bookmark{item}, nil
		},
	}
	svc := newTestService(fs)

	entries, err := svc.ExportEntries(context.Background(), "tech")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Category != "tech" || entries[0].Description != "notes" || entries[0].Tags[0] != "go" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestExportUploadUnavailable(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.Export(context.Background(), export.Request{Format: export.FormatHTML, Upload: true})
	assertDomainError(t, err, http.StatusServiceUnavailable, "EXPORT_UPLOAD_UNAVAILABLE")
}
