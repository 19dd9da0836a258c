package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelf/api/internal/broadcast"
	"shelf/api/internal/wire"
)

// fakeShelf is an in-memory bookmark API that broadcasts every write through
// a real hub, the way the server does.
type fakeShelf struct {
	t   *testing.T
	hub *broadcast.Hub

	mu      sync.Mutex
	records []wire.Record
	nextID  int64
	reject  bool
}

func newFakeShelf(t *testing.T, records ...wire.Record) (*fakeShelf, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := broadcast.NewHub("*")
	go hub.Run(ctx)

	shelf := &fakeShelf{t: t, hub: hub, records: records, nextID: 100}
	server := httptest.NewServer(shelf.handler())
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return shelf, server.URL
}

func (f *fakeShelf) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/bookmarks", f.hub.ServeWS)
	mux.HandleFunc("GET /api/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		out := append([]wire.Record(nil), f.records...)
		f.mu.Unlock()
		sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
		f.reply(w, http.StatusOK, out)
	})
	mux.HandleFunc("POST /api/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		var req wire.CreateRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		highest := 0.0
		for _, record := range f.records {
			if record.Position > highest {
				highest = record.Position
			}
		}
		f.nextID++
		record := wire.Record{ID: f.nextID, URL: req.URL, Title: req.Title, Position: highest + 1, CreatedAt: time.Now().UTC()}
		f.records = append(f.records, record)
		f.mu.Unlock()
		f.publish(wire.Created(record))
		f.reply(w, http.StatusCreated, record)
	})
	mux.HandleFunc("POST /api/bookmarks/reorder", func(w http.ResponseWriter, r *http.Request) {
		var req wire.ReorderRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		if f.reject {
			f.mu.Unlock()
			f.notFound(w)
			return
		}
		for i := range f.records {
			if f.records[i].ID == req.BookmarkID {
				f.records[i].Position = req.NewPosition
				record := f.records[i]
				f.mu.Unlock()
				f.publish(wire.Updated(record))
				f.reply(w, http.StatusOK, record)
				return
			}
		}
		f.mu.Unlock()
		f.notFound(w)
	})
	mux.HandleFunc("DELETE /api/bookmarks/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		f.mu.Lock()
		for i := range f.records {
			if f.records[i].ID == id {
				f.records = append(f.records[:i], f.records[i+1:]...)
				f.mu.Unlock()
				f.publish(wire.Deleted(id))
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		f.mu.Unlock()
		f.notFound(w)
	})
	return mux
}

func (f *fakeShelf) waitForViewers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.hub.Clients() == n }, 5*time.Second, 10*time.Millisecond)
}

func (f *fakeShelf) setReject(reject bool) {
	f.mu.Lock()
	f.reject = reject
	f.mu.Unlock()
}

func (f *fakeShelf) publish(event wire.Event) {
	assert.NoError(f.t, f.hub.Publish(context.Background(), event))
}

func (f *fakeShelf) reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeShelf) notFound(w http.ResponseWriter) {
	f.reply(w, http.StatusNotFound, map[string]string{"code": "NOT_FOUND", "error": "Bookmark not found"})
}

func threeBookmarks() []wire.Record {
	return []wire.Record{
		{ID: 1, URL: "https://a.test", Title: "A", Position: 1},
		{ID: 2, URL: "https://b.test", Title: "B", Position: 2},
		{ID: 3, URL: "https://c.test", Title: "C", Position: 3},
	}
}

func ids(records []wire.Record) []int64 {
	out := make([]int64, len(records))
	for i, record := range records {
		out[i] = record.ID
	}
	return out
}

func openSession(t *testing.T, baseURL string, live bool) *Session {
	t.Helper()
	session, err := New(Options{BaseURL: baseURL, Live: live})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, session.Open(ctx))
	t.Cleanup(session.Close)
	if live {
		require.Eventually(t, session.Live, 5*time.Second, 10*time.Millisecond)
	}
	return session
}

func TestSessionOpenLoadsSortedCollection(t *testing.T) {
	records := threeBookmarks()
	records[0].Position = 5
	_, baseURL := newFakeShelf(t, records...)

	session := openSession(t, baseURL, false)
	assert.Equal(t, []int64{2, 3, 1}, ids(session.Records()))
	assert.Contains(t, session.ID(), "viewer_")
}

func TestSessionRequiresOpen(t *testing.T) {
	session, err := New(Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, ok := session.Move(context.Background(), 0, 1)
	assert.False(t, ok)
	assert.ErrorIs(t, session.Delete(context.Background(), 1), ErrNotOpen)
	assert.ErrorIs(t, session.Refresh(context.Background()), ErrNotOpen)
	_, err = session.Create(context.Background(), wire.CreateRequest{URL: "https://x.test"})
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestSessionMoveConvergesAcrossViewers(t *testing.T) {
	shelf, baseURL := newFakeShelf(t, threeBookmarks()...)
	a := openSession(t, baseURL, true)
	b := openSession(t, baseURL, true)
	shelf.waitForViewers(t, 2)

	pending, ok := a.Move(context.Background(), 2, 0)
	require.True(t, ok)
	assert.Equal(t, []int64{3, 1, 2}, ids(a.Records()))
	assert.Equal(t, int64(3), pending.Request.BookmarkID)
	assert.Equal(t, 1.0, pending.Request.NewPosition)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := pending.Wait(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got := ids(b.Records())
		return len(got) == 3 && got[0] == 3 && got[1] == 1 && got[2] == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{3, 1, 2}, ids(a.Records()))
}

func TestSessionRejectedMoveResyncs(t *testing.T) {
	shelf, baseURL := newFakeShelf(t, threeBookmarks()...)
	shelf.setReject(true)
	session := openSession(t, baseURL, false)

	pending, ok := session.Move(context.Background(), 0, 2)
	require.True(t, ok)
	assert.Equal(t, int64(1), pending.Request.BookmarkID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := pending.Wait(ctx)
	require.Error(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(session.Records()))
}

func TestSessionCreateInsertsWithoutWaitingForEcho(t *testing.T) {
	_, baseURL := newFakeShelf(t, threeBookmarks()...)
	session := openSession(t, baseURL, false)

	record, err := session.Create(context.Background(), wire.CreateRequest{URL: "https://d.test", Title: "D"})
	require.NoError(t, err)
	assert.Equal(t, 4.0, record.Position)
	assert.Equal(t, []int64{1, 2, 3, record.ID}, ids(session.Records()))
}

func TestSessionCreateEchoIsIdempotent(t *testing.T) {
	shelf, baseURL := newFakeShelf(t, threeBookmarks()...)
	session := openSession(t, baseURL, true)
	shelf.waitForViewers(t, 1)

	record, err := session.Create(context.Background(), wire.CreateRequest{URL: "https://d.test", Title: "D"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		applied, _ := session.Push().Counts()
		return applied == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(session.Records()) == 4 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, record.ID, session.Records()[3].ID)
}

func TestSessionDeleteArrivesThroughBroadcast(t *testing.T) {
	shelf, baseURL := newFakeShelf(t, threeBookmarks()...)
	session := openSession(t, baseURL, true)
	shelf.waitForViewers(t, 1)

	require.NoError(t, session.Delete(context.Background(), 2))
	require.Eventually(t, func() bool {
		got := ids(session.Records())
		return len(got) == 2 && got[0] == 1 && got[1] == 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSessionDeleteUnknownIsRejected(t *testing.T) {
	_, baseURL := newFakeShelf(t, threeBookmarks()...)
	session := openSession(t, baseURL, false)

	err := session.Delete(context.Background(), 99)
	require.Error(t, err)
	assert.Len(t, session.Records(), 3)
}
