// Package client is one viewer of the shared bookmark collection: a local
// ordered copy kept current by fetches, user moves and server broadcasts.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"shelf/api/internal/apiclient"
	"shelf/api/internal/collection"
	"shelf/api/internal/pushchan"
	"shelf/api/internal/reorder"
	"shelf/api/internal/util"
	"shelf/api/internal/wire"
)

var ErrNotOpen = errors.New("session not open")

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Filter     wire.Filter
	// Live opens the push channel. Without it the session only changes on
	// its own actions and refetches.
	Live     bool
	Push     pushchan.Settings
	OnChange func([]wire.Record)
}

type Session struct {
	id    string
	api   *apiclient.Client
	owner *collection.Owner
	coord *reorder.Coordinator
	push  *pushchan.Reconciler

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	opened bool
}

func New(opts Options) (*Session, error) {
	api, err := apiclient.New(opts.BaseURL, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	id := util.NewID("viewer")
	api = api.WithInstanceID(id)

	owner := collection.NewOwner(nil, opts.OnChange)
	coord := reorder.New(owner, api)
	coord.SetFilter(opts.Filter)

	s := &Session{id: id, api: api, owner: owner, coord: coord}
	if opts.Live {
		settings := opts.Push
		if settings.HandshakeTimeout == 0 && settings.ReadTimeout == 0 && settings.WriteTimeout == 0 {
			header := settings.Header
			settings = pushchan.DefaultSettings()
			settings.Header = header
		}
		settings.Header = settings.Header.Clone()
		if settings.Header == nil {
			settings.Header = http.Header{}
		}
		settings.Header.Set("X-Request-ID", id)
		s.push = pushchan.New(api.PushURL(), owner, settings)
	}
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) API() *apiclient.Client {
	return s.api
}

// Open performs the initial fetch, starts the owner loop and, for a live
// session, the push channel. The channel is opened after the fetch has been
// queued, so every broadcast applies on top of it.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.opened {
		s.mu.Unlock()
		return errors.New("session already open")
	}
	s.opened = true
	s.mu.Unlock()

	records, err := s.api.Fetch(ctx, s.coord.Filter())
	if err != nil {
		s.mu.Lock()
		s.opened = false
		s.mu.Unlock()
		return fmt.Errorf("initial fetch: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.owner.Submit(func(st *collection.Store) { st.Load(records) })
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.owner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("client: owner stopped: %v", err)
		}
	}()

	if s.push != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = s.push.Run(runCtx)
		}()
	}
	return s.owner.Do(ctx, func(*collection.Store) {})
}

// SetFilter refetches with filter and replaces the whole view.
func (s *Session) SetFilter(ctx context.Context, filter wire.Filter) error {
	if err := s.ready(); err != nil {
		return err
	}
	records, err := s.api.Fetch(ctx, filter)
	if err != nil {
		return err
	}
	s.coord.SetFilter(filter)
	return s.owner.Do(ctx, func(st *collection.Store) { st.Load(records) })
}

// Refresh refetches with the current filter.
func (s *Session) Refresh(ctx context.Context) error {
	return s.SetFilter(ctx, s.coord.Filter())
}

func (s *Session) Filter() wire.Filter {
	return s.coord.Filter()
}

// Move reorders locally and sends the moved record's new position.
func (s *Session) Move(ctx context.Context, src, dst int) (*reorder.Pending, bool) {
	if s.ready() != nil {
		return nil, false
	}
	return s.coord.Move(ctx, src, dst)
}

// Create inserts the bookmark once the server has accepted it. A rejected
// create leaves the view unchanged.
func (s *Session) Create(ctx context.Context, req wire.CreateRequest) (wire.Record, error) {
	if err := s.ready(); err != nil {
		return wire.Record{}, err
	}
	record, err := s.api.Create(ctx, req)
	if err != nil {
		return wire.Record{}, err
	}
	if err := s.owner.Do(ctx, func(st *collection.Store) { st.ApplyCreate(record) }); err != nil {
		return record, err
	}
	return record, nil
}

// Update sends a patch. The view changes when the broadcast arrives.
func (s *Session) Update(ctx context.Context, id int64, patch wire.UpdateRequest) (wire.Record, error) {
	if err := s.ready(); err != nil {
		return wire.Record{}, err
	}
	return s.api.Update(ctx, id, patch)
}

// Delete removes a bookmark on the server. The view changes when the
// broadcast arrives.
func (s *Session) Delete(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.api.Delete(ctx, id)
}

func (s *Session) Records() []wire.Record {
	return s.owner.Snapshot()
}

// Live reports whether broadcasts are currently being applied.
func (s *Session) Live() bool {
	return s.push != nil && s.push.State() == pushchan.Open
}

func (s *Session) Push() *pushchan.Reconciler {
	return s.push
}

// Close waits for in-flight reorders, then stops the push channel and the
// owner loop.
func (s *Session) Close() {
	s.coord.Wait()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.owner.Close()
	s.wg.Wait()
}

func (s *Session) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened || s.cancel == nil {
		return ErrNotOpen
	}
	return nil
}
