// Package reorder turns a drag gesture into an optimistic local move plus a
// single position update sent to the server.
package reorder

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"shelf/api/internal/collection"
	"shelf/api/internal/ordering"
	"shelf/api/internal/wire"
)

// API is the part of the HTTP client a coordinator needs.
type API interface {
	Reorder(ctx context.Context, req wire.ReorderRequest) (wire.Record, error)
	Fetch(ctx context.Context, filter wire.Filter) ([]wire.Record, error)
}

// Intent is a move as the user performed it.
type Intent struct {
	Source      int
	Destination int
	Record      wire.Record
}

// Pending is an in-flight reorder request.
type Pending struct {
	Intent  Intent
	Request wire.ReorderRequest

	done   chan struct{}
	record wire.Record
	err    error
}

// Wait blocks until the request and any resync it triggered have finished.
// The error is the request's, not the resync's.
func (p *Pending) Wait(ctx context.Context) (wire.Record, error) {
	select {
	case <-p.done:
		return p.record, p.err
	case <-ctx.Done():
		return wire.Record{}, ctx.Err()
	}
}

type Coordinator struct {
	owner *collection.Owner
	api   API

	requestTimeout time.Duration

	mu     sync.Mutex
	filter wire.Filter

	inflight sync.WaitGroup
}

func New(owner *collection.Owner, api API) *Coordinator {
	return &Coordinator{owner: owner, api: api, requestTimeout: 15 * time.Second}
}

// SetFilter records the filter the view was loaded with. Resyncs refetch
// with it and moves are refused while it is a search.
func (c *Coordinator) SetFilter(filter wire.Filter) {
	c.mu.Lock()
	c.filter = filter
	c.mu.Unlock()
}

func (c *Coordinator) Filter() wire.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Move relocates the record at src to dst. The local sequence is updated
// before Move returns; the server request runs in the background. ok is
// false when the move was a no-op and nothing was sent.
//
// The local reorder and its request are decided together on the owner loop.
// If ctx is done by the time the loop reaches the move, neither happens, even
// when Move has already given up waiting.
func (c *Coordinator) Move(ctx context.Context, src, dst int) (*Pending, bool) {
	filter := c.Filter()
	if filter.Searching() {
		log.Printf("reorder: ignoring move %d->%d while search %q is active", src, dst, filter.Query)
		return nil, false
	}

	c.inflight.Add(1)
	ran := make(chan *Pending, 1)
	err := c.owner.Do(ctx, func(s *collection.Store) {
		ran <- c.apply(ctx, s, src, dst)
	})
	if err == nil {
		pending := <-ran
		return pending, pending != nil
	}

	select {
	case pending := <-ran:
		return pending, pending != nil
	default:
	}
	log.Printf("reorder: move %d->%d not applied: %v", src, dst, err)
	if errors.Is(err, collection.ErrClosed) {
		c.inflight.Done()
		return nil, false
	}
	go c.settle(ran)
	return nil, false
}

// apply runs on the owner loop. Every path either hands the inflight slot
// taken by Move to send or releases it.
func (c *Coordinator) apply(ctx context.Context, s *collection.Store, src, dst int) *Pending {
	if ctx.Err() != nil {
		c.inflight.Done()
		return nil
	}
	next, ok := ordering.Move(s.Records(), src, dst)
	if !ok {
		c.inflight.Done()
		return nil
	}
	s.ApplyLocalReorder(next)

	moved := next[dst]
	pending := &Pending{
		Intent: Intent{Source: src, Destination: dst, Record: moved},
		Request: wire.ReorderRequest{
			BookmarkID:  moved.ID,
			NewPosition: moved.Position,
			Category:    moved.Category,
		},
		done: make(chan struct{}),
	}
	go c.send(pending)
	return pending
}

// settle releases the inflight slot of a move whose caller stopped waiting
// if the owner loop exits without ever reaching it.
func (c *Coordinator) settle(ran <-chan *Pending) {
	select {
	case <-ran:
	case <-c.owner.Done():
		select {
		case <-ran:
		default:
			c.inflight.Done()
		}
	}
}

// The request outlives the gesture's context; a later move never cancels an
// earlier one.
func (c *Coordinator) send(p *Pending) {
	defer c.inflight.Done()
	defer close(p.done)

	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	defer cancel()

	record, err := c.api.Reorder(ctx, p.Request)
	if err == nil {
		p.record = record
		return
	}
	p.err = err
	log.Printf("reorder: bookmark %d to %.1f failed, resyncing: %v", p.Request.BookmarkID, p.Request.NewPosition, err)
	c.resync(ctx)
}

func (c *Coordinator) resync(ctx context.Context) {
	records, err := c.api.Fetch(ctx, c.Filter())
	if err != nil {
		log.Printf("reorder: resync fetch failed: %v", err)
		return
	}
	if err := c.owner.Do(ctx, func(s *collection.Store) { s.Load(records) }); err != nil && !errors.Is(err, collection.ErrClosed) {
		log.Printf("reorder: resync load failed: %v", err)
	}
}

// Wait blocks until every request started by Move has finished.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}
