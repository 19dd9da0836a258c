package collection

import (
	"context"
	"errors"
	"sync/atomic"

	"shelf/api/internal/wire"
)

var ErrClosed = errors.New("collection owner closed")

// Owner is the single writer of a Store. Gesture handlers and the push
// channel submit mutations; Run applies them one at a time in submission
// order, so no lock guards the store itself.
//
// After each mutation the owner publishes a snapshot for readers. A reader
// can see the list between an optimistic reorder and the broadcast that
// corrects it.
type Owner struct {
	store    *Store
	queue    *mutationQueue
	snapshot atomic.Pointer[[]wire.Record]
	onChange func([]wire.Record)
	done     chan struct{}
	started  atomic.Bool
}

// NewOwner takes ownership of store. onChange, when set, runs on the owner
// loop after every mutation with the new sequence; it must not block or
// modify the slice.
func NewOwner(store *Store, onChange func([]wire.Record)) *Owner {
	if store == nil {
		store = NewStore()
	}
	o := &Owner{
		store:    store,
		queue:    newMutationQueue(),
		onChange: onChange,
		done:     make(chan struct{}),
	}
	initial := store.Records()
	o.snapshot.Store(&initial)
	return o
}

// Run applies queued mutations until ctx is cancelled or Close is called.
// Mutations queued before Close are still applied.
func (o *Owner) Run(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return errors.New("collection owner already running")
	}
	defer close(o.done)

	for {
		for {
			j, ok := o.queue.TryDequeue()
			if !ok {
				break
			}
			o.apply(j)
		}

		select {
		case <-ctx.Done():
			o.queue.Close()
			return ctx.Err()
		case _, ok := <-o.queue.Wait():
			if !ok {
				for {
					j, ok := o.queue.TryDequeue()
					if !ok {
						return nil
					}
					o.apply(j)
				}
			}
		}
	}
}

func (o *Owner) apply(j job) {
	if j.mutate != nil {
		j.mutate(o.store)
	}
	records := o.store.Records()
	o.snapshot.Store(&records)
	if o.onChange != nil {
		o.onChange(records)
	}
	if j.done != nil {
		close(j.done)
	}
}

// Submit queues m without waiting for it. Returns false after Close.
func (o *Owner) Submit(m Mutation) bool {
	return o.queue.Enqueue(job{mutate: m})
}

// Do queues m and waits until it has been applied. A cancelled ctx stops the
// wait but not the mutation.
func (o *Owner) Do(ctx context.Context, m Mutation) error {
	j := job{mutate: m, done: make(chan struct{})}
	if !o.queue.Enqueue(j) {
		return ErrClosed
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		select {
		case <-j.done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Snapshot returns the sequence as of the last applied mutation.
func (o *Owner) Snapshot() []wire.Record {
	return cloneAll(*o.snapshot.Load())
}

// Close stops accepting mutations; Run returns once the queue is drained.
func (o *Owner) Close() {
	o.queue.Close()
}

// Done is closed when Run has returned.
func (o *Owner) Done() <-chan struct{} {
	return o.done
}
