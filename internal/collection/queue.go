package collection

import "sync"

// Mutation is one unit of work run against the store on the owner loop.
type Mutation func(*Store)

type job struct {
	mutate Mutation
	done   chan struct{}
}

// mutationQueue is an unbounded FIFO of pending mutations.
//
// Producers (gesture handlers, the push channel) enqueue from any goroutine;
// only the owner loop dequeues. The signal channel has a buffer of one so
// bursts of enqueues coalesce into a single wake-up.
type mutationQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{}
}

func newMutationQueue() *mutationQueue {
	return &mutationQueue{
		jobs:   make([]job, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends j. Returns false once the queue is closed.
func (q *mutationQueue) Enqueue(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, j)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

func (q *mutationQueue) TryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}
	j := q.jobs[0]
	q.jobs[0] = job{}
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

// Wait signals that jobs may be available. It is closed with the queue.
func (q *mutationQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *mutationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close rejects further jobs and wakes the loop. Jobs already queued are
// still drained.
func (q *mutationQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
