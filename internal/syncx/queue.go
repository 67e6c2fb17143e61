package syncx

import (
	"context"
	"sync"
	"time"
)

// Queue is an unbounded FIFO work queue with completion tracking.
// Producers Push items, a consumer pops with a bounded wait so it can
// observe shutdown between items, and calls Done once an item has been
// fully processed. WaitIdle blocks until every pushed item has been
// marked done, which is the drain primitive used by shutdown.
type Queue[T any] struct {
	mu         sync.Mutex
	items      []T
	unfinished int
	idleCh     chan struct{} // closed while unfinished == 0
	signal     chan struct{} // wakes a blocked PopTimeout
}

// NewQueue creates an empty queue, which starts idle.
func NewQueue[T any]() *Queue[T] {
	idle := make(chan struct{})
	close(idle)
	return &Queue[T]{
		idleCh: idle,
		signal: make(chan struct{}, 1),
	}
}

// Push appends an item. Never blocks; safe for concurrent producers.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	if q.unfinished == 0 {
		q.idleCh = make(chan struct{})
	}
	q.unfinished++
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// PopTimeout removes and returns the oldest item, waiting up to d for one
// to arrive. Returns false when the wait expires with the queue empty.
func (q *Queue[T]) PopTimeout(d time.Duration) (T, bool) {
	deadline := time.Now().Add(d)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, true
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			var zero T
			return zero, false
		}

		timer := time.NewTimer(remaining)
		select {
		case <-q.signal:
			timer.Stop()
		case <-timer.C:
			var zero T
			return zero, false
		}
	}
}

// Done marks one previously popped item as fully processed. When the count
// of outstanding items reaches zero the queue becomes idle and any WaitIdle
// callers are released.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished == 0 {
		return
	}
	q.unfinished--
	if q.unfinished == 0 {
		close(q.idleCh)
	}
}

// WaitIdle blocks until all items pushed so far have been marked done, or
// the context expires. The context bound keeps shutdown from hanging if the
// consumer has died with items outstanding.
func (q *Queue[T]) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idleCh
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of items waiting to be popped.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Outstanding returns the number of items pushed but not yet marked done.
func (q *Queue[T]) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}
