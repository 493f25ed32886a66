package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Push once the queue has been closed.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO that many goroutines may push into while a
// single consumer pops with a bounded wait. Items pushed by one goroutine
// are popped in the order they were pushed; nothing is dropped or
// duplicated.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool
	ready  chan struct{}

	pushed uint64
	popped uint64
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends v. It never blocks.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.pushed++
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pop waits up to timeout for the next item. The boolean is false when
// nothing arrived in the wait window, when ctx ended, or when the queue is
// closed and drained. An empty read is the normal idle signal, not an error.
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (T, bool) {
	var zero T

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if v, ok, done := q.tryPop(); ok {
			return v, true
		} else if done {
			return zero, false
		}

		select {
		case <-q.ready:
		case <-timer.C:
			v, ok, _ := q.tryPop()
			return v, ok
		case <-ctx.Done():
			return zero, false
		}
	}
}

// tryPop removes the head item if there is one. done reports a closed,
// empty queue.
func (q *Queue[T]) tryPop() (v T, ok bool, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return v, false, q.closed
	}

	v = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	q.popped++

	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}

	if q.head < len(q.items) {
		// more work is queued; keep the consumer awake
		q.signal()
	}
	return v, true, false
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Close stops accepting new items. Items already queued are still popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Drained reports whether the queue is closed and has nothing left to pop.
func (q *Queue[T]) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && q.head == len(q.items)
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Depth:  int64(len(q.items) - q.head),
		Pushed: q.pushed,
		Popped: q.popped,
		Closed: q.closed,
	}
}

// Stats represents queue statistics
type Stats struct {
	Depth  int64
	Pushed uint64
	Popped uint64
	Closed bool
}
