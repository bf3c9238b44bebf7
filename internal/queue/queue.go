// Package queue provides an unbounded FIFO queue whose Close acts as an
// in-band end marker.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
)

var ErrClosed = errors.New("queue closed")

type Queue[T any] struct {
	mu     sync.Mutex
	items  *deque.Deque[T]
	closed bool
	// ready is closed and replaced whenever an item arrives or the queue closes.
	ready chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: deque.New[T](),
		ready: make(chan struct{}),
	}
}

func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items.PushBack(item)
	q.signalLocked()
	return true
}

// Close marks the end of the queue. It reports whether this call closed it.
func (q *Queue[T]) Close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.closed = true
	q.signalLocked()
	return true
}

// Pop returns ErrClosed once the queue is closed and drained.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			item := q.items.PopFront()
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			var zero T
			return zero, ErrClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) signalLocked() {
	close(q.ready)
	q.ready = make(chan struct{})
}
