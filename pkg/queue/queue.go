// Package queue provides the bounded FIFO buffer between the gateway's
// inbound surface and the dispatcher. Requests are never dropped silently:
// every enqueued request is either dispatched, expired with TimedOut,
// skipped as cancelled, or rejected at shutdown.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull indicates the queue is at capacity; the caller must
	// reject the request upstream. Enqueue never blocks.
	ErrQueueFull = errors.New("request queue is full")

	// ErrTimedOut indicates a request's deadline elapsed while it was
	// still queued; it was never dispatched.
	ErrTimedOut = errors.New("request timed out in queue")

	// ErrQueueClosed indicates the queue has shut down.
	ErrQueueClosed = errors.New("request queue is closed")
)

// Queue is a bounded FIFO of pending automation requests. All mutation goes
// through Enqueue, Dequeue, and Close under an internal mutex.
type Queue struct {
	mu       sync.Mutex
	items    []*Request
	capacity int
	closed   bool

	// ready carries one token per queued item so Dequeue can block
	// without polling.
	ready chan struct{}
	done  chan struct{}
}

// New creates a queue holding at most capacity pending requests.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		capacity: capacity,
		ready:    make(chan struct{}, capacity),
		done:     make(chan struct{}),
	}
}

// Enqueue appends the request to the tail. It fails with ErrQueueFull at
// capacity and ErrQueueClosed after shutdown; it never blocks.
func (q *Queue) Enqueue(r *Request) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if len(q.items) >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.items = append(q.items, r)
	q.mu.Unlock()

	q.ready <- struct{}{}
	return nil
}

// Dequeue removes and returns the head request, blocking until one is
// available or the context ends. Cancelled entries are skipped without
// dispatch; entries whose deadline has already elapsed are resolved with
// ErrTimedOut and skipped. FIFO order is preserved for everything else.
func (q *Queue) Dequeue(ctx context.Context) (*Request, error) {
	for {
		select {
		case <-q.ready:
		case <-q.done:
			return nil, ErrQueueClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		q.mu.Lock()
		if len(q.items) == 0 {
			// Close drained the backlog after our token arrived.
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		r := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		if r.Cancelled() {
			continue
		}
		if r.Expired(time.Now()) {
			r.Deliver(nil, ErrTimedOut)
			continue
		}
		return r, nil
	}
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the maximum number of pending requests.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Close shuts the queue down. Pending requests are resolved with
// ErrQueueClosed so no caller is left waiting on a sink.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.items
	q.items = nil
	q.mu.Unlock()

	close(q.done)
	for _, r := range pending {
		r.Deliver(nil, ErrQueueClosed)
	}
}
