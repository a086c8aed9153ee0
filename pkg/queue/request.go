package queue

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/entrhq/gateway/pkg/browser"
)

// Outcome is the terminal result of an automation request: exactly one of
// Result or Err, delivered exactly once to the request's sink.
type Outcome struct {
	RequestID string
	Result    *browser.Result
	Err       error
	Elapsed   time.Duration
}

// Request is one unit of automation work awaiting dispatch. It is immutable
// once enqueued except for its cancellation flag.
type Request struct {
	id         string
	action     browser.Action
	deadline   time.Time
	enqueuedAt time.Time

	cancelled atomic.Bool
	sink      chan Outcome
	deliver   sync.Once
}

// NewRequest builds a request for the given action. A zero deadline means
// the request never expires on its own.
func NewRequest(action browser.Action, deadline time.Time) *Request {
	return &Request{
		id:         uuid.New().String(),
		action:     action,
		deadline:   deadline,
		enqueuedAt: time.Now(),
		sink:       make(chan Outcome, 1),
	}
}

// ID returns the request's unique identity.
func (r *Request) ID() string {
	return r.id
}

// Action returns the browser work this request carries.
func (r *Request) Action() browser.Action {
	return r.action
}

// Deadline returns the request's absolute deadline, zero if none.
func (r *Request) Deadline() time.Time {
	return r.deadline
}

// EnqueuedAt returns when the request was created for FIFO accounting.
func (r *Request) EnqueuedAt() time.Time {
	return r.enqueuedAt
}

// Expired reports whether the deadline has already elapsed at now.
func (r *Request) Expired(now time.Time) bool {
	return !r.deadline.IsZero() && now.After(r.deadline)
}

// Cancel marks the request cancelled. A still-queued cancelled request is
// skipped at dequeue time; cancellation after dispatch is the dispatcher's
// concern.
func (r *Request) Cancel() {
	r.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (r *Request) Cancelled() bool {
	return r.cancelled.Load()
}

// Deliver sends the outcome to the request's sink. Only the first call
// wins; later calls are ignored so a request is resolved exactly once.
func (r *Request) Deliver(result *browser.Result, err error) {
	r.deliver.Do(func() {
		r.sink <- Outcome{
			RequestID: r.id,
			Result:    result,
			Err:       err,
			Elapsed:   time.Since(r.enqueuedAt),
		}
	})
}

// Outcome returns the channel on which the terminal outcome arrives.
func (r *Request) Outcome() <-chan Outcome {
	return r.sink
}
