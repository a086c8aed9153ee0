// Package dispatch runs the matching loop between demand (the request
// queue) and supply (the session pool). A fixed set of workers — one per
// pool slot — each carries a request end-to-end: dequeue, acquire, execute,
// release with a health verdict, deliver the outcome.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/entrhq/gateway/pkg/browser"
	"github.com/entrhq/gateway/pkg/logging"
	"github.com/entrhq/gateway/pkg/pool"
	"github.com/entrhq/gateway/pkg/queue"
)

// Dispatcher moves requests from the queue onto pooled browser sessions.
type Dispatcher struct {
	pool  *pool.Pool
	queue *queue.Queue
	log   *logging.Logger

	// workers is the concurrency limit; sized to the pool so one slow
	// request occupies one session slot, never the whole dispatcher.
	workers        int
	requestTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a dispatcher with one worker per pool slot.
func New(p *pool.Pool, q *queue.Queue, workers int, requestTimeout time.Duration, log *logging.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		pool:           p,
		queue:          q,
		log:            log,
		workers:        workers,
		requestTimeout: requestTimeout,
	}
}

// Start launches the dispatch workers. They run until Stop is called or
// the parent context ends.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.worker(ctx)
	}
	d.log.Infof("dispatcher started with %d workers", d.workers)
}

// Stop halts the workers and waits for in-flight requests to finish
// delivering their outcomes.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		req, err := d.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		d.handle(req)
	}
}

// handle carries one request end-to-end.
func (d *Dispatcher) handle(req *queue.Request) {
	// Cancelled between dequeue and here; resolve the sink and move on.
	if req.Cancelled() {
		req.Deliver(nil, context.Canceled)
		return
	}

	reqCtx, cancel := d.requestContext(req)
	defer cancel()

	session, err := d.pool.Acquire(reqCtx)
	if err != nil {
		req.Deliver(nil, err)
		return
	}

	result, err := session.Execute(reqCtx, req.Action())

	healthy := d.verdict(session, err)
	session.Release(healthy)

	if err != nil {
		d.log.Debugf("request %s failed on session %s (healthy=%t): %v", req.ID(), session.ID(), healthy, err)
	}
	req.Deliver(result, err)
}

// requestContext bounds the dispatch by the request's own deadline, falling
// back to the configured per-request timeout. It deliberately does not
// derive from the worker context: stopping the dispatcher lets in-flight
// actions finish on their own deadline instead of aborting them.
func (d *Dispatcher) requestContext(req *queue.Request) (context.Context, context.CancelFunc) {
	deadline := req.Deadline()
	if deadline.IsZero() && d.requestTimeout > 0 {
		deadline = time.Now().Add(d.requestTimeout)
	}
	if deadline.IsZero() {
		return context.WithCancel(context.Background())
	}
	return context.WithDeadline(context.Background(), deadline)
}

// verdict decides whether the session survives the request. A session is
// unhealthy if the process crashed, the action overran its hard deadline
// with no graceful cancel, or the control channel reported corruption.
// Application-level action errors leave the session reusable.
func (d *Dispatcher) verdict(session *pool.Session, err error) bool {
	if session.Crashed() {
		return false
	}
	if err == nil {
		return true
	}
	if errors.Is(err, browser.ErrActionTimeout) ||
		errors.Is(err, browser.ErrNotRunning) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	if browser.IsProtocolError(err) {
		return false
	}
	return true
}
