// Package pool owns the bounded collection of browser process handles and
// the checkout protocol around them. It is the only component that holds
// handle references outside an active Session; everything else goes through
// Acquire and Release.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/gateway/pkg/browser"
	"github.com/entrhq/gateway/pkg/logging"
)

var (
	// ErrPoolExhausted indicates no handle became available before the
	// caller's deadline. Not retried internally; the caller decides.
	ErrPoolExhausted = errors.New("session pool exhausted")

	// ErrPoolClosed indicates the pool has shut down.
	ErrPoolClosed = errors.New("session pool is closed")
)

// Process is the pool's view of one browser process handle. *browser.Handle
// is the production implementation; tests substitute fakes.
type Process interface {
	ID() string
	State() browser.State
	LastActive() time.Time
	Start(ctx context.Context) error
	Execute(ctx context.Context, action browser.Action) (*browser.Result, error)
	MarkBusy() error
	MarkIdle() error
	Drain()
	MarkDead()
	Done() <-chan struct{}
	Terminate(grace time.Duration) error
}

// Factory creates a fresh, unstarted Process.
type Factory func() Process

// Config bounds the pool's resource usage.
type Config struct {
	// MaxSessions caps concurrently live browser processes, counting
	// processes still starting up.
	MaxSessions int

	// IdleTimeout recycles handles idle longer than this; the pool
	// shrinks toward zero when unused.
	IdleTimeout time.Duration

	// ReapInterval is how often the reaper scans for stale idle handles.
	ReapInterval time.Duration

	// StartTimeout bounds one launch attempt including the readiness
	// handshake.
	StartTimeout time.Duration

	// StartBackoff is the delay before the single start retry.
	StartBackoff time.Duration

	// TerminateGrace is how long a handle gets to close cleanly before
	// it is force-killed.
	TerminateGrace time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxSessions <= 0 {
		out.MaxSessions = 1
	}
	if out.ReapInterval <= 0 {
		out.ReapInterval = 15 * time.Second
	}
	if out.StartTimeout <= 0 {
		out.StartTimeout = 30 * time.Second
	}
	if out.StartBackoff <= 0 {
		out.StartBackoff = 500 * time.Millisecond
	}
	if out.TerminateGrace <= 0 {
		out.TerminateGrace = 5 * time.Second
	}
	return out
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Starting int `json:"starting"`
	Idle     int `json:"idle"`
	Busy     int `json:"busy"`
	Waiters  int `json:"waiters"`
	Max      int `json:"max"`
}

// Pool is the session pool. All mutation of the handle collection happens
// under one mutex; blocked acquirers wait on per-caller channels that are
// signalled whenever capacity frees up, never by polling.
type Pool struct {
	factory Factory
	cfg     Config
	log     *logging.Logger

	mu       sync.Mutex
	handles  map[string]Process // live handles: Idle and Busy
	idle     []Process
	starting int
	waiters  []chan struct{}
	closed   bool
	drained  chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a pool that builds handles with factory. No processes are
// started until the first Acquire.
func New(factory Factory, cfg Config, log *logging.Logger) *Pool {
	p := &Pool{
		factory: factory,
		cfg:     cfg.withDefaults(),
		log:     log,
		handles: make(map[string]Process),
		drained: make(chan struct{}),
		stop:    make(chan struct{}),
	}

	p.wg.Add(1)
	go p.reap()
	return p
}

// Acquire checks out a session: an idle handle if one exists, a freshly
// started process if the pool is below capacity, or the next handle to be
// released. It fails with ErrPoolExhausted when the context ends first.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		if proc := p.popIdleLocked(); proc != nil {
			p.mu.Unlock()
			return newSession(p, proc), nil
		}

		if len(p.handles)+p.starting < p.cfg.MaxSessions {
			p.starting++
			p.mu.Unlock()
			return p.acquireFresh(ctx)
		}

		// At capacity: wait for a release or a death to free a slot.
		ready := make(chan struct{})
		p.waiters = append(p.waiters, ready)
		p.mu.Unlock()

		select {
		case <-ready:
			continue
		case <-ctx.Done():
			p.removeWaiter(ready)
			return nil, fmt.Errorf("%w: %v", ErrPoolExhausted, ctx.Err())
		case <-p.stop:
			return nil, ErrPoolClosed
		}
	}
}

// popIdleLocked returns the most recently used idle handle, discarding any
// that died while parked.
func (p *Pool) popIdleLocked() Process {
	for len(p.idle) > 0 {
		proc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if proc.State() != browser.StateIdle {
			delete(p.handles, proc.ID())
			continue
		}
		if err := proc.MarkBusy(); err != nil {
			delete(p.handles, proc.ID())
			continue
		}
		return proc
	}
	return nil
}

// acquireFresh starts a new process for a caller that reserved a slot.
// Start failure is retried once with backoff before surfacing.
func (p *Pool) acquireFresh(ctx context.Context) (*Session, error) {
	proc, err := p.startProcess(ctx)

	p.mu.Lock()
	p.starting--
	if err != nil {
		p.notifyLocked()
		p.mu.Unlock()
		return nil, err
	}
	if p.closed {
		p.mu.Unlock()
		proc.Terminate(p.cfg.TerminateGrace)
		return nil, ErrPoolClosed
	}
	p.handles[proc.ID()] = proc
	p.mu.Unlock()

	p.watch(proc)

	if err := proc.MarkBusy(); err != nil {
		p.discard(proc)
		return nil, fmt.Errorf("%w: handle died during startup", browser.ErrStartFailed)
	}
	return newSession(p, proc), nil
}

func (p *Pool) startProcess(ctx context.Context) (Process, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			p.log.Warnf("browser start failed, retrying in %s: %v", p.cfg.StartBackoff, lastErr)
			select {
			case <-time.After(p.cfg.StartBackoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", browser.ErrStartFailed, ctx.Err())
			case <-p.stop:
				return nil, ErrPoolClosed
			}
		}

		startCtx, cancel := context.WithTimeout(ctx, p.cfg.StartTimeout)
		proc := p.factory()
		err := proc.Start(startCtx)
		cancel()

		if err == nil {
			p.log.Debugf("started browser process %s", proc.ID())
			return proc, nil
		}
		proc.MarkDead()
		lastErr = err
	}
	if errors.Is(lastErr, browser.ErrStartFailed) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %v", browser.ErrStartFailed, lastErr)
}

// watch folds asynchronous process death into the pool's bookkeeping.
func (p *Pool) watch(proc Process) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case <-proc.Done():
			p.remove(proc)
		case <-p.stop:
		}
	}()
}

// remove drops a dead handle from the collection and frees its capacity.
func (p *Pool) remove(proc Process) {
	p.mu.Lock()
	if _, ok := p.handles[proc.ID()]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.handles, proc.ID())
	for i, idle := range p.idle {
		if idle.ID() == proc.ID() {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			break
		}
	}
	p.notifyLocked()
	p.checkDrainedLocked()
	p.mu.Unlock()

	p.log.Debugf("removed dead browser process %s", proc.ID())
}

// release returns a checked-out handle. Healthy handles go back to Idle;
// unhealthy ones are terminated, and a replacement is started lazily on the
// next Acquire that needs one.
func (p *Pool) release(proc Process, healthy bool) {
	p.mu.Lock()
	if p.closed {
		delete(p.handles, proc.ID())
		p.checkDrainedLocked()
		p.mu.Unlock()
		proc.Terminate(p.cfg.TerminateGrace)
		return
	}

	if healthy && proc.State() == browser.StateBusy {
		if err := proc.MarkIdle(); err == nil {
			p.idle = append(p.idle, proc)
			p.notifyLocked()
			p.mu.Unlock()
			return
		}
	}

	delete(p.handles, proc.ID())
	p.notifyLocked()
	p.mu.Unlock()

	p.log.Debugf("recycling unhealthy browser process %s", proc.ID())
	p.discard(proc)
}

func (p *Pool) discard(proc Process) {
	proc.Drain()
	go func() {
		if err := proc.Terminate(p.cfg.TerminateGrace); err != nil {
			p.log.Warnf("terminate %s: %v", proc.ID(), err)
		}
	}()
}

// notifyLocked wakes one waiter after capacity frees up.
func (p *Pool) notifyLocked() {
	if len(p.waiters) > 0 {
		close(p.waiters[0])
		p.waiters = p.waiters[1:]
	}
}

func (p *Pool) removeWaiter(ready chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == ready {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
	// Already signalled: pass the wakeup on so it is not lost.
	p.notifyLocked()
}

func (p *Pool) checkDrainedLocked() {
	if p.closed && len(p.handles) == 0 && p.starting == 0 {
		select {
		case <-p.drained:
		default:
			close(p.drained)
		}
	}
}

// reap periodically retires handles idle longer than IdleTimeout. With no
// load the pool trends to zero processes.
func (p *Pool) reap() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.reapIdle(time.Now())
		case <-p.stop:
			return
		}
	}
}

func (p *Pool) reapIdle(now time.Time) {
	if p.cfg.IdleTimeout <= 0 {
		return
	}

	p.mu.Lock()
	var stale []Process
	kept := p.idle[:0]
	for _, proc := range p.idle {
		if now.Sub(proc.LastActive()) > p.cfg.IdleTimeout || proc.State() != browser.StateIdle {
			delete(p.handles, proc.ID())
			stale = append(stale, proc)
			continue
		}
		kept = append(kept, proc)
	}
	p.idle = kept
	if len(stale) > 0 {
		p.notifyLocked()
	}
	p.mu.Unlock()

	for _, proc := range stale {
		p.log.Debugf("reaping idle browser process %s", proc.ID())
		p.discard(proc)
	}
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{Starting: p.starting, Waiters: len(p.waiters), Max: p.cfg.MaxSessions}
	for _, proc := range p.handles {
		switch proc.State() {
		case browser.StateIdle:
			s.Idle++
		case browser.StateBusy:
			s.Busy++
		}
	}
	return s
}

// Shutdown drains the pool: idle handles are terminated immediately, busy
// ones get until the context deadline to be released, then are force-killed.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	for _, proc := range idle {
		delete(p.handles, proc.ID())
	}
	for _, w := range p.waiters {
		close(w)
	}
	p.waiters = nil
	p.checkDrainedLocked()
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stop) })

	for _, proc := range idle {
		proc.Drain()
		proc.Terminate(p.cfg.TerminateGrace)
	}

	var err error
	select {
	case <-p.drained:
	case <-ctx.Done():
		// Grace period elapsed; force-kill the stragglers.
		p.mu.Lock()
		remaining := make([]Process, 0, len(p.handles))
		for _, proc := range p.handles {
			remaining = append(remaining, proc)
		}
		p.handles = make(map[string]Process)
		p.checkDrainedLocked()
		p.mu.Unlock()

		for _, proc := range remaining {
			p.log.Warnf("force-terminating in-flight browser process %s", proc.ID())
			proc.Terminate(0)
		}
		err = fmt.Errorf("pool shutdown grace elapsed with %d sessions in flight", len(remaining))
	}

	p.wg.Wait()
	return err
}
