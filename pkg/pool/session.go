package pool

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/gateway/pkg/browser"
)

// Session is a checked-out browser process bound to one in-flight request.
// It is created by Acquire and must be released exactly once; duplicate
// releases are ignored.
type Session struct {
	pool *Pool
	proc Process

	checkedOutAt time.Time
	releaseOnce  sync.Once
}

func newSession(p *Pool, proc Process) *Session {
	return &Session{
		pool:         p,
		proc:         proc,
		checkedOutAt: time.Now(),
	}
}

// ID returns the identity of the bound browser process.
func (s *Session) ID() string {
	return s.proc.ID()
}

// CheckedOutAt returns when the session was acquired.
func (s *Session) CheckedOutAt() time.Time {
	return s.checkedOutAt
}

// Execute runs an action on the bound browser process.
func (s *Session) Execute(ctx context.Context, action browser.Action) (*browser.Result, error) {
	return s.proc.Execute(ctx, action)
}

// Crashed reports whether the bound process has died underneath the session.
func (s *Session) Crashed() bool {
	select {
	case <-s.proc.Done():
		return true
	default:
		return s.proc.State() == browser.StateDead
	}
}

// Release returns the process to the pool. Healthy processes go back to
// Idle for reuse; unhealthy ones are terminated and replaced on demand.
func (s *Session) Release(healthy bool) {
	s.releaseOnce.Do(func() {
		s.pool.release(s.proc, healthy)
	})
}
