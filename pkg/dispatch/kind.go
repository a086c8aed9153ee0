package dispatch

import (
	"context"
	"errors"

	"github.com/entrhq/gateway/pkg/browser"
	"github.com/entrhq/gateway/pkg/pool"
	"github.com/entrhq/gateway/pkg/queue"
)

// Kind classifies a failed outcome for callers. The gateway maps kinds to
// HTTP statuses; internal components match on the underlying sentinels.
type Kind string

const (
	KindQueueFull          Kind = "queue_full"
	KindTimedOut           Kind = "timed_out"
	KindPoolExhausted      Kind = "pool_exhausted"
	KindBrowserStartFailed Kind = "browser_start_failed"
	KindActionTimeout      Kind = "action_timeout"
	KindActionError        Kind = "action_error"
	KindCancelled          Kind = "cancelled"
	KindShuttingDown       Kind = "shutting_down"
	KindInternal           Kind = "internal"
)

// KindOf maps an outcome error to its caller-facing kind.
func KindOf(err error) Kind {
	var actionErr *browser.ActionError

	switch {
	case errors.Is(err, queue.ErrQueueFull):
		return KindQueueFull
	case errors.Is(err, queue.ErrTimedOut):
		return KindTimedOut
	case errors.Is(err, pool.ErrPoolExhausted):
		return KindPoolExhausted
	case errors.Is(err, browser.ErrStartFailed):
		return KindBrowserStartFailed
	case errors.Is(err, browser.ErrActionTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindActionTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, queue.ErrQueueClosed), errors.Is(err, pool.ErrPoolClosed):
		return KindShuttingDown
	case errors.As(err, &actionErr), errors.Is(err, browser.ErrNotRunning):
		return KindActionError
	default:
		return KindInternal
	}
}
