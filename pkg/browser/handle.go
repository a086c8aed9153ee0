package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// Handle wraps one live headless browser process and its control channel.
// Lifecycle transitions are validated against the State machine; the pool
// that owns the handle drives checkout transitions (MarkBusy/MarkIdle),
// while crashes move the handle to Dead asynchronously via the Done channel.
type Handle struct {
	id       string
	launcher *Launcher

	mu         sync.Mutex
	state      State
	lastActive time.Time

	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	done     chan struct{}
	doneOnce sync.Once
	termOnce sync.Once
}

func newHandle(l *Launcher) *Handle {
	return &Handle{
		id:         uuid.New().String(),
		launcher:   l,
		state:      StateStarting,
		lastActive: time.Now(),
		done:       make(chan struct{}),
	}
}

// ID returns the handle's unique identity.
func (h *Handle) ID() string {
	return h.id
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// LastActive returns the time of the last activity on this handle.
func (h *Handle) LastActive() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastActive
}

// Touch updates the last-activity timestamp to now.
func (h *Handle) Touch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActive = time.Now()
}

// Done returns a channel closed when the underlying process exits,
// whether through Terminate or a crash.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) transition(next State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.CanTransition(next) {
		return fmt.Errorf("illegal handle transition %s -> %s", h.state, next)
	}
	h.state = next
	h.lastActive = time.Now()
	return nil
}

// MarkBusy binds the handle to a session (Idle -> Busy).
func (h *Handle) MarkBusy() error {
	return h.transition(StateBusy)
}

// MarkIdle returns the handle to the available set (Busy -> Idle).
func (h *Handle) MarkIdle() error {
	return h.transition(StateIdle)
}

// Drain retires the handle from allocation. Already-dead handles stay dead.
func (h *Handle) Drain() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.CanTransition(StateDraining) {
		h.state = StateDraining
	}
}

// MarkDead forces the terminal state and releases anyone watching Done.
func (h *Handle) MarkDead() {
	h.mu.Lock()
	if h.state != StateDead {
		h.state = StateDead
	}
	h.mu.Unlock()
	h.doneOnce.Do(func() { close(h.done) })
}

type launchResult struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	err     error
}

// Start launches the browser process and performs the readiness handshake:
// a live browser connection with an isolated context and an open page. On
// success the handle is Idle. Launch failures and handshake timeouts fail
// with ErrStartFailed; retry policy belongs to the caller.
func (h *Handle) Start(ctx context.Context) error {
	if h.State() != StateStarting {
		return fmt.Errorf("%w: handle %s already started", ErrStartFailed, h.id)
	}

	resultCh := make(chan launchResult, 1)
	go func() { resultCh <- h.launch() }()

	select {
	case res := <-resultCh:
		if res.err != nil {
			h.MarkDead()
			return fmt.Errorf("%w: %v", ErrStartFailed, res.err)
		}
		h.mu.Lock()
		h.browser = res.browser
		h.context = res.context
		h.page = res.page
		h.mu.Unlock()

		// Crash detection: a disconnect at any point moves the handle
		// straight to Dead and wakes the pool's watcher.
		res.browser.OnDisconnected(func(playwright.Browser) {
			h.MarkDead()
		})

		if err := h.transition(StateIdle); err != nil {
			// Terminated while launching; clean up the late arrival.
			closeQuietly(res.page, res.context, res.browser)
			return fmt.Errorf("%w: %v", ErrStartFailed, err)
		}
		return nil

	case <-ctx.Done():
		h.MarkDead()
		// Reap whatever the launch goroutine produces so the process
		// does not leak past the handshake deadline.
		go func() {
			if res := <-resultCh; res.err == nil {
				closeQuietly(res.page, res.context, res.browser)
			}
		}()
		return fmt.Errorf("%w: readiness handshake: %v", ErrStartFailed, ctx.Err())
	}
}

func (h *Handle) launch() launchResult {
	pw := h.launcher.driver()
	if pw == nil {
		return launchResult{err: errors.New("launcher is closed")}
	}
	opts := h.launcher.opts

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	})
	if err != nil {
		return launchResult{err: fmt.Errorf("launch: %w", err)}
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	context, err := browser.NewContext(contextOpts)
	if err != nil {
		closeQuietly(nil, nil, browser)
		return launchResult{err: fmt.Errorf("new context: %w", err)}
	}

	page, err := context.NewPage()
	if err != nil {
		closeQuietly(nil, context, browser)
		return launchResult{err: fmt.Errorf("new page: %w", err)}
	}

	if opts.ActionTimeout > 0 {
		page.SetDefaultTimeout(float64(opts.ActionTimeout.Milliseconds()))
	}

	return launchResult{browser: browser, context: context, page: page}
}

// Execute runs a single action against the handle's page, bounded by the
// context deadline. A deadline overrun fails with ErrActionTimeout and
// leaves the page in an unknown state; callers must recycle the handle.
func (h *Handle) Execute(ctx context.Context, action Action) (*Result, error) {
	h.mu.Lock()
	page := h.page
	state := h.state
	h.mu.Unlock()

	if page == nil || state == StateDead {
		return nil, ErrNotRunning
	}
	h.Touch()

	type execResult struct {
		result *Result
		err    error
	}
	resultCh := make(chan execResult, 1)
	go func() {
		result, err := h.perform(ctx, page, action)
		resultCh <- execResult{result, err}
	}()

	select {
	case res := <-resultCh:
		h.Touch()
		return res.result, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", ErrActionTimeout, action.Type, action.URL)
		}
		return nil, ctx.Err()
	case <-h.done:
		return nil, ErrNotRunning
	}
}

func (h *Handle) perform(ctx context.Context, page playwright.Page, action Action) (*Result, error) {
	gotoOpts := playwright.PageGotoOptions{}
	waitUntil := action.WaitUntil
	if waitUntil == "" {
		waitUntil = DefaultWaitUntil
	}
	state := playwright.WaitUntilState(waitUntil)
	gotoOpts.WaitUntil = &state
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline).Milliseconds()
		if remaining > 0 {
			gotoOpts.Timeout = playwright.Float(float64(remaining))
		}
	}

	resp, err := page.Goto(action.URL, gotoOpts)
	if err != nil {
		return nil, &ActionError{Op: "navigation", Err: err}
	}

	result := &Result{URL: page.URL()}
	if resp != nil {
		result.Status = resp.Status()
	}
	if title, err := page.Title(); err == nil {
		result.Title = title
	}

	switch action.Type {
	case ActionNavigate:
		html, err := page.Content()
		if err != nil {
			return nil, &ActionError{Op: "content", Err: err}
		}
		result.HTML = html

	case ActionExtract:
		if err := h.extract(page, action, result); err != nil {
			return nil, err
		}

	case ActionScreenshot:
		shot, err := page.Screenshot(playwright.PageScreenshotOptions{
			FullPage: playwright.Bool(action.FullPage),
		})
		if err != nil {
			return nil, &ActionError{Op: "screenshot", Err: err}
		}
		result.Screenshot = shot

	case ActionEvaluate:
		value, err := page.Evaluate(action.Script)
		if err != nil {
			return nil, &ActionError{Op: "evaluate", Err: err}
		}
		result.Value = value

	default:
		return nil, &ActionError{Op: "dispatch", Err: fmt.Errorf("unsupported action type: %s", action.Type)}
	}

	return result, nil
}

// Terminate requests graceful shutdown of the browser process, escalating
// to an unconditional close after the grace period. Safe to call multiple
// times and from any state.
func (h *Handle) Terminate(grace time.Duration) error {
	var err error
	h.termOnce.Do(func() {
		h.Drain()

		h.mu.Lock()
		page, context, browser := h.page, h.context, h.browser
		h.page, h.context, h.browser = nil, nil, nil
		h.mu.Unlock()

		if browser == nil {
			h.MarkDead()
			return
		}

		closed := make(chan struct{})
		go func() {
			closeQuietly(page, context, browser)
			close(closed)
		}()

		if grace <= 0 {
			grace = time.Second
		}
		select {
		case <-closed:
		case <-time.After(grace):
			// Graceful close is wedged. Playwright's Close kills the
			// process on disconnect; record the overrun and move on.
			err = fmt.Errorf("handle %s did not close within %s", h.id, grace)
		}
		h.MarkDead()
	})
	return err
}

func closeQuietly(page playwright.Page, context playwright.BrowserContext, browser playwright.Browser) {
	if page != nil {
		_ = page.Close()
	}
	if context != nil {
		_ = context.Close()
	}
	if browser != nil {
		_ = browser.Close()
	}
}
