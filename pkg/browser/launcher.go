package browser

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// LaunchOptions configures the browser processes a Launcher creates.
type LaunchOptions struct {
	// Headless controls whether browsers run without a display.
	// Gateways always run headless in production; tests may override.
	Headless bool

	// Args are extra command-line arguments for the browser binary
	Args []string

	// UserAgent overrides the default user agent when non-empty
	UserAgent string

	// ViewportWidth and ViewportHeight set the page viewport
	ViewportWidth  int
	ViewportHeight int

	// StartTimeout bounds process launch plus the readiness handshake
	StartTimeout time.Duration

	// ActionTimeout is the page-level default for individual protocol calls
	ActionTimeout time.Duration
}

// Launcher owns the shared Playwright driver and creates Handles from it.
// One Launcher serves the whole process; it must be closed after every
// Handle it created has been terminated.
type Launcher struct {
	mu   sync.Mutex
	pw   *playwright.Playwright
	opts LaunchOptions
}

// NewLauncher installs (if needed) and starts the Playwright driver.
// Driver output is discarded so it cannot interleave with gateway logs.
func NewLauncher(opts LaunchOptions) (*Launcher, error) {
	if opts.ViewportWidth == 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight == 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	return &Launcher{pw: pw, opts: opts}, nil
}

// NewHandle creates an unstarted Handle bound to this launcher's driver
// and options. The caller must invoke Start before executing actions.
func (l *Launcher) NewHandle() *Handle {
	return newHandle(l)
}

// Close stops the Playwright driver. Handles created by this launcher
// must already be terminated.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw == nil {
		return nil
	}
	pw := l.pw
	l.pw = nil
	if err := pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

func (l *Launcher) driver() *playwright.Playwright {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pw
}
