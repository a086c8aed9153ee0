package browser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStartFailed indicates the browser process could not be launched
	// or did not complete its readiness handshake.
	ErrStartFailed = errors.New("browser start failed")

	// ErrActionTimeout indicates an action exceeded its deadline. The
	// handle's control channel must be assumed wedged.
	ErrActionTimeout = errors.New("browser action timed out")

	// ErrNotRunning indicates an operation was attempted on a handle
	// whose process is not live.
	ErrNotRunning = errors.New("browser process not running")
)

// ActionError reports an application-level failure from the browser, such
// as a navigation error or a selector that matched nothing. The control
// channel is still usable unless IsProtocolError says otherwise.
type ActionError struct {
	Op  string
	Err error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// IsProtocolError reports whether err indicates the control channel to the
// browser is corrupted or gone, as opposed to an ordinary action failure.
func IsProtocolError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotRunning) {
		return true
	}
	// Playwright surfaces a torn-down connection as target/browser closed.
	msg := err.Error()
	for _, marker := range []string{
		"Target closed",
		"Browser closed",
		"browser has been closed",
		"connection closed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
