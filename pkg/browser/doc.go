// Package browser manages headless browser processes through Playwright.
//
// The package is built around two core concepts:
//
// 1. Handle: wraps one live browser process (browser, context, page) together
// with its lifecycle state machine
// 2. Launcher: owns the shared Playwright driver and creates Handles from it
//
// # Handle Lifecycle
//
// A Handle moves through a fixed state machine:
//
//	Starting -> Idle <-> Busy -> Draining -> Dead
//
// Any state may transition directly to Dead when the underlying process
// crashes or fails a liveness check. Crash detection is asynchronous: the
// Handle closes its Done channel when the browser disconnects, and the owner
// (the session pool) folds that event into the state machine. A crash is
// never surfaced as an error unwinding through a dispatch call.
//
// # Actions
//
// Execute runs a single Action (navigate, extract, screenshot, evaluate)
// against the Handle's page. Actions respect the caller's context deadline;
// an action that outlives it fails with ErrActionTimeout and the Handle
// should be considered unusable. Application-level failures (a navigation
// error, a bad selector) are reported as *ActionError and leave the control
// channel intact.
package browser
