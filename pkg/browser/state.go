package browser

// State identifies where a Handle is in its lifecycle.
type State int

const (
	// StateStarting means the browser process is launching and has not
	// completed its readiness handshake.
	StateStarting State = iota

	// StateIdle means the process is live and available for checkout.
	StateIdle

	// StateBusy means the process is bound to an in-flight session.
	StateBusy

	// StateDraining means the process is being retired and accepts no
	// further work.
	StateDraining

	// StateDead is terminal: the process has exited or been terminated.
	StateDead
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateDraining:
		return "draining"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Dead is reachable from every state; nothing leaves Dead.
func (s State) CanTransition(next State) bool {
	if s == StateDead {
		return false
	}
	if next == StateDead {
		return true
	}

	switch s {
	case StateStarting:
		return next == StateIdle
	case StateIdle:
		return next == StateBusy || next == StateDraining
	case StateBusy:
		return next == StateIdle || next == StateDraining
	case StateDraining:
		return false
	default:
		return false
	}
}
