package lifecycle

import "time"

// State represents the lifecycle state of a session.
type State int

const (
	StateCreated State = iota
	StateRunInvoked
	StateResultReady
	StateCloseRequested
	StateRuntimeClosed
	StateSubsystemsDrained
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunInvoked:
		return "RunInvoked"
	case StateResultReady:
		return "ResultReady"
	case StateCloseRequested:
		return "CloseRequested"
	case StateRuntimeClosed:
		return "RuntimeClosed"
	case StateSubsystemsDrained:
		return "SubsystemsDrained"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSubsystemsDrained
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager manages the lifecycle state machine for a session.
type Manager interface {
	// State returns the current lifecycle state.
	State() State

	// TransitionTo attempts to transition to a new state.
	// Returns ErrInvalidTransition if the edge is not allowed.
	TransitionTo(newState State, reason string) error

	// Since returns the time spent in the current state.
	Since() time.Duration
}

// Target is a background subsystem that must confirm inactivity before the
// process can safely exit.
type Target interface {
	// Name identifies the subsystem in logs and reports.
	Name() string

	// AwaitInactivity blocks until the subsystem is inactive or timeout
	// elapses. It reports whether inactivity was confirmed.
	AwaitInactivity(timeout time.Duration) bool
}

// TargetFunc adapts a function to the Target interface.
type TargetFunc struct {
	TargetName string
	Await      func(timeout time.Duration) bool
}

// Name returns the target name.
func (f TargetFunc) Name() string { return f.TargetName }

// AwaitInactivity calls the wrapped function.
func (f TargetFunc) AwaitInactivity(timeout time.Duration) bool { return f.Await(timeout) }
