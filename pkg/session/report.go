package session

import (
	"time"

	"github.com/bft-labs/loopleak/pkg/lifecycle"
)

// Report describes how a session shut down.
type Report struct {
	SessionID string

	// RuntimeClosed is true when the runtime confirmed its close.
	RuntimeClosed bool

	// CloseErr is ErrCloseTimeout when the confirmation did not arrive,
	// otherwise any error reported by the runtime's close hooks.
	CloseErr error

	// CloseElapsed runs from the close request to its confirmation.
	CloseElapsed time.Duration

	// DrainElapsed covers every target wait.
	DrainElapsed time.Duration

	Targets []lifecycle.Outcome
}

// AllDrained reports whether every target confirmed inactivity.
func (r Report) AllDrained() bool {
	for _, o := range r.Targets {
		if !o.Drained {
			return false
		}
	}
	return true
}

// Undrained returns the names of targets that timed out.
func (r Report) Undrained() []string {
	var names []string
	for _, o := range r.Targets {
		if !o.Drained {
			names = append(names, o.Target)
		}
	}
	return names
}

func (r Report) outcome() string {
	switch {
	case !r.RuntimeClosed:
		return "close_timeout"
	case !r.AllDrained():
		return "drain_timeout"
	default:
		return "ok"
	}
}
