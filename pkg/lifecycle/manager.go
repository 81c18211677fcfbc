package lifecycle

import (
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/loopleak/pkg/log"
)

// ErrInvalidTransition is returned for an edge the state machine does not allow.
var ErrInvalidTransition = errors.New("lifecycle: invalid state transition")

var allowed = map[State][]State{
	StateCreated:        {StateRunInvoked, StateCloseRequested},
	StateRunInvoked:     {StateResultReady, StateCloseRequested},
	StateResultReady:    {StateCloseRequested},
	StateCloseRequested: {StateRuntimeClosed, StateSubsystemsDrained},
	StateRuntimeClosed:  {StateSubsystemsDrained},
}

// CanTransition reports whether from -> to is a valid edge.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DefaultManager implements Manager with a forward-only state machine.
type DefaultManager struct {
	mu           sync.RWMutex
	state        State
	enteredAt    time.Time
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewManager creates a manager in StateCreated.
func NewManager(logger log.Logger, emitter EventEmitter) *DefaultManager {
	return &DefaultManager{
		state:        StateCreated,
		enteredAt:    time.Now(),
		logger:       log.OrNoop(logger),
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *DefaultManager) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Since returns the time spent in the current state.
func (l *DefaultManager) Since() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return time.Since(l.enteredAt)
}

// TransitionTo attempts to transition to a new state.
// The state is left unchanged when the edge is invalid.
func (l *DefaultManager) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if !CanTransition(oldState, newState) {
		l.mu.Unlock()
		return ErrInvalidTransition
	}
	l.state = newState
	l.enteredAt = time.Now()
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Debug("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}
