package oneshot

import (
	"context"
	"sync"
	"time"
)

// Signal is a one-shot latch.
// The zero value is not usable; create one with NewSignal.
type Signal struct {
	once sync.Once
	done chan struct{}
}

// NewSignal returns a pending Signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Fire releases all waiters. It reports whether this call fired the signal;
// firing an already fired signal is a no-op returning false.
func (s *Signal) Fire() bool {
	fired := false
	s.once.Do(func() {
		close(s.done)
		fired = true
	})
	return fired
}

// Fired reports whether the signal has fired.
func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the signal fires or ctx ends.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		// fired and canceled at once: prefer the signal
		if s.Fired() {
			return nil
		}
		return ctx.Err()
	}
}

// WaitTimeout blocks until the signal fires or d elapses.
// It reports whether the signal fired.
func (s *Signal) WaitTimeout(d time.Duration) bool {
	if s.Fired() {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.done:
		return true
	case <-t.C:
		return s.Fired()
	}
}
