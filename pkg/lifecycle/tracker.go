package lifecycle

import (
	"sync"
	"time"
)

// Tracker counts live units of work (goroutines, timers, connections) and
// lets callers wait until none remain.
type Tracker struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	idle := make(chan struct{})
	close(idle)
	return &Tracker{idle: idle}
}

// Add registers one unit of work.
func (t *Tracker) Add() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
}

// Done releases one unit of work. It panics on underflow, like sync.WaitGroup.
func (t *Tracker) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		panic("lifecycle: Tracker.Done without Add")
	}
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
}

// Count returns the number of live units.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// Idle returns a channel that is closed while the count is zero.
// The channel is replaced once new work is added.
func (t *Tracker) Idle() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idle
}

// WaitWithTimeout waits for the count to reach zero.
// It reports whether that happened before the timeout.
func (t *Tracker) WaitWithTimeout(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.Idle():
		return true
	case <-timer.C:
		return t.Count() == 0
	}
}
