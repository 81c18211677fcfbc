// Package oneshot provides single-fire synchronization primitives.
//
// A Signal is a count-down latch of one: it moves from pending to fired
// exactly once and every waiter is released. A Promise is the producing side
// of a single value; its Future is the consuming side. Completing a Promise a
// second time is rejected with ErrAlreadyCompleted and never panics.
//
// Waits take a context so callers can always bound them.
package oneshot
