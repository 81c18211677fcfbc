package oneshot

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyCompleted is returned when a Promise is completed twice.
var ErrAlreadyCompleted = errors.New("oneshot: already completed")

// Result is the outcome of asynchronous work: a value or an error.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the result is a success.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Promise is the write side of a single asynchronous value.
type Promise[T any] struct {
	f *Future[T]
}

// Future is the read side of a single asynchronous value.
type Future[T any] struct {
	mu        sync.Mutex
	done      *Signal
	result    Result[T]
	callbacks []func(Result[T])
}

// NewPromise returns a pending promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{f: &Future[T]{done: NewSignal()}}
}

// Future returns the read side of the promise.
func (p *Promise[T]) Future() *Future[T] {
	return p.f
}

// Complete records the outcome. Callbacks registered so far run on the
// calling goroutine, in registration order.
func (p *Promise[T]) Complete(v T, err error) error {
	f := p.f
	f.mu.Lock()
	if f.done.Fired() {
		f.mu.Unlock()
		return ErrAlreadyCompleted
	}
	f.result = Result[T]{Value: v, Err: err}
	cbs := f.callbacks
	f.callbacks = nil
	f.done.Fire()
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(f.result)
	}
	return nil
}

// Succeed completes the promise with v.
func (p *Promise[T]) Succeed(v T) error {
	return p.Complete(v, nil)
}

// Fail completes the promise with err.
func (p *Promise[T]) Fail(err error) error {
	var zero T
	return p.Complete(zero, err)
}

// TryComplete completes the promise unless it is already complete.
// It reports whether this call completed it.
func (p *Promise[T]) TryComplete(v T, err error) bool {
	return p.Complete(v, err) == nil
}

// OnComplete registers cb to run once the future completes. If it already
// has, cb runs immediately on the calling goroutine.
func (f *Future[T]) OnComplete(cb func(Result[T])) {
	f.mu.Lock()
	if !f.done.Fired() {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	r := f.result
	f.mu.Unlock()
	cb(r)
}

// Done returns a channel closed on completion.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done.Done()
}

// IsComplete reports whether the future has completed.
func (f *Future[T]) IsComplete() bool {
	return f.done.Fired()
}

// Result returns the outcome and whether the future has completed.
func (f *Future[T]) Result() (Result[T], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.done.Fired() {
		return Result[T]{}, false
	}
	return f.result, true
}

// Await blocks until completion or until ctx ends.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	if err := f.done.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	r, _ := f.Result()
	return r.Value, r.Err
}

// Succeeded returns a future already completed with v.
func Succeeded[T any](v T) *Future[T] {
	p := NewPromise[T]()
	_ = p.Succeed(v)
	return p.Future()
}

// Failed returns a future already failed with err.
func Failed[T any](err error) *Future[T] {
	p := NewPromise[T]()
	_ = p.Fail(err)
	return p.Future()
}
