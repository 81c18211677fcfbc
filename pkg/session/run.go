package session

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/loopleak/pkg/lifecycle"
	"github.com/bft-labs/loopleak/pkg/log"
	"github.com/bft-labs/loopleak/pkg/loop"
	"github.com/bft-labs/loopleak/pkg/oneshot"
)

// Work starts asynchronous work on the runtime and returns its future.
type Work[T any] func(l *loop.Loop) *oneshot.Future[T]

// Handle refers to work submitted to a session.
type Handle[T any] struct {
	s      *Session
	future *oneshot.Future[T]
	result oneshot.Result[T]
}

// Future returns the future returned by the work.
func (h *Handle[T]) Future() *oneshot.Future[T] { return h.future }

// Submit invokes work once on the calling goroutine. When its future
// completes, the result is recorded, the result-ready signal fires and the
// runtime close is requested. A session accepts a single Submit.
func Submit[T any](s *Session, work Work[T]) (*Handle[T], error) {
	if work == nil {
		return nil, ErrNilWork
	}

	s.mu.Lock()
	switch s.submit {
	case submitted:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case closedEarly:
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.submit = submitted
	s.mu.Unlock()

	if err := s.lc.TransitionTo(lifecycle.StateRunInvoked, "work submitted"); err != nil {
		return nil, fmt.Errorf("session: submit in state %s: %w", s.lc.State(), err)
	}

	h := &Handle[T]{s: s}
	s.logger.Info("work started", log.Phase("work"))
	start := time.Now()

	h.future = invoke(work, s.loop)
	h.future.OnComplete(func(r oneshot.Result[T]) {
		elapsed := time.Since(start)
		h.result = r
		s.metrics.ObservePhase("work", elapsed)
		if r.OK() {
			s.logger.Info("work completed", log.Phase("work"), log.Outcome("ok"), log.Elapsed(elapsed))
		} else {
			s.metrics.RecordWorkFailure()
			s.logger.Warn("work failed",
				log.Phase("work"),
				log.Outcome("failure"),
				log.Elapsed(elapsed),
				log.Err(r.Err),
			)
		}
		// Fails harmlessly when the caller already gave up waiting.
		_ = s.lc.TransitionTo(lifecycle.StateResultReady, "result recorded")
		s.resultReady.Fire()
		s.requestClose("result ready")
	})
	return h, nil
}

// invoke calls work, turning a panic or a nil future into a failed future.
func invoke[T any](work Work[T], l *loop.Loop) (f *oneshot.Future[T]) {
	defer func() {
		if r := recover(); r != nil {
			f = oneshot.Failed[T](fmt.Errorf("%w: %v", ErrWorkPanic, r))
		}
	}()
	if f = work(l); f == nil {
		return oneshot.Failed[T](ErrNilFuture)
	}
	return f
}

// AwaitAndShutdown waits for the submitted work's result, bounded by ctx,
// then closes the session. If ctx ends first the result is a failure with
// ctx's error and the runtime close is requested immediately. The wait for
// the runtime to confirm its close is bounded by the shutdown timeout.
func AwaitAndShutdown[T any](ctx context.Context, s *Session, h *Handle[T]) (oneshot.Result[T], Report) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if h == nil || h.s != s {
		return oneshot.Result[T]{Err: ErrInvalidHandle}, s.Close(closeCtx)
	}

	var res oneshot.Result[T]
	if err := s.resultReady.Wait(ctx); err != nil {
		res.Err = fmt.Errorf("session: awaiting work: %w", err)
		s.logger.Warn("stopped waiting for work",
			log.Phase("work"),
			log.Outcome("timeout"),
			log.Err(err),
		)
		s.requestClose("work wait ended")
	} else {
		res = h.result
	}

	return res, s.Close(closeCtx)
}

// Run submits work, waits for it and shuts the session down. It returns the
// work's value, or the zero value and the failure.
func Run[T any](ctx context.Context, s *Session, work Work[T]) (T, error) {
	var zero T
	h, err := Submit(s, work)
	if err != nil {
		s.logger.Error("work not submitted", log.Phase("work"), log.Err(err))
		return zero, err
	}
	res, _ := AwaitAndShutdown(ctx, s, h)
	if res.Err != nil {
		s.logger.Error("run failed", log.Phase("work"), log.Outcome("failure"), log.Err(res.Err))
		return zero, res.Err
	}
	return res.Value, nil
}
