package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/loopleak/pkg/lifecycle"
	"github.com/bft-labs/loopleak/pkg/log"
	"github.com/bft-labs/loopleak/pkg/loop"
	"github.com/bft-labs/loopleak/pkg/metrics"
	"github.com/bft-labs/loopleak/pkg/oneshot"
)

type submitState int

const (
	notSubmitted submitState = iota
	submitted
	closedEarly
)

// Session owns one runtime from creation to drained shutdown.
type Session struct {
	id      string
	loop    *loop.Loop
	lc      *lifecycle.DefaultManager
	targets []lifecycle.Target
	timeout time.Duration
	logger  log.Logger
	metrics *metrics.SessionMetrics

	resultReady *oneshot.Signal
	closed      *oneshot.Signal

	mu     sync.Mutex
	submit submitState

	closeReq   sync.Once
	closeStart time.Time
	closeErr   error

	closeOnce sync.Once
	report    Report
}

// New starts a runtime with one worker and returns its session. It blocks
// until the worker is running. Errors wrap ErrInit.
func New(opts ...Option) (*Session, error) {
	o := options{shutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	logger := log.With(o.logger, log.Component("session"), log.String("session", id))

	if o.shutdownTimeout <= 0 {
		o.metrics.RecordInitFailure()
		return nil, fmt.Errorf("%w: shutdown timeout must be positive, got %s", ErrInit, o.shutdownTimeout)
	}

	logger.Debug("starting runtime", log.Phase("init"))
	start := time.Now()

	lo := o.loop
	if lo.Logger == nil {
		lo.Logger = log.With(o.logger, log.String("session", id))
	}
	l, err := loop.New(lo)
	if err != nil {
		o.metrics.RecordInitFailure()
		logger.Error("runtime failed to start",
			log.Phase("init"),
			log.Outcome("failure"),
			log.Err(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	targets := append(l.Targets(), o.targets...)
	s := &Session{
		id:          id,
		loop:        l,
		lc:          lifecycle.NewManager(logger, o.emitter),
		targets:     targets,
		timeout:     o.shutdownTimeout,
		logger:      logger,
		metrics:     o.metrics,
		resultReady: oneshot.NewSignal(),
		closed:      oneshot.NewSignal(),
	}

	elapsed := time.Since(start)
	s.metrics.RecordCreated()
	s.metrics.ObservePhase("init", elapsed)
	logger.Info("runtime started",
		log.Phase("init"),
		log.Outcome("ok"),
		log.Elapsed(elapsed),
		log.Int("targets", len(targets)),
	)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() lifecycle.State { return s.lc.State() }

// Loop returns the runtime owned by the session.
func (s *Session) Loop() *loop.Loop { return s.loop }

// ShutdownTimeout returns the wait bound applied to each target.
func (s *Session) ShutdownTimeout() time.Duration { return s.timeout }

// Targets returns the drain targets in drain order.
func (s *Session) Targets() []lifecycle.Target {
	out := make([]lifecycle.Target, len(s.targets))
	copy(out, s.targets)
	return out
}

// Close waits for the runtime to confirm its close, bounded by ctx, then
// awaits each target in order with the shutdown timeout. A session closed
// without work requests the runtime close itself. Later calls return the
// first call's Report.
func (s *Session) Close(ctx context.Context) Report {
	s.closeOnce.Do(func() {
		s.report = s.shutdown(ctx)
	})
	return s.report
}

func (s *Session) shutdown(ctx context.Context) Report {
	s.mu.Lock()
	if s.submit == notSubmitted {
		s.submit = closedEarly
	}
	early := s.submit == closedEarly
	s.mu.Unlock()
	if early {
		s.requestClose("closed without work")
	}

	report := Report{SessionID: s.id}
	if err := s.closed.Wait(ctx); err != nil {
		report.CloseErr = fmt.Errorf("%w: %w", ErrCloseTimeout, err)
		s.logger.Warn("runtime close not confirmed",
			log.Phase("close"),
			log.Outcome("timeout"),
			log.Err(err),
		)
		s.requestClose("close wait expired")
	} else {
		report.RuntimeClosed = true
		report.CloseErr = s.closeErr
	}
	report.CloseElapsed = time.Since(s.closeStart)
	s.metrics.ObservePhase("close", report.CloseElapsed)

	drainStart := time.Now()
	report.Targets = lifecycle.Drain(s.targets, s.timeout, s.logger)
	report.DrainElapsed = time.Since(drainStart)
	for _, o := range report.Targets {
		s.metrics.RecordDrain(o.Target, o.Drained)
	}
	s.metrics.ObservePhase("drain", report.DrainElapsed)

	if err := s.lc.TransitionTo(lifecycle.StateSubsystemsDrained, report.outcome()); err != nil {
		s.logger.Error("unexpected lifecycle state", log.Err(err), log.String("state", s.lc.State().String()))
	}
	s.metrics.RecordDrained()

	fields := []log.Field{
		log.Phase("shutdown"),
		log.Outcome(report.outcome()),
		log.Bool("runtime_closed", report.RuntimeClosed),
		log.Duration("close_elapsed", report.CloseElapsed),
		log.Duration("drain_elapsed", report.DrainElapsed),
	}
	if report.CloseErr != nil && !errors.Is(report.CloseErr, ErrCloseTimeout) {
		fields = append(fields, log.Err(report.CloseErr))
	}
	s.logger.Info("session closed", fields...)
	return report
}

// requestClose asks the runtime to close. Only the first call has effect.
func (s *Session) requestClose(reason string) {
	s.closeReq.Do(func() {
		if err := s.lc.TransitionTo(lifecycle.StateCloseRequested, reason); err != nil {
			s.logger.Error("unexpected lifecycle state", log.Err(err), log.String("state", s.lc.State().String()))
		}
		s.logger.Info("runtime close requested", log.Phase("close"), log.String("reason", reason))
		s.closeStart = time.Now()
		s.loop.Close(func(err error) {
			s.closeErr = err
			_ = s.lc.TransitionTo(lifecycle.StateRuntimeClosed, "runtime confirmed close")
			s.logger.Info("runtime close confirmed",
				log.Phase("close"),
				log.Outcome("ok"),
				log.Elapsed(time.Since(s.closeStart)),
			)
			s.closed.Fire()
		})
	})
}
