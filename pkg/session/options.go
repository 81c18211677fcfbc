package session

import (
	"time"

	"github.com/bft-labs/loopleak/pkg/lifecycle"
	"github.com/bft-labs/loopleak/pkg/log"
	"github.com/bft-labs/loopleak/pkg/loop"
	"github.com/bft-labs/loopleak/pkg/metrics"
)

// DefaultShutdownTimeout bounds the wait on each subsystem.
const DefaultShutdownTimeout = 5 * time.Second

type options struct {
	shutdownTimeout time.Duration
	logger          log.Logger
	targets         []lifecycle.Target
	metrics         *metrics.SessionMetrics
	emitter         lifecycle.EventEmitter
	loop            loop.Options
}

// Option configures a Session.
type Option func(*options)

// WithShutdownTimeout sets the wait bound applied to each subsystem.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) { o.shutdownTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTargets appends subsystems drained after the runtime's own.
func WithTargets(targets ...lifecycle.Target) Option {
	return func(o *options) { o.targets = append(o.targets, targets...) }
}

// WithMetrics records lifecycle metrics into m.
func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEventHandler is notified of every state transition.
func WithEventHandler(e lifecycle.EventEmitter) Option {
	return func(o *options) { o.emitter = e }
}

// WithLoopOptions configures the runtime.
func WithLoopOptions(lo loop.Options) Option {
	return func(o *options) { o.loop = lo }
}
