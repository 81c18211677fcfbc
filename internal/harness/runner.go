package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bft-labs/loopleak/internal/cliconfig"
	"github.com/bft-labs/loopleak/pkg/log"
	"github.com/bft-labs/loopleak/pkg/loop"
	"github.com/bft-labs/loopleak/pkg/metrics"
	"github.com/bft-labs/loopleak/pkg/oneshot"
	"github.com/bft-labs/loopleak/pkg/procstat"
	"github.com/bft-labs/loopleak/pkg/session"
	"github.com/bft-labs/loopleak/pkg/webclient"
)

// userAgent identifies probe requests.
const userAgent = "loopleak"

// IterationReport describes one create/run/destroy cycle.
type IterationReport struct {
	Index     int
	Elapsed   time.Duration
	Responses int
	Dialed    int64
	Err       error
	Shutdown  session.Report
	Snapshot  procstat.Snapshot
	SampleErr error
}

// OK reports whether the probe work succeeded.
func (r IterationReport) OK() bool {
	return r.Err == nil
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Runner) { r.base = l }
}

// WithMetrics records harness and session metrics.
func WithMetrics(hm *metrics.HarnessMetrics, sm *metrics.SessionMetrics) Option {
	return func(r *Runner) {
		r.hm = hm
		r.sm = sm
	}
}

// WithSampler replaces procstat.Take.
func WithSampler(fn func() (procstat.Snapshot, error)) Option {
	return func(r *Runner) { r.sample = fn }
}

// Runner drives the iterations.
type Runner struct {
	mu      sync.Mutex
	cfg     cliconfig.Config
	breaker *gobreaker.CircuitBreaker

	base   log.Logger
	logger log.Logger
	hm     *metrics.HarnessMetrics
	sm     *metrics.SessionMetrics
	sample func() (procstat.Snapshot, error)
}

// New validates cfg and creates a Runner.
func New(cfg cliconfig.Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:    cfg,
		sample: procstat.Take,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.base = log.OrNoop(r.base)
	r.logger = log.With(r.base, log.Component("harness"))
	r.breaker = newBreaker(cfg)
	return r, nil
}

// Config returns the configuration the next iteration will use.
func (r *Runner) Config() cliconfig.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Update swaps the configuration. It takes effect at the next iteration.
// The circuit breaker is rebuilt only when its settings change.
func (r *Runner) Update(cfg cliconfig.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	prev := r.cfg
	r.cfg = cfg
	if prev.BreakerThreshold != cfg.BreakerThreshold || prev.BreakerCooldown != cfg.BreakerCooldown {
		r.breaker = newBreaker(cfg)
	}
	r.mu.Unlock()

	r.logger.Info("configuration updated",
		log.Int("iterations", cfg.Iterations),
		log.Int("requests", cfg.Requests),
		log.String("target", cfg.TargetURL),
	)
	return nil
}

func newBreaker(cfg cliconfig.Config) *gobreaker.CircuitBreaker {
	if cfg.BreakerThreshold <= 0 {
		return nil
	}
	return webclient.NewBreaker("loopleak-probe", uint32(cfg.BreakerThreshold), cfg.BreakerCooldown)
}

func (r *Runner) snapshot() (cliconfig.Config, *gobreaker.CircuitBreaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg, r.breaker
}

// Run executes iterations until the configured count is reached or ctx is
// done. Failed iterations never stop the run; consecutive failures insert a
// growing pause before the next one.
func (r *Runner) Run(ctx context.Context) error {
	cfg, _ := r.snapshot()

	first, firstErr := r.sample()
	if firstErr != nil {
		r.logger.Warn("resource sample failed", log.Err(firstErr))
	}
	r.logger.Info("starting",
		log.Int("pid", first.PID),
		log.Uint64("fd_limit", first.FDLimit),
		log.Int("open_fds", first.OpenFDs),
		log.Int("goroutines", first.Goroutines),
		log.Int("threads", first.Threads),
		log.Int("iterations", cfg.Iterations),
	)

	var (
		backoff  *Backoff
		done     int
		failures int
		last     IterationReport
	)
	for i := 1; ; i++ {
		cfg, _ = r.snapshot()
		if i > cfg.Iterations || ctx.Err() != nil {
			break
		}
		backoff = backoffFor(backoff, cfg)

		last = r.Iterate(ctx, i)
		done++
		if last.OK() {
			failures = 0
			backoff.Reset()
			_ = sleep(ctx, cfg.Pause)
			continue
		}

		failures++
		if cfg.MaxBackoff <= 0 {
			continue
		}
		wait := backoff.Next()
		r.logger.Warn("iteration failed, backing off",
			log.Int("iteration", i),
			log.Int("consecutive_failures", failures),
			log.Duration("backoff", wait),
		)
		_ = sleep(ctx, wait)
	}

	fields := []log.Field{log.Int("completed", done)}
	if done > 0 && last.SampleErr == nil && firstErr == nil {
		drift := last.Snapshot.Sub(first)
		fields = append(fields,
			log.Int("fd_drift", drift.OpenFDs),
			log.Int("goroutine_drift", drift.Goroutines),
			log.Int("thread_drift", drift.Threads),
		)
	}
	if ctx.Err() != nil {
		r.logger.Info("interrupted", fields...)
		return nil
	}
	r.logger.Info("finished", fields...)
	return nil
}

// defaultInitialBackoff is the first pause after a failure when no pause
// between iterations is configured.
const defaultInitialBackoff = 100 * time.Millisecond

// backoffFor returns b, or a fresh Backoff when b is nil or cfg changed its
// bounds.
func backoffFor(b *Backoff, cfg cliconfig.Config) *Backoff {
	initial := cfg.Pause
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	fresh := NewBackoff(initial, cfg.MaxBackoff)
	if b == nil || b.initial != fresh.initial || b.max != fresh.max {
		return fresh
	}
	return b
}

// Iterate runs one cycle: a new session fires the configured requests, waits
// for all of them bounded by the work timeout, shuts down and drains, then
// the process is sampled.
func (r *Runner) Iterate(ctx context.Context, n int) IterationReport {
	cfg, breaker := r.snapshot()
	rep := IterationReport{Index: n}
	start := time.Now()

	s, err := session.New(
		session.WithShutdownTimeout(cfg.ShutdownTimeout),
		session.WithLogger(r.base),
		session.WithMetrics(r.sm),
		session.WithLoopOptions(loop.Options{BlockedThreshold: cfg.BlockedThreshold}),
	)
	if err != nil {
		rep.Err = err
	} else {
		rep.Responses, rep.Shutdown, rep.Err = r.exercise(ctx, s, cfg, breaker)
		rep.Dialed = s.Loop().Engine().Dialed()
		r.hm.AddDialed(rep.Dialed)
	}
	rep.Elapsed = time.Since(start)

	rep.Snapshot, rep.SampleErr = r.sample()
	r.hm.RecordIteration(rep.OK(), rep.Elapsed)
	if rep.SampleErr == nil {
		r.hm.SetResources(rep.Snapshot.OpenFDs, rep.Snapshot.Goroutines, rep.Snapshot.Threads)
	}

	fields := []log.Field{
		log.Int("iteration", n),
		log.Elapsed(rep.Elapsed),
		log.Float64("elapsed_seconds", rep.Elapsed.Seconds()),
		log.Int("responses", rep.Responses),
		log.Int64("dialed", rep.Dialed),
		log.Int("open_fds", rep.Snapshot.OpenFDs),
		log.Int("goroutines", rep.Snapshot.Goroutines),
		log.Int("threads", rep.Snapshot.Threads),
	}
	if rep.SampleErr != nil {
		fields = append(fields, log.String("sample_error", rep.SampleErr.Error()))
	}
	if rep.OK() {
		r.logger.Info("iteration complete", append(fields, log.Outcome("ok"))...)
	} else {
		r.logger.Warn("iteration complete", append(fields, log.Outcome("failure"), log.Err(rep.Err))...)
	}
	return rep
}

func (r *Runner) exercise(ctx context.Context, s *session.Session, cfg cliconfig.Config, breaker *gobreaker.CircuitBreaker) (int, session.Report, error) {
	h, err := session.Submit(s, probe(cfg, breaker, r.base))
	if err != nil {
		return 0, s.Close(ctx), err
	}

	wctx, cancel := context.WithTimeout(ctx, cfg.WorkTimeout)
	defer cancel()
	res, report := session.AwaitAndShutdown(wctx, s, h)

	responses := 0
	for _, resp := range res.Value {
		if resp != nil {
			responses++
		}
	}
	if res.Err != nil {
		return responses, report, fmt.Errorf("probe: %w", res.Err)
	}
	return responses, report, nil
}

// probe fires cfg.Requests GETs from a client bound to the session's loop
// and joins them.
func probe(cfg cliconfig.Config, breaker *gobreaker.CircuitBreaker, logger log.Logger) session.Work[[]*webclient.Response] {
	return func(l *loop.Loop) *oneshot.Future[[]*webclient.Response] {
		c, err := webclient.New(l, webclient.Options{
			Timeout:   cfg.RequestTimeout,
			Breaker:   breaker,
			UserAgent: userAgent,
			Logger:    logger,
		})
		if err != nil {
			return oneshot.Failed[[]*webclient.Response](err)
		}
		futs := make([]*oneshot.Future[*webclient.Response], cfg.Requests)
		for i := range futs {
			futs[i] = c.Get(cfg.RequestURL(i + 1)).Send()
		}
		return oneshot.Join(futs...)
	}
}
