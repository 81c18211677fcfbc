package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "loopleak"

// SessionMetrics tracks session lifecycle phases.
// All methods are nil-safe: calls on a nil *SessionMetrics are no-ops.
type SessionMetrics struct {
	// CreatedTotal counts sessions whose runtime started.
	CreatedTotal prometheus.Counter

	// InitFailuresTotal counts sessions whose runtime failed to start.
	InitFailuresTotal prometheus.Counter

	// WorkFailuresTotal counts work results that were failures.
	WorkFailuresTotal prometheus.Counter

	// ActiveGauge tracks sessions created but not yet drained.
	ActiveGauge prometheus.Gauge

	// PhaseSeconds observes phase durations, labeled by phase
	// ("init", "work", "close", "drain").
	PhaseSeconds *prometheus.HistogramVec

	// DrainsTotal counts drain outcomes, labeled by target and outcome
	// ("ok", "timeout").
	DrainsTotal *prometheus.CounterVec
}

// NewSessionMetrics creates and registers session metrics with reg. If reg is
// nil, metrics are created but not registered.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		CreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Total number of sessions whose runtime started",
		}),
		InitFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "init_failures_total",
			Help:      "Total number of sessions whose runtime failed to start",
		}),
		WorkFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "work_failures_total",
			Help:      "Total number of failed work results",
		}),
		ActiveGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions created and not yet drained",
		}),
		PhaseSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "phase_duration_seconds",
			Help:      "Duration of session lifecycle phases",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~32s
		}, []string{"phase"}),
		DrainsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "drains_total",
			Help:      "Subsystem drain outcomes",
		}, []string{"target", "outcome"}),
	}
	register(reg,
		m.CreatedTotal,
		m.InitFailuresTotal,
		m.WorkFailuresTotal,
		m.ActiveGauge,
		m.PhaseSeconds,
		m.DrainsTotal,
	)
	return m
}

// RecordCreated counts a started session.
func (m *SessionMetrics) RecordCreated() {
	if m == nil {
		return
	}
	m.CreatedTotal.Inc()
	m.ActiveGauge.Inc()
}

// RecordInitFailure counts a session whose runtime failed to start.
func (m *SessionMetrics) RecordInitFailure() {
	if m == nil {
		return
	}
	m.InitFailuresTotal.Inc()
}

// RecordWorkFailure counts a failed work result.
func (m *SessionMetrics) RecordWorkFailure() {
	if m == nil {
		return
	}
	m.WorkFailuresTotal.Inc()
}

// ObservePhase records how long phase took.
func (m *SessionMetrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseSeconds.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordDrain counts one drain outcome.
func (m *SessionMetrics) RecordDrain(target string, drained bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !drained {
		outcome = "timeout"
	}
	m.DrainsTotal.WithLabelValues(target, outcome).Inc()
}

// RecordDrained marks a session as fully shut down.
func (m *SessionMetrics) RecordDrained() {
	if m == nil {
		return
	}
	m.ActiveGauge.Dec()
}

// register adds collectors to reg, ignoring ones already registered.
func register(reg prometheus.Registerer, cs ...prometheus.Collector) {
	if reg == nil {
		return
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}
