package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HarnessMetrics tracks iterations and the process resources sampled after
// each one. All methods are nil-safe.
type HarnessMetrics struct {
	IterationsTotal   *prometheus.CounterVec
	IterationSeconds  prometheus.Histogram
	OpenFDs           prometheus.Gauge
	Goroutines        prometheus.Gauge
	Threads           prometheus.Gauge
	ConnectionsDialed prometheus.Counter
}

// NewHarnessMetrics creates and registers harness metrics with reg. If reg is
// nil, metrics are created but not registered.
func NewHarnessMetrics(reg prometheus.Registerer) *HarnessMetrics {
	m := &HarnessMetrics{
		IterationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harness",
			Name:      "iterations_total",
			Help:      "Completed iterations by outcome",
		}, []string{"outcome"}),
		IterationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "harness",
			Name:      "iteration_duration_seconds",
			Help:      "Wall time of one create/run/destroy iteration",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}),
		OpenFDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "open_fds",
			Help:      "Open file descriptors after the last iteration",
		}),
		Goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "goroutines",
			Help:      "Goroutines after the last iteration",
		}),
		Threads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "os_threads",
			Help:      "OS threads after the last iteration",
		}),
		ConnectionsDialed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harness",
			Name:      "connections_dialed_total",
			Help:      "Connections dialed by iteration runtimes",
		}),
	}
	register(reg,
		m.IterationsTotal,
		m.IterationSeconds,
		m.OpenFDs,
		m.Goroutines,
		m.Threads,
		m.ConnectionsDialed,
	)
	return m
}

// RecordIteration counts an iteration and observes its duration.
func (m *HarnessMetrics) RecordIteration(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failure"
	}
	m.IterationsTotal.WithLabelValues(outcome).Inc()
	m.IterationSeconds.Observe(d.Seconds())
}

// SetResources records a process resource sample.
func (m *HarnessMetrics) SetResources(fds, goroutines, threads int) {
	if m == nil {
		return
	}
	m.OpenFDs.Set(float64(fds))
	m.Goroutines.Set(float64(goroutines))
	m.Threads.Set(float64(threads))
}

// AddDialed counts connections dialed by one iteration.
func (m *HarnessMetrics) AddDialed(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ConnectionsDialed.Add(float64(n))
}
