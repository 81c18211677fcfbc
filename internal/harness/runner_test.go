package harness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"

	"github.com/bft-labs/loopleak/internal/cliconfig"
	"github.com/bft-labs/loopleak/pkg/log"
	"github.com/bft-labs/loopleak/pkg/metrics"
	"github.com/bft-labs/loopleak/pkg/procstat"
	"github.com/bft-labs/loopleak/pkg/webclient"
)

type mockLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (m *mockLogger) add(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func (m *mockLogger) Debug(msg string, fields ...log.Field) {}
func (m *mockLogger) Info(msg string, fields ...log.Field)  { m.add(msg) }
func (m *mockLogger) Warn(msg string, fields ...log.Field)  { m.add(msg) }
func (m *mockLogger) Error(msg string, fields ...log.Field) { m.add(msg) }

func (m *mockLogger) count(msg string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.msgs {
		if s == msg {
			n++
		}
	}
	return n
}

type fakeSampler struct {
	calls atomic.Int32
}

func (f *fakeSampler) take() (procstat.Snapshot, error) {
	n := int(f.calls.Add(1))
	return procstat.Snapshot{PID: 1, OpenFDs: 10 + n, Goroutines: 5, Threads: 4}, nil
}

func newServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func testConfig(url string) cliconfig.Config {
	cfg := cliconfig.DefaultConfig()
	cfg.Iterations = 3
	cfg.Requests = 4
	cfg.TargetURL = url + "/delay/{n}"
	cfg.RequestTimeout = time.Second
	cfg.WorkTimeout = 2 * time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.MaxBackoff = 0
	return cfg
}

func TestRunner_Run(t *testing.T) {
	ts, hits := newServer(t, http.StatusOK)
	hm := metrics.NewHarnessMetrics(nil)
	sm := metrics.NewSessionMetrics(nil)
	sampler := &fakeSampler{}
	logger := &mockLogger{}

	r, err := New(testConfig(ts.URL),
		WithLogger(logger),
		WithMetrics(hm, sm),
		WithSampler(sampler.take),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := hits.Load(); got != 12 {
		t.Errorf("server saw %d requests, want 12", got)
	}
	if got := sampler.calls.Load(); got != 4 {
		t.Errorf("sampled %d times, want 4", got)
	}
	if got := testutil.ToFloat64(hm.IterationsTotal.WithLabelValues("ok")); got != 3 {
		t.Errorf("iterations_total{ok} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(sm.CreatedTotal); got != 3 {
		t.Errorf("sessions created = %v, want 3", got)
	}
	if got := testutil.ToFloat64(hm.OpenFDs); got != 14 {
		t.Errorf("open_fds gauge = %v, want 14", got)
	}
	if logger.count("iteration complete") != 3 {
		t.Errorf("logged %d iteration lines, want 3", logger.count("iteration complete"))
	}
	if logger.count("finished") != 1 {
		t.Error("final drift line not logged")
	}
}

func TestRunner_IterateServerError(t *testing.T) {
	ts, _ := newServer(t, http.StatusServiceUnavailable)
	r, err := New(testConfig(ts.URL), WithSampler((&fakeSampler{}).take))
	if err != nil {
		t.Fatal(err)
	}

	rep := r.Iterate(context.Background(), 1)
	if rep.OK() {
		t.Fatal("iteration against failing server reported OK")
	}
	var se *webclient.StatusError
	if !errors.As(rep.Err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Err = %v, want StatusError 503", rep.Err)
	}
	if rep.Responses != 4 {
		t.Errorf("Responses = %d, want 4", rep.Responses)
	}
	if !rep.Shutdown.RuntimeClosed || !rep.Shutdown.AllDrained() {
		t.Errorf("shutdown incomplete: %+v", rep.Shutdown)
	}
}

func TestRunner_BreakerFailsFastAcrossIterations(t *testing.T) {
	ts, hits := newServer(t, http.StatusInternalServerError)
	cfg := testConfig(ts.URL)
	cfg.BreakerThreshold = 1
	cfg.BreakerCooldown = time.Hour

	r, err := New(cfg, WithSampler((&fakeSampler{}).take))
	if err != nil {
		t.Fatal(err)
	}
	r.Iterate(context.Background(), 1)
	before := hits.Load()

	rep := r.Iterate(context.Background(), 2)
	if !errors.Is(rep.Err, gobreaker.ErrOpenState) {
		t.Errorf("second iteration Err = %v, want ErrOpenState", rep.Err)
	}
	if hits.Load() != before {
		t.Errorf("open breaker let %d requests through", hits.Load()-before)
	}
}

func TestRunner_Update(t *testing.T) {
	ts, hits := newServer(t, http.StatusOK)
	r, err := New(testConfig(ts.URL), WithSampler((&fakeSampler{}).take))
	if err != nil {
		t.Fatal(err)
	}

	next := r.Config()
	next.Requests = 2
	if err := r.Update(next); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	r.Iterate(context.Background(), 1)
	if got := hits.Load(); got != 2 {
		t.Errorf("server saw %d requests after update, want 2", got)
	}

	bad := next
	bad.Requests = 0
	if err := r.Update(bad); err == nil {
		t.Error("Update() accepted invalid config")
	}
	if r.Config().Requests != 2 {
		t.Errorf("Requests = %d after rejected update, want 2", r.Config().Requests)
	}
}

func TestRunner_FailuresDoNotStopRun(t *testing.T) {
	ts, _ := newServer(t, http.StatusBadGateway)
	cfg := testConfig(ts.URL)
	cfg.Iterations = 2
	cfg.MaxBackoff = 20 * time.Millisecond
	cfg.Pause = 10 * time.Millisecond
	hm := metrics.NewHarnessMetrics(nil)

	r, err := New(cfg, WithMetrics(hm, nil), WithSampler((&fakeSampler{}).take))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := testutil.ToFloat64(hm.IterationsTotal.WithLabelValues("failure")); got != 2 {
		t.Errorf("iterations_total{failure} = %v, want 2", got)
	}
}

func TestRunner_RunCancelled(t *testing.T) {
	ts, hits := newServer(t, http.StatusOK)
	logger := &mockLogger{}
	r, err := New(testConfig(ts.URL), WithLogger(logger), WithSampler((&fakeSampler{}).take))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("cancelled run sent %d requests", hits.Load())
	}
	if logger.count("interrupted") != 1 {
		t.Error("interruption not logged")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := cliconfig.DefaultConfig()
	cfg.Iterations = 0
	if _, err := New(cfg); err == nil {
		t.Error("New() accepted invalid config")
	}
}
