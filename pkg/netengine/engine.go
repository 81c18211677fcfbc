package netengine

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/loopleak/pkg/lifecycle"
)

// ErrClosed is returned by RoundTrip after Close.
var ErrClosed = errors.New("netengine: closed")

// Name is the drain target name of an Engine.
const Name = "net-engine"

// pollInterval is how often AwaitInactivity re-closes idle connections.
const pollInterval = 10 * time.Millisecond

// Options configures an Engine.
type Options struct {
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	IdleConnTimeout     time.Duration
	MaxIdleConnsPerHost int
}

// DefaultOptions returns the transport settings used by the runtime.
func DefaultOptions() Options {
	return Options{
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     30 * time.Second,
		MaxIdleConnsPerHost: 32,
	}
}

// Engine is a connection-tracking HTTP transport.
type Engine struct {
	transport *http.Transport
	conns     *lifecycle.Tracker
	inflight  *lifecycle.Tracker
	dialed    atomic.Int64
	closed    atomic.Bool
}

// New creates an engine. Zero option fields take their defaults.
func New(opts Options) *Engine {
	def := DefaultOptions()
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = def.DialTimeout
	}
	if opts.TLSHandshakeTimeout <= 0 {
		opts.TLSHandshakeTimeout = def.TLSHandshakeTimeout
	}
	if opts.IdleConnTimeout <= 0 {
		opts.IdleConnTimeout = def.IdleConnTimeout
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}

	e := &Engine{
		conns:    lifecycle.NewTracker(),
		inflight: lifecycle.NewTracker(),
	}
	dialer := &net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}
	e.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			c, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			e.dialed.Add(1)
			e.conns.Add()
			return &trackedConn{Conn: c, release: e.conns.Done}, nil
		},
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: opts.TLSHandshakeTimeout,
		IdleConnTimeout:     opts.IdleConnTimeout,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
	}
	return e
}

// RoundTrip implements http.RoundTripper, counting the request as in flight
// until its response body is closed. It fails with ErrClosed once the engine
// is closed.
func (e *Engine) RoundTrip(req *http.Request) (*http.Response, error) {
	if e.closed.Load() {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, ErrClosed
	}
	e.inflight.Add()
	resp, err := e.transport.RoundTrip(req)
	if err != nil {
		e.inflight.Done()
		return nil, err
	}
	resp.Body = &trackedBody{ReadCloser: resp.Body, release: e.inflight.Done}
	return resp, nil
}

// OpenConns returns the number of open connections.
func (e *Engine) OpenConns() int {
	return e.conns.Count()
}

// InFlight returns the number of requests whose bodies are still open.
func (e *Engine) InFlight() int {
	return e.inflight.Count()
}

// Dialed returns the total number of connections ever dialed.
func (e *Engine) Dialed() int64 {
	return e.dialed.Load()
}

// CloseIdle closes every idle connection.
func (e *Engine) CloseIdle() {
	e.transport.CloseIdleConnections()
}

// Close rejects further requests and releases idle connections.
// In-flight requests are not interrupted.
func (e *Engine) Close() {
	e.closed.Store(true)
	e.transport.CloseIdleConnections()
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	return e.closed.Load()
}

// Name implements lifecycle.Target.
func (e *Engine) Name() string { return Name }

// AwaitInactivity waits until no request is in flight and no connection is
// open, closing idle connections as they appear.
func (e *Engine) AwaitInactivity(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		e.transport.CloseIdleConnections()
		if e.inflight.Count() == 0 && e.conns.Count() == 0 {
			return true
		}
		select {
		case <-deadline.C:
			e.transport.CloseIdleConnections()
			return e.inflight.Count() == 0 && e.conns.Count() == 0
		case <-tick.C:
		}
	}
}

type trackedConn struct {
	net.Conn
	once    sync.Once
	release func()
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.release)
	return err
}

type trackedBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *trackedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
