package webclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bft-labs/loopleak/pkg/log"
	"github.com/bft-labs/loopleak/pkg/loop"
	"github.com/bft-labs/loopleak/pkg/netengine"
	"github.com/bft-labs/loopleak/pkg/oneshot"
)

// ErrClientClosed is returned by requests sent after Close.
var ErrClientClosed = errors.New("webclient: closed")

// defaultMaxBodyBytes caps how much of a response body is buffered.
const defaultMaxBodyBytes = 1 << 20

// HTTPClient performs a single HTTP exchange.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	// Timeout is the default per-request timeout. Zero means none.
	Timeout time.Duration

	// Breaker, when set, guards every exchange. Responses with a 5xx status
	// count as failures.
	Breaker *gobreaker.CircuitBreaker

	// HTTPClient overrides the client built on the loop's network engine.
	HTTPClient HTTPClient

	UserAgent    string
	MaxBodyBytes int64
	Logger       log.Logger
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError reports a server error response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webclient: server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Client is an asynchronous HTTP client whose completions run on a loop.
type Client struct {
	loop   *loop.Loop
	http   HTTPClient
	opts   Options
	logger log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup
}

// New creates a client on l and registers it to close with the loop.
func New(l *loop.Loop, opts Options) (*Client, error) {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: l.Engine()}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		loop:   l,
		http:   hc,
		opts:   opts,
		logger: log.With(opts.Logger, log.Component("webclient")),
		ctx:    ctx,
		cancel: cancel,
	}
	if err := l.OnClose(c.Close); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

// Close cancels in-flight requests. Later requests fail with
// ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.cancel()
	return nil
}

// Wait blocks until every request goroutine has delivered its completion.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Get starts building a GET request.
func (c *Client) Get(url string) *Request {
	return c.Request(http.MethodGet, url)
}

// Request starts building a request.
func (c *Client) Request(method, url string) *Request {
	return &Request{
		client:  c,
		method:  method,
		url:     url,
		header:  make(http.Header),
		timeout: c.opts.Timeout,
	}
}

// Request is a request under construction.
type Request struct {
	client  *Client
	method  string
	url     string
	header  http.Header
	timeout time.Duration
}

// Timeout overrides the client's default request timeout.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Header adds a request header.
func (r *Request) Header(key, value string) *Request {
	r.header.Add(key, value)
	return r
}

// Send starts the exchange. The returned future completes on the loop
// worker, or on the I/O goroutine with loop.ErrClosed if the loop has closed
// in the meantime.
func (r *Request) Send() *oneshot.Future[*Response] {
	c := r.client
	if c.loop.Closing() {
		return oneshot.Failed[*Response](loop.ErrClosed)
	}
	if c.closed.Load() {
		return oneshot.Failed[*Response](ErrClientClosed)
	}

	p := oneshot.NewPromise[*Response]()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		resp, err := c.exchange(r)
		if err != nil {
			c.logger.Debug("request failed",
				log.String("method", r.method),
				log.String("url", r.url),
				log.Err(err),
			)
		}
		if serr := c.loop.Submit(func() { _ = p.Complete(resp, err) }); serr != nil {
			_ = p.Fail(fmt.Errorf("webclient: %s %s: %w", r.method, r.url, serr))
		}
	}()
	return p.Future()
}

func (c *Client) exchange(r *Request) (*Response, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if c.opts.Breaker == nil {
		return c.do(r)
	}
	out, err := c.opts.Breaker.Execute(func() (interface{}, error) {
		return c.do(r)
	})
	if err != nil {
		// 5xx responses still carry the buffered response.
		if resp, ok := out.(*Response); ok {
			return resp, err
		}
		return nil, err
	}
	return out.(*Response), nil
}

func (c *Client) do(r *Request) (*Response, error) {
	ctx := c.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("webclient: build request: %w", err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.opts.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	hr, err := c.http.Do(req)
	if err != nil {
		if c.closed.Load() && errors.Is(err, context.Canceled) {
			return nil, ErrClientClosed
		}
		return nil, err
	}
	defer hr.Body.Close()

	body, err := io.ReadAll(io.LimitReader(hr.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("webclient: read body: %w", err)
	}
	resp := &Response{StatusCode: hr.StatusCode, Header: hr.Header, Body: body}
	if hr.StatusCode >= http.StatusInternalServerError {
		return resp, &StatusError{StatusCode: hr.StatusCode}
	}
	return resp, nil
}

// NewBreaker returns a circuit breaker that opens after more than threshold
// consecutive failures and half-opens after cooldown. Requests cut short by
// a local shutdown are not failures of the remote side.
func NewBreaker(name string, threshold uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || locallyCancelled(err)
		},
	})
}

func locallyCancelled(err error) bool {
	return errors.Is(err, ErrClientClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, netengine.ErrClosed)
}
