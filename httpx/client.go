package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dqx0.com/go/evhttp/httpx/internal/http1"
	"dqx0.com/go/evhttp/internal/obs"
)

// Client is an event-driven HTTP/1.1 client bound to a single host and a
// single connection. Get and Post return once the request is queued on
// the connection; the response is reported through the handlers
// registered with OnStatus, OnHeader, OnBodyData and OnComplete, in wire
// order, from the transport's goroutine.
//
// Only one request may be outstanding at a time. The connection is
// opened on first use, kept while the server keeps it, and reopened
// (without resolving the host again) by the next request after it drops.
//
// Each request is reported once: a request that never reached the wire
// fails through the Get/Post return value, any other ends with exactly
// one OnComplete.
//
// Handlers must not be replaced while a response is in progress. A
// handler may call Disconnect; a new request may be issued from
// OnComplete.
type Client struct {
	cfg     Config
	limiter *rate.Limiter
	parser  *http1.ResponseParser

	// parseMu guards the parser and feedReq. The parser is reset lazily,
	// on the first bytes fed for a new request.
	parseMu sync.Mutex
	feedReq *pending

	mu        sync.Mutex
	addr      netip.Addr
	conn      Conn
	connected bool
	gen       uint64 // bumped on every teardown; events from older connections are dropped
	req       *pending
	last      *pending

	onStatus   func(code int, reason string)
	onHeader   func(name, value string)
	onBody     func(p []byte)
	onComplete func(err error)
}

// pending is one request/response cycle.
type pending struct {
	id      string
	start   time.Time
	done    chan struct{}
	once    sync.Once
	err     error
	status  int
	bodyLen int64
	// sent is set once the request is written or answered; from then on
	// its outcome belongs to OnComplete. Guarded by Client.mu.
	sent bool
}

func (p *pending) settle(err error) bool {
	settled := false
	p.once.Do(func() {
		p.err = err
		close(p.done)
		settled = true
	})
	return settled
}

// NewClient returns a disconnected Client for cfg.Host.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	c.parser = http1.NewResponseParser(responseSink{c}, cfg.MaxLineBytes)
	c.parser.Logger = cfg.Logger
	return c, nil
}

// OnStatus sets the status-line handler, replacing any previous one.
func (c *Client) OnStatus(fn func(code int, reason string)) {
	c.mu.Lock()
	c.onStatus = fn
	c.mu.Unlock()
}

// OnHeader sets the header handler. Names are passed as received.
func (c *Client) OnHeader(fn func(name, value string)) {
	c.mu.Lock()
	c.onHeader = fn
	c.mu.Unlock()
}

// OnBodyData sets the body handler. p is only valid during the call.
// Chunked transfer coding is not decoded; its framing arrives as body.
func (c *Client) OnBodyData(fn func(p []byte)) {
	c.mu.Lock()
	c.onBody = fn
	c.mu.Unlock()
}

// OnComplete sets the handler called once per request whose Get or Post
// returned nil. err is nil when the declared body length was received,
// or when a response without Content-Length ended with the connection.
// Otherwise it wraps ErrResponseAborted.
func (c *Client) OnComplete(fn func(err error)) {
	c.mu.Lock()
	c.onComplete = fn
	c.mu.Unlock()
}

// Get sends a GET request for path.
func (c *Client) Get(ctx context.Context, path string, header Header) error {
	return c.Do(ctx, &Request{Method: "GET", Path: path, Header: header})
}

// Post sends a POST request for path with body and an automatic
// Content-Length.
func (c *Client) Post(ctx context.Context, path string, body []byte, header Header) error {
	if body == nil {
		body = []byte{}
	}
	return c.Do(ctx, &Request{Method: "POST", Path: path, Header: header, Body: body})
}

// Do sends r, connecting first if needed. It blocks at most
// Config.ConnectTimeout for resolution and connection setup and returns
// once the request is queued. It fails without side effects when another
// request is outstanding (ErrRequestInFlight), when the request is
// invalid or too large, or when rate limited.
func (c *Client) Do(ctx context.Context, r *Request) error {
	if ctx == nil {
		ctx = context.Background()
	}
	id := requestID(ctx)
	out := *r
	if out.Host == "" {
		out.Host = c.hostHeader()
	}
	out.Header = c.decorate(ctx, id, r.Header)
	wire, err := BuildRequest(&out, c.cfg.MaxRequestBytes)
	if err != nil {
		c.logf(obs.Warn, "request %s: %v", id, err)
		c.metricCounter("evhttp_client_requests_error_total", 1, obs.Label{Key: "stage", Value: "build"})
		return err
	}

	c.mu.Lock()
	if c.req != nil {
		c.mu.Unlock()
		return ErrRequestInFlight
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.mu.Unlock()
		c.metricCounter("evhttp_client_requests_error_total", 1, obs.Label{Key: "stage", Value: "ratelimit"})
		return ErrRateLimited
	}
	req := &pending{id: id, start: time.Now(), done: make(chan struct{})}
	c.req = req
	c.last = req
	c.mu.Unlock()

	conn, gen, err := c.connect(ctx, id)
	if err != nil {
		c.abandon(req, err)
		c.metricCounter("evhttp_client_requests_error_total", 1, obs.Label{Key: "stage", Value: "connect"})
		return err
	}
	if err := conn.Write(wire); err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.teardownLocked()
		}
		c.mu.Unlock()
		_ = conn.Abort()
		err = fmt.Errorf("%w: write: %w", ErrClosed, err)
		c.metricCounter("evhttp_client_requests_error_total", 1, obs.Label{Key: "stage", Value: "write"})
		if !c.abandon(req, err) {
			return nil
		}
		return err
	}
	c.mu.Lock()
	live := c.gen == gen
	if live {
		req.sent = true
	}
	c.mu.Unlock()
	if !live {
		// Torn down between connect and now; nobody reported req.
		c.metricCounter("evhttp_client_requests_error_total", 1, obs.Label{Key: "stage", Value: "write"})
		if !c.abandon(req, ErrClosed) {
			return nil
		}
		return ErrClosed
	}
	c.logf(obs.Debug, "request %s: queued %s %s (%d bytes)", id, r.Method, r.Path, len(wire))
	c.metricCounter("evhttp_client_requests_total", 1, obs.Label{Key: "method", Value: r.Method})
	return nil
}

// Wait blocks until the outstanding (or most recent) response finishes
// and returns its outcome, or until ctx is done.
func (c *Client) Wait(ctx context.Context) error {
	c.mu.Lock()
	req := c.req
	if req == nil {
		req = c.last
	}
	c.mu.Unlock()
	if req == nil {
		return nil
	}
	select {
	case <-req.done:
		return req.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the connection, falling back to an abortive close if
// the graceful one fails. An outstanding response completes with
// ErrResponseAborted; a request still being connected or written fails
// from its Get/Post with ErrClosed instead. It is safe to call at any
// time, including from a handler.
//
// Called from another goroutine, Disconnect does not wait for a handler
// call that is already under way on the transport goroutine. That one
// call may still run after Disconnect returns; no later one does.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.teardownLocked()
	req := c.req
	if req != nil && !req.sent {
		req = nil
	}
	c.mu.Unlock()

	var err error
	if conn != nil {
		if err = conn.Close(); err != nil {
			c.logf(obs.Warn, "graceful close failed: %v; aborting", err)
			if aerr := conn.Abort(); aerr != nil {
				err = errors.Join(err, aerr)
			}
		}
	}
	if req != nil {
		c.finish(req, ErrResponseAborted)
	}
	return err
}

// Connected reports whether the transport is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// InFlight reports whether a request is outstanding.
func (c *Client) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req != nil
}

// connect returns the open connection, resolving and dialing as needed.
func (c *Client) connect(ctx context.Context, id string) (Conn, uint64, error) {
	c.mu.Lock()
	if c.connected {
		conn, gen := c.conn, c.gen
		c.mu.Unlock()
		return conn, gen, nil
	}
	addr := c.addr
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	if !addr.IsValid() {
		a, err := c.cfg.Resolver.Resolve(ctx, c.cfg.Host)
		if err != nil {
			c.logf(obs.Warn, "request %s: resolve %s: %v", id, c.cfg.Host, err)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, 0, fmt.Errorf("%w: %w: %s", ErrResolve, ErrTimeout, c.cfg.Host)
			}
			return nil, 0, fmt.Errorf("%w: %s: %w", ErrResolve, c.cfg.Host, err)
		}
		addr = a
		c.mu.Lock()
		c.addr = a
		c.mu.Unlock()
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	ap := netip.AddrPortFrom(addr, uint16(c.cfg.Port))
	h := &connHandler{c: c, gen: gen, connected: make(chan error, 1)}
	start := time.Now()
	conn, err := c.cfg.Transport.Open(ctx, ap, c.cfg.Host, c.cfg.TLS, h)
	if err != nil {
		c.logf(obs.Warn, "request %s: open %s: %v", id, ap, err)
		return nil, 0, fmt.Errorf("%w: %s: %w", ErrConnect, ap, err)
	}
	select {
	case err := <-h.connected:
		if err != nil {
			_ = conn.Abort()
			c.logf(obs.Warn, "request %s: connect %s: %v", id, ap, err)
			return nil, 0, fmt.Errorf("%w: %s: %w", ErrConnect, ap, err)
		}
	case <-ctx.Done():
		_ = conn.Abort()
		c.logf(obs.Warn, "request %s: connect %s: %v", id, ap, ctx.Err())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, 0, fmt.Errorf("%w: %w: %s", ErrConnect, ErrTimeout, ap)
		}
		return nil, 0, fmt.Errorf("%w: %s: %w", ErrConnect, ap, ctx.Err())
	}

	c.mu.Lock()
	if c.gen != gen {
		// Disconnect ran while we were dialing.
		c.mu.Unlock()
		_ = conn.Abort()
		return nil, 0, ErrClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logf(obs.Info, "connected to %s (%s, tls=%v)", c.cfg.Host, ap, c.cfg.TLS)
	c.metricHistogram("evhttp_client_connect_seconds", time.Since(start).Seconds())
	return conn, gen, nil
}

// teardownLocked forgets the current connection. c.mu must be held.
func (c *Client) teardownLocked() {
	c.conn = nil
	c.connected = false
	c.gen++
}

// abandon drops a request that failed before reaching the wire. No
// completion handler runs for it. It reports false if req was already
// finished.
func (c *Client) abandon(req *pending, err error) bool {
	c.mu.Lock()
	if c.req == req {
		c.req = nil
	}
	c.mu.Unlock()
	return req.settle(err)
}

// finish completes req once and notifies OnComplete.
func (c *Client) finish(req *pending, err error) {
	c.mu.Lock()
	if c.req == req {
		c.req = nil
	}
	fn := c.onComplete
	c.mu.Unlock()
	if !req.settle(err) {
		return
	}
	elapsed := time.Since(req.start)
	if err != nil {
		c.logf(obs.Warn, "request %s: status %d, %d body bytes, aborted after %s: %v", req.id, req.status, req.bodyLen, elapsed, err)
		c.metricCounter("evhttp_client_requests_error_total", 1, obs.Label{Key: "stage", Value: "response"})
	} else {
		c.logf(obs.Debug, "request %s: status %d, %d body bytes in %s", req.id, req.status, req.bodyLen, elapsed)
		c.metricHistogram("evhttp_client_response_seconds", elapsed.Seconds())
	}
	if fn != nil {
		fn(err)
	}
}

func (c *Client) hostHeader() string {
	def := 80
	if c.cfg.TLS {
		def = 443
	}
	if c.cfg.Port == def {
		return c.cfg.Host
	}
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// decorate adds the request ID and trace headers configured for c.
func (c *Client) decorate(ctx context.Context, id string, h Header) Header {
	tr, hasTrace := TraceFrom(ctx)
	if c.cfg.RequestIDHeader == "" && !hasTrace {
		return h
	}
	h = h.Clone()
	if c.cfg.RequestIDHeader != "" && h.Get(c.cfg.RequestIDHeader) == "" {
		h.Add(c.cfg.RequestIDHeader, id)
	}
	if hasTrace {
		if tp, ok := tr.traceparent(); ok {
			h.Set("Traceparent", tp)
		} else {
			c.logf(obs.Debug, "request %s: ignoring invalid trace context", id)
		}
	}
	return h
}

func (c *Client) logf(level obs.Level, format string, args ...interface{}) {
	c.cfg.Logger.Logf(level, format, args...)
}

func (c *Client) metricCounter(name string, value float64, labels ...obs.Label) {
	c.cfg.Meter.Counter(name, value, labels...)
}

func (c *Client) metricHistogram(name string, value float64, labels ...obs.Label) {
	c.cfg.Meter.Histogram(name, value, labels...)
}

// connHandler routes transport events for one connection generation.
type connHandler struct {
	c         *Client
	gen       uint64
	connected chan error
}

func (h *connHandler) OnConnected(err error) {
	select {
	case h.connected <- err:
	default:
	}
}

func (h *connHandler) OnData(p []byte) {
	c := h.c
	c.parseMu.Lock()
	c.mu.Lock()
	req := c.req
	live := h.gen == c.gen && req != nil
	if live {
		req.sent = true
	}
	c.mu.Unlock()
	if !live {
		c.parseMu.Unlock()
		c.logf(obs.Debug, "dropped %d bytes with no response pending", len(p))
		return
	}
	if c.feedReq != req {
		c.parser.Reset()
		c.feedReq = req
	}
	before := c.parser.Discarded()
	c.parser.Feed(p)
	complete := c.parser.Complete()
	extra := c.parser.Discarded() - before
	c.parseMu.Unlock()

	c.metricCounter("evhttp_client_bytes_received_total", float64(len(p)))
	if extra > 0 {
		c.logf(obs.Warn, "request %s: dropped %d bytes past Content-Length", req.id, extra)
	}
	if complete {
		c.finish(req, nil)
	}
}

func (h *connHandler) OnSent(n int) {
	h.c.logf(obs.Debug, "sent %d bytes", n)
}

// OnError tears the connection down, gracefully on a peer close. A peer
// close ends a response that has no declared length; anything else
// aborts the outstanding response. A request not yet on the wire is left
// to Do, which reports it.
func (h *connHandler) OnError(err error) {
	c := h.c
	eof := errors.Is(err, io.EOF)
	c.mu.Lock()
	if h.gen != c.gen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.teardownLocked()
	req := c.req
	sent := req != nil && req.sent
	c.mu.Unlock()
	if conn != nil {
		if !eof {
			_ = conn.Abort()
		} else if cerr := conn.Close(); cerr != nil {
			_ = conn.Abort()
		}
	}

	if req == nil {
		c.logf(obs.Debug, "connection closed while idle: %v", err)
		return
	}
	if !sent {
		c.logf(obs.Debug, "request %s: connection lost before send: %v", req.id, err)
		return
	}
	if eof {
		c.parseMu.Lock()
		untilClose := c.feedReq == req && c.parser.Phase() == http1.PhaseBody && c.parser.ContentLength() < 0
		c.parseMu.Unlock()
		if untilClose {
			c.finish(req, nil)
			return
		}
		err = io.ErrUnexpectedEOF
	}
	c.finish(req, fmt.Errorf("%w: %w", ErrResponseAborted, err))
}

// responseSink adapts parser events to the registered handlers. It only
// runs inside Feed, with parseMu held. Events for a response that is no
// longer outstanding are dropped.
type responseSink struct{ c *Client }

// live reports whether the response being fed is still outstanding.
func (s responseSink) live() bool {
	return s.c.req != nil && s.c.req == s.c.feedReq
}

func (s responseSink) OnStatus(code int, reason string) {
	c := s.c
	c.mu.Lock()
	fn, live := c.onStatus, s.live()
	if live {
		c.req.status = code
	}
	c.mu.Unlock()
	if live && fn != nil {
		fn(code, reason)
	}
}

func (s responseSink) OnHeader(name, value string) {
	c := s.c
	c.mu.Lock()
	fn, live := c.onHeader, s.live()
	c.mu.Unlock()
	if live && fn != nil {
		fn(name, value)
	}
}

func (s responseSink) OnBody(p []byte) {
	c := s.c
	c.mu.Lock()
	fn, live := c.onBody, s.live()
	if live {
		c.req.bodyLen += int64(len(p))
	}
	c.mu.Unlock()
	if live && fn != nil {
		fn(p)
	}
}
