package httpx

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	"dqx0.com/go/evhttp/internal/obs"
)

// ConnEvents receives the lifecycle of one connection. Calls for a
// connection never overlap: OnConnected comes first, then any mix of
// OnData and OnSent, then at most one OnError. A peer close is reported
// as OnError(io.EOF). Nothing is delivered after the Conn is closed
// locally.
//
// The slice passed to OnData is reused once the call returns.
type ConnEvents interface {
	OnConnected(err error)
	OnData(p []byte)
	OnSent(n int)
	OnError(err error)
}

// Conn is an open (or opening) transport handle.
type Conn interface {
	// Write queues p for sending. It does not wait for the peer.
	Write(p []byte) error
	// Close shuts the connection down gracefully.
	Close() error
	// Abort resets the connection without a graceful shutdown.
	Abort() error
}

// Transport opens byte-stream connections. Open returns without waiting
// for the handshake; the outcome arrives through ev.OnConnected.
type Transport interface {
	Open(ctx context.Context, addr netip.AddrPort, serverName string, useTLS bool, ev ConnEvents) (Conn, error)
}

const defaultReadBufferSize = 2 << 10

// NetTransport is a Transport over TCP, optionally wrapped in TLS. Each
// connection runs one reader and one writer goroutine.
type NetTransport struct {
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	ReadBufferSize int
	TLSConfig      *tls.Config

	Logger obs.Logger
	Meter  obs.Meter
}

type netConn struct {
	t      *NetTransport
	ev     ConnEvents
	cancel context.CancelFunc
	writes chan []byte
	done   chan struct{}

	mu     sync.Mutex
	c      net.Conn
	closed bool

	evMu   sync.Mutex // serializes event delivery
	failed bool
}

func (t *NetTransport) Open(ctx context.Context, addr netip.AddrPort, serverName string, useTLS bool, ev ConnEvents) (Conn, error) {
	if ev == nil {
		return nil, errors.New("httpx: nil ConnEvents")
	}
	if !addr.IsValid() {
		return nil, errors.New("httpx: invalid address")
	}
	dctx, cancel := context.WithCancel(ctx)
	nc := &netConn{
		t:      t,
		ev:     ev,
		cancel: cancel,
		writes: make(chan []byte, 8),
		done:   make(chan struct{}),
	}
	go nc.run(dctx, addr.String(), serverName, useTLS)
	return nc, nil
}

func (t *NetTransport) dial(ctx context.Context, addr, serverName string, useTLS bool) (net.Conn, error) {
	d := net.Dialer{Timeout: t.DialTimeout}
	if !useTLS {
		return d.DialContext(ctx, "tcp", addr)
	}
	cfg := t.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{}
	}
	// Ensure SNI and ALPN
	if cfg.ServerName == "" {
		cfg = cfg.Clone()
		cfg.ServerName = serverName
	}
	if len(cfg.NextProtos) == 0 {
		cfg = cfg.Clone()
		cfg.NextProtos = []string{"http/1.1"}
	}
	td := tls.Dialer{NetDialer: &d, Config: cfg}
	return td.DialContext(ctx, "tcp", addr)
}

func (nc *netConn) run(ctx context.Context, addr, serverName string, useTLS bool) {
	start := time.Now()
	c, err := nc.t.dial(ctx, addr, serverName, useTLS)
	if err != nil {
		nc.t.logf(obs.Warn, "dial %s failed: %v", addr, err)
		nc.t.metricCounter("evhttp_transport_dial_errors_total", 1)
		nc.deliver(func() { nc.ev.OnConnected(err) })
		nc.shutdown(false)
		return
	}
	nc.mu.Lock()
	if nc.closed {
		nc.mu.Unlock()
		_ = c.Close()
		return
	}
	nc.c = c
	nc.mu.Unlock()
	nc.t.metricHistogram("evhttp_transport_dial_seconds", time.Since(start).Seconds())
	nc.t.logf(obs.Debug, "connected to %s (tls=%v)", addr, useTLS)

	nc.deliver(func() { nc.ev.OnConnected(nil) })
	go nc.writeLoop(c)
	nc.readLoop(c)
}

func (nc *netConn) readLoop(c net.Conn) {
	size := nc.t.ReadBufferSize
	if size <= 0 {
		size = defaultReadBufferSize
	}
	buf := make([]byte, size)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			nc.t.metricCounter("evhttp_transport_bytes_read_total", float64(n))
			nc.deliver(func() { nc.ev.OnData(buf[:n]) })
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				nc.t.logf(obs.Debug, "read: %v", err)
			}
			nc.fail(err)
			return
		}
	}
}

func (nc *netConn) writeLoop(c net.Conn) {
	for {
		select {
		case b := <-nc.writes:
			if nc.t.WriteTimeout > 0 {
				_ = c.SetWriteDeadline(time.Now().Add(nc.t.WriteTimeout))
			}
			n, err := c.Write(b)
			if n > 0 {
				nc.t.metricCounter("evhttp_transport_bytes_written_total", float64(n))
				nc.deliver(func() { nc.ev.OnSent(n) })
			}
			if err != nil {
				nc.t.logf(obs.Warn, "write: %v", err)
				nc.fail(err)
				return
			}
		case <-nc.done:
			return
		}
	}
}

// deliver runs fn unless the connection was closed locally.
func (nc *netConn) deliver(fn func()) {
	nc.evMu.Lock()
	defer nc.evMu.Unlock()
	nc.mu.Lock()
	closed := nc.closed
	nc.mu.Unlock()
	if !closed {
		fn()
	}
}

func (nc *netConn) fail(err error) {
	nc.deliver(func() {
		if !nc.failed {
			nc.failed = true
			nc.ev.OnError(err)
		}
	})
	nc.shutdown(false)
}

func (nc *netConn) Write(p []byte) error {
	nc.mu.Lock()
	closed := nc.closed
	nc.mu.Unlock()
	if closed {
		return ErrClosed
	}
	b := append([]byte(nil), p...)
	select {
	case nc.writes <- b:
		return nil
	case <-nc.done:
		return ErrClosed
	}
}

func (nc *netConn) Close() error { return nc.shutdown(false) }

func (nc *netConn) Abort() error { return nc.shutdown(true) }

func (nc *netConn) shutdown(abort bool) error {
	nc.mu.Lock()
	if nc.closed {
		nc.mu.Unlock()
		return nil
	}
	nc.closed = true
	close(nc.done)
	c := nc.c
	nc.mu.Unlock()

	nc.cancel()
	if c == nil {
		return nil
	}
	if abort {
		setLingerZero(c)
	} else {
		// Bound a TLS close_notify the peer never reads.
		_ = c.SetWriteDeadline(time.Now().Add(time.Second))
	}
	return c.Close()
}

// setLingerZero makes Close send RST instead of FIN.
func setLingerZero(c net.Conn) {
	if tc, ok := c.(*tls.Conn); ok {
		c = tc.NetConn()
	}
	if tcp, ok := c.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
}

func (t *NetTransport) logf(level obs.Level, format string, args ...interface{}) {
	lg := t.Logger
	if lg == nil {
		lg = obs.NopLogger{}
	}
	lg.Logf(level, format, args...)
}

func (t *NetTransport) metricCounter(name string, value float64, labels ...obs.Label) {
	t.getMeter().Counter(name, value, labels...)
}

func (t *NetTransport) metricHistogram(name string, value float64, labels ...obs.Label) {
	t.getMeter().Histogram(name, value, labels...)
}

func (t *NetTransport) getMeter() obs.Meter {
	if t.Meter != nil {
		return t.Meter
	}
	return obs.NopMeter{}
}
