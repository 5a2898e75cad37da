package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rawsock-io/rawsock-go/pkg/log"
)

// DefaultConnectTimeout bounds Connect when the caller's context carries
// no deadline.
const DefaultConnectTimeout = 30 * time.Second

// ClientConfig configures a rawsock client.
type ClientConfig struct {
	// TLSConfig enables TLS for the connection. Nil means plain TCP.
	TLSConfig *TLSConfig

	// ConnectTimeout bounds connection establishment (default: 30s).
	ConnectTimeout time.Duration

	// BufferSize is the I/O engine chunk size (default: 64KB).
	BufferSize int

	// Monitor configures active disconnection detection.
	Monitor MonitorConfig

	// Logger for transport event logging (optional).
	Logger log.Logger
}

// Client owns at most one connection to a server. There is no registry on
// the client side and no automatic reconnection: after a disconnect the
// caller must Connect again.
type Client struct {
	config  ClientConfig
	tlsConf *tls.Config
	logger  log.Logger

	observers *observerList
	stats     *Statistics

	mu   sync.RWMutex
	conn *Conn
}

// NewClient creates a new client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}

	var tlsConf *tls.Config
	if config.TLSConfig != nil {
		var err error
		tlsConf, err = NewClientTLSConfig(config.TLSConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	return &Client{
		config:    config,
		tlsConf:   tlsConf,
		logger:    config.Logger,
		observers: newObserverList(),
		stats:     NewStatistics(),
	}, nil
}

// Connect establishes a connection to the given address, running the TLS
// upgrade when configured. Establishment failures surface immediately; no
// partial connection ever becomes visible.
//
// One caveat under TLS 1.3: the client finishes its handshake without
// waiting for the server's verdict, so a server that rejects the session
// (a missing client certificate, say) may only be noticed on the first
// read or write, which then reports StatusDisconnected.
func (cl *Client) Connect(ctx context.Context, address string) error {
	cl.mu.Lock()
	if cl.conn != nil {
		cl.mu.Unlock()
		return ErrAlreadyConnected
	}
	cl.mu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	raw, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	var tlsConn *tls.Conn
	if cl.tlsConf != nil {
		tlsConn = tls.Client(raw, cl.tlsConf)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			return fmt.Errorf("TLS handshake failed: %w", err)
		}
		if err := VerifySession(tlsConn.ConnectionState(), false); err != nil {
			_ = tlsConn.Close()
			return fmt.Errorf("session rejected: %w", err)
		}
	}

	c := newConn(connParams{
		id:         uuid.New().String(),
		raw:        raw,
		tlsConn:    tlsConn,
		bufferSize: cl.config.BufferSize,
		peerStats:  cl.stats,
		logger:     cl.logger,
		onFatal:    cl.dropConn,
	})

	cl.mu.Lock()
	if cl.conn != nil {
		cl.mu.Unlock()
		c.Dispose()
		return ErrAlreadyConnected
	}
	cl.conn = c
	cl.mu.Unlock()

	c.logState("", "CONNECTED", "")

	if !cl.config.Monitor.Disabled {
		go monitorConn(c, cl.config.Monitor)
	}

	cl.observers.notifyConnected(ConnectedEvent{
		ID:         c.ID(),
		LocalAddr:  c.LocalAddr(),
		RemoteAddr: c.RemoteAddr(),
	})

	return nil
}

// Disconnect closes the connection, if any. Idempotent.
func (cl *Client) Disconnect() {
	cl.mu.RLock()
	c := cl.conn
	cl.mu.RUnlock()
	if c == nil {
		return
	}
	c.logState("CONNECTED", "DISCONNECTED", ReasonNormal.String())
	cl.dropConn(c, ReasonNormal)
}

// Connected reports whether a live connection is held. Derived state: a
// dead peer is only noticed on the next operation or monitor probe.
func (cl *Client) Connected() bool {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.conn != nil && cl.conn.Connected()
}

// Connection returns the current connection state object, or nil.
func (cl *Client) Connection() *Conn {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.conn
}

// Subscribe registers a lifecycle observer; the returned function removes it.
func (cl *Client) Subscribe(h EventHandler) func() {
	return cl.observers.subscribe(h)
}

// Statistics returns the client's byte counters, carried across
// reconnects; reset only by explicit caller action.
func (cl *Client) Statistics() *Statistics {
	return cl.stats
}

// Send writes data to the server, blocking until every byte is sent or the
// connection fails.
func (cl *Client) Send(data []byte) WriteResult {
	c := cl.current()
	if c == nil {
		return WriteResult{Status: StatusDisconnected, Err: ErrNotConnected}
	}
	return c.send(context.Background(), data, 0, false)
}

// SendContext is the cooperative shape of Send.
func (cl *Client) SendContext(ctx context.Context, data []byte) WriteResult {
	c := cl.current()
	if c == nil {
		return WriteResult{Status: StatusDisconnected, Err: ErrNotConnected}
	}
	return c.send(ctx, data, 0, true)
}

// SendWithTimeout races the blocking transfer against the timeout; on
// timeout the transfer is abandoned and keeps the write lock until it
// completes on its own.
func (cl *Client) SendWithTimeout(timeout time.Duration, data []byte) WriteResult {
	c := cl.current()
	if c == nil {
		return WriteResult{Status: StatusDisconnected, Err: ErrNotConnected}
	}
	return c.send(context.Background(), data, timeout, false)
}

// SendContextWithTimeout races a cooperative transfer against the timeout.
func (cl *Client) SendContextWithTimeout(ctx context.Context, timeout time.Duration, data []byte) WriteResult {
	c := cl.current()
	if c == nil {
		return WriteResult{Status: StatusDisconnected, Err: ErrNotConnected}
	}
	return c.send(ctx, data, timeout, true)
}

// Read reads exactly count bytes from the server.
func (cl *Client) Read(count int) ReadResult {
	c := cl.current()
	if c == nil {
		return ReadResult{Status: StatusDisconnected, Err: ErrNotConnected}
	}
	return c.receive(context.Background(), count, 0, false)
}

// ReadContext is the cooperative shape of Read.
func (cl *Client) ReadContext(ctx context.Context, count int) ReadResult {
	c := cl.current()
	if c == nil {
		return ReadResult{Status: StatusDisconnected, Err: ErrNotConnected}
	}
	return c.receive(ctx, count, 0, true)
}

// ReadWithTimeout races the blocking read against the timeout, with the
// abandonment caveat described in the package documentation.
func (cl *Client) ReadWithTimeout(timeout time.Duration, count int) ReadResult {
	c := cl.current()
	if c == nil {
		return ReadResult{Status: StatusDisconnected, Err: ErrNotConnected}
	}
	return c.receive(context.Background(), count, timeout, false)
}

// ReadContextWithTimeout races a cooperative read against the timeout.
func (cl *Client) ReadContextWithTimeout(ctx context.Context, timeout time.Duration, count int) ReadResult {
	c := cl.current()
	if c == nil {
		return ReadResult{Status: StatusDisconnected, Err: ErrNotConnected}
	}
	return c.receive(ctx, count, timeout, true)
}

// current returns the owned connection, or nil when not connected.
func (cl *Client) current() *Conn {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.conn
}

// dropConn clears the owned connection; the caller that actually cleared
// it disposes and notifies, racing callers stand down.
func (cl *Client) dropConn(c *Conn, reason DisconnectReason) {
	cl.mu.Lock()
	winner := cl.conn == c
	if winner {
		cl.conn = nil
	}
	cl.mu.Unlock()

	c.Dispose()
	if winner {
		cl.observers.notifyDisconnected(DisconnectedEvent{
			ID:         c.ID(),
			RemoteAddr: c.RemoteAddr(),
			Reason:     reason,
		})
	}
}
