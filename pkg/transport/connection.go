package transport

import (
	"crypto/tls"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rawsock-io/rawsock-go/pkg/log"
)

// DefaultBufferSize is the chunk size used by the I/O engine.
const DefaultBufferSize = 64 * 1024

// Conn is the per-connection state: the raw stream, the optional TLS
// stream, one lock per direction, and the close signal. It is created when
// a socket is accepted (server) or a connect succeeds (client) and disposed
// exactly once; repeated Dispose calls are no-ops.
type Conn struct {
	id      string
	raw     net.Conn
	tlsConn *tls.Conn

	readLock  *dirLock
	writeLock *dirLock

	closeCh   chan struct{}
	closeOnce sync.Once

	// connected is derived state: true only between establishment and the
	// first detected failure or removal. The CAS in markDisconnected makes
	// the fatal path fire exactly once no matter how many operations and
	// monitors observe the same failure.
	connected atomic.Bool

	bufferSize int
	stats      *Statistics
	peerStats  *Statistics // optional endpoint-wide aggregate
	logger     log.Logger

	// onFatal is invoked once when a failure is detected passively or by
	// the monitor. Server connections use it to remove themselves from the
	// registry; client connections to clear the owner's reference.
	onFatal func(c *Conn, reason DisconnectReason)

	connectedAt time.Time
	remoteAddr  net.Addr
	localAddr   net.Addr
}

// connParams collects everything needed to build a Conn.
type connParams struct {
	id         string
	raw        net.Conn
	tlsConn    *tls.Conn // nil for plain TCP
	bufferSize int
	peerStats  *Statistics
	logger     log.Logger
	onFatal    func(c *Conn, reason DisconnectReason)
}

func newConn(p connParams) *Conn {
	if p.bufferSize <= 0 {
		p.bufferSize = DefaultBufferSize
	}
	if p.logger == nil {
		p.logger = log.NoopLogger{}
	}
	c := &Conn{
		id:          p.id,
		raw:         p.raw,
		tlsConn:     p.tlsConn,
		readLock:    newDirLock(),
		writeLock:   newDirLock(),
		closeCh:     make(chan struct{}),
		bufferSize:  p.bufferSize,
		stats:       NewStatistics(),
		peerStats:   p.peerStats,
		logger:      p.logger,
		onFatal:     p.onFatal,
		connectedAt: time.Now(),
		remoteAddr:  p.raw.RemoteAddr(),
		localAddr:   p.raw.LocalAddr(),
	}
	c.connected.Store(true)
	return c
}

// ID returns the connection identifier, unique for the connection's
// lifetime and never reused after removal.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the peer's network address.
func (c *Conn) RemoteAddr() net.Addr { return c.remoteAddr }

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr { return c.localAddr }

// ConnectedAt returns the time the connection was established.
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// Connected reports whether the connection is believed alive. Derived, not
// authoritative: a dead peer is only noticed on the next I/O or monitor
// probe.
func (c *Conn) Connected() bool { return c.connected.Load() }

// Statistics returns the connection's byte counters.
func (c *Conn) Statistics() *Statistics { return c.stats }

// TLSState returns the TLS connection state, if TLS was negotiated.
func (c *Conn) TLSState() (tls.ConnectionState, bool) {
	if c.tlsConn == nil {
		return tls.ConnectionState{}, false
	}
	return c.tlsConn.ConnectionState(), true
}

// stream returns the duplex stream application I/O goes through: the TLS
// stream when negotiated, the raw stream otherwise.
func (c *Conn) stream() io.ReadWriter {
	if c.tlsConn != nil {
		return c.tlsConn
	}
	return c.raw
}

// deadliner is the stream deadlines are set on. For TLS connections the
// deadline must be set on the TLS stream so a blocked handshake-layer read
// wakes too.
func (c *Conn) deadliner() interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
} {
	if c.tlsConn != nil {
		return c.tlsConn
	}
	return c.raw
}

// Dispose tears the connection down: signals cancellation to anything
// waiting on the locks or the monitor, then closes the streams. Idempotent
// and safe to call concurrently with in-flight operations.
func (c *Conn) Dispose() {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.closeCh)
		if c.tlsConn != nil {
			_ = c.tlsConn.Close()
		}
		_ = c.raw.Close()
	})
}

// markDisconnected transitions the derived connected flag and fires the
// fatal path exactly once. Whichever detection mechanism observes the
// failure first wins; later callers are no-ops.
func (c *Conn) markDisconnected(reason DisconnectReason) {
	if c.connected.CompareAndSwap(true, false) {
		c.logState("CONNECTED", "DISCONNECTED", reason.String())
		if c.onFatal != nil {
			c.onFatal(c, reason)
		}
	}
}

func (c *Conn) recordSent(n int64) {
	c.stats.addSent(n)
	if c.peerStats != nil {
		c.peerStats.addSent(n)
	}
}

func (c *Conn) recordReceived(n int64) {
	c.stats.addReceived(n)
	if c.peerStats != nil {
		c.peerStats.addReceived(n)
	}
}

func (c *Conn) logState(oldState, newState, reason string) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Category:     log.CategoryState,
		RemoteAddr:   c.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (c *Conn) logIO(dir log.Direction, requested, moved int64, status Status) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Category:     log.CategoryIO,
		RemoteAddr:   c.remoteAddr.String(),
		IO: &log.IOEvent{
			Requested: requested,
			Bytes:     moved,
			Status:    status.String(),
		},
	})
}

func (c *Conn) logError(err error) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Category:     log.CategoryError,
		RemoteAddr:   c.remoteAddr.String(),
		Error:        &log.ErrorEventData{Message: err.Error()},
	})
}
