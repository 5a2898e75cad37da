package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rawsock-io/rawsock-go/pkg/log"
)

// ServerConfig configures a rawsock server.
type ServerConfig struct {
	// Address to listen on (e.g., ":7433" or "127.0.0.1:7433").
	Address string

	// TLSConfig enables TLS for accepted connections. Nil means plain TCP.
	TLSConfig *TLSConfig

	// BufferSize is the I/O engine chunk size (default: 64KB).
	BufferSize int

	// Monitor configures active disconnection detection per connection.
	Monitor MonitorConfig

	// Logger for transport event logging (optional).
	Logger log.Logger
}

// Server accepts rawsock connections and addresses them by identifier.
type Server struct {
	config  ServerConfig
	tlsConf *tls.Config

	listener  net.Listener
	registry  *Registry
	observers *observerList
	stats     *Statistics
	logger    log.Logger

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}

	var tlsConf *tls.Config
	if config.TLSConfig != nil {
		var err error
		tlsConf, err = NewServerTLSConfig(config.TLSConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	return &Server{
		config:    config,
		tlsConf:   tlsConf,
		registry:  NewRegistry(),
		observers: newObserverList(),
		stats:     NewStatistics(),
		logger:    config.Logger,
	}, nil
}

// Start begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return ErrServerRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops accepting, disconnects every client with reason Kicked, and
// waits for all connection goroutines to finish.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		_ = s.listener.Close()
	}

	for _, c := range s.registry.clear() {
		s.observers.notifyDisconnected(DisconnectedEvent{
			ID:         c.ID(),
			RemoteAddr: c.RemoteAddr(),
			Reason:     ReasonKicked,
		})
	}

	s.wg.Wait()
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of registered connections.
func (s *Server) ConnectionCount() int {
	return s.registry.Len()
}

// Subscribe registers a lifecycle observer. The returned function removes
// it; multiple independent observers may subscribe.
func (s *Server) Subscribe(h EventHandler) func() {
	return s.observers.subscribe(h)
}

// Statistics returns the server-wide byte counters, aggregated across all
// connections past and present.
func (s *Server) Statistics() *Statistics {
	return s.stats
}

// ClientInfo is the point-in-time metadata Clients returns per connection.
type ClientInfo struct {
	ID            string
	RemoteAddr    net.Addr
	LocalAddr     net.Addr
	ConnectedAt   time.Time
	BytesSent     int64
	BytesReceived int64
}

// Clients returns a snapshot of the registered connections, safe to use
// while connections come and go concurrently.
func (s *Server) Clients() []ClientInfo {
	conns := s.registry.Snapshot()
	out := make([]ClientInfo, 0, len(conns))
	for _, c := range conns {
		snap := c.Statistics().Snapshot()
		out = append(out, ClientInfo{
			ID:            c.ID(),
			RemoteAddr:    c.RemoteAddr(),
			LocalAddr:     c.LocalAddr(),
			ConnectedAt:   c.ConnectedAt(),
			BytesSent:     snap.BytesSent,
			BytesReceived: snap.BytesReceived,
		})
	}
	return out
}

// DisconnectClient removes the identified connection and notifies
// observers with reason Kicked. A no-op for unknown or already-removed
// identifiers.
func (s *Server) DisconnectClient(id string) {
	c := s.registry.Remove(id)
	if c == nil {
		return
	}
	c.logState("CONNECTED", "DISCONNECTED", ReasonKicked.String())
	s.observers.notifyDisconnected(DisconnectedEvent{
		ID:         c.ID(),
		RemoteAddr: c.RemoteAddr(),
		Reason:     ReasonKicked,
	})
}

// Send writes data to the identified client, blocking until every byte is
// sent or the connection fails.
func (s *Server) Send(id string, data []byte) WriteResult {
	c, ok := s.registry.Lookup(id)
	if !ok {
		return WriteResult{Status: StatusClientNotFound, Err: ErrClientNotFound}
	}
	return c.send(context.Background(), data, 0, false)
}

// SendContext is the cooperative shape of Send: ctx cancellation
// interrupts both a queued and an in-flight transfer.
func (s *Server) SendContext(ctx context.Context, id string, data []byte) WriteResult {
	c, ok := s.registry.Lookup(id)
	if !ok {
		return WriteResult{Status: StatusClientNotFound, Err: ErrClientNotFound}
	}
	return c.send(ctx, data, 0, true)
}

// SendWithTimeout races the blocking transfer against the timeout. On
// timeout the transfer is abandoned and keeps the write lock until it
// completes on its own; see the package documentation.
func (s *Server) SendWithTimeout(id string, timeout time.Duration, data []byte) WriteResult {
	c, ok := s.registry.Lookup(id)
	if !ok {
		return WriteResult{Status: StatusClientNotFound, Err: ErrClientNotFound}
	}
	return c.send(context.Background(), data, timeout, false)
}

// SendContextWithTimeout races a cooperative transfer against the timeout;
// the losing transfer is cancelled promptly.
func (s *Server) SendContextWithTimeout(ctx context.Context, id string, timeout time.Duration, data []byte) WriteResult {
	c, ok := s.registry.Lookup(id)
	if !ok {
		return WriteResult{Status: StatusClientNotFound, Err: ErrClientNotFound}
	}
	return c.send(ctx, data, timeout, true)
}

// Read reads exactly count bytes from the identified client, blocking
// until satisfied or the connection fails.
func (s *Server) Read(id string, count int) ReadResult {
	c, ok := s.registry.Lookup(id)
	if !ok {
		return ReadResult{Status: StatusClientNotFound, Err: ErrClientNotFound}
	}
	return c.receive(context.Background(), count, 0, false)
}

// ReadContext is the cooperative shape of Read.
func (s *Server) ReadContext(ctx context.Context, id string, count int) ReadResult {
	c, ok := s.registry.Lookup(id)
	if !ok {
		return ReadResult{Status: StatusClientNotFound, Err: ErrClientNotFound}
	}
	return c.receive(ctx, count, 0, true)
}

// ReadWithTimeout races the blocking read against the timeout, with the
// same abandonment caveat as SendWithTimeout.
func (s *Server) ReadWithTimeout(id string, timeout time.Duration, count int) ReadResult {
	c, ok := s.registry.Lookup(id)
	if !ok {
		return ReadResult{Status: StatusClientNotFound, Err: ErrClientNotFound}
	}
	return c.receive(context.Background(), count, timeout, false)
}

// ReadContextWithTimeout races a cooperative read against the timeout.
func (s *Server) ReadContextWithTimeout(ctx context.Context, id string, timeout time.Duration, count int) ReadResult {
	c, ok := s.registry.Lookup(id)
	if !ok {
		return ReadResult{Status: StatusClientNotFound, Err: ErrClientNotFound}
	}
	return c.receive(ctx, count, timeout, true)
}

// acceptLoop accepts incoming connections until shutdown. Failures of an
// individual socket never terminate the loop.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() && s.ctx.Err() == nil {
				s.logError("", fmt.Errorf("accept error: %w", err))
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection promotes one accepted socket: TLS upgrade when
// configured, verification, registration, monitor launch, connected event.
// On any failure the socket is disposed without ever being registered.
func (s *Server) handleConnection(raw net.Conn) {
	defer s.wg.Done()

	var tlsConn *tls.Conn
	if s.tlsConf != nil {
		tlsConn = tls.Server(raw, s.tlsConf)
		if err := tlsConn.HandshakeContext(s.ctx); err != nil {
			_ = raw.Close()
			s.logError(raw.RemoteAddr().String(), fmt.Errorf("TLS handshake failed (%s): %w", ReasonDeclined, err))
			return
		}
		requireMutual := s.config.TLSConfig.RequireClientCert && !s.config.TLSConfig.InsecureSkipVerify
		if err := VerifySession(tlsConn.ConnectionState(), requireMutual); err != nil {
			_ = tlsConn.Close()
			s.logError(raw.RemoteAddr().String(), fmt.Errorf("session rejected (%s): %w", ReasonDeclined, err))
			return
		}
	}

	c := newConn(connParams{
		id:         uuid.New().String(),
		raw:        raw,
		tlsConn:    tlsConn,
		bufferSize: s.config.BufferSize,
		peerStats:  s.stats,
		logger:     s.logger,
		onFatal:    s.dropConn,
	})

	if err := s.registry.Add(c); err != nil {
		c.Dispose()
		s.logError(raw.RemoteAddr().String(), err)
		return
	}

	c.logState("", "CONNECTED", "")

	if !s.config.Monitor.Disabled {
		go monitorConn(c, s.config.Monitor)
	}

	s.observers.notifyConnected(ConnectedEvent{
		ID:         c.ID(),
		LocalAddr:  c.LocalAddr(),
		RemoteAddr: c.RemoteAddr(),
	})
}

// dropConn is the convergence point for passive and active detection:
// whichever path removed the connection from the registry first notifies
// observers; everyone else is a no-op.
func (s *Server) dropConn(c *Conn, reason DisconnectReason) {
	removed := s.registry.Remove(c.ID())
	if removed == nil {
		return
	}
	s.observers.notifyDisconnected(DisconnectedEvent{
		ID:         c.ID(),
		RemoteAddr: c.RemoteAddr(),
		Reason:     reason,
	})
}

func (s *Server) logError(remoteAddr string, err error) {
	s.logger.Log(log.Event{
		Timestamp:  time.Now(),
		Category:   log.CategoryError,
		RemoteAddr: remoteAddr,
		Error:      &log.ErrorEventData{Message: err.Error()},
	})
}
