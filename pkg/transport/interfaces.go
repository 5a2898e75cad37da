package transport

import (
	"context"
	"net"
	"time"
)

// Writer is the send surface shared by both endpoint roles, minus the
// addressing (the server prefixes an identifier, the client does not).
// It exists so callers can describe the four shapes once in their own
// abstractions.
type Writer interface {
	Send(data []byte) WriteResult
	SendContext(ctx context.Context, data []byte) WriteResult
	SendWithTimeout(timeout time.Duration, data []byte) WriteResult
	SendContextWithTimeout(ctx context.Context, timeout time.Duration, data []byte) WriteResult
}

// Reader is the read surface of the client role.
type Reader interface {
	Read(count int) ReadResult
	ReadContext(ctx context.Context, count int) ReadResult
	ReadWithTimeout(timeout time.Duration, count int) ReadResult
	ReadContextWithTimeout(ctx context.Context, timeout time.Duration, count int) ReadResult
}

// ServerTransport is the server surface. Implemented by Server.
type ServerTransport interface {
	// Start begins accepting connections.
	Start(ctx context.Context) error

	// Stop disconnects every client and stops accepting.
	Stop() error

	// Addr returns the listen address.
	Addr() net.Addr

	// ConnectionCount returns the number of registered connections.
	ConnectionCount() int

	// Clients returns a point-in-time snapshot of connection metadata.
	Clients() []ClientInfo

	// DisconnectClient removes a client with reason Kicked; no-op when absent.
	DisconnectClient(id string)

	// Subscribe registers a lifecycle observer.
	Subscribe(h EventHandler) func()

	// Statistics returns server-wide byte counters.
	Statistics() *Statistics

	Send(id string, data []byte) WriteResult
	SendContext(ctx context.Context, id string, data []byte) WriteResult
	SendWithTimeout(id string, timeout time.Duration, data []byte) WriteResult
	SendContextWithTimeout(ctx context.Context, id string, timeout time.Duration, data []byte) WriteResult

	Read(id string, count int) ReadResult
	ReadContext(ctx context.Context, id string, count int) ReadResult
	ReadWithTimeout(id string, timeout time.Duration, count int) ReadResult
	ReadContextWithTimeout(ctx context.Context, id string, timeout time.Duration, count int) ReadResult
}

// ClientTransport is the client surface. Implemented by Client.
type ClientTransport interface {
	Writer
	Reader

	// Connect establishes the single owned connection.
	Connect(ctx context.Context, address string) error

	// Disconnect closes the owned connection; idempotent.
	Disconnect()

	// Connected reports whether a live connection is held.
	Connected() bool

	// Subscribe registers a lifecycle observer.
	Subscribe(h EventHandler) func()

	// Statistics returns the client's byte counters.
	Statistics() *Statistics
}

// Compile-time interface satisfaction checks.
var (
	_ ServerTransport = (*Server)(nil)
	_ ClientTransport = (*Client)(nil)
)
