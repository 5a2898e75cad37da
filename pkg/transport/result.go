package transport

import "errors"

// Status classifies the outcome of a send or read operation.
type Status uint8

const (
	// StatusSuccess indicates the operation transferred every requested byte.
	StatusSuccess Status = iota

	// StatusTimeout indicates the timeout bound elapsed first. Bytes may
	// still have crossed the wire; inspect the result's byte count.
	StatusTimeout

	// StatusCanceled indicates a cooperative cancellation was observed.
	StatusCanceled

	// StatusDisconnected indicates the peer closed or the socket faulted.
	// Terminal for the connection; the caller must re-establish.
	StatusDisconnected

	// StatusClientNotFound indicates a server-side operation against an
	// unknown or already-removed connection identifier.
	StatusClientNotFound

	// StatusInvalid indicates malformed input (empty payload, non-positive
	// count). Reported immediately, nothing was attempted.
	StatusInvalid
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusCanceled:
		return "CANCELED"
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusClientNotFound:
		return "CLIENT_NOT_FOUND"
	case StatusInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// DisconnectReason explains why a connection was torn down.
type DisconnectReason uint8

const (
	// ReasonNormal indicates the peer closed the connection (EOF on read or
	// an orderly half-close detected by the monitor).
	ReasonNormal DisconnectReason = iota

	// ReasonKicked indicates the local side disconnected the peer explicitly
	// (DisconnectClient or server shutdown).
	ReasonKicked

	// ReasonTimeout indicates the monitor observed a socket error rather
	// than an orderly close.
	ReasonTimeout

	// ReasonDeclined indicates the connection was rejected during
	// establishment (TLS handshake or verification failure). Declined
	// connections are never registered, so no disconnect event carries this
	// reason; it appears only in logs.
	ReasonDeclined
)

// String returns the reason name.
func (r DisconnectReason) String() string {
	switch r {
	case ReasonNormal:
		return "NORMAL"
	case ReasonKicked:
		return "KICKED"
	case ReasonTimeout:
		return "TIMEOUT"
	case ReasonDeclined:
		return "DECLINED"
	default:
		return "UNKNOWN"
	}
}

// Transport errors.
var (
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrClientNotFound    = errors.New("client not found")
	ErrDuplicateID       = errors.New("duplicate connection identifier")
	ErrTimeout           = errors.New("operation timed out")
	ErrEmptyPayload      = errors.New("payload must not be empty")
	ErrInvalidCount      = errors.New("count must be positive")
	ErrProbeUnsupported  = errors.New("socket probe not supported on this platform")
	ErrServerNotRunning  = errors.New("server not running")
	ErrServerRunning     = errors.New("server already running")
	ErrHandshakeRejected = errors.New("TLS session verification failed")
)

// WriteResult reports the outcome of a send operation.
//
// BytesWritten counts bytes actually transferred regardless of the final
// status: a timeout or cancellation does not discard progress already made.
type WriteResult struct {
	Status       Status
	BytesWritten int64

	// Err carries the underlying cause for non-success statuses.
	Err error
}

// ReadResult reports the outcome of a read operation.
//
// Data is populated only on StatusSuccess. On a timeout the abandoned
// transfer may still be filling its buffer, so partial payloads are never
// handed out; BytesRead still reports honest progress.
type ReadResult struct {
	Status    Status
	BytesRead int64
	Data      []byte

	// Err carries the underlying cause for non-success statuses.
	Err error
}
