package log

import "time"

// Event represents one transport event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID). Empty for
	// events not tied to a connection (listener faults).
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates data flow for I/O events.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	IO          *IOEvent          `cbor:"6,keyasint,omitempty"` // Send/read summaries
	StateChange *StateChangeEvent `cbor:"7,keyasint,omitempty"` // Lifecycle transitions
	Probe       *ProbeEvent       `cbor:"8,keyasint,omitempty"` // Monitor verdicts
	Error       *ErrorEventData   `cbor:"9,keyasint,omitempty"` // Failures
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates bytes read from the peer.
	DirectionIn Direction = 0
	// DirectionOut indicates bytes written to the peer.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a connection lifecycle transition.
	CategoryState Category = 0
	// CategoryIO indicates a completed send or read operation.
	CategoryIO Category = 1
	// CategoryMonitor indicates an active-probe verdict.
	CategoryMonitor Category = 2
	// CategoryError indicates a failure.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryIO:
		return "IO"
	case CategoryMonitor:
		return "MONITOR"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// IOEvent summarizes one send or read operation.
type IOEvent struct {
	// Requested is the byte count the caller asked to move.
	Requested int64 `cbor:"1,keyasint"`

	// Bytes is the count actually moved, honest regardless of status.
	Bytes int64 `cbor:"2,keyasint"`

	// Status is the operation's final status name.
	Status string `cbor:"3,keyasint"`
}

// StateChangeEvent captures connection lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (disconnect reason name, if any).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ProbeEvent captures an active-monitor probe verdict.
type ProbeEvent struct {
	// Verdict names the probe outcome (ALIVE, CLOSED, ERROR).
	Verdict string `cbor:"1,keyasint"`
}

// ErrorEventData captures failures.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what was being attempted, if helpful.
	Context string `cbor:"2,keyasint,omitempty"`
}
