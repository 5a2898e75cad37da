// Package transport implements the rawsock connection and I/O engine.
//
// The transport layer handles:
//   - Plain TCP and TLS connections (optional mutual authentication)
//   - Explicit, caller-driven reads and writes with byte-exact accounting
//   - Per-direction mutual exclusion on every connection
//   - Timeout and cancellation racing for bounded operations
//   - Passive and active disconnection detection
//
// # Layering
//
//	┌────────────────────────────────┐
//	│   Application wire protocol    │  (caller's responsibility)
//	├────────────────────────────────┤
//	│   rawsock I/O engine           │  Send/Read, four shapes each
//	├────────────────────────────────┤
//	│   TLS (optional)               │
//	├────────────────────────────────┤
//	│   TCP                          │
//	└────────────────────────────────┘
//
// No framing is imposed above raw bytes: Read(n) returns exactly n bytes or
// a failure status, Send(data) writes every byte or reports how many made it.
//
// # Operation shapes
//
// Every direction exposes four shapes sharing one algorithm:
//
//   - Send / Read: block until complete or the connection fails.
//   - SendContext / ReadContext: cooperative, observe the caller's context
//     between chunks and unblock a stalled syscall on cancellation.
//   - SendWithTimeout / ReadWithTimeout: race the transfer against a timer.
//     If the timer wins, the caller gets a Timeout result immediately, but
//     the underlying transfer is ABANDONED: it continues to completion on
//     its own and holds the direction lock until it finishes. Treat a
//     timed-out connection as suspect and disconnect rather than continue.
//   - SendContextWithTimeout / ReadContextWithTimeout: the race plus prompt
//     cooperative cancellation of the losing transfer.
//
// A timeout never implies nothing crossed the wire; inspect the byte count
// on every result.
//
// # Disconnection detection
//
// Any I/O failure marks the connection disconnected and, on the server,
// removes it from the registry. Independently, an optional per-connection
// monitor (default on, 1 s interval) probes the socket with a non-blocking
// zero-copy peek and detects an orderly half-close within about one
// interval. Both paths converge on a single idempotent removal, so whichever
// observes the failure first wins and the other becomes a no-op.
package transport
