// Package log provides structured transport event logging for rawsock.
//
// This package defines the Logger interface and Event types for capturing
// connection lifecycle, I/O, monitor, and error events. It is separate from
// operational logging (slog) - event capture provides a complete
// machine-readable trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/var/log/rawsock/server.tlog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Four categories are captured:
//   - State: connection lifecycle transitions with a disconnect reason
//   - IO: one summary per send/read operation (requested and moved bytes)
//   - Monitor: active-probe verdicts
//   - Error: failures at any point (accept, handshake, I/O)
//
// # File Format
//
// Log files use CBOR encoding with integer keys, .tlog extension. Reader
// streams them back with optional filtering.
package log
