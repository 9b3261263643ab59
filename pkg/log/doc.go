// Package log provides structured event capture for sensor clients.
//
// This package defines the Logger interface and the Event type used to record
// what a client did: subscriptions, sensor activation, delivered readings and
// errors. It is separate from operational logging (slog); event capture
// provides a complete machine-readable trace for debugging and for offline
// analysis with the sensor-log tool.
//
// # Basic Usage
//
// Clients take a Logger in their configuration:
//
//	// For development: log to console via slog
//	cfg.EventLog = log.NewSlogAdapter(slog.Default())
//
//	// For test runs: write to binary file
//	cfg.EventLog, _ = log.NewFileLogger("/tmp/sensor-test.slog")
//
//	// Both: use MultiLogger
//	cfg.EventLog = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Categories
//
// Subscribe and unsubscribe events mirror API calls. Activate and deactivate
// record driver enable/disable edges. Reading events carry the delivered
// payload, error events carry the API error code and message, and state
// events record client lifecycle changes such as suspend and resume.
//
// # File Format
//
// Log files are a concatenation of CBOR-encoded events with integer keys.
package log
