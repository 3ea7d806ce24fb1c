// Package logging provides structured logging for Gray Logic Relay.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the relay.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("relay started", "broker", "localhost:1883")
//
// Never log broker passwords or JWT secrets.
package logging
