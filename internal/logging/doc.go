// Package logging provides structured logging for the stationd agent.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the agent. It provides both general logging
// functions and specialized helpers for radio and transport debugging.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (payload hex dumps, driver events)
//   - Info: Normal operations (connections, scans, state transitions)
//   - Warn: Non-fatal issues (link drops, retries)
//   - Error: Fatal issues (startup failures, driver errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Link established",
//	    zap.String("ssid", "HomeNet"),
//	    zap.String("address", "192.168.1.100"),
//	)
//
// # Configuration
//
// Initialize logging at agent startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given, the STATIOND_LOG_LEVEL environment variable is
// consulted; if that is also unset, logging is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
