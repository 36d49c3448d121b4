// Package logging provides a simple leveled logging interface for the
// stax catalog tools.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true), the output format via LOG_FORMAT (json, text, or coloured
// terminal output by default). Records are emitted through log/slog.
package logging
