// Package logger wraps zap for the office binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the log_level setting,
//   - leveled shortcuts (Infof, WarnKV, ErrorKV, etc.).
//
// Components receive a context and log through the logger stored in it, so a
// name or key-value pair attached once follows every message below it.
package logger
