// Package logging provides structured logging configuration using zerolog.
//
// Logs go to stderr: stdout is reserved for the record output of a sync run.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr, keeping
	// stdout free for records).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Service call flow (request sent, response decoded)
//   - Page completion and cursor persistence
//   - Backoff waits between retry attempts
//
// Info: Normal operation events
//   - Sync start/finish per collection
//   - Token progression
//   - Recovery after retry
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts on transient failures
//   - Pages that make no token progress
//   - Retry exhaustion surfaced to the caller
//
// Error: Error conditions requiring attention
//   - Authentication failures (bad security code)
//   - Malformed responses and skipped items
//   - Bookmark store failures
//
// Context Fields:
//   - component: subsystem name (sherpa-client, pagination, sync)
//   - collection: collection being replicated
//   - service: SOAP operation name
//   - cursor: current replication token
//   - status: HTTP status code
//   - error_class: error classification (transient, auth, fatal)
//   - duration: request or run duration
