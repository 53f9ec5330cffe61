// Package log provides the structured logging interface used by the
// ppilogit drivers (CLI and experiment runner). The estimation packages never
// log; they return errors and leave reporting to their callers.
//
// The Logger interface is slog-compatible. Three implementations are
// provided: a log/slog adapter (JSON in Cloud Logging format, see
// SetupLogger), a zerolog console/JSON logger, and TestLogger for tests.
//
// Example usage:
//
//	logger := log.NewZerologLogger(os.Stderr, log.LevelInfo, true).With(
//	    log.ComponentKey, "experiment",
//	)
//	logger.Info("Trial finished",
//	    log.TrialKey, 3,
//	    log.LabelledKey, 200,
//	)
package log

import (
	"context"
	"strings"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. Error accepts an error as its first
// field; implementations attach it under ErrAttrKey.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewInvalidInputError("log.ParseLevel", "level", "must be debug, info, warn or error", s)
	}
}

// LoggerProvider creates loggers for named components.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}

// splitError pulls a leading error out of a field list.
func splitError(fields []any) (error, []any) {
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			return err, fields[1:]
		}
	}
	return nil, fields
}
