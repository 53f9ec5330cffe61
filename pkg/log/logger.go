package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// SetupLogger installs a JSON slog handler writing Cloud Logging fields to
// stdout as the process default.
func SetupLogger(loglevel string) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(NewCloudHandler(os.Stdout, level)))
	return nil
}

// NewCloudHandler returns a JSON handler in Cloud Logging format that adds a
// stacktrace attribute for logged errors.
func NewCloudHandler(w io.Writer, level Level) slog.Handler {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     slog.Level(level),
		// Replace attributes to convert to CloudLogging format.
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			case slog.SourceKey:
				attr.Key = "logging.googleapis.com/sourceLocation"
			}
			return attr
		},
	}
	return WrapByErrFmtHandler(slog.NewJSONHandler(w, &ops))
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

// GetLogger returns a Logger backed by the default slog logger.
func GetLogger() Logger {
	return NewSlogLogger(nil)
}

func (s *SlogLogger) log(level slog.Level, msg string, fields []any) {
	if err, rest := splitError(fields); err != nil {
		fields = append([]any{ErrAttr(err)}, rest...)
	}
	s.l.Log(context.Background(), level, msg, fields...)
}

// Debug implements Logger.Debug.
func (s *SlogLogger) Debug(msg string, fields ...any) { s.log(slog.LevelDebug, msg, fields) }

// Info implements Logger.Info.
func (s *SlogLogger) Info(msg string, fields ...any) { s.log(slog.LevelInfo, msg, fields) }

// Warn implements Logger.Warn.
func (s *SlogLogger) Warn(msg string, fields ...any) { s.log(slog.LevelWarn, msg, fields) }

// Error implements Logger.Error.
func (s *SlogLogger) Error(msg string, fields ...any) { s.log(slog.LevelError, msg, fields) }

// With implements Logger.With.
func (s *SlogLogger) With(fields ...any) Logger {
	return &SlogLogger{l: s.l.With(fields...)}
}

// Enabled implements Logger.Enabled.
func (s *SlogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}
