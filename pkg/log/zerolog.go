package log

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger writes to w at the given minimum level. With console set
// the output is human-readable, otherwise one JSON object per line.
func NewZerologLogger(w io.Writer, level Level, console bool) *ZerologLogger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	}
	l := zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{l: l}
}

func zerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (z *ZerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	err, fields := splitError(fields)
	if err != nil {
		appendError(e, ErrAttrKey, err)
	}
	appendFields(e, fields)
	e.Msg(msg)
}

// appendError writes err as a string plus, when the chain holds one of the
// structured error types, its fields under "<key>_detail".
func appendError(e *zerolog.Event, key string, err error) {
	e.AnErr(key, err)
	var m zerolog.LogObjectMarshaler
	if errors.As(err, &m) {
		e.Object(key+"_detail", m)
	}
}

func appendFields(e *zerolog.Event, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			appendError(e, key, v)
		case string:
			e.Str(key, v)
		case int:
			e.Int(key, v)
		case float64:
			e.Float64(key, v)
		case []float64:
			e.Floats64(key, v)
		case bool:
			e.Bool(key, v)
		case time.Duration:
			e.Dur(key, v)
		default:
			e.Interface(key, v)
		}
	}
}

// Debug implements Logger.Debug.
func (z *ZerologLogger) Debug(msg string, fields ...any) { z.emit(z.l.Debug(), msg, fields) }

// Info implements Logger.Info.
func (z *ZerologLogger) Info(msg string, fields ...any) { z.emit(z.l.Info(), msg, fields) }

// Warn implements Logger.Warn.
func (z *ZerologLogger) Warn(msg string, fields ...any) { z.emit(z.l.Warn(), msg, fields) }

// Error implements Logger.Error.
func (z *ZerologLogger) Error(msg string, fields ...any) { z.emit(z.l.Error(), msg, fields) }

// With implements Logger.With.
func (z *ZerologLogger) With(fields ...any) Logger {
	ctx := z.l.With()
	for i := 0; i+1 < len(fields); i += 2 {
		ctx = ctx.Interface(fmt.Sprint(fields[i]), fields[i+1])
	}
	return &ZerologLogger{l: ctx.Logger()}
}

// Enabled implements Logger.Enabled.
func (z *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return zerologLevel(level) >= z.l.GetLevel()
}

// InstallWarnHook routes errors.Warn to logger at warn level.
// Call the returned function to remove the hook.
func InstallWarnHook(logger Logger) func() {
	errors.SetZerologWarnFunc(func(w error) {
		logger.Warn("ppilogit warning", w)
	})
	return func() { errors.SetZerologWarnFunc(nil) }
}
