package log

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
)

// ErrFmtHandler is a slog handler to format stacktrace from cockroachdb/errors.
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler function wraps the standard slog handler.
// This function returns the slog handler which emits logs with a stacktrace attribute.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{
		handler: handler,
	}
}

func (eh *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return eh.handler.Enabled(ctx, l)
}

func (eh *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		err, _ = attr.Value.Any().(error)
		return false
	})
	if err != nil {
		r.AddAttrs(
			slog.String(StacktraceAttrKey, extractStacktrace(err)),
			slog.String(ErrorTypeKey, errorCode(err)),
		)
	}
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

// extractStacktrace renders the cockroachdb/errors verbose form, which
// carries the stack recorded by WithStack.
func extractStacktrace(err error) string {
	return fmt.Sprintf("%+v", err)
}

// errorCode maps err onto one of the Error* attribute values.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errors.ErrDegenerateFit):
		return ErrorDegenerateFit
	case errors.Is(err, errors.ErrNonConvergence):
		return ErrorNonConvergence
	case errors.Is(err, errors.ErrInvalidInput):
		return ErrorInvalidInput
	default:
		return "UNKNOWN"
	}
}
