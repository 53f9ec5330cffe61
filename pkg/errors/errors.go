// Package errors provides the error taxonomy and warning hooks used across ppilogit.
// Every constructor attaches a stack trace through cockroachdb/errors, and every
// structured error can be written to zerolog as an object.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("ppilogit-Warning: %v\n", w)
	}
	// set by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the handler used by Warn.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a zerolog sink for warnings. It takes precedence
// over the handler set by SetWarningHandler.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn reports a non-fatal condition. Library packages never call it; it is
// meant for drivers such as the experiment runner.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Sentinels
//
// ===========================================================================

var (
	// ErrInvalidInput matches every *InvalidInputError.
	ErrInvalidInput = New("invalid input")

	// ErrDegenerateFit matches every *DegenerateFitError.
	ErrDegenerateFit = New("degenerate fit")

	// ErrNonConvergence matches every *NonConvergenceError.
	ErrNonConvergence = New("optimizer did not converge")

	// ErrEmptyData is returned when a matrix or vector has no entries.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a matrix cannot be factorized.
	ErrSingularMatrix = New("singular matrix")
)

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// InvalidInputError reports a shape mismatch, a non-finite value, a label
// outside {0,1} or a malformed mask. It is raised before any optimization.
type InvalidInputError struct {
	Op        string
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *InvalidInputError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("ppilogit: %s: invalid input for '%s': %s", e.Op, e.ParamName, e.Reason)
	}
	return fmt.Sprintf("ppilogit: %s: invalid input for '%s': %s (got: %v)", e.Op, e.ParamName, e.Reason, e.Value)
}

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *InvalidInputError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "InvalidInputError")
}

// NewInvalidInputError creates an InvalidInputError with a stack trace.
func NewInvalidInputError(op, param, reason string, value interface{}) error {
	err := &InvalidInputError{Op: op, ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// DegenerateFitError reports that the likelihood has no finite maximizer for
// the rows that were fitted: constant labels, too few rows, or separation.
type DegenerateFitError struct {
	Op     string
	SubFit string // empty for a direct fit
	Reason string
}

func (e *DegenerateFitError) Error() string {
	if e.SubFit != "" {
		return fmt.Sprintf("ppilogit: %s: degenerate %s fit: %s", e.Op, e.SubFit, e.Reason)
	}
	return fmt.Sprintf("ppilogit: %s: degenerate fit: %s", e.Op, e.Reason)
}

// Is reports whether target is ErrDegenerateFit.
func (e *DegenerateFitError) Is(target error) bool {
	return target == ErrDegenerateFit
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *DegenerateFitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("sub_fit", e.SubFit).
		Str("reason", e.Reason).
		Str("type", "DegenerateFitError")
}

// NewDegenerateFitError creates a DegenerateFitError with a stack trace.
func NewDegenerateFitError(op, reason string) error {
	err := &DegenerateFitError{Op: op, Reason: reason}
	return errors.WithStack(err)
}

// NonConvergenceError reports that the optimizer ran out of iterations before
// the gradient norm reached the tolerance.
type NonConvergenceError struct {
	Op         string
	SubFit     string
	Iterations int
	GradNorm   float64
	Tol        float64
}

func (e *NonConvergenceError) Error() string {
	name := e.Op
	if e.SubFit != "" {
		name = e.Op + " (" + e.SubFit + ")"
	}
	return fmt.Sprintf("ppilogit: %s failed to converge after %d iterations: gradient norm %.3g > tol %.3g",
		name, e.Iterations, e.GradNorm, e.Tol)
}

// Is reports whether target is ErrNonConvergence.
func (e *NonConvergenceError) Is(target error) bool {
	return target == ErrNonConvergence
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *NonConvergenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("sub_fit", e.SubFit).
		Int("iterations", e.Iterations).
		Float64("grad_norm", e.GradNorm).
		Float64("tol", e.Tol).
		Str("type", "NonConvergenceError")
}

// NewNonConvergenceError creates a NonConvergenceError with a stack trace.
func NewNonConvergenceError(op string, iterations int, gradNorm, tol float64) error {
	err := &NonConvergenceError{Op: op, Iterations: iterations, GradNorm: gradNorm, Tol: tol}
	return errors.WithStack(err)
}

// ConvergenceWarning reports a fit whose first Newton attempt ran out of
// iterations and that converged only after the refit from zero.
type ConvergenceWarning struct {
	Op         string
	SubFit     string
	Iterations int // iterations of the refit
}

func (w *ConvergenceWarning) Error() string {
	name := w.Op
	if w.SubFit != "" {
		name = w.Op + " (" + w.SubFit + ")"
	}
	return fmt.Sprintf("ppilogit: %s did not converge from its starting point, refit from zero converged after %d iterations",
		name, w.Iterations)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", w.Op).
		Str("sub_fit", w.SubFit).
		Int("iterations", w.Iterations).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(op, subFit string, iterations int) *ConvergenceWarning {
	return &ConvergenceWarning{Op: op, SubFit: subFit, Iterations: iterations}
}

// TagSubFit records which sub-fit produced err. Errors that are neither
// degenerate nor non-convergent are only wrapped with the name.
func TagSubFit(err error, subFit string) error {
	if err == nil {
		return nil
	}
	var degErr *DegenerateFitError
	if errors.As(err, &degErr) {
		degErr.SubFit = subFit
		return err
	}
	var convErr *NonConvergenceError
	if errors.As(err, &convErr) {
		convErr.SubFit = subFit
		return err
	}
	return errors.Wrapf(err, "%s fit", subFit)
}

// NotFittedError is returned when Predict or Coef is called before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("ppilogit: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError reports a row or feature count that differs from the one
// seen at fit time.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("ppilogit: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, axisName(e.Axis), e.Expected, e.Got)
}

// Is reports whether target is ErrInvalidInput; a dimension mismatch is a
// shape error.
func (e *DimensionError) Is(target error) bool {
	return target == ErrInvalidInput
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName(e.Axis)).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

func axisName(axis int) string {
	if axis == 0 {
		return "rows"
	}
	return "features"
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}
