package linear

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/ppilogit/core/model"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is an unregularized binary logistic regression fitted by
// maximum likelihood. Labels must be 0 or 1.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	maxIter  int
	tol      float64
	parallel bool

	// Model parameters
	coef_      []float64 // feature weights
	intercept_ float64
	stdErr_    []float64 // Wald standard errors, intercept first
	logLik_    float64
	nIter_     int
}

var (
	_ model.Classifier      = (*LogisticRegression)(nil)
	_ model.ParameterGetter = (*LogisticRegression)(nil)
	_ model.ParameterSetter = (*LogisticRegression)(nil)
)

// LogisticRegressionOption is a functional option for LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:   model.NewStateManager("LogisticRegression"),
		maxIter: defaultMaxIter,
		tol:     defaultTol,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRMaxIter sets the maximum number of Newton iterations.
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance on the mean gradient norm.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRParallel enables chunked parallel accumulation on large inputs.
func WithLRParallel(enabled bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.parallel = enabled
	}
}

func (lr *LogisticRegression) logitOptions() []LogitOption {
	return []LogitOption{WithMaxIter(lr.maxIter), WithTol(lr.tol), WithParallel(lr.parallel)}
}

// Fit trains the model on X and the column vector y.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	lr.reset()
	if X == nil || y == nil {
		return errors.NewInvalidInputError("LogisticRegression.Fit", "X", "X and y must not be nil", nil)
	}
	nSamples, _ := X.Dims()
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewInvalidInputError("LogisticRegression.Fit", "y", "must be a column vector", fmt.Sprintf("(%d, %d)", yRows, yCols))
	}
	return lr.FitVec(X, mat.Col(nil, 0, y))
}

// FitVec trains the model on X and a label slice. A failed fit leaves the
// model unfitted, dropping any earlier parameters.
func (lr *LogisticRegression) FitVec(X mat.Matrix, y []float64) error {
	lr.reset()
	fit, err := FitLogitDetailed(X, y, lr.logitOptions()...)
	if err != nil {
		return err
	}

	stdErr, err := standardErrors(fit.Information)
	if err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	lr.intercept_ = fit.Coef[0]
	lr.coef_ = append([]float64(nil), fit.Coef[1:]...)
	lr.stdErr_ = stdErr
	lr.logLik_ = fit.LogLikelihood
	lr.nIter_ = fit.Iterations
	lr.state.SetFitted(nFeatures, nSamples)
	return nil
}

func (lr *LogisticRegression) reset() {
	lr.state.Reset()
	lr.coef_ = nil
	lr.intercept_ = 0
	lr.stdErr_ = nil
	lr.logLik_ = 0
	lr.nIter_ = 0
}

// standardErrors returns sqrt(diag(I⁻¹)).
func standardErrors(info *mat.SymDense) ([]float64, error) {
	cov, err := InvertInformation(info)
	if err != nil {
		return nil, errors.Wrap(errors.NewDegenerateFitError("LogisticRegression.Fit", "information matrix could not be inverted"), err.Error())
	}
	p := cov.SymmetricDim()
	se := make([]float64, p)
	for j := 0; j < p; j++ {
		se[j] = math.Sqrt(cov.At(j, j))
	}
	return se, nil
}

// decision returns the linear predictor for each row of X.
func (lr *LogisticRegression) decision(op string, X mat.Matrix) ([]float64, error) {
	if err := lr.state.RequireFitted(op); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression."+op, nFeatures); err != nil {
		return nil, err
	}

	eta := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		z := lr.intercept_
		for j := 0; j < nFeatures; j++ {
			z += X.At(i, j) * lr.coef_[j]
		}
		eta[i] = z
	}
	return eta, nil
}

// Predict returns the 0/1 class of each row, thresholding the probability at 0.5.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	eta, err := lr.decision("Predict", X)
	if err != nil {
		return nil, err
	}
	predictions := mat.NewDense(len(eta), 1, nil)
	for i, z := range eta {
		if Sigmoid(z) >= 0.5 {
			predictions.Set(i, 0, 1)
		}
	}
	return predictions, nil
}

// PredictProba returns an n×2 matrix of P(y=0) and P(y=1).
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	eta, err := lr.decision("PredictProba", X)
	if err != nil {
		return nil, err
	}
	probas := mat.NewDense(len(eta), 2, nil)
	for i, z := range eta {
		p1 := Sigmoid(z)
		probas.Set(i, 0, 1-p1)
		probas.Set(i, 1, p1)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	nSamples, _ := X.Dims()
	if yRows, _ := y.Dims(); yRows != nSamples {
		return 0, errors.NewDimensionError("LogisticRegression.Score", nSamples, yRows, 0)
	}

	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Coef returns a copy of the feature weights, or nil when the model is not
// fitted.
func (lr *LogisticRegression) Coef() []float64 {
	if !lr.state.IsFitted() {
		return nil
	}
	return append([]float64(nil), lr.coef_...)
}

// Intercept returns the fitted intercept.
func (lr *LogisticRegression) Intercept() float64 {
	return lr.intercept_
}

// Params returns the intercept followed by the feature weights, the layout
// used by FitLogit.
func (lr *LogisticRegression) Params() []float64 {
	if !lr.state.IsFitted() {
		return nil
	}
	return append([]float64{lr.intercept_}, lr.coef_...)
}

// StandardErrors returns the Wald standard errors of Params, or nil when the
// model is not fitted.
func (lr *LogisticRegression) StandardErrors() []float64 {
	if !lr.state.IsFitted() {
		return nil
	}
	return append([]float64(nil), lr.stdErr_...)
}

// LogLikelihood returns the maximized log-likelihood.
func (lr *LogisticRegression) LogLikelihood() float64 {
	return lr.logLik_
}

// NIter returns the number of Newton iterations of the accepted attempt.
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// GetParams returns the model hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_iter": lr.maxIter,
		"tol":      lr.tol,
		"parallel": lr.parallel,
	}
}

// SetParams sets the model hyperparameters.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "max_iter":
			var v int
			if v, ok = value.(int); ok {
				lr.maxIter = v
			}
		case "tol":
			var v float64
			if v, ok = value.(float64); ok {
				lr.tol = v
			}
		case "parallel":
			var v bool
			if v, ok = value.(bool); ok {
				lr.parallel = v
			}
		default:
			return errors.NewInvalidInputError("LogisticRegression.SetParams", key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewInvalidInputError("LogisticRegression.SetParams", key, "wrong type", fmt.Sprintf("%T", value))
		}
	}
	return nil
}
