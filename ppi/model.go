package ppi

import (
	"github.com/YuminosukeSato/ppilogit/core/model"
	"github.com/YuminosukeSato/ppilogit/linear"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const defaultAlpha = 0.1

// PPILogisticRegression is a logistic regression fitted with
// prediction-powered inference, keeping its sub-fits and confidence
// intervals.
type PPILogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	parallel  bool
	alpha     float64
	logitOpts []linear.LogitOption

	// Model parameters
	result_    *Result
	inference_ *Inference
}

var (
	_ model.Predictor            = (*PPILogisticRegression)(nil)
	_ model.ProbabilityPredictor = (*PPILogisticRegression)(nil)
	_ model.CoefficientModel     = (*PPILogisticRegression)(nil)
)

// PPIOption is a functional option for PPILogisticRegression.
type PPIOption func(*PPILogisticRegression)

// NewPPILogisticRegression creates an unfitted model.
func NewPPILogisticRegression(opts ...PPIOption) *PPILogisticRegression {
	m := &PPILogisticRegression{
		state: model.NewStateManager("PPILogisticRegression"),
		alpha: defaultAlpha,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithPPIParallel runs the three sub-fits concurrently.
func WithPPIParallel(enabled bool) PPIOption {
	return func(m *PPILogisticRegression) {
		m.parallel = enabled
	}
}

// WithAlpha sets the miscoverage level of the intervals computed by Fit.
func WithAlpha(alpha float64) PPIOption {
	return func(m *PPILogisticRegression) {
		m.alpha = alpha
	}
}

// WithPPILogitOptions forwards options to every sub-fit.
func WithPPILogitOptions(opts ...linear.LogitOption) PPIOption {
	return func(m *PPILogisticRegression) {
		m.logitOpts = append(m.logitOpts, opts...)
	}
}

// Fit estimates the coefficients and their 1-alpha confidence intervals. A
// failed Fit leaves the model unfitted, dropping any earlier estimate.
func (m *PPILogisticRegression) Fit(X mat.Matrix, y, yhat []float64, selected []bool) error {
	m.reset()
	if err := validateAlpha("PPILogisticRegression.Fit", m.alpha); err != nil {
		return err
	}

	res, err := Estimate(X, y, yhat, selected, WithParallel(m.parallel), WithLogitOptions(m.logitOpts...))
	if err != nil {
		return err
	}
	inf, err := Intervals(X, y, yhat, selected, res, m.alpha)
	if err != nil {
		return errors.Wrap(err, "PPILogisticRegression.Fit")
	}

	nSamples, nFeatures := X.Dims()
	m.result_ = res
	m.inference_ = inf
	m.state.SetFitted(nFeatures, nSamples)
	return nil
}

func (m *PPILogisticRegression) reset() {
	m.state.Reset()
	m.result_ = nil
	m.inference_ = nil
}

// Result returns the estimate and its sub-fits, or nil when the model is not
// fitted.
func (m *PPILogisticRegression) Result() *Result {
	if !m.state.IsFitted() {
		return nil
	}
	return m.result_
}

// Inference returns the confidence intervals computed by Fit, or nil when the
// model is not fitted.
func (m *PPILogisticRegression) Inference() *Inference {
	if !m.state.IsFitted() {
		return nil
	}
	return m.inference_
}

// Coef returns a copy of the feature weights.
func (m *PPILogisticRegression) Coef() []float64 {
	if !m.state.IsFitted() {
		return nil
	}
	return append([]float64(nil), m.result_.Coef[1:]...)
}

// Intercept returns the fitted intercept.
func (m *PPILogisticRegression) Intercept() float64 {
	if !m.state.IsFitted() {
		return 0
	}
	return m.result_.Coef[0]
}

// PredictProba returns an n×2 matrix of P(y=0) and P(y=1) under the PPI
// coefficients.
func (m *PPILogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := m.state.RequireFeatures("PPILogisticRegression.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	coef := m.result_.Coef
	probas := mat.NewDense(nSamples, 2, nil)
	for i := 0; i < nSamples; i++ {
		z := coef[0]
		for j := 0; j < nFeatures; j++ {
			z += X.At(i, j) * coef[j+1]
		}
		p1 := linear.Sigmoid(z)
		probas.Set(i, 0, 1-p1)
		probas.Set(i, 1, p1)
	}
	return probas, nil
}

// Predict returns the 0/1 class of each row.
func (m *PPILogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := probas.Dims()
	predictions := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if probas.At(i, 1) >= 0.5 {
			predictions.Set(i, 0, 1)
		}
	}
	return predictions, nil
}
