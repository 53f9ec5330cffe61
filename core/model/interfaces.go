// Package model defines the estimator interfaces shared by ppilogit models
// and the state they keep between Fit and Predict.
package model

import "gonum.org/v1/gonum/mat"

// Fitter is a model trained on a feature matrix and a label column.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor makes predictions for new rows.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbabilityPredictor returns one column of probabilities per class.
type ProbabilityPredictor interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// CoefficientModel exposes the fitted linear coefficients.
type CoefficientModel interface {
	// Coef returns the feature weights, without the intercept.
	Coef() []float64
	// Intercept returns the fitted intercept.
	Intercept() float64
}

// Classifier combines the interfaces of a binary linear classifier.
type Classifier interface {
	Fitter
	Predictor
	ProbabilityPredictor
	CoefficientModel

	// Score returns the mean accuracy on the given rows.
	Score(X, y mat.Matrix) (float64, error)
}

// Transformer learns a column transform and applies it.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
