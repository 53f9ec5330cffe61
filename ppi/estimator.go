// Package ppi implements prediction-powered inference for logistic
// regression. A fit on machine labels over every row is corrected by the
// difference between expert-label and machine-label fits on the rows that
// carry an expert label:
//
//	β_ppi = β̂(X, Ŷ) + (β(X[S], Y[S]) - β̃(X[S], Ŷ[S]))
package ppi

import (
	"github.com/YuminosukeSato/ppilogit/linear"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Sub-fit names attached to errors returned by FitPPI.
const (
	SubFitImputed            = "imputed"
	SubFitRectifierPredicted = "rectifier_predicted"
	SubFitRectifierTrue      = "rectifier_true"
)

// minSelected is the smallest expert subset that can carry both label values.
const minSelected = 2

type config struct {
	parallel  bool
	logitOpts []linear.LogitOption
}

// Option configures FitPPI and Estimate.
type Option func(*config)

// WithParallel runs the three sub-fits concurrently. The result is the same
// as the sequential path, including which error is reported first.
func WithParallel(enabled bool) Option {
	return func(c *config) {
		c.parallel = enabled
	}
}

// WithLogitOptions forwards options to every sub-fit.
func WithLogitOptions(opts ...linear.LogitOption) Option {
	return func(c *config) {
		c.logitOpts = append(c.logitOpts, opts...)
	}
}

// Result holds the PPI estimate together with its three sub-fits. Every
// coefficient vector has the intercept at index 0.
type Result struct {
	// Coef is Imputed + Rectifier.
	Coef []float64
	// Imputed is the fit on machine labels over all rows.
	Imputed []float64
	// RectifierPredicted is the fit on machine labels over the expert rows.
	RectifierPredicted []float64
	// RectifierTrue is the fit on expert labels over the expert rows.
	RectifierTrue []float64
	// Rectifier is RectifierTrue - RectifierPredicted.
	Rectifier []float64

	// Retried names the sub-fits, in fit order, whose first Newton attempt
	// did not converge and that were refitted from zero.
	Retried []string
	// RetryIterations holds the iterations of each refit in Retried.
	RetryIterations []int

	NTotal    int
	NLabelled int
}

// Warnings returns one ConvergenceWarning per sub-fit in Retried.
func (r *Result) Warnings() []*errors.ConvergenceWarning {
	var warnings []*errors.ConvergenceWarning
	for i, name := range r.Retried {
		warnings = append(warnings, errors.NewConvergenceWarning("FitPPI", name, r.RetryIterations[i]))
	}
	return warnings
}

// FitPPI returns the prediction-powered logistic regression coefficients,
// intercept first. y is only read on rows where selected is true; yhat must
// be 0 or 1 on every row.
//
// Shape, label and mask problems fail with errors.ErrInvalidInput before any
// fit runs. A failing sub-fit is returned with its name (SubFitImputed,
// SubFitRectifierPredicted or SubFitRectifierTrue) recorded on the
// *errors.DegenerateFitError or *errors.NonConvergenceError.
func FitPPI(X mat.Matrix, y, yhat []float64, selected []bool, opts ...Option) ([]float64, error) {
	res, err := Estimate(X, y, yhat, selected, opts...)
	if err != nil {
		return nil, err
	}
	return res.Coef, nil
}

// Estimate is FitPPI returning every intermediate fit.
func Estimate(X mat.Matrix, y, yhat []float64, selected []bool, opts ...Option) (*Result, error) {
	const op = "FitPPI"

	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	nLabelled, err := validateInputs(op, X, y, yhat, selected)
	if err != nil {
		return nil, err
	}
	n, _ := X.Dims()

	XS, labels := linear.SelectRows(X, selected, y, yhat)
	yS, yhatS := labels[0], labels[1]

	type subFit struct {
		name string
		X    mat.Matrix
		y    []float64
	}
	jobs := []subFit{
		{SubFitImputed, X, yhat},
		{SubFitRectifierPredicted, XS, yhatS},
		{SubFitRectifierTrue, XS, yS},
	}
	fits := make([]*linear.LogitFit, len(jobs))
	errs := make([]error, len(jobs))

	run := func(i int) {
		j := jobs[i]
		errs[i] = errors.SafeExecute(op+" "+j.name, func() error {
			var err error
			fits[i], err = linear.FitLogitDetailed(j.X, j.y, cfg.logitOpts...)
			return err
		})
	}

	if cfg.parallel {
		var g errgroup.Group
		for i := range jobs {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range jobs {
			run(i)
			if errs[i] != nil {
				break
			}
		}
	}
	for i, err := range errs {
		if err != nil {
			return nil, errors.TagSubFit(err, jobs[i].name)
		}
	}

	res := &Result{
		Imputed:            fits[0].Coef,
		RectifierPredicted: fits[1].Coef,
		RectifierTrue:      fits[2].Coef,
		NTotal:             n,
		NLabelled:          nLabelled,
	}
	for i, fit := range fits {
		if fit.Retried {
			res.Retried = append(res.Retried, jobs[i].name)
			res.RetryIterations = append(res.RetryIterations, fit.Iterations)
		}
	}
	res.Rectifier = make([]float64, len(res.Imputed))
	floats.SubTo(res.Rectifier, res.RectifierTrue, res.RectifierPredicted)
	res.Coef = make([]float64, len(res.Imputed))
	floats.AddTo(res.Coef, res.Imputed, res.Rectifier)
	return res, nil
}

// validateInputs checks shapes, labels and the mask, and returns the number
// of selected rows.
func validateInputs(op string, X mat.Matrix, y, yhat []float64, selected []bool) (int, error) {
	if err := linear.ValidateFeatures(op, X); err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	if len(selected) != n {
		return 0, errors.NewInvalidInputError(op, "selected", "mask length does not match the number of rows in X", len(selected))
	}
	if err := linear.ValidateLabels(op, "yhat", yhat, n, nil); err != nil {
		return 0, err
	}
	if err := linear.ValidateLabels(op, "y", y, n, selected); err != nil {
		return 0, err
	}

	nLabelled := 0
	for _, s := range selected {
		if s {
			nLabelled++
		}
	}
	if nLabelled < minSelected {
		return 0, errors.NewInvalidInputError(op, "selected", "at least 2 rows must carry an expert label", nLabelled)
	}
	return nLabelled, nil
}
