// Package ppilogit estimates logistic-regression coefficients with
// prediction-powered inference (PPI): a small set of rows carries a trusted
// expert label, every row carries a cheaper machine label, and the two are
// combined into an estimate that is unbiased like the expert-only fit but
// less variable.
//
// # Quick Start
//
//	src := simulate.NewSource(42)
//	ds, _ := simulate.Generate(src, 1000, 0.9)
//	mask, _ := simulate.SampleMask(src, 1000, 200)
//
//	coef, err := ppi.FitPPI(ds.X, ds.YTrue, ds.YPred, mask)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("intercept:", coef[0], "weights:", coef[1:])
//
// The estimate is β̂ + (β_true − β̃): the fit on all machine labels plus the
// difference between the expert-label and machine-label fits on the expert
// rows. With perfect machine labels it equals the full-data fit exactly.
//
// # Packages
//
//   - linear: maximum-likelihood logistic regression (Newton/IRLS) and the
//     LogisticRegression estimator
//   - ppi: FitPPI, Estimate, confidence intervals and PPILogisticRegression
//   - simulate: synthetic corpora with correlated covariates and noisy labels
//   - dataset: CSV input/output of labelled corpora
//   - experiment: repeated seeded trials comparing the estimators
//   - metrics: label agreement, log loss and estimator variance summaries
//   - preprocessing: StandardScaler
//   - core/model, core/parallel: estimator interfaces and chunked workers
//   - pkg/errors, pkg/log: error taxonomy and structured logging
//
// # Errors
//
// Failures are reported through pkg/errors and can be matched with
// errors.Is against ErrInvalidInput, ErrDegenerateFit and ErrNonConvergence.
// Errors from FitPPI name the sub-fit that failed (imputed,
// rectifier_predicted or rectifier_true).
//
// The command-line tool lives in cmd/ppilogit.
package ppilogit
