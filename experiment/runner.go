// Package experiment repeats the simulation study behind prediction-powered
// inference: for each seeded trial it generates a synthetic corpus, draws the
// expert-labelled subset and fits the full-data, expert-only and PPI
// estimators. Trials run concurrently on a bounded errgroup.
package experiment

import (
	"context"
	"runtime"
	"time"

	"github.com/YuminosukeSato/ppilogit/linear"
	"github.com/YuminosukeSato/ppilogit/metrics"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"github.com/YuminosukeSato/ppilogit/pkg/log"
	"github.com/YuminosukeSato/ppilogit/ppi"
	"github.com/YuminosukeSato/ppilogit/simulate"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Trial holds the three coefficient vectors of one seeded run.
type Trial struct {
	Index     int               `json:"index" yaml:"index"`
	Seed      uint64            `json:"seed" yaml:"seed"`
	Full      []float64         `json:"full" yaml:"full"`
	Expert    []float64         `json:"expert" yaml:"expert"`
	PPI       []float64         `json:"ppi" yaml:"ppi"`
	Agreement metrics.Agreement `json:"agreement" yaml:"agreement"`

	// 1-Alpha intervals of the expert-only and PPI estimates.
	ExpertInterval *ppi.Inference `json:"-" yaml:"-"`
	PPIInterval    *ppi.Inference `json:"-" yaml:"-"`

	// Warnings lists fits that converged only after the refit from zero.
	Warnings []error `json:"-" yaml:"-"`
	// Err is set when a fit was degenerate or did not converge.
	Err error `json:"-" yaml:"-"`
}

// Runner executes the trials of a Config.
type Runner struct {
	cfg    Config
	logger log.Logger
}

// NewRunner validates cfg. A nil logger falls back to the default slog logger.
func NewRunner(cfg Config, logger log.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Runner{cfg: cfg, logger: logger.With(log.ComponentKey, "experiment")}, nil
}

// Run executes every trial and summarises them. Trials whose fits are
// degenerate or do not converge are logged and excluded from the summary;
// any other error cancels the remaining trials.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	started := time.Now()

	workers := r.cfg.Concurrency
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	logger.Info("Starting experiment",
		log.TrialsKey, r.cfg.Trials,
		log.SamplesKey, r.cfg.Samples,
		log.LabelledKey, r.cfg.Labelled,
		log.AccuracyKey, r.cfg.Accuracy,
		log.RandomSeedKey, r.cfg.Seed,
	)

	trials := make([]Trial, r.cfg.Trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trials {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return errors.SafeExecute("experiment.trial", func() error {
				t, err := r.runTrial(i)
				trials[i] = t
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("Experiment aborted", err)
		return nil, err
	}

	forwardWarnings(trials)
	for _, t := range trials {
		if t.Err != nil {
			logger.Warn("Trial skipped", t.Err, log.TrialKey, t.Index, log.RandomSeedKey, t.Seed)
		} else {
			logger.Debug("Trial finished", log.TrialKey, t.Index, log.KappaKey, t.Agreement.Kappa)
		}
	}

	report, err := summarize(r.cfg, trials)
	if err != nil {
		logger.Error("Experiment summary failed", err)
		return nil, err
	}
	report.RunID = runID
	if r.cfg.PlotPath != "" {
		if err := report.SavePlot(r.cfg.PlotPath); err != nil {
			logger.Error("Saving variance plot failed", err, log.OutputPathKey, r.cfg.PlotPath)
			return nil, err
		}
		logger.Info("Saved variance plot", log.OutputPathKey, r.cfg.PlotPath)
	}
	logger.Info("Experiment finished",
		log.VarianceRatioKey, report.VarianceRatio,
		log.CloserShareKey, report.CloserShare,
		log.CoverageKey, report.PPICoverage,
		"skipped", report.Skipped,
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)
	return report, nil
}

// forwardWarnings passes every trial warning to errors.Warn in trial order.
func forwardWarnings(trials []Trial) {
	for _, t := range trials {
		for _, w := range t.Warnings {
			errors.Warn(errors.Wrapf(w, "trial %d", t.Index))
		}
	}
}

// runTrial returns a Trial with Err set for fit failures, and a non-nil
// error only for failures that should stop the run.
func (r *Runner) runTrial(i int) (Trial, error) {
	t := Trial{Index: i, Seed: r.cfg.Seed + uint64(i)}

	src := simulate.NewSource(t.Seed)
	ds, err := simulate.Generate(src, r.cfg.Samples, r.cfg.Accuracy)
	if err != nil {
		return t, err
	}
	mask, err := simulate.SampleMask(src, r.cfg.Samples, r.cfg.Labelled)
	if err != nil {
		return t, err
	}
	if t.Agreement, err = metrics.LabelAgreement(ds.YTrue, ds.YPred, mask); err != nil {
		return t, err
	}

	fits := []struct {
		method string
		fit    func() error
	}{
		{log.MethodFull, func() error {
			fit, err := linear.FitLogitDetailed(ds.X, ds.YTrue)
			if err != nil {
				return err
			}
			if fit.Retried {
				t.Warnings = append(t.Warnings, errors.NewConvergenceWarning("experiment "+log.MethodFull, "", fit.Iterations))
			}
			t.Full = fit.Coef
			return nil
		}},
		{log.MethodExpert, func() error {
			sub, labels := linear.SelectRows(ds.X, mask, ds.YTrue)
			inf, err := ppi.ClassicalIntervals(sub, labels[0], r.cfg.Alpha)
			if err != nil {
				return err
			}
			t.Expert, t.ExpertInterval = inf.Coef, inf
			return nil
		}},
		{log.MethodPPI, func() error {
			res, err := ppi.Estimate(ds.X, ds.YTrue, ds.YPred, mask, ppi.WithParallel(r.cfg.ParallelSubFits))
			if err != nil {
				return err
			}
			for _, w := range res.Warnings() {
				t.Warnings = append(t.Warnings, w)
			}
			inf, err := ppi.Intervals(ds.X, ds.YTrue, ds.YPred, mask, res, r.cfg.Alpha)
			if err != nil {
				return err
			}
			t.PPI, t.PPIInterval = res.Coef, inf
			return nil
		}},
	}
	for _, f := range fits {
		err := f.fit()
		if errors.Is(err, errors.ErrDegenerateFit) || errors.Is(err, errors.ErrNonConvergence) {
			t.Err = errors.Wrapf(err, "%s fit", f.method)
			return t, nil
		}
		if err != nil {
			return t, err
		}
	}
	return t, nil
}
