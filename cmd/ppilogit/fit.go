package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/YuminosukeSato/ppilogit/dataset"
	"github.com/YuminosukeSato/ppilogit/linear"
	"github.com/YuminosukeSato/ppilogit/metrics"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"github.com/YuminosukeSato/ppilogit/pkg/log"
	"github.com/YuminosukeSato/ppilogit/ppi"
	"github.com/YuminosukeSato/ppilogit/preprocessing"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

type fitOptions struct {
	features []string
	label    string
	pred     string
	expert   string
	alpha    float64
	scale    bool
	parallel bool
	maxIter  int
	tol      float64
	format   string
}

func newFitCmd(a *app) *cobra.Command {
	o := &fitOptions{}
	cmd := &cobra.Command{
		Use:   "fit <file.csv>",
		Short: "Estimate PPI logistic-regression coefficients with confidence intervals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(a, o, args[0], cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&o.features, "features", dataset.DefaultFeatureColumns, "feature columns, in coefficient order")
	f.StringVar(&o.label, "label", dataset.DefaultLabelColumn, "expert label column (empty cell = unlabelled)")
	f.StringVar(&o.pred, "pred", dataset.DefaultPredictionColumn, "machine label column")
	f.StringVar(&o.expert, "expert", dataset.DefaultExpertColumn, "optional column flagging expert rows")
	f.Float64Var(&o.alpha, "alpha", 0.1, "interval level is 1-alpha")
	f.BoolVar(&o.scale, "scale", false, "z-score the features before fitting")
	f.BoolVar(&o.parallel, "parallel", false, "run the three sub-fits concurrently")
	f.IntVar(&o.maxIter, "max-iter", 100, "Newton iteration budget per sub-fit")
	f.Float64Var(&o.tol, "tol", 1e-6, "tolerance on the mean gradient norm")
	f.StringVar(&o.format, "format", "text", "output format: text or yaml")
	return cmd
}

type coefficientRow struct {
	Name            string  `yaml:"name"`
	PPI             float64 `yaml:"ppi"`
	StdErr          float64 `yaml:"std_err"`
	Lower           float64 `yaml:"lower"`
	Upper           float64 `yaml:"upper"`
	Classical       float64 `yaml:"classical"`
	ClassicalStdErr float64 `yaml:"classical_std_err"`
}

type fitOutput struct {
	Source       string            `yaml:"source"`
	Samples      int               `yaml:"samples"`
	Labelled     int               `yaml:"labelled"`
	Scaled       bool              `yaml:"scaled"`
	Alpha        float64           `yaml:"alpha"`
	Agreement    metrics.Agreement `yaml:"agreement"`
	LogLoss      float64           `yaml:"log_loss"`
	Retried      []string          `yaml:"retried,omitempty"`
	Coefficients []coefficientRow  `yaml:"coefficients"`
}

func runFit(a *app, o *fitOptions, path string, stdout io.Writer) error {
	if o.format != "text" && o.format != "yaml" {
		return errors.NewInvalidInputError("ppilogit fit", "format", "must be text or yaml", o.format)
	}
	started := time.Now()
	logger := a.logger.With(log.OperationKey, log.OperationFit, log.SourceKey, path)

	tbl, err := dataset.ReadFile(path, dataset.Options{
		FeatureColumns:   o.features,
		LabelColumn:      o.label,
		PredictionColumn: o.pred,
		ExpertColumn:     o.expert,
	})
	if err != nil {
		logger.Error("Reading dataset failed", err)
		return err
	}

	var X mat.Matrix = tbl.X
	if o.scale {
		scaler := preprocessing.NewStandardScalerDefault()
		if X, err = scaler.FitTransform(tbl.X); err != nil {
			return err
		}
	}

	agreement, err := metrics.LabelAgreement(tbl.Y, tbl.YPred, tbl.Selected)
	if err != nil {
		return err
	}
	logger.Info("Loaded dataset",
		log.SamplesKey, len(tbl.YPred),
		log.FeaturesKey, len(tbl.FeatureNames),
		log.LabelledKey, agreement.Total,
		log.AccuracyKey, agreement.Rate,
		log.KappaKey, agreement.Kappa,
	)

	logitOpts := []linear.LogitOption{linear.WithMaxIter(o.maxIter), linear.WithTol(o.tol)}
	model := ppi.NewPPILogisticRegression(
		ppi.WithAlpha(o.alpha),
		ppi.WithPPIParallel(o.parallel),
		ppi.WithPPILogitOptions(logitOpts...),
	)
	if err := model.Fit(X, tbl.Y, tbl.YPred, tbl.Selected); err != nil {
		logger.Error("PPI fit failed", err)
		return err
	}
	for _, w := range model.Result().Warnings() {
		errors.Warn(w)
	}

	sub, labels := linear.SelectRows(X, tbl.Selected, tbl.Y)
	classical, err := ppi.ClassicalIntervals(sub, labels[0], o.alpha, logitOpts...)
	if err != nil {
		logger.Error("Expert-only fit failed", err)
		return err
	}

	proba, err := model.PredictProba(sub)
	if err != nil {
		return err
	}
	logLoss, err := metrics.LogLoss(labels[0], mat.Col(nil, 1, proba))
	if err != nil {
		return err
	}

	inf := model.Inference()
	out := fitOutput{
		Source:    path,
		Samples:   len(tbl.YPred),
		Labelled:  agreement.Total,
		Scaled:    o.scale,
		Alpha:     o.alpha,
		Agreement: agreement,
		LogLoss:   logLoss,
		Retried:   model.Result().Retried,
	}
	for j := range inf.Coef {
		name := "intercept"
		if j > 0 {
			name = tbl.FeatureNames[j-1]
		}
		out.Coefficients = append(out.Coefficients, coefficientRow{
			Name:            name,
			PPI:             inf.Coef[j],
			StdErr:          inf.StdErr[j],
			Lower:           inf.Lower[j],
			Upper:           inf.Upper[j],
			Classical:       classical.Coef[j],
			ClassicalStdErr: classical.StdErr[j],
		})
	}
	logger.Info("Fit finished", log.CoefficientKey, inf.Coef, log.DurationMsKey, time.Since(started).Milliseconds())

	if o.format == "yaml" {
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return errors.Wrap(err, "encode fit output")
		}
		return errors.Wrap(enc.Close(), "encode fit output")
	}
	return writeFitText(stdout, out)
}

func writeFitText(w io.Writer, out fitOutput) error {
	fmt.Fprintf(w, "rows: %d, expert-labelled: %d, label agreement: %.3f (kappa %.3f)\nppi log loss on expert rows: %.4f\n\n",
		out.Samples, out.Labelled, out.Agreement.Rate, out.Agreement.Kappa, out.LogLoss)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	level := 100 * (1 - out.Alpha)
	fmt.Fprintf(tw, "coef\tppi\tstd err\t%.0f%% lower\t%.0f%% upper\texpert only\tstd err\t\n", level, level)
	for _, r := range out.Coefficients {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t\n",
			r.Name, r.PPI, r.StdErr, r.Lower, r.Upper, r.Classical, r.ClassicalStdErr)
	}
	return errors.Wrap(tw.Flush(), "write fit output")
}
