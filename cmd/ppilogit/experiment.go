package main

import (
	"io"

	"github.com/YuminosukeSato/ppilogit/experiment"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"github.com/spf13/cobra"
)

type experimentOptions struct {
	configPath string
	format     string
	overrides  experiment.Config
}

func newExperimentCmd(a *app) *cobra.Command {
	o := &experimentOptions{}
	def := experiment.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Compare full-data, expert-only and PPI estimates over seeded trials",
		Long: `Runs repeated simulation trials and reports, for every coefficient, the
variance of the three estimators across trials and the ratio of the PPI
variance to the expert-only variance.

Flags override values from --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.format != "text" && o.format != "yaml" {
				return errors.NewInvalidInputError("ppilogit experiment", "format", "must be text or yaml", o.format)
			}
			cfg, err := o.resolve(cmd)
			if err != nil {
				return err
			}
			runner, err := experiment.NewRunner(cfg, a.logger)
			if err != nil {
				return err
			}
			report, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, o.format)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML experiment config")
	f.StringVar(&o.format, "format", "text", "output format: text or yaml")
	f.Uint64Var(&o.overrides.Seed, "seed", def.Seed, "seed of the first trial")
	f.IntVar(&o.overrides.Trials, "trials", def.Trials, "number of trials")
	f.IntVarP(&o.overrides.Samples, "samples", "n", def.Samples, "rows per trial")
	f.IntVarP(&o.overrides.Labelled, "labelled", "k", def.Labelled, "expert-labelled rows per trial")
	f.Float64Var(&o.overrides.Accuracy, "accuracy", def.Accuracy, "machine label accuracy")
	f.IntVar(&o.overrides.Concurrency, "concurrency", def.Concurrency, "trials in flight, 0 for one per CPU")
	f.BoolVar(&o.overrides.ParallelSubFits, "parallel", def.ParallelSubFits, "run the PPI sub-fits concurrently")
	f.StringVar(&o.overrides.PlotPath, "plot", def.PlotPath, "write a PNG bar chart of the variances")
	return cmd
}

// resolve loads the config file, if any, and applies the flags the user set.
func (o *experimentOptions) resolve(cmd *cobra.Command) (experiment.Config, error) {
	cfg := experiment.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = experiment.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	if f.Changed("seed") {
		cfg.Seed = o.overrides.Seed
	}
	if f.Changed("trials") {
		cfg.Trials = o.overrides.Trials
	}
	if f.Changed("samples") {
		cfg.Samples = o.overrides.Samples
	}
	if f.Changed("labelled") {
		cfg.Labelled = o.overrides.Labelled
	}
	if f.Changed("accuracy") {
		cfg.Accuracy = o.overrides.Accuracy
	}
	if f.Changed("concurrency") {
		cfg.Concurrency = o.overrides.Concurrency
	}
	if f.Changed("parallel") {
		cfg.ParallelSubFits = o.overrides.ParallelSubFits
	}
	if f.Changed("plot") {
		cfg.PlotPath = o.overrides.PlotPath
	}
	return cfg, cfg.Validate()
}

func writeReport(w io.Writer, report *experiment.Report, format string) error {
	if format == "yaml" {
		return report.WriteYAML(w)
	}
	return report.WriteText(w)
}
