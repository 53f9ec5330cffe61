package main

import (
	"io"
	"math"
	"os"

	"github.com/YuminosukeSato/ppilogit/dataset"
	"github.com/YuminosukeSato/ppilogit/metrics"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"github.com/YuminosukeSato/ppilogit/pkg/log"
	"github.com/YuminosukeSato/ppilogit/simulate"
	"github.com/spf13/cobra"
)

// simulatedFeatures names the columns of simulate.Generate's X.
var simulatedFeatures = []string{"x1", "x1_sq", "x2", "x4"}

type simulateOptions struct {
	samples  int
	labelled int
	accuracy float64
	seed     uint64
	out      string
}

func newSimulateCmd(a *app) *cobra.Command {
	o := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic corpus with expert and machine labels as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(a, o, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.IntVarP(&o.samples, "samples", "n", 1000, "number of rows")
	f.IntVarP(&o.labelled, "labelled", "k", 200, "number of rows that keep their expert label")
	f.Float64Var(&o.accuracy, "accuracy", 0.9, "probability that a machine label matches the expert label")
	f.Uint64Var(&o.seed, "seed", 42, "random seed")
	f.StringVarP(&o.out, "out", "o", "-", "output CSV path, - for stdout")
	return cmd
}

func runSimulate(a *app, o *simulateOptions, stdout io.Writer) error {
	src := simulate.NewSource(o.seed)
	ds, err := simulate.Generate(src, o.samples, o.accuracy)
	if err != nil {
		return err
	}
	mask, err := simulate.SampleMask(src, o.samples, o.labelled)
	if err != nil {
		return err
	}

	// Unselected rows lose their expert label, as in a real corpus.
	y := make([]float64, len(ds.YTrue))
	for i, v := range ds.YTrue {
		y[i] = math.NaN()
		if mask[i] {
			y[i] = v
		}
	}
	tbl := &dataset.Table{
		FeatureNames: simulatedFeatures,
		X:            ds.X,
		Y:            y,
		YPred:        ds.YPred,
		Selected:     mask,
	}

	if err := writeTable(o.out, stdout, tbl); err != nil {
		return err
	}

	agreement, err := metrics.LabelAgreement(ds.YTrue, ds.YPred, nil)
	if err != nil {
		return err
	}
	a.logger.Info("Generated synthetic corpus",
		log.OperationKey, log.OperationSimulate,
		log.SamplesKey, o.samples,
		log.LabelledKey, o.labelled,
		log.AccuracyKey, agreement.Rate,
		log.RandomSeedKey, o.seed,
		log.OutputPathKey, o.out,
	)
	return nil
}

// writeTable writes tbl as CSV to path, or to stdout when path is "-".
func writeTable(path string, stdout io.Writer, tbl *dataset.Table) (err error) {
	if path == "-" {
		return dataset.WriteCSV(stdout, tbl)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return dataset.WriteCSV(f, tbl)
}
