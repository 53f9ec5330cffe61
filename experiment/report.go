package experiment

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/YuminosukeSato/ppilogit/metrics"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"github.com/YuminosukeSato/ppilogit/ppi"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Report summarises the successful trials of a run.
type Report struct {
	RunID  string `json:"run_id" yaml:"run_id"`
	Config Config `json:"config" yaml:"config"`

	Trials   []Trial `json:"-" yaml:"-"`
	Used     int     `json:"used" yaml:"used"`
	Skipped  int     `json:"skipped" yaml:"skipped"`
	Warnings int     `json:"warnings" yaml:"warnings"`

	// Per-coefficient sample variances across trials, intercept first.
	FullVariance   []float64 `json:"full_variance" yaml:"full_variance"`
	ExpertVariance []float64 `json:"expert_variance" yaml:"expert_variance"`
	PPIVariance    []float64 `json:"ppi_variance" yaml:"ppi_variance"`
	// VarianceRatio is PPIVariance / ExpertVariance.
	VarianceRatio []float64 `json:"variance_ratio" yaml:"variance_ratio"`

	// Per-coefficient share of trials whose 1-Alpha interval contains the
	// full-data estimate, and the mean interval width.
	ExpertCoverage []float64 `json:"expert_coverage" yaml:"expert_coverage"`
	PPICoverage    []float64 `json:"ppi_coverage" yaml:"ppi_coverage"`
	ExpertWidth    []float64 `json:"expert_width" yaml:"expert_width"`
	PPIWidth       []float64 `json:"ppi_width" yaml:"ppi_width"`

	// CloserShare is the share of trials in which the PPI estimate is closer
	// to the full-data estimate than the expert-only estimate is.
	CloserShare float64 `json:"closer_share" yaml:"closer_share"`

	// Mean coefficient RMSE against the full-data estimate.
	ExpertRMSE float64 `json:"expert_rmse" yaml:"expert_rmse"`
	PPIRMSE    float64 `json:"ppi_rmse" yaml:"ppi_rmse"`

	MeanKappa float64 `json:"mean_kappa" yaml:"mean_kappa"`
	MeanAgree float64 `json:"mean_agreement" yaml:"mean_agreement"`
}

// intervalSummary accumulates coverage of and width of intervals around a
// reference estimate.
type intervalSummary struct {
	coverage []float64
	width    []float64
}

func (s *intervalSummary) add(inf *ppi.Inference, reference []float64) {
	if s.coverage == nil {
		s.coverage = make([]float64, len(reference))
		s.width = make([]float64, len(reference))
	}
	for j, ref := range reference {
		if inf.Lower[j] <= ref && ref <= inf.Upper[j] {
			s.coverage[j]++
		}
		s.width[j] += inf.Upper[j] - inf.Lower[j]
	}
}

func (s *intervalSummary) mean(n int) {
	floats.Scale(1/float64(n), s.coverage)
	floats.Scale(1/float64(n), s.width)
}

func summarize(cfg Config, trials []Trial) (*Report, error) {
	rep := &Report{Config: cfg, Trials: trials}

	var full, expert, ppiCoef [][]float64
	var expertIntervals, ppiIntervals intervalSummary
	closer, withIntervals := 0, 0
	for _, t := range trials {
		rep.Warnings += len(t.Warnings)
		if t.Err != nil {
			rep.Skipped++
			continue
		}
		full = append(full, t.Full)
		expert = append(expert, t.Expert)
		ppiCoef = append(ppiCoef, t.PPI)

		dPPI, err := metrics.EuclideanDistance(t.PPI, t.Full)
		if err != nil {
			return nil, err
		}
		dExpert, err := metrics.EuclideanDistance(t.Expert, t.Full)
		if err != nil {
			return nil, err
		}
		if dPPI < dExpert {
			closer++
		}

		ref := mat.NewVecDense(len(t.Full), t.Full)
		eRMSE, err := metrics.RMSE(ref, mat.NewVecDense(len(t.Expert), t.Expert))
		if err != nil {
			return nil, err
		}
		pRMSE, err := metrics.RMSE(ref, mat.NewVecDense(len(t.PPI), t.PPI))
		if err != nil {
			return nil, err
		}
		rep.ExpertRMSE += eRMSE
		rep.PPIRMSE += pRMSE

		if t.ExpertInterval != nil && t.PPIInterval != nil {
			expertIntervals.add(t.ExpertInterval, t.Full)
			ppiIntervals.add(t.PPIInterval, t.Full)
			withIntervals++
		}
		rep.MeanKappa += t.Agreement.Kappa
		rep.MeanAgree += t.Agreement.Rate
	}
	rep.Used = len(full)
	if rep.Used < 2 {
		return nil, errors.Newf("experiment: only %d of %d trials succeeded, need at least 2", rep.Used, len(trials))
	}
	rep.CloserShare = float64(closer) / float64(rep.Used)
	rep.ExpertRMSE /= float64(rep.Used)
	rep.PPIRMSE /= float64(rep.Used)
	rep.MeanKappa /= float64(rep.Used)
	rep.MeanAgree /= float64(rep.Used)
	if withIntervals > 0 {
		expertIntervals.mean(withIntervals)
		ppiIntervals.mean(withIntervals)
		rep.ExpertCoverage, rep.ExpertWidth = expertIntervals.coverage, expertIntervals.width
		rep.PPICoverage, rep.PPIWidth = ppiIntervals.coverage, ppiIntervals.width
	}

	var err error
	if rep.FullVariance, err = metrics.CoefficientVariances(full); err != nil {
		return nil, err
	}
	if rep.ExpertVariance, err = metrics.CoefficientVariances(expert); err != nil {
		return nil, err
	}
	if rep.PPIVariance, err = metrics.CoefficientVariances(ppiCoef); err != nil {
		return nil, err
	}
	if rep.VarianceRatio, err = metrics.VarianceRatio(rep.PPIVariance, rep.ExpertVariance); err != nil {
		return nil, err
	}
	return rep, nil
}

// coefficientName returns "intercept" for 0 and "x<j>" otherwise.
func coefficientName(j int) string {
	if j == 0 {
		return "intercept"
	}
	return "x" + strconv.Itoa(j)
}

// WriteText renders the per-coefficient variances as an aligned table.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "coef\tvar(full)\tvar(expert)\tvar(ppi)\tratio\t\n")
	for j := range r.PPIVariance {
		fmt.Fprintf(tw, "%s\t%.5f\t%.5f\t%.5f\t%.3f\t\n", coefficientName(j),
			r.FullVariance[j], r.ExpertVariance[j], r.PPIVariance[j], r.VarianceRatio[j])
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "write report")
	}

	if len(r.PPICoverage) > 0 {
		fmt.Fprintf(w, "\n%.0f%% intervals, coverage of the full-data estimate\n", 100*(1-r.Config.Alpha))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(tw, "coef\tcover(expert)\tcover(ppi)\twidth(expert)\twidth(ppi)\t\n")
		for j := range r.PPICoverage {
			fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.4f\t%.4f\t\n", coefficientName(j),
				r.ExpertCoverage[j], r.PPICoverage[j], r.ExpertWidth[j], r.PPIWidth[j])
		}
		if err := tw.Flush(); err != nil {
			return errors.Wrap(err, "write report")
		}
	}
	_, err := fmt.Fprintf(w, "\ntrials used: %d (skipped %d, %d convergence warnings)\nppi closer to full fit: %.1f%%\nrmse vs full fit: expert %.4f, ppi %.4f\nmean label agreement: %.3f (kappa %.3f)\n",
		r.Used, r.Skipped, r.Warnings, 100*r.CloserShare, r.ExpertRMSE, r.PPIRMSE, r.MeanAgree, r.MeanKappa)
	return errors.Wrap(err, "write report")
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "encode report")
	}
	return errors.Wrap(enc.Close(), "encode report")
}
