package ppi

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/ppilogit/linear"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"github.com/YuminosukeSato/ppilogit/simulate"
	"gonum.org/v1/gonum/stat"
)

func TestIntervals_Shape(t *testing.T) {
	ds, mask := generate(t, 21, 2000, 300, 0.9)
	res, err := Estimate(ds.X, ds.YTrue, ds.YPred, mask)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	coef := res.Coef

	inf, err := Intervals(ds.X, ds.YTrue, ds.YPred, mask, res, 0.05)
	if err != nil {
		t.Fatalf("Intervals failed: %v", err)
	}
	if inf.Alpha != 0.05 {
		t.Errorf("Alpha = %v, want 0.05", inf.Alpha)
	}

	z := 1.959963984540054
	for j := range coef {
		se := inf.StdErr[j]
		if !(se > 0) || math.IsInf(se, 0) {
			t.Fatalf("StdErr[%d] = %v, want a positive finite value", j, se)
		}
		if inf.Lower[j] >= coef[j] || inf.Upper[j] <= coef[j] {
			t.Errorf("interval %d = [%v, %v] does not contain %v", j, inf.Lower[j], inf.Upper[j], coef[j])
		}
		if math.Abs((inf.Upper[j]-inf.Lower[j])-2*z*se) > 1e-9 {
			t.Errorf("interval %d has width %v, want %v", j, inf.Upper[j]-inf.Lower[j], 2*z*se)
		}
	}
}

func TestIntervals_NarrowerThanExpertOnly(t *testing.T) {
	// With perfect predictions the rectifier has no variance, so the PPI
	// interval is driven by all 2000 rows instead of the 200 expert rows.
	ds, mask := generate(t, 22, 2000, 200, 1.0)

	res, err := Estimate(ds.X, ds.YTrue, ds.YPred, mask)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	coef := res.Coef
	ppiInf, err := Intervals(ds.X, ds.YTrue, ds.YPred, mask, res, 0.1)
	if err != nil {
		t.Fatalf("Intervals failed: %v", err)
	}

	XS, labels := linear.SelectRows(ds.X, mask, ds.YTrue)
	classical, err := ClassicalIntervals(XS, labels[0], 0.1)
	if err != nil {
		t.Fatalf("ClassicalIntervals failed: %v", err)
	}

	for j := range coef {
		if ppiInf.StdErr[j] >= classical.StdErr[j] {
			t.Errorf("coefficient %d: PPI standard error %.4f not below expert-only %.4f",
				j, ppiInf.StdErr[j], classical.StdErr[j])
		}
	}
}

func TestClassicalIntervals_MatchesLogisticRegression(t *testing.T) {
	ds, _ := generate(t, 23, 500, 1, 0.9)

	inf, err := ClassicalIntervals(ds.X, ds.YTrue, 0.1)
	if err != nil {
		t.Fatalf("ClassicalIntervals failed: %v", err)
	}

	lr := linear.NewLogisticRegression()
	if err := lr.FitVec(ds.X, ds.YTrue); err != nil {
		t.Fatalf("LogisticRegression.FitVec failed: %v", err)
	}
	se := lr.StandardErrors()
	params := lr.Params()
	for j := range se {
		if math.Abs(inf.StdErr[j]-se[j]) > 1e-12 {
			t.Errorf("StdErr[%d] = %v, want %v", j, inf.StdErr[j], se[j])
		}
		if math.Abs(inf.Coef[j]-params[j]) > 1e-12 {
			t.Errorf("Coef[%d] = %v, want %v", j, inf.Coef[j], params[j])
		}
	}
}

func TestIntervals_InvalidInput(t *testing.T) {
	ds, mask := generate(t, 24, 200, 40, 0.9)
	full := make([]float64, 5)
	short := &Result{Coef: full, Imputed: full, RectifierPredicted: full[:4], RectifierTrue: full}
	ok := &Result{Coef: full, Imputed: full, RectifierPredicted: full, RectifierTrue: full}

	tests := []struct {
		name  string
		res   *Result
		alpha float64
	}{
		{"alpha zero", ok, 0},
		{"alpha one", ok, 1},
		{"alpha NaN", ok, math.NaN()},
		{"nil result", nil, 0.1},
		{"sub-fit length", short, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Intervals(ds.X, ds.YTrue, ds.YPred, mask, tt.res, tt.alpha)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if _, err := ClassicalIntervals(ds.X, ds.YTrue, 2); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("ClassicalIntervals alpha 2: expected ErrInvalidInput, got %v", err)
	}
}

// TestIntervals_Coverage repeats a well-specified study and checks that the
// reported standard errors match the spread of the estimates and that the
// 90% intervals cover the generating coefficients at close to that rate.
func TestIntervals_Coverage(t *testing.T) {
	if testing.Short() {
		t.Skip("repeated fits")
	}
	const (
		reps     = 200
		n        = 2000
		labelled = 300
		alpha    = 0.1
	)
	beta := []float64{-0.5, 1, -0.8, 0.6}
	p := len(beta)

	estimates := make([][]float64, p)
	meanSE := make([]float64, p)
	covered := 0
	for r := 0; r < reps; r++ {
		src := simulate.NewSource(uint64(1000 + r))
		ds, err := simulate.GenerateWellSpecified(src, n, beta, 0.8)
		if err != nil {
			t.Fatalf("GenerateWellSpecified failed: %v", err)
		}
		mask, err := simulate.SampleMask(src, n, labelled)
		if err != nil {
			t.Fatalf("SampleMask failed: %v", err)
		}
		res, err := Estimate(ds.X, ds.YTrue, ds.YPred, mask)
		if err != nil {
			t.Fatalf("rep %d: Estimate failed: %v", r, err)
		}
		inf, err := Intervals(ds.X, ds.YTrue, ds.YPred, mask, res, alpha)
		if err != nil {
			t.Fatalf("rep %d: Intervals failed: %v", r, err)
		}
		for j := range beta {
			estimates[j] = append(estimates[j], res.Coef[j])
			meanSE[j] += inf.StdErr[j] / reps
			if inf.Lower[j] <= beta[j] && beta[j] <= inf.Upper[j] {
				covered++
			}
		}
	}

	for j := range beta {
		sd := stat.StdDev(estimates[j], nil)
		if ratio := meanSE[j] / sd; ratio < 0.8 || ratio > 1.25 {
			t.Errorf("coefficient %d: mean standard error %.4f vs spread %.4f (ratio %.2f)", j, meanSE[j], sd, ratio)
		}
	}
	coverage := float64(covered) / float64(reps*p)
	if coverage < 0.84 || coverage > 0.95 {
		t.Errorf("coverage of the 90%% intervals = %.3f", coverage)
	}
}
