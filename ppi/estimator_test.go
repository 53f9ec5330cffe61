package ppi

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/ppilogit/linear"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"github.com/YuminosukeSato/ppilogit/simulate"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func generate(t *testing.T, seed uint64, n, k int, accuracy float64) (*simulate.Dataset, []bool) {
	t.Helper()
	src := simulate.NewSource(seed)
	ds, err := simulate.Generate(src, n, accuracy)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	mask, err := simulate.SampleMask(src, n, k)
	if err != nil {
		t.Fatalf("SampleMask failed: %v", err)
	}
	return ds, mask
}

func TestFitPPI_PerfectPredictionsMatchFullFit(t *testing.T) {
	ds, mask := generate(t, 1, 1000, 200, 1.0)

	full, err := linear.FitLogit(ds.X, ds.YTrue)
	if err != nil {
		t.Fatalf("FitLogit failed: %v", err)
	}

	for _, par := range []bool{false, true} {
		got, err := FitPPI(ds.X, ds.YTrue, ds.YPred, mask, WithParallel(par))
		if err != nil {
			t.Fatalf("FitPPI(parallel=%v) failed: %v", par, err)
		}
		for j := range full {
			if got[j] != full[j] {
				t.Errorf("parallel=%v coefficient %d: PPI %v, full fit %v", par, j, got[j], full[j])
			}
		}
	}
}

func TestEstimate_Composition(t *testing.T) {
	ds, mask := generate(t, 2, 1000, 200, 0.9)

	res, err := Estimate(ds.X, ds.YTrue, ds.YPred, mask)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if res.NTotal != 1000 || res.NLabelled != 200 {
		t.Errorf("counts = (%d, %d), want (1000, 200)", res.NTotal, res.NLabelled)
	}

	XS, labels := linear.SelectRows(ds.X, mask, ds.YTrue, ds.YPred)
	wantTrue, err := linear.FitLogit(XS, labels[0])
	if err != nil {
		t.Fatalf("FitLogit failed: %v", err)
	}
	wantPred, err := linear.FitLogit(XS, labels[1])
	if err != nil {
		t.Fatalf("FitLogit failed: %v", err)
	}
	wantImputed, err := linear.FitLogit(ds.X, ds.YPred)
	if err != nil {
		t.Fatalf("FitLogit failed: %v", err)
	}

	if !floats.Equal(res.RectifierTrue, wantTrue) {
		t.Errorf("RectifierTrue = %v, want %v", res.RectifierTrue, wantTrue)
	}
	if !floats.Equal(res.RectifierPredicted, wantPred) {
		t.Errorf("RectifierPredicted = %v, want %v", res.RectifierPredicted, wantPred)
	}
	if !floats.Equal(res.Imputed, wantImputed) {
		t.Errorf("Imputed = %v, want %v", res.Imputed, wantImputed)
	}
	for j := range res.Coef {
		want := wantImputed[j] + (wantTrue[j] - wantPred[j])
		if math.Abs(res.Coef[j]-want) > 1e-12 {
			t.Errorf("Coef[%d] = %v, want imputed + true - predicted = %v", j, res.Coef[j], want)
		}
	}

	par, err := Estimate(ds.X, ds.YTrue, ds.YPred, mask, WithParallel(true))
	if err != nil {
		t.Fatalf("parallel Estimate failed: %v", err)
	}
	if !floats.Equal(par.Coef, res.Coef) {
		t.Errorf("parallel Coef = %v, sequential %v", par.Coef, res.Coef)
	}
}

func TestFitPPI_OutputLength(t *testing.T) {
	for _, k := range []int{50, 200, 1000} {
		ds, mask := generate(t, 3, 1000, k, 0.9)
		coef, err := FitPPI(ds.X, ds.YTrue, ds.YPred, mask)
		if err != nil {
			t.Fatalf("k=%d: FitPPI failed: %v", k, err)
		}
		if len(coef) != 5 {
			t.Errorf("k=%d: got %d coefficients, want 5", k, len(coef))
		}
	}
}

func TestFitPPI_IgnoresUnselectedLabels(t *testing.T) {
	ds, mask := generate(t, 4, 500, 100, 0.9)

	want, err := FitPPI(ds.X, ds.YTrue, ds.YPred, mask)
	if err != nil {
		t.Fatalf("FitPPI failed: %v", err)
	}

	y := append([]float64(nil), ds.YTrue...)
	for i := range y {
		if !mask[i] {
			y[i] = math.NaN()
		}
	}
	got, err := FitPPI(ds.X, y, ds.YPred, mask)
	if err != nil {
		t.Fatalf("FitPPI with NaN on unlabelled rows failed: %v", err)
	}
	if !floats.Equal(got, want) {
		t.Errorf("unselected labels changed the estimate: %v vs %v", got, want)
	}
}

func TestFitPPI_DegenerateSubFit(t *testing.T) {
	ds, mask := generate(t, 5, 400, 80, 0.9)

	constantOnMask := func(v []float64, value float64) []float64 {
		out := append([]float64(nil), v...)
		for i := range out {
			if mask[i] {
				out[i] = value
			}
		}
		return out
	}
	allOnes := make([]float64, 400)
	for i := range allOnes {
		allOnes[i] = 1
	}

	tests := []struct {
		name   string
		y      []float64
		yhat   []float64
		subFit string
	}{
		{"constant machine labels everywhere", ds.YTrue, allOnes, SubFitImputed},
		{"constant machine labels on expert rows", ds.YTrue, constantOnMask(ds.YPred, 1), SubFitRectifierPredicted},
		{"constant expert labels", constantOnMask(ds.YTrue, 0), ds.YPred, SubFitRectifierTrue},
	}

	for _, tt := range tests {
		for _, par := range []bool{false, true} {
			_, err := FitPPI(ds.X, tt.y, tt.yhat, mask, WithParallel(par))
			if !errors.Is(err, errors.ErrDegenerateFit) {
				t.Fatalf("%s (parallel=%v): expected ErrDegenerateFit, got %v", tt.name, par, err)
			}
			var degErr *errors.DegenerateFitError
			if !errors.As(err, &degErr) {
				t.Fatalf("%s: expected *DegenerateFitError, got %T", tt.name, err)
			}
			if degErr.SubFit != tt.subFit {
				t.Errorf("%s (parallel=%v): SubFit = %q, want %q", tt.name, par, degErr.SubFit, tt.subFit)
			}
		}
	}
}

func TestFitPPI_NonConvergenceIsTagged(t *testing.T) {
	ds, mask := generate(t, 6, 400, 80, 0.9)

	_, err := FitPPI(ds.X, ds.YTrue, ds.YPred, mask, WithLogitOptions(linear.WithMaxIter(1)))
	var convErr *errors.NonConvergenceError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *NonConvergenceError, got %v", err)
	}
	if convErr.SubFit != SubFitImputed {
		t.Errorf("SubFit = %q, want %q", convErr.SubFit, SubFitImputed)
	}
}

func TestFitPPI_InvalidInput(t *testing.T) {
	ds, mask := generate(t, 7, 100, 20, 0.9)

	badYhat := append([]float64(nil), ds.YPred...)
	badYhat[0] = 2
	badY := append([]float64(nil), ds.YTrue...)
	for i := range mask {
		if mask[i] {
			badY[i] = 0.5
			break
		}
	}
	oneSelected := make([]bool, 100)
	oneSelected[3] = true
	badX := mat.DenseCopyOf(ds.X)
	badX.Set(10, 1, math.Inf(-1))

	tests := []struct {
		name     string
		X        mat.Matrix
		y, yhat  []float64
		selected []bool
	}{
		{"y length", ds.X, ds.YTrue[:99], ds.YPred, mask},
		{"yhat length", ds.X, ds.YTrue, ds.YPred[:99], mask},
		{"mask length", ds.X, ds.YTrue, ds.YPred, mask[:99]},
		{"yhat not binary", ds.X, ds.YTrue, badYhat, mask},
		{"selected y not binary", ds.X, badY, ds.YPred, mask},
		{"fewer than two selected", ds.X, ds.YTrue, ds.YPred, oneSelected},
		{"non-finite feature", badX, ds.YTrue, ds.YPred, mask},
		{"nil X", nil, ds.YTrue, ds.YPred, mask},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitPPI(tt.X, tt.y, tt.yhat, tt.selected)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestFitPPI_DoesNotMutateInputs(t *testing.T) {
	ds, mask := generate(t, 8, 300, 60, 0.9)
	X := mat.DenseCopyOf(ds.X)
	y := append([]float64(nil), ds.YTrue...)
	yhat := append([]float64(nil), ds.YPred...)
	sel := append([]bool(nil), mask...)

	if _, err := FitPPI(ds.X, ds.YTrue, ds.YPred, mask, WithParallel(true)); err != nil {
		t.Fatalf("FitPPI failed: %v", err)
	}
	if !mat.Equal(X, ds.X) || !floats.Equal(y, ds.YTrue) || !floats.Equal(yhat, ds.YPred) {
		t.Error("FitPPI modified its inputs")
	}
	for i := range sel {
		if sel[i] != mask[i] {
			t.Fatalf("FitPPI modified the mask at %d", i)
		}
	}
}

func TestFitPPI_VarianceBelowExpertOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping repeated-draw variance check in short mode")
	}

	const reps = 200
	ppiCoefs := make([][]float64, 5)
	expertCoefs := make([][]float64, 5)

	for r := 0; r < reps; r++ {
		ds, mask := generate(t, uint64(1000+r), 1000, 200, 0.9)

		coef, err := FitPPI(ds.X, ds.YTrue, ds.YPred, mask)
		if err != nil {
			t.Fatalf("rep %d: FitPPI failed: %v", r, err)
		}
		XS, labels := linear.SelectRows(ds.X, mask, ds.YTrue)
		expert, err := linear.FitLogit(XS, labels[0])
		if err != nil {
			t.Fatalf("rep %d: expert-only fit failed: %v", r, err)
		}
		for j := range coef {
			ppiCoefs[j] = append(ppiCoefs[j], coef[j])
			expertCoefs[j] = append(expertCoefs[j], expert[j])
		}
	}

	var ppiTotal, expertTotal float64
	below := 0
	for j := range ppiCoefs {
		vp := stat.Variance(ppiCoefs[j], nil)
		ve := stat.Variance(expertCoefs[j], nil)
		ppiTotal += vp
		expertTotal += ve
		if vp < ve {
			below++
		}
		t.Logf("coefficient %d: variance ratio %.3f", j, vp/ve)
	}
	if ppiTotal >= expertTotal {
		t.Errorf("total PPI variance %.4f should be below expert-only %.4f", ppiTotal, expertTotal)
	}
	if below < 3 {
		t.Errorf("only %d of 5 coefficients have lower PPI variance", below)
	}
}

func TestFitPPI_EndToEnd(t *testing.T) {
	const trials = 51
	closer := 0

	for trial := 0; trial < trials; trial++ {
		ds, mask := generate(t, uint64(42+trial), 1000, 200, 0.9)

		full, err := linear.FitLogit(ds.X, ds.YTrue)
		if err != nil {
			t.Fatalf("trial %d: full fit failed: %v", trial, err)
		}
		XS, labels := linear.SelectRows(ds.X, mask, ds.YTrue)
		expert, err := linear.FitLogit(XS, labels[0])
		if err != nil {
			t.Fatalf("trial %d: expert-only fit failed: %v", trial, err)
		}
		coef, err := FitPPI(ds.X, ds.YTrue, ds.YPred, mask)
		if err != nil {
			t.Fatalf("trial %d: FitPPI failed: %v", trial, err)
		}

		if len(full) != 5 || len(expert) != 5 || len(coef) != 5 {
			t.Fatalf("trial %d: lengths %d, %d, %d, want 5", trial, len(full), len(expert), len(coef))
		}
		if floats.Distance(coef, full, 2) < floats.Distance(expert, full, 2) {
			closer++
		}
	}

	if closer <= trials/2 {
		t.Errorf("PPI was closer to the full fit in %d of %d trials, want a majority", closer, trials)
	}
}

func TestEstimate_ReportsRetriedSubFits(t *testing.T) {
	// Perfect labels on a fully labelled sample make the three sub-fits the
	// same regression, so they all need the refit from zero.
	X := mat.NewDense(9, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1, 1})
	y := []float64{1, 0, 0, 0, 1, 1, 1, 0, 0}
	selected := make([]bool, 9)
	for i := range selected {
		selected[i] = true
	}
	far := []float64{8, -8}

	fromZero, err := linear.FitLogitDetailed(X, y, linear.WithStart([]float64{0, 0}))
	if err != nil {
		t.Fatalf("fit from zero failed: %v", err)
	}
	fromFar, err := linear.FitLogitDetailed(X, y, linear.WithStart(far))
	if err != nil {
		t.Fatalf("fit from %v failed: %v", far, err)
	}
	if fromFar.Iterations <= fromZero.Iterations {
		t.Fatalf("fit from %v took %d iterations, not more than %d from zero", far, fromFar.Iterations, fromZero.Iterations)
	}

	plain, err := Estimate(X, y, y, selected)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if len(plain.Retried) != 0 || len(plain.Warnings()) != 0 {
		t.Errorf("default fit reported retries %v", plain.Retried)
	}

	res, err := Estimate(X, y, y, selected,
		WithLogitOptions(linear.WithStart(far), linear.WithMaxIter(fromZero.Iterations)))
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	want := []string{SubFitImputed, SubFitRectifierPredicted, SubFitRectifierTrue}
	if len(res.Retried) != len(want) {
		t.Fatalf("Retried = %v, want %v", res.Retried, want)
	}
	warnings := res.Warnings()
	for i, name := range want {
		if res.Retried[i] != name {
			t.Errorf("Retried[%d] = %q, want %q", i, res.Retried[i], name)
		}
		if res.RetryIterations[i] != fromZero.Iterations {
			t.Errorf("RetryIterations[%d] = %d, want %d", i, res.RetryIterations[i], fromZero.Iterations)
		}
		if warnings[i].SubFit != name || warnings[i].Iterations != fromZero.Iterations {
			t.Errorf("warning %d = %+v", i, warnings[i])
		}
	}
	if !floats.EqualApprox(res.Coef, fromZero.Coef, 1e-12) {
		t.Errorf("Coef = %v, want the full fit %v", res.Coef, fromZero.Coef)
	}
}
