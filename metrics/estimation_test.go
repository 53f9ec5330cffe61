package metrics

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name      string
		yTrue     *mat.VecDense
		yPred     *mat.VecDense
		want      float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "perfect estimate",
			yTrue:     mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			yPred:     mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			want:      0.0,
			tolerance: 1e-10,
		},
		{
			name:      "simple case",
			yTrue:     mat.NewVecDense(4, []float64{1.0, 2.0, 3.0, 4.0}),
			yPred:     mat.NewVecDense(4, []float64{1.5, 2.5, 2.5, 3.5}),
			want:      0.25, // (0.25 * 4) / 4
			tolerance: 1e-10,
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			yPred:   mat.NewVecDense(2, []float64{1.0, 2.0}),
			wantErr: true,
		},
		{
			name:    "empty vectors",
			yTrue:   &mat.VecDense{},
			yPred:   &mat.VecDense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Errorf("MSE() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("MSE() = %v, want %v (tolerance: %v)", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestRMSE(t *testing.T) {
	got, err := RMSE(mat.NewVecDense(2, []float64{0, 0}), mat.NewVecDense(2, []float64{3, 4}))
	if err != nil {
		t.Fatalf("RMSE() error = %v", err)
	}
	if want := math.Sqrt(12.5); math.Abs(got-want) > 1e-12 {
		t.Errorf("RMSE() = %v, want %v", got, want)
	}
}

func TestEuclideanDistance(t *testing.T) {
	got, err := EuclideanDistance([]float64{0, 0, 1}, []float64{3, 4, 1})
	if err != nil {
		t.Fatalf("EuclideanDistance() error = %v", err)
	}
	if got != 5 {
		t.Errorf("EuclideanDistance() = %v, want 5", got)
	}

	if _, err := EuclideanDistance([]float64{1}, []float64{1, 2}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("length mismatch: expected ErrInvalidInput, got %v", err)
	}
	if _, err := EuclideanDistance(nil, nil); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("empty: expected ErrInvalidInput, got %v", err)
	}
}

func TestCoefficientVariances(t *testing.T) {
	samples := [][]float64{
		{1, 10},
		{2, 10},
		{3, 10},
	}
	got, err := CoefficientVariances(samples)
	if err != nil {
		t.Fatalf("CoefficientVariances() error = %v", err)
	}
	// 1, 2, 3 の不偏分散は 1
	if math.Abs(got[0]-1) > 1e-12 || got[1] != 0 {
		t.Errorf("CoefficientVariances() = %v, want [1 0]", got)
	}

	if _, err := CoefficientVariances(samples[:1]); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("single sample: expected ErrInvalidInput, got %v", err)
	}
	if _, err := CoefficientVariances([][]float64{{1, 2}, {1}}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("ragged samples: expected ErrInvalidInput, got %v", err)
	}
}

func TestVarianceRatio(t *testing.T) {
	got, err := VarianceRatio([]float64{1, 3}, []float64{2, 3})
	if err != nil {
		t.Fatalf("VarianceRatio() error = %v", err)
	}
	if got[0] != 0.5 || got[1] != 1 {
		t.Errorf("VarianceRatio() = %v, want [0.5 1]", got)
	}
	if _, err := VarianceRatio([]float64{1}, []float64{0}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("zero denominator: expected ErrInvalidInput, got %v", err)
	}
}
