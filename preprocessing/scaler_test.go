package preprocessing

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	s := NewStandardScalerDefault()
	Xs, err := s.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if s.Mean[0] != 2.5 || s.Mean[1] != 10 {
		t.Errorf("Mean = %v, want [2.5 10]", s.Mean)
	}
	// population std of 1..4 is sqrt(1.25)
	if math.Abs(s.Scale[0]-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("Scale[0] = %v, want %v", s.Scale[0], math.Sqrt(1.25))
	}
	if s.Scale[1] != 1 {
		t.Errorf("constant column should keep scale 1, got %v", s.Scale[1])
	}

	for j := 0; j < 2; j++ {
		var sum float64
		for i := 0; i < 4; i++ {
			sum += Xs.At(i, j)
		}
		if math.Abs(sum) > 1e-12 {
			t.Errorf("column %d mean after transform = %v, want 0", j, sum/4)
		}
	}

	back, err := s.InverseTransform(Xs)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Errorf("InverseTransform(Transform(X)) = %v, want %v", mat.Formatted(back), mat.Formatted(X))
	}
}

func TestStandardScaler_Options(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{2, 4})

	s := NewStandardScaler(false, true)
	Xs, err := s.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if Xs.At(0, 0) != 2 || Xs.At(1, 0) != 4 {
		t.Errorf("with_mean=false should only divide by std 1, got %v", mat.Formatted(Xs))
	}
	if got := s.String(); got != "StandardScaler(with_mean=false, with_std=true, n_features=1)" {
		t.Errorf("String() = %q", got)
	}
	if s.GetParams()["with_mean"] != false {
		t.Errorf("GetParams() = %v", s.GetParams())
	}
}

func TestStandardScaler_Errors(t *testing.T) {
	s := NewStandardScalerDefault()

	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nfErr *errors.NotFittedError
	if !errors.As(err, &nfErr) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	if err := s.Fit(&mat.Dense{}); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("expected ErrEmptyData, got %v", err)
	}

	if err := s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := s.Transform(mat.NewDense(2, 3, nil)); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("feature mismatch: expected ErrInvalidInput, got %v", err)
	}
}
