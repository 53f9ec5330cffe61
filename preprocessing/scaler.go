// Package preprocessing contains column transforms applied to feature
// matrices before fitting.
package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/ppilogit/core/model"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// columns whose standard deviation is below this are left unscaled
const minScale = 1e-8

// StandardScaler standardizes features by removing the mean and scaling to
// unit variance, using the population standard deviation.
type StandardScaler struct {
	state *model.StateManager

	// Mean is the per-feature mean seen during Fit.
	Mean []float64

	// Scale is the per-feature standard deviation seen during Fit.
	Scale []float64

	WithMean bool
	WithStd  bool
}

var (
	_ model.Transformer     = (*StandardScaler)(nil)
	_ model.ParameterGetter = (*StandardScaler)(nil)
)

// NewStandardScaler creates a new StandardScaler.
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager("StandardScaler"),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault creates a StandardScaler that centers and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes the mean and standard deviation of each column of X.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	if X == nil {
		return errors.NewInvalidInputError("StandardScaler.Fit", "X", "matrix is nil", nil)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "StandardScaler.Fit")
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		if math.IsNaN(mean) || math.IsInf(mean, 0) {
			s.state.Reset()
			return errors.NewInvalidInputError("StandardScaler.Fit", "X", fmt.Sprintf("column %d has a non-finite mean", j), mean)
		}

		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		// 分散がほぼゼロの列はそのまま
		if s.WithStd && std >= minScale {
			s.Scale[j] = std
		}
	}

	s.state.SetFitted(c, r)
	return nil
}

// Transform standardizes X with the statistics from Fit.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("Transform", X, func(v float64, j int) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

// FitTransform fits to X, then transforms it.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized data back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("InverseTransform", X, func(v float64, j int) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

func (s *StandardScaler) apply(method string, X mat.Matrix, f func(v float64, j int) float64) (mat.Matrix, error) {
	if err := s.state.RequireFitted(method); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler."+method, c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := result.RawRowView(i)
		for j := 0; j < c; j++ {
			row[j] = f(X.At(i, j), j)
		}
	}
	return result, nil
}

// GetParams returns the scaler parameters.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String returns a string representation of the scaler.
func (s *StandardScaler) String() string {
	if !s.state.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	nFeatures, _ := s.state.Dimensions()
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, nFeatures)
}
