// Package metrics scores coefficient estimates against a reference and
// machine labels against expert labels.
package metrics

import (
	"math"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewInvalidInputError("MSE", "yTrue", "empty vector", nil)
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// EuclideanDistance returns ||a - b||₂ between two coefficient vectors.
func EuclideanDistance(a, b []float64) (float64, error) {
	if len(a) == 0 {
		return 0, errors.NewInvalidInputError("EuclideanDistance", "a", "empty vector", nil)
	}
	if len(a) != len(b) {
		return 0, errors.NewDimensionError("EuclideanDistance", len(a), len(b), 0)
	}
	return floats.Distance(a, b, 2), nil
}

// CoefficientVariances returns the unbiased sample variance of each
// coefficient over repeated estimates. samples[r] is the r-th estimate.
func CoefficientVariances(samples [][]float64) ([]float64, error) {
	if len(samples) < 2 {
		return nil, errors.NewInvalidInputError("CoefficientVariances", "samples", "need at least 2 estimates", len(samples))
	}
	p := len(samples[0])
	columns := make([][]float64, p)
	for r, s := range samples {
		if len(s) != p {
			return nil, errors.NewDimensionError("CoefficientVariances", p, len(s), 1)
		}
		for j, v := range s {
			if r == 0 {
				columns[j] = make([]float64, 0, len(samples))
			}
			columns[j] = append(columns[j], v)
		}
	}

	variances := make([]float64, p)
	for j, col := range columns {
		variances[j] = stat.Variance(col, nil)
	}
	return variances, nil
}

// VarianceRatio returns num[j]/den[j] for each coefficient. A ratio below 1
// means the numerator estimator is more precise.
func VarianceRatio(num, den []float64) ([]float64, error) {
	if len(num) != len(den) {
		return nil, errors.NewDimensionError("VarianceRatio", len(num), len(den), 0)
	}
	ratio := make([]float64, len(num))
	for j := range num {
		if den[j] <= 0 {
			return nil, errors.NewInvalidInputError("VarianceRatio", "den", "variances must be positive", den[j])
		}
		ratio[j] = num[j] / den[j]
	}
	return ratio, nil
}
