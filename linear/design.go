package linear

import (
	"math"
	"strconv"

	"github.com/YuminosukeSato/ppilogit/core/parallel"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// rows above which the design matrix is built in parallel
const designParallelThreshold = 1000

// Sigmoid computes 1/(1+exp(-z)) without overflowing for large |z|.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

// softplus computes log(1+exp(z)) without overflowing.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

// AddIntercept returns a new n×(d+1) matrix [1, X].
func AddIntercept(X mat.Matrix) *mat.Dense {
	r, c := X.Dims()
	Z := mat.NewDense(r, c+1, nil)

	parallel.ParallelizeWithThreshold(r, designParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			row := Z.RawRowView(i)
			row[0] = 1.0
			for j := 0; j < c; j++ {
				row[j+1] = X.At(i, j)
			}
		}
	})
	return Z
}

// SelectRows copies the rows of X where mask is true, together with the
// matching entries of each label vector.
func SelectRows(X mat.Matrix, mask []bool, labels ...[]float64) (*mat.Dense, [][]float64) {
	_, c := X.Dims()
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}

	out := make([][]float64, len(labels))
	for k := range labels {
		out[k] = make([]float64, 0, n)
	}
	if n == 0 {
		return nil, out
	}

	sub := mat.NewDense(n, c, nil)
	k := 0
	for i, m := range mask {
		if !m {
			continue
		}
		row := sub.RawRowView(k)
		for j := 0; j < c; j++ {
			row[j] = X.At(i, j)
		}
		for l, y := range labels {
			out[l] = append(out[l], y[i])
		}
		k++
	}
	return sub, out
}

// ValidateFeatures checks that X has at least one row and only finite values.
func ValidateFeatures(op string, X mat.Matrix) error {
	if X == nil {
		return errors.NewInvalidInputError(op, "X", "matrix is nil", nil)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewInvalidInputError(op, "X", "matrix is empty", [2]int{r, c})
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewInvalidInputError(op, "X", "contains a non-finite value at row "+strconv.Itoa(i), v)
			}
		}
	}
	return nil
}

// ValidateLabels checks that y has n entries and that every entry where mask
// is true (every entry when mask is nil) is exactly 0 or 1.
func ValidateLabels(op, param string, y []float64, n int, mask []bool) error {
	if len(y) != n {
		return errors.NewInvalidInputError(op, param, "length does not match the number of rows in X", len(y))
	}
	for i, v := range y {
		if mask != nil && !mask[i] {
			continue
		}
		if v != 0 && v != 1 {
			return errors.NewInvalidInputError(op, param, "labels must be 0 or 1 (row "+strconv.Itoa(i)+")", v)
		}
	}
	return nil
}
