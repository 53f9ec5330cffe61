// Package simulate draws synthetic datasets with a known data-generating
// process and a controllable machine-label accuracy. Every function takes an
// explicit random source, so results are reproducible from a seed.
package simulate

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	latentDim         = 10
	latentCorrelation = 0.3
	// share of rows with X2 = 0
	binaryQuantile = 0.8
)

// Dataset is a feature matrix with expert and machine labels for every row.
type Dataset struct {
	// X holds the observed features, without an intercept column.
	X *mat.Dense
	// YTrue is the expert label drawn from the generating model.
	YTrue []float64
	// YPred agrees with YTrue with probability equal to the accuracy.
	YPred []float64
}

// NewSource returns a PCG source seeded from seed.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// Generate draws n rows of the misspecified benchmark process.
//
// Ten correlated standard normals (pairwise correlation 0.3) are drawn per
// row; the second is binarized at its 80% quantile. The label follows a
// logistic model on a nonlinear score of the latent columns, while the
// exposed features are [X1, X1², X2, X4]. YPred keeps YTrue with probability
// accuracy and flips it otherwise.
func Generate(src rand.Source, n int, accuracy float64) (*Dataset, error) {
	const op = "simulate.Generate"
	if err := validate(op, src, n, accuracy); err != nil {
		return nil, err
	}

	normal, err := latentNormal(src, latentDim)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	threshold := distuv.UnitNormal.Quantile(binaryQuantile)

	ds := &Dataset{
		X:     mat.NewDense(n, 4, nil),
		YTrue: make([]float64, n),
		YPred: make([]float64, n),
	}
	latent := make([]float64, latentDim)
	for i := 0; i < n; i++ {
		normal.Rand(latent)
		x1, x3, x4, x6 := latent[0], latent[2], latent[3], latent[5]
		x2 := 0.0
		if latent[1] > threshold {
			x2 = 1
		}

		w := benchmarkScore(x1, x2, x3, x4, x6)
		ds.YTrue[i] = distuv.Bernoulli{P: logistic.CDF(w), Src: src}.Rand()

		row := ds.X.RawRowView(i)
		row[0], row[1], row[2], row[3] = x1, x1*x1, x2, x4
	}
	if ds.YPred, err = PredictedLabels(src, ds.YTrue, accuracy); err != nil {
		return nil, err
	}
	return ds, nil
}

// benchmarkScore is the latent log-odds of the benchmark process.
func benchmarkScore(x1, x2, x3, x4, x6 float64) float64 {
	a := 0.1 / (1 + math.Exp(0.5*x3-0.5*x2))
	b := 1.3 * x4 / (1 + math.Exp(-0.1*x2))
	c := 1.5 * x4 * x6
	d := 0.5 * x1 * x2
	e := 1.3 * x1
	f := x2
	return a + b + c + d + e + f
}

// GenerateWellSpecified draws n rows whose labels follow a logistic model
// that is linear in the returned features. beta holds the intercept first,
// so X has len(beta)-1 correlated standard-normal columns.
func GenerateWellSpecified(src rand.Source, n int, beta []float64, accuracy float64) (*Dataset, error) {
	const op = "simulate.GenerateWellSpecified"
	if err := validate(op, src, n, accuracy); err != nil {
		return nil, err
	}
	if len(beta) < 2 {
		return nil, errors.NewInvalidInputError(op, "beta", "needs an intercept and at least one weight", len(beta))
	}
	d := len(beta) - 1

	normal, err := latentNormal(src, d)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	ds := &Dataset{
		X:     mat.NewDense(n, d, nil),
		YTrue: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		row := ds.X.RawRowView(i)
		normal.Rand(row)
		eta := beta[0]
		for j, v := range row {
			eta += beta[j+1] * v
		}
		ds.YTrue[i] = distuv.Bernoulli{P: logistic.CDF(eta), Src: src}.Rand()
	}
	if ds.YPred, err = PredictedLabels(src, ds.YTrue, accuracy); err != nil {
		return nil, err
	}
	return ds, nil
}

// PredictedLabels returns a copy of y where each label is kept with
// probability accuracy and flipped otherwise.
func PredictedLabels(src rand.Source, y []float64, accuracy float64) ([]float64, error) {
	if err := validateAccuracy("simulate.PredictedLabels", accuracy); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.NewInvalidInputError("simulate.PredictedLabels", "src", "random source is nil", nil)
	}
	keep := distuv.Bernoulli{P: accuracy, Src: src}
	pred := make([]float64, len(y))
	for i, v := range y {
		k := keep.Rand()
		pred[i] = k*v + (1-k)*(1-v)
	}
	return pred, nil
}

// SampleMask selects k of n rows uniformly without replacement.
func SampleMask(src rand.Source, n, k int) ([]bool, error) {
	const op = "simulate.SampleMask"
	if src == nil {
		return nil, errors.NewInvalidInputError(op, "src", "random source is nil", nil)
	}
	if n < 1 {
		return nil, errors.NewInvalidInputError(op, "n", "must be at least 1", n)
	}
	if k < 0 || k > n {
		return nil, errors.NewInvalidInputError(op, "k", "must be between 0 and n", k)
	}

	mask := make([]bool, n)
	for _, i := range rand.New(src).Perm(n)[:k] {
		mask[i] = true
	}
	return mask, nil
}

// latentNormal returns a zero-mean normal with unit variances and a common
// pairwise correlation.
func latentNormal(src rand.Source, dim int) (*distmv.Normal, error) {
	sigma := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			if i == j {
				sigma.SetSym(i, j, 1)
			} else {
				sigma.SetSym(i, j, latentCorrelation)
			}
		}
	}
	normal, ok := distmv.NewNormal(make([]float64, dim), sigma, src)
	if !ok {
		return nil, errors.ErrSingularMatrix
	}
	return normal, nil
}

func validate(op string, src rand.Source, n int, accuracy float64) error {
	if src == nil {
		return errors.NewInvalidInputError(op, "src", "random source is nil", nil)
	}
	if n < 1 {
		return errors.NewInvalidInputError(op, "n", "must be at least 1", n)
	}
	return validateAccuracy(op, accuracy)
}

func validateAccuracy(op string, accuracy float64) error {
	if math.IsNaN(accuracy) || accuracy < 0 || accuracy > 1 {
		return errors.NewInvalidInputError(op, "accuracy", "must be in [0, 1]", accuracy)
	}
	return nil
}

// logistic is the standard logistic distribution; its CDF maps log-odds to
// probabilities.
var logistic = distuv.Logistic{Mu: 0, S: 1}
