package ppi

import (
	"math"

	"github.com/YuminosukeSato/ppilogit/linear"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Inference holds normal-approximation confidence intervals at level 1-Alpha.
type Inference struct {
	Coef   []float64
	StdErr []float64
	Lower  []float64
	Upper  []float64
	Alpha  float64
}

func newInference(coef []float64, cov mat.Symmetric, alpha float64) *Inference {
	z := distuv.UnitNormal.Quantile(1 - alpha/2)
	p := len(coef)
	inf := &Inference{
		Coef:   append([]float64(nil), coef...),
		StdErr: make([]float64, p),
		Lower:  make([]float64, p),
		Upper:  make([]float64, p),
		Alpha:  alpha,
	}
	for j := 0; j < p; j++ {
		se := math.Sqrt(cov.At(j, j))
		inf.StdErr[j] = se
		inf.Lower[j] = coef[j] - z*se
		inf.Upper[j] = coef[j] + z*se
	}
	return inf
}

// Intervals returns confidence intervals for the PPI estimate res of the data
// it was fitted on. Each row contributes an influence term
//
//	ψᵢ = I_f⁻¹ s_f,ᵢ + 1[i ∈ S] (I_y⁻¹ s_y,ᵢ - I_S⁻¹ s_S,ᵢ)
//
// where s_f is the machine-label score at res.Imputed over all rows, s_y the
// expert-label score at res.RectifierTrue and s_S the machine-label score at
// res.RectifierPredicted, both over the expert rows S. Each I is the summed
// Fisher information of its sub-fit. The covariance of res.Coef is Σᵢ ψᵢψᵢᵀ,
// which keeps the cross term between the imputed fit and the rectifier that
// arises because the expert rows are also part of the full sample.
func Intervals(X mat.Matrix, y, yhat []float64, selected []bool, res *Result, alpha float64) (*Inference, error) {
	const op = "ppi.Intervals"

	if _, err := validateInputs(op, X, y, yhat, selected); err != nil {
		return nil, err
	}
	if err := validateAlpha(op, alpha); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.NewInvalidInputError(op, "res", "result is nil", nil)
	}
	n, d := X.Dims()
	for _, v := range []struct {
		name string
		coef []float64
	}{
		{"Coef", res.Coef},
		{"Imputed", res.Imputed},
		{"RectifierPredicted", res.RectifierPredicted},
		{"RectifierTrue", res.RectifierTrue},
	} {
		if len(v.coef) != d+1 {
			return nil, errors.NewInvalidInputError(op, "res."+v.name, "must have one entry per feature plus the intercept", len(v.coef))
		}
	}

	Z := linear.AddIntercept(X)
	all := make([]int, n)
	var expert []int
	for i := range all {
		all[i] = i
		if selected[i] {
			expert = append(expert, i)
		}
	}

	singular := func(err error, subFit string) error {
		degErr := errors.NewDegenerateFitError(op, "information matrix is singular")
		return errors.TagSubFit(errors.Wrap(degErr, err.Error()), subFit)
	}
	psi, err := influence(Z, all, yhat, res.Imputed)
	if err != nil {
		return nil, singular(err, SubFitImputed)
	}
	rectPred, err := influence(Z, expert, yhat, res.RectifierPredicted)
	if err != nil {
		return nil, singular(err, SubFitRectifierPredicted)
	}
	rectTrue, err := influence(Z, expert, y, res.RectifierTrue)
	if err != nil {
		return nil, singular(err, SubFitRectifierTrue)
	}

	for k, i := range expert {
		row := psi.RawRowView(i)
		floats.Add(row, rectTrue.RawRowView(k))
		floats.Sub(row, rectPred.RawRowView(k))
	}

	p := d + 1
	cov := mat.NewSymDense(p, nil)
	cov.SymOuterK(1, psi.T())
	return newInference(res.Coef, cov, alpha), nil
}

// influence returns one row I⁻¹sᵢ per entry of rows, where sᵢ = (labelᵢ -
// μᵢ)zᵢ is the log-likelihood score of row i at beta and I is the Fisher
// information summed over rows.
func influence(Z *mat.Dense, rows []int, labels, beta []float64) (*mat.Dense, error) {
	_, p := Z.Dims()
	info := mat.NewSymDense(p, nil)
	scores := mat.NewDense(len(rows), p, nil)
	for k, i := range rows {
		z := Z.RawRowView(i)
		mu := linear.Sigmoid(floats.Dot(z, beta))
		info.SymRankOne(info, mu*(1-mu), mat.NewVecDense(p, z))
		floats.ScaleTo(scores.RawRowView(k), labels[i]-mu, z)
	}

	infoInv, err := linear.InvertInformation(info)
	if err != nil {
		return nil, err
	}
	var psi mat.Dense
	psi.Mul(scores, infoInv)
	return &psi, nil
}

// ClassicalIntervals fits y on X by maximum likelihood and returns Wald
// intervals from the inverse Fisher information. Called on the expert rows
// only, it is the baseline PPI is compared against.
func ClassicalIntervals(X mat.Matrix, y []float64, alpha float64, opts ...linear.LogitOption) (*Inference, error) {
	const op = "ppi.ClassicalIntervals"

	if err := validateAlpha(op, alpha); err != nil {
		return nil, err
	}
	fit, err := linear.FitLogitDetailed(X, y, opts...)
	if err != nil {
		return nil, err
	}
	cov, err := linear.InvertInformation(fit.Information)
	if err != nil {
		return nil, errors.Wrap(errors.NewDegenerateFitError(op, "information matrix is singular"), err.Error())
	}
	return newInference(fit.Coef, cov, alpha), nil
}

func validateAlpha(op string, alpha float64) error {
	if math.IsNaN(alpha) || alpha <= 0 || alpha >= 1 {
		return errors.NewInvalidInputError(op, "alpha", "must be in (0, 1)", alpha)
	}
	return nil
}
