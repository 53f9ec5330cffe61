package metrics

import (
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
)

// Accuracy は一致率を計算する
func Accuracy(yTrue, yPred []float64) (float64, error) {
	n := len(yTrue)
	if n == 0 {
		return 0, errors.NewInvalidInputError("Accuracy", "yTrue", "empty vector", nil)
	}
	if len(yPred) != n {
		return 0, errors.NewDimensionError("Accuracy", n, len(yPred), 0)
	}

	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// Agreement summarises how well machine labels match expert labels on the
// rows that carry both.
type Agreement struct {
	Total    int     `json:"total" yaml:"total"`
	Agreed   int     `json:"agreed" yaml:"agreed"`
	Rate     float64 `json:"rate" yaml:"rate"`
	Kappa    float64 `json:"kappa" yaml:"kappa"` // Cohen's kappa
	Positive int     `json:"positive" yaml:"positive"`
}

// LabelAgreement compares binary expert labels y with machine labels yhat on
// the rows where mask is true (every row when mask is nil).
func LabelAgreement(y, yhat []float64, mask []bool) (Agreement, error) {
	const op = "LabelAgreement"
	if len(yhat) != len(y) {
		return Agreement{}, errors.NewDimensionError(op, len(y), len(yhat), 0)
	}
	if mask != nil && len(mask) != len(y) {
		return Agreement{}, errors.NewDimensionError(op, len(y), len(mask), 0)
	}

	var a Agreement
	// 2×2 の分割表
	var table [2][2]int
	for i := range y {
		if mask != nil && !mask[i] {
			continue
		}
		if (y[i] != 0 && y[i] != 1) || (yhat[i] != 0 && yhat[i] != 1) {
			return Agreement{}, errors.NewInvalidInputError(op, "y", "labels must be 0 or 1", [2]float64{y[i], yhat[i]})
		}
		t, p := int(y[i]), int(yhat[i])
		table[t][p]++
		a.Total++
		if t == 1 {
			a.Positive++
		}
	}
	if a.Total == 0 {
		return Agreement{}, errors.NewInvalidInputError(op, "mask", "no rows selected", nil)
	}

	a.Agreed = table[0][0] + table[1][1]
	total := float64(a.Total)
	a.Rate = float64(a.Agreed) / total

	// κ = (p_o - p_e) / (1 - p_e)
	pe := (float64(table[0][0]+table[0][1])*float64(table[0][0]+table[1][0]) +
		float64(table[1][0]+table[1][1])*float64(table[0][1]+table[1][1])) / (total * total)
	if pe < 1 {
		a.Kappa = (a.Rate - pe) / (1 - pe)
	} else {
		a.Kappa = 1
	}
	return a, nil
}

// LogLoss returns the mean negative log-likelihood of binary labels y under
// probabilities p.
func LogLoss(y, p []float64) (float64, error) {
	n := len(y)
	if n == 0 {
		return 0, errors.NewInvalidInputError("LogLoss", "y", "empty vector", nil)
	}
	if len(p) != n {
		return 0, errors.NewDimensionError("LogLoss", n, len(p), 0)
	}

	var sum float64
	for i := range y {
		if p[i] < 0 || p[i] > 1 {
			return 0, errors.NewInvalidInputError("LogLoss", "p", "probabilities must be in [0, 1]", p[i])
		}
		sum -= y[i]*errors.StabilizeLog(p[i]) + (1-y[i])*errors.StabilizeLog(1-p[i])
	}
	return sum / float64(n), nil
}
