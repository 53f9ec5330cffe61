package linear

import (
	"math"

	"github.com/YuminosukeSato/ppilogit/core/parallel"
	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxIter = 100
	defaultTol     = 1e-6

	// equilibrated information matrices worse conditioned than this are
	// treated as singular
	maxCondition    = 1e12
	maxStepHalvings = 30

	// rows above which score and information are accumulated in parallel
	newtonParallelThreshold = 5000
)

type logitConfig struct {
	maxIter  int
	tol      float64
	parallel bool
	start    []float64
}

// LogitOption configures FitLogit.
type LogitOption func(*logitConfig)

// WithMaxIter sets the Newton iteration budget of a single attempt.
func WithMaxIter(maxIter int) LogitOption {
	return func(c *logitConfig) {
		c.maxIter = maxIter
	}
}

// WithTol sets the tolerance on ||gradient||₂ / n.
func WithTol(tol float64) LogitOption {
	return func(c *logitConfig) {
		c.tol = tol
	}
}

// WithParallel accumulates the score and information over row chunks in
// parallel when the sample is large.
func WithParallel(enabled bool) LogitOption {
	return func(c *logitConfig) {
		c.parallel = enabled
	}
}

// WithStart sets the starting coefficients (intercept first) of the first
// attempt. The retry after a non-convergence always starts from zero.
func WithStart(beta []float64) LogitOption {
	return func(c *logitConfig) {
		c.start = beta
	}
}

// LogitFit is the outcome of a converged maximum-likelihood fit.
type LogitFit struct {
	// Coef holds the intercept at index 0 followed by the feature weights.
	Coef          []float64
	LogLikelihood float64
	Iterations    int
	GradNorm      float64
	// Information is the Fisher information XᵀWX at Coef (not averaged).
	Information *mat.SymDense
	// Retried is set when the first attempt did not converge.
	Retried bool
}

// FitLogit returns the maximum-likelihood coefficients of a logistic
// regression of y on X. An intercept column is prepended internally, so the
// result has length d+1 with the intercept at index 0.
//
// Constant labels, fewer rows than coefficients and (quasi-)separated data
// return an error matching errors.ErrDegenerateFit. Running out of iterations
// twice (the second attempt starting from zero) returns an error matching
// errors.ErrNonConvergence. X and y are not modified.
func FitLogit(X mat.Matrix, y []float64, opts ...LogitOption) ([]float64, error) {
	fit, err := FitLogitDetailed(X, y, opts...)
	if err != nil {
		return nil, err
	}
	return fit.Coef, nil
}

// FitLogitDetailed is FitLogit returning the full LogitFit.
func FitLogitDetailed(X mat.Matrix, y []float64, opts ...LogitOption) (*LogitFit, error) {
	const op = "FitLogit"

	cfg := logitConfig{maxIter: defaultMaxIter, tol: defaultTol}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxIter <= 0 {
		return nil, errors.NewInvalidInputError(op, "max_iter", "must be positive", cfg.maxIter)
	}
	if cfg.tol <= 0 || math.IsNaN(cfg.tol) {
		return nil, errors.NewInvalidInputError(op, "tol", "must be positive", cfg.tol)
	}

	if err := ValidateFeatures(op, X); err != nil {
		return nil, err
	}
	n, d := X.Dims()
	if err := ValidateLabels(op, "y", y, n, nil); err != nil {
		return nil, err
	}
	if cfg.start != nil && len(cfg.start) != d+1 {
		return nil, errors.NewInvalidInputError(op, "start", "must have one entry per feature plus the intercept", len(cfg.start))
	}

	if n < d+1 {
		return nil, errors.NewDegenerateFitError(op, "fewer rows than coefficients, the model is not identified")
	}
	ones := 0.0
	for _, v := range y {
		ones += v
	}
	if ones == 0 || ones == float64(n) {
		return nil, errors.NewDegenerateFitError(op, "labels are constant, the intercept has no finite maximizer")
	}

	Z := AddIntercept(X)

	start := cfg.start
	if start == nil {
		start = make([]float64, d+1)
		ybar := ones / float64(n)
		start[0] = math.Log(ybar / (1 - ybar))
	}

	fit, err := newton(op, Z, y, start, cfg)
	if errors.Is(err, errors.ErrNonConvergence) {
		fit, err = newton(op, Z, y, make([]float64, d+1), cfg)
		if err == nil {
			fit.Retried = true
		}
	}
	if err != nil {
		return nil, err
	}
	return fit, nil
}

// newton maximizes the log-likelihood by Newton-Raphson with step halving.
func newton(op string, Z *mat.Dense, y []float64, start []float64, cfg logitConfig) (*LogitFit, error) {
	n, p := Z.Dims()

	beta := mat.NewVecDense(p, append([]float64(nil), start...))
	ll, _ := logLikelihood(Z, y, beta.RawVector().Data)

	var cand mat.VecDense
	for iter := 0; ; iter++ {
		grad, info := scoreAndInformation(Z, y, beta.RawVector().Data, cfg.parallel)
		gradNorm := mat.Norm(grad, 2) / float64(n)
		if err := errors.CheckScalar("gradient_norm", gradNorm, iter); err != nil {
			return nil, errors.Wrap(errors.NewDegenerateFitError(op, "gradient is not finite"), err.Error())
		}
		if gradNorm <= cfg.tol {
			return &LogitFit{
				Coef:          append([]float64(nil), beta.RawVector().Data...),
				LogLikelihood: ll,
				Iterations:    iter,
				GradNorm:      gradNorm,
				Information:   info,
			}, nil
		}
		if iter == cfg.maxIter {
			return nil, errors.NewNonConvergenceError(op, iter, gradNorm, cfg.tol)
		}

		step, err := solveInformation(info, grad)
		if err != nil {
			return nil, errors.NewDegenerateFitError(op, "information matrix is singular: separated data or collinear features")
		}

		// Halve the step until the likelihood does not decrease.
		scale := 1.0
		accepted, separated := false, false
		for h := 0; h < maxStepHalvings; h++ {
			cand.AddScaledVec(beta, scale, step)
			candLL, sep := logLikelihood(Z, y, cand.RawVector().Data)
			if candLL >= ll {
				beta.CopyVec(&cand)
				ll, separated = candLL, sep
				accepted = true
				break
			}
			scale /= 2
		}
		if !accepted {
			return nil, errors.NewNonConvergenceError(op, iter+1, gradNorm, cfg.tol)
		}

		if err := errors.CheckNumericalStability("newton_step", beta.RawVector().Data, iter); err != nil {
			return nil, errors.Wrap(errors.NewDegenerateFitError(op, "coefficients diverged"), err.Error())
		}
		// A finite β that classifies every row correctly means the classes
		// are completely separated.
		if separated {
			return nil, errors.NewDegenerateFitError(op, "complete separation, the likelihood has no finite maximizer")
		}
	}
}

// logLikelihood returns Σ yᵢηᵢ - log(1+exp(ηᵢ)) and whether every row lies
// strictly on the side of the boundary its label belongs to.
func logLikelihood(Z *mat.Dense, y []float64, beta []float64) (ll float64, separated bool) {
	n, _ := Z.Dims()
	separated = true
	for i := 0; i < n; i++ {
		eta := dot(Z.RawRowView(i), beta)
		ll += y[i]*eta - softplus(eta)
		if (y[i] == 1) != (eta > 0) || eta == 0 {
			separated = false
		}
	}
	return ll, separated
}

// equilibrate returns S·I·S with S = diag(1/sqrt(Iⱼⱼ)), so that conditioning
// checks do not depend on the scale of the features.
func equilibrate(info *mat.SymDense) (*mat.SymDense, []float64, error) {
	p := info.SymmetricDim()
	scale := make([]float64, p)
	for j := range scale {
		d := info.At(j, j)
		if !(d > 0) || math.IsInf(d, 0) {
			return nil, nil, errors.ErrSingularMatrix
		}
		scale[j] = 1 / math.Sqrt(d)
	}
	eq := mat.NewSymDense(p, nil)
	for j := 0; j < p; j++ {
		for k := 0; k <= j; k++ {
			eq.SetSym(j, k, info.At(j, k)*scale[j]*scale[k])
		}
	}
	return eq, scale, nil
}

// solveInformation solves I·x = g.
func solveInformation(info *mat.SymDense, g *mat.VecDense) (*mat.VecDense, error) {
	eq, scale, err := equilibrate(info)
	if err != nil {
		return nil, err
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(eq); !ok || chol.Cond() > maxCondition {
		return nil, errors.ErrSingularMatrix
	}

	rhs := mat.NewVecDense(len(scale), nil)
	for j, s := range scale {
		rhs.SetVec(j, g.AtVec(j)*s)
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, rhs); err != nil {
		return nil, errors.Wrap(errors.ErrSingularMatrix, err.Error())
	}
	for j, s := range scale {
		x.SetVec(j, x.AtVec(j)*s)
	}
	return &x, nil
}

// InvertInformation returns I⁻¹ for a Fisher information matrix, the
// asymptotic covariance of the maximum-likelihood coefficients.
func InvertInformation(info *mat.SymDense) (*mat.SymDense, error) {
	eq, scale, err := equilibrate(info)
	if err != nil {
		return nil, err
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(eq); !ok || chol.Cond() > maxCondition {
		return nil, errors.ErrSingularMatrix
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, errors.Wrap(errors.ErrSingularMatrix, err.Error())
	}

	p := len(scale)
	cov := mat.NewSymDense(p, nil)
	for j := 0; j < p; j++ {
		for k := 0; k <= j; k++ {
			cov.SetSym(j, k, inv.At(j, k)*scale[j]*scale[k])
		}
	}
	return cov, nil
}

type newtonPartial struct {
	grad []float64
	info []float64 // p×p, lower triangle filled
}

// scoreAndInformation returns Zᵀ(y-μ) and ZᵀWZ with W = diag(μ(1-μ)).
func scoreAndInformation(Z *mat.Dense, y []float64, beta []float64, par bool) (*mat.VecDense, *mat.SymDense) {
	n, p := Z.Dims()

	threshold := n
	if par {
		threshold = newtonParallelThreshold
	}

	acc := parallel.Reduce(n, threshold,
		func(start, end int) newtonPartial {
			part := newtonPartial{grad: make([]float64, p), info: make([]float64, p*p)}
			for i := start; i < end; i++ {
				z := Z.RawRowView(i)
				mu := Sigmoid(dot(z, beta))
				w := mu * (1 - mu)
				r := y[i] - mu
				for j := 0; j < p; j++ {
					part.grad[j] += r * z[j]
					wz := w * z[j]
					for k := 0; k <= j; k++ {
						part.info[j*p+k] += wz * z[k]
					}
				}
			}
			return part
		},
		func(dst, src newtonPartial) {
			for j := range dst.grad {
				dst.grad[j] += src.grad[j]
			}
			for j := range dst.info {
				dst.info[j] += src.info[j]
			}
		},
	)

	info := mat.NewSymDense(p, nil)
	for j := 0; j < p; j++ {
		for k := 0; k <= j; k++ {
			info.SetSym(j, k, acc.info[j*p+k])
		}
	}
	return mat.NewVecDense(p, acc.grad), info
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
