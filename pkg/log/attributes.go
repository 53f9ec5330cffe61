package log

// Run context
const (
	// ComponentKey identifies the package emitting the record.
	// Examples: "experiment", "cli"
	ComponentKey = "ppi.component"

	// ModelNameKey identifies the estimator.
	// Examples: "FitLogit", "FitPPI", "PPILogisticRegression"
	ModelNameKey = "model.name"

	// OperationKey names the operation being performed.
	OperationKey = "ppi.operation"

	// SubFitKey names one of the three fits inside a PPI estimate.
	// Values: "imputed", "rectifier_predicted", "rectifier_true"
	SubFitKey = "ppi.sub_fit"

	// MethodKey names the estimator a coefficient vector came from.
	// Values: MethodFull, MethodExpert, MethodPPI
	MethodKey = "ppi.method"
)

// Data shape
const (
	// SamplesKey is the number of rows N.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns D.
	FeaturesKey = "data.features"

	// LabelledKey is the number of rows with an expert label.
	LabelledKey = "data.labelled"

	// SourceKey is the file or generator the data came from.
	SourceKey = "data.source"
)

// Label quality
const (
	// AccuracyKey is the share of machine labels that match the expert label.
	AccuracyKey = "labels.accuracy"

	// KappaKey is Cohen's kappa between machine and expert labels.
	KappaKey = "labels.kappa"
)

// Optimization and results
const (
	IterationKey   = "fit.iterations"
	GradNormKey    = "fit.grad_norm"
	CoefficientKey = "fit.coef"
	StdErrKey      = "fit.std_err"

	// VarianceRatioKey is Var(PPI)/Var(expert-only) per coefficient.
	VarianceRatioKey = "experiment.variance_ratio"

	// CloserShareKey is the share of trials where PPI is closer to the
	// full-data fit than the expert-only fit is.
	CloserShareKey = "experiment.closer_share"

	// CoverageKey is the share of PPI intervals containing the full-data
	// coefficient.
	CoverageKey = "experiment.coverage"
)

// Experiment runs
const (
	TrialKey      = "experiment.trial"
	TrialsKey     = "experiment.trials"
	RandomSeedKey = "config.random_seed"
	DurationMsKey = "perf.duration_ms"
	OutputPathKey = "output.path"
)

// Errors
const (
	// ErrorTypeKey categorizes the error.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit        = "fit"
	OperationSimulate   = "simulate"
	OperationExperiment = "experiment"
	OperationIntervals  = "intervals"

	MethodFull   = "full"
	MethodExpert = "expert_only"
	MethodPPI    = "ppi"

	ErrorInvalidInput   = "INVALID_INPUT"
	ErrorDegenerateFit  = "DEGENERATE_FIT"
	ErrorNonConvergence = "NON_CONVERGENCE"
)
