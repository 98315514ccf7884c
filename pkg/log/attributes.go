// Standard attribute keys for pipeline logging. Keys are hierarchical
// ("model.name", "data.samples") so log analysis can filter by prefix.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the candidate or estimator type.
	// Examples: "Random Forest", "LinearRegression"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "search", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	// Examples: "training", "ingestion", "transformation", "prediction"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"

	// RunIDKey correlates every record of one training run.
	RunIDKey = "run.id"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// PathKey records an input or artifact path.
	PathKey = "data.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// TrainR2Key records R² on the training split.
	TrainR2Key = "metrics.train_r2"

	// TestR2Key records R² on the held-out split.
	TestR2Key = "metrics.test_r2"

	// CVScoreKey records the mean cross-validated score of the best configuration.
	CVScoreKey = "metrics.cv_score"

	// ThresholdKey records the quality gate threshold.
	ThresholdKey = "metrics.threshold"
)

// Hyperparameters and Search
const (
	// HyperParamsKey contains selected hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// GridSizeKey records the number of configurations in a grid.
	GridSizeKey = "search.grid_size"

	// FoldsKey records the cross-validation fold count.
	FoldsKey = "search.folds"
)

// Error Context
const (
	// ErrorTypeKey categorizes the failure.
	ErrorTypeKey = "error.type"

	// SiteKey is the file:line at which a pipeline error was raised.
	SiteKey = "error.site"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationSearch    = "search"
	OperationScore     = "score"
	OperationSave      = "save"

	PhaseIngestion      = "ingestion"
	PhasePreprocessing  = "preprocessing"
	PhaseTraining       = "training"
	PhaseInference      = "inference"
)
