package model

import "gonum.org/v1/gonum/mat"

// Fitter is implemented by models that learn from training data.
type Fitter interface {
	// Fit trains the model on X (n_samples × n_features) and y (n_samples × 1).
	Fit(X, y mat.Matrix) error
}

// Predictor is implemented by models that produce predictions.
type Predictor interface {
	// Predict returns an n_samples × 1 matrix of predictions.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is implemented by models that expose their hyperparameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters keyed by their
	// scikit-learn style names (e.g. "n_estimators").
	GetParams() map[string]interface{}
}

// ParameterSetter is implemented by models whose hyperparameters can be changed.
type ParameterSetter interface {
	// SetParams applies the given hyperparameters. Unknown keys are an error.
	SetParams(params map[string]interface{}) error
}

// Cloner is implemented by models that can produce an unfitted copy of
// themselves carrying the same hyperparameters.
type Cloner interface {
	Clone() Regressor
}

// Regressor is the capability set every candidate estimator offers.
// Grid search clones the candidate, applies a parameter combination with
// SetParams and fits the clone, so the original candidate is never mutated
// by a search.
type Regressor interface {
	Fitter
	Predictor
	ParameterGetter
	ParameterSetter
	Cloner
}
