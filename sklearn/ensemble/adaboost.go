package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/sklearn/tree"
)

func init() {
	model.Register(&AdaBoostRegressor{})
}

// AdaBoost.R2 loss functions.
const (
	LossLinear      = "linear"
	LossSquare      = "square"
	LossExponential = "exponential"
)

// AdaBoostRegressor implements AdaBoost.R2 (Drucker, 1997) with depth-3
// regression trees as base learners. Predictions are the weighted median of
// the base learners.
type AdaBoostRegressor struct {
	State *model.StateManager

	NEstimators  int
	LearningRate float64
	Loss         string
	BaseMaxDepth int
	RandomState  int64

	Estimators       []*tree.DecisionTreeRegressor
	EstimatorWeights []float64
	EstimatorErrors  []float64
}

var _ model.Regressor = (*AdaBoostRegressor)(nil)

// NewAdaBoostRegressor creates a booster with 50 stages, learning_rate 1.0
// and linear loss.
func NewAdaBoostRegressor() *AdaBoostRegressor {
	return &AdaBoostRegressor{
		State:        model.NewStateManager(),
		NEstimators:  50,
		LearningRate: 1.0,
		Loss:         LossLinear,
		BaseMaxDepth: 3,
		RandomState:  42,
	}
}

// WithNEstimators sets the maximum number of boosting stages.
func (a *AdaBoostRegressor) WithNEstimators(n int) *AdaBoostRegressor {
	a.NEstimators = n
	return a
}

// WithLoss sets the loss used to update sample weights.
func (a *AdaBoostRegressor) WithLoss(loss string) *AdaBoostRegressor {
	a.Loss = loss
	return a
}

func (a *AdaBoostRegressor) validate() error {
	if a.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", a.NEstimators)
	}
	if a.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be > 0", a.LearningRate)
	}
	switch a.Loss {
	case LossLinear, LossSquare, LossExponential:
	default:
		return errors.NewValidationError("loss", "must be one of linear, square, exponential", a.Loss)
	}
	return nil
}

// Fit runs the boosting stages. Boosting stops early when a learner fits the
// weighted sample perfectly or when its weighted loss reaches 0.5.
func (a *AdaBoostRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "AdaBoostRegressor.Fit")

	n, cols, err := checkXY("AdaBoostRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := a.validate(); err != nil {
		return err
	}

	target := make([]float64, n)
	for i := range target {
		target[i] = y.At(i, 0)
	}
	rows := rowsOf(X)

	sampleWeight := make([]float64, n)
	for i := range sampleWeight {
		sampleWeight[i] = 1 / float64(n)
	}

	rng := newRNG(a.RandomState, 0)
	var (
		estimators []*tree.DecisionTreeRegressor
		weights    []float64
		errs       []float64
	)

	for iboost := 0; iboost < a.NEstimators; iboost++ {
		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(a.BaseMaxDepth),
			tree.WithRandomState(int64(rng.Uint64()>>1)),
		)
		if err := t.FitWeighted(X, y, weightedBootstrapCounts(rng, sampleWeight)); err != nil {
			return err
		}

		errVec := make([]float64, n)
		errMax := 0.0
		for i, row := range rows {
			errVec[i] = math.Abs(t.PredictRow(row) - target[i])
			if sampleWeight[i] > 0 && errVec[i] > errMax {
				errMax = errVec[i]
			}
		}
		estimatorError := 0.0
		for i := range errVec {
			if errMax != 0 {
				errVec[i] /= errMax
			}
			switch a.Loss {
			case LossSquare:
				errVec[i] *= errVec[i]
			case LossExponential:
				errVec[i] = 1 - math.Exp(-errVec[i])
			}
			estimatorError += sampleWeight[i] * errVec[i]
		}

		if estimatorError <= 0 {
			estimators = append(estimators, t)
			weights = append(weights, 1)
			errs = append(errs, 0)
			break
		}
		if estimatorError >= 0.5 {
			if len(estimators) == 0 {
				estimators = append(estimators, t)
				weights = append(weights, 1)
				errs = append(errs, estimatorError)
			}
			break
		}

		beta := errors.SafeDivide(estimatorError, 1-estimatorError)
		estimatorWeight := a.LearningRate * math.Log(1/beta)
		estimators = append(estimators, t)
		weights = append(weights, estimatorWeight)
		errs = append(errs, estimatorError)

		if iboost == a.NEstimators-1 {
			break
		}

		total := 0.0
		for i := range sampleWeight {
			if sampleWeight[i] > 0 {
				sampleWeight[i] *= math.Pow(beta, (1-errVec[i])*a.LearningRate)
			}
			total += sampleWeight[i]
		}
		if total <= 0 || math.IsNaN(total) {
			break
		}
		for i := range sampleWeight {
			sampleWeight[i] /= total
		}
		if err := errors.CheckNumericalStability("AdaBoostRegressor.Fit", sampleWeight, iboost); err != nil {
			return err
		}
	}

	a.Estimators = estimators
	a.EstimatorWeights = weights
	a.EstimatorErrors = errs
	if a.State == nil {
		a.State = model.NewStateManager()
	}
	a.State.SetFitted(cols, n)
	return nil
}

// Predict returns the weighted median of the learners' predictions.
func (a *AdaBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := a.State.RequireFitted("AdaBoostRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := a.State.CheckFeatures("AdaBoostRegressor.Predict", c); err != nil {
		return nil, err
	}

	total := 0.0
	for _, w := range a.EstimatorWeights {
		total += w
	}

	out := mat.NewDense(r, 1, nil)
	preds := make([]float64, len(a.Estimators))
	order := make([]int, len(a.Estimators))
	for i, row := range rowsOf(X) {
		for k, t := range a.Estimators {
			preds[k] = t.PredictRow(row)
			order[k] = k
		}
		sort.SliceStable(order, func(p, q int) bool { return preds[order[p]] < preds[order[q]] })

		median := preds[order[len(order)-1]]
		acc := 0.0
		for _, k := range order {
			acc += a.EstimatorWeights[k]
			if acc >= 0.5*total {
				median = preds[k]
				break
			}
		}
		out.Set(i, 0, median)
	}
	return out, nil
}

// GetParams returns the hyperparameters.
func (a *AdaBoostRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":   a.NEstimators,
		"learning_rate":  a.LearningRate,
		"loss":           a.Loss,
		"base_max_depth": a.BaseMaxDepth,
		"random_state":   a.RandomState,
	}
}

// SetParams sets the hyperparameters.
func (a *AdaBoostRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("AdaBoostRegressor", params, map[string]interface{}{
		"n_estimators":   &a.NEstimators,
		"learning_rate":  &a.LearningRate,
		"loss":           &a.Loss,
		"base_max_depth": &a.BaseMaxDepth,
		"random_state":   &a.RandomState,
	})
}

// Clone returns an unfitted copy with the same hyperparameters.
func (a *AdaBoostRegressor) Clone() model.Regressor {
	c := *a
	c.State = model.NewStateManager()
	c.Estimators = nil
	c.EstimatorWeights = nil
	c.EstimatorErrors = nil
	return &c
}
