package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/sklearn/tree"
)

func init() {
	model.Register(&GradientBoostingRegressor{})
}

// GradientBoostingRegressor fits shallow trees to the residuals of the
// running prediction under squared-error loss.
//
// With Subsample < 1 every stage is fitted on a random subset of
// floor(Subsample·n) samples drawn without replacement (stochastic gradient
// boosting).
type GradientBoostingRegressor struct {
	State *model.StateManager

	LearningRate    float64
	NEstimators     int
	MaxDepth        int
	Subsample       float64
	Criterion       string
	MinSamplesSplit int
	MinSamplesLeaf  int
	RandomState     int64

	Init  float64
	Trees []*tree.DecisionTreeRegressor
}

var _ model.Regressor = (*GradientBoostingRegressor)(nil)

// NewGradientBoostingRegressor creates a booster with learning_rate 0.1,
// 100 stages of depth-3 friedman_mse trees and no subsampling.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		State:           model.NewStateManager(),
		LearningRate:    0.1,
		NEstimators:     100,
		MaxDepth:        3,
		Subsample:       1.0,
		Criterion:       tree.CriterionFriedmanMSE,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     42,
	}
}

// WithLearningRate sets the shrinkage applied to each stage.
func (g *GradientBoostingRegressor) WithLearningRate(lr float64) *GradientBoostingRegressor {
	g.LearningRate = lr
	return g
}

// WithNEstimators sets the number of boosting stages.
func (g *GradientBoostingRegressor) WithNEstimators(n int) *GradientBoostingRegressor {
	g.NEstimators = n
	return g
}

// WithSubsample sets the fraction of samples used per stage.
func (g *GradientBoostingRegressor) WithSubsample(s float64) *GradientBoostingRegressor {
	g.Subsample = s
	return g
}

func (g *GradientBoostingRegressor) validate() error {
	if g.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", g.NEstimators)
	}
	if g.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be > 0", g.LearningRate)
	}
	if g.Subsample <= 0 || g.Subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", g.Subsample)
	}
	return nil
}

// Fit runs the boosting stages.
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	n, cols, err := checkXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := g.validate(); err != nil {
		return err
	}

	target := make([]float64, n)
	base := 0.0
	for i := 0; i < n; i++ {
		target[i] = y.At(i, 0)
		base += target[i]
	}
	base /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}

	rows := rowsOf(X)
	residual := mat.NewDense(n, 1, nil)
	rng := newRNG(g.RandomState, 0)
	inBag := max(1, int(g.Subsample*float64(n)))

	trees := make([]*tree.DecisionTreeRegressor, 0, g.NEstimators)
	for m := 0; m < g.NEstimators; m++ {
		// negative gradient of ½(y - F)²
		for i := 0; i < n; i++ {
			residual.Set(i, 0, target[i]-pred[i])
		}

		var mask []float64
		if g.Subsample < 1 {
			mask = subsampleMask(rng, n, inBag)
		}

		t := tree.NewDecisionTreeRegressor(
			tree.WithCriterion(g.Criterion),
			tree.WithMaxDepth(g.MaxDepth),
			tree.WithMinSamplesSplit(g.MinSamplesSplit),
			tree.WithMinSamplesLeaf(g.MinSamplesLeaf),
		)
		if err := t.FitWeighted(X, residual, mask); err != nil {
			return err
		}

		for i, row := range rows {
			pred[i] += g.LearningRate * t.PredictRow(row)
		}
		if err := errors.CheckNumericalStability("GradientBoostingRegressor.Fit", pred, m); err != nil {
			return err
		}
		trees = append(trees, t)
	}

	g.Init = base
	g.Trees = trees
	if g.State == nil {
		g.State = model.NewStateManager()
	}
	g.State.SetFitted(cols, n)
	return nil
}

// Predict returns Init plus the shrunken sum of stage predictions.
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := g.State.RequireFitted("GradientBoostingRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := g.State.CheckFeatures("GradientBoostingRegressor.Predict", c); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, 1, nil)
	for i, row := range rowsOf(X) {
		v := g.Init
		for _, t := range g.Trees {
			v += g.LearningRate * t.PredictRow(row)
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

// GetParams returns the hyperparameters.
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"learning_rate":     g.LearningRate,
		"n_estimators":      g.NEstimators,
		"max_depth":         g.MaxDepth,
		"subsample":         g.Subsample,
		"criterion":         g.Criterion,
		"min_samples_split": g.MinSamplesSplit,
		"min_samples_leaf":  g.MinSamplesLeaf,
		"random_state":      g.RandomState,
	}
}

// SetParams sets the hyperparameters.
func (g *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("GradientBoostingRegressor", params, map[string]interface{}{
		"learning_rate":     &g.LearningRate,
		"n_estimators":      &g.NEstimators,
		"max_depth":         &g.MaxDepth,
		"subsample":         &g.Subsample,
		"criterion":         &g.Criterion,
		"min_samples_split": &g.MinSamplesSplit,
		"min_samples_leaf":  &g.MinSamplesLeaf,
		"random_state":      &g.RandomState,
	})
}

// Clone returns an unfitted copy with the same hyperparameters.
func (g *GradientBoostingRegressor) Clone() model.Regressor {
	c := *g
	c.State = model.NewStateManager()
	c.Init = 0
	c.Trees = nil
	return &c
}
