package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/core/parallel"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/sklearn/tree"
)

func init() {
	model.Register(&RandomForestRegressor{})
}

// RandomForestRegressor averages decision trees grown on bootstrap samples.
//
// Every tree draws its bootstrap sample and feature subsets from a seed
// derived from RandomState and the tree index, so the fitted forest does not
// depend on NJobs.
type RandomForestRegressor struct {
	State *model.StateManager

	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 = all features
	Bootstrap       bool
	RandomState     int64
	NJobs           int

	Trees []*tree.DecisionTreeRegressor
}

var _ model.Regressor = (*RandomForestRegressor)(nil)

// NewRandomForestRegressor creates a forest with 100 fully grown
// squared_error trees on bootstrap samples.
func NewRandomForestRegressor() *RandomForestRegressor {
	return &RandomForestRegressor{
		State:           model.NewStateManager(),
		NEstimators:     100,
		Criterion:       tree.CriterionSquaredError,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     42,
		NJobs:           1,
	}
}

// WithNEstimators sets the number of trees.
func (f *RandomForestRegressor) WithNEstimators(n int) *RandomForestRegressor {
	f.NEstimators = n
	return f
}

// WithRandomState sets the random seed.
func (f *RandomForestRegressor) WithRandomState(seed int64) *RandomForestRegressor {
	f.RandomState = seed
	return f
}

// WithNJobs sets how many trees are grown concurrently.
func (f *RandomForestRegressor) WithNJobs(n int) *RandomForestRegressor {
	f.NJobs = n
	return f
}

// Fit grows the forest.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	rows, cols, err := checkXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", f.NEstimators)
	}

	trees := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	errs := make([]error, f.NEstimators)
	parallel.ParallelizeN(f.NEstimators, f.NJobs, func(start, end int) {
		for i := start; i < end; i++ {
			trees[i], errs[i] = f.fitTree(X, y, rows, i)
		}
	})
	for _, e := range errs {
		if e != nil {
			return e
		}
	}

	f.Trees = trees
	if f.State == nil {
		f.State = model.NewStateManager()
	}
	f.State.SetFitted(cols, rows)
	return nil
}

func (f *RandomForestRegressor) fitTree(X, y mat.Matrix, rows, i int) (*tree.DecisionTreeRegressor, error) {
	rng := newRNG(f.RandomState, uint64(i))
	t := tree.NewDecisionTreeRegressor(
		tree.WithCriterion(f.Criterion),
		tree.WithMaxDepth(f.MaxDepth),
		tree.WithMinSamplesSplit(f.MinSamplesSplit),
		tree.WithMinSamplesLeaf(f.MinSamplesLeaf),
		tree.WithMaxFeatures(f.MaxFeatures),
		tree.WithRandomState(int64(rng.Uint64()>>1)),
	)
	var weights []float64
	if f.Bootstrap {
		weights = bootstrapCounts(rng, rows)
	}
	if err := t.FitWeighted(X, y, weights); err != nil {
		return nil, err
	}
	return t, nil
}

// Predict averages the tree predictions.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := f.State.CheckFeatures("RandomForestRegressor.Predict", c); err != nil {
		return nil, err
	}

	rows := rowsOf(X)
	out := mat.NewDense(r, 1, nil)
	for i, row := range rows {
		sum := 0.0
		for _, t := range f.Trees {
			sum += t.PredictRow(row)
		}
		out.Set(i, 0, sum/float64(len(f.Trees)))
	}
	return out, nil
}

// GetParams returns the hyperparameters.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.NEstimators,
		"criterion":         f.Criterion,
		"max_depth":         f.MaxDepth,
		"min_samples_split": f.MinSamplesSplit,
		"min_samples_leaf":  f.MinSamplesLeaf,
		"max_features":      f.MaxFeatures,
		"bootstrap":         f.Bootstrap,
		"random_state":      f.RandomState,
		"n_jobs":            f.NJobs,
	}
}

// SetParams sets the hyperparameters.
func (f *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("RandomForestRegressor", params, map[string]interface{}{
		"n_estimators":      &f.NEstimators,
		"criterion":         &f.Criterion,
		"max_depth":         &f.MaxDepth,
		"min_samples_split": &f.MinSamplesSplit,
		"min_samples_leaf":  &f.MinSamplesLeaf,
		"max_features":      &f.MaxFeatures,
		"bootstrap":         &f.Bootstrap,
		"random_state":      &f.RandomState,
		"n_jobs":            &f.NJobs,
	})
}

// Clone returns an unfitted copy with the same hyperparameters.
func (f *RandomForestRegressor) Clone() model.Regressor {
	c := *f
	c.State = model.NewStateManager()
	c.Trees = nil
	return &c
}
