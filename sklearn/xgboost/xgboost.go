// Package xgboost implements a second-order gradient-boosted tree regressor
// with XGBoost's regularised objective and parameter names.
package xgboost

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

func init() {
	model.Register(&XGBRegressor{})
}

// XGBRegressor boosts depth-wise regression trees on the squared error
// objective (reg:squarederror). Each split maximises
//
//	½·[G_L²/(H_L+λ) + G_R²/(H_R+λ) − G²/(H+λ)] − γ
//
// and each leaf takes the weight −G/(H+λ) scaled by the learning rate.
type XGBRegressor struct {
	State *model.StateManager

	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	MinChildWeight  float64
	Gamma           float64
	RegLambda       float64
	RegAlpha        float64
	Subsample       float64
	ColsampleBytree float64
	RandomState     int64

	BaseScore float64
	Trees     []Tree
}

var _ model.Regressor = (*XGBRegressor)(nil)

// NewXGBRegressor creates a regressor with XGBoost's defaults: eta 0.3,
// 100 rounds, max_depth 6, lambda 1, min_child_weight 1.
func NewXGBRegressor() *XGBRegressor {
	return &XGBRegressor{
		State:           model.NewStateManager(),
		NEstimators:     100,
		LearningRate:    0.3,
		MaxDepth:        6,
		MinChildWeight:  1,
		RegLambda:       1,
		Subsample:       1,
		ColsampleBytree: 1,
		RandomState:     42,
	}
}

// WithNEstimators sets the number of boosting rounds.
func (x *XGBRegressor) WithNEstimators(n int) *XGBRegressor {
	x.NEstimators = n
	return x
}

// WithLearningRate sets eta.
func (x *XGBRegressor) WithLearningRate(lr float64) *XGBRegressor {
	x.LearningRate = lr
	return x
}

// WithMaxDepth sets the maximum tree depth.
func (x *XGBRegressor) WithMaxDepth(d int) *XGBRegressor {
	x.MaxDepth = d
	return x
}

func (x *XGBRegressor) validate() error {
	switch {
	case x.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", x.NEstimators)
	case x.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", x.LearningRate)
	case x.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", x.MaxDepth)
	case x.RegLambda < 0:
		return errors.NewValidationError("reg_lambda", "must be >= 0", x.RegLambda)
	case x.RegAlpha < 0:
		return errors.NewValidationError("reg_alpha", "must be >= 0", x.RegAlpha)
	case x.Subsample <= 0 || x.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", x.Subsample)
	case x.ColsampleBytree <= 0 || x.ColsampleBytree > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", x.ColsampleBytree)
	}
	return nil
}

// Fit runs the boosting rounds.
func (x *XGBRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "XGBRegressor.Fit")

	n, nf := X.Dims()
	ry, cy := y.Dims()
	if n == 0 || nf == 0 {
		return errors.NewModelError("XGBRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("XGBRegressor.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("XGBRegressor.Fit", "y must be a column vector")
	}
	if err := x.validate(); err != nil {
		return err
	}

	cols := make([][]float64, nf)
	for j := range cols {
		cols[j] = make([]float64, n)
		for i := 0; i < n; i++ {
			cols[j][i] = X.At(i, j)
		}
	}
	target := make([]float64, n)
	base := 0.0
	for i := range target {
		target[i] = y.At(i, 0)
		base += target[i]
	}
	base /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}

	rng := newRNG(x.RandomState)
	grad := make([]float64, n)
	hess := make([]float64, n)
	row := make([]float64, nf)
	trees := make([]Tree, 0, x.NEstimators)

	for round := 0; round < x.NEstimators; round++ {
		// reg:squarederror: g = ŷ − y, h = 1
		for i := range grad {
			grad[i] = pred[i] - target[i]
			hess[i] = 1
		}

		indices := sampleRows(rng, n, x.Subsample)
		g := &grower{
			params: x,
			cols:   cols,
			grad:   grad,
			hess:   hess,
			feats:  sampleColumns(rng, nf, x.ColsampleBytree),
		}
		g.build(indices, 0)
		t := Tree{Nodes: g.nodes}

		for i := 0; i < n; i++ {
			for j := 0; j < nf; j++ {
				row[j] = cols[j][i]
			}
			pred[i] += t.predict(row)
		}
		if err := errors.CheckNumericalStability("XGBRegressor.Fit", pred, round); err != nil {
			return err
		}
		trees = append(trees, t)
	}

	x.BaseScore = base
	x.Trees = trees
	if x.State == nil {
		x.State = model.NewStateManager()
	}
	x.State.SetFitted(nf, n)
	return nil
}

// Predict returns BaseScore plus the sum of the tree outputs.
func (x *XGBRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := x.State.RequireFitted("XGBRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := x.State.CheckFeatures("XGBRegressor.Predict", c); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		v := x.BaseScore
		for k := range x.Trees {
			v += x.Trees[k].predict(row)
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

// FeatureImportance returns the total split gain per feature.
func (x *XGBRegressor) FeatureImportance() []float64 {
	imp := make([]float64, x.State.Features())
	for _, t := range x.Trees {
		for _, n := range t.Nodes {
			if n.Feature >= 0 {
				imp[n.Feature] += n.Gain
			}
		}
	}
	return imp
}

// GetParams returns the hyperparameters.
func (x *XGBRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     x.NEstimators,
		"learning_rate":    x.LearningRate,
		"max_depth":        x.MaxDepth,
		"min_child_weight": x.MinChildWeight,
		"gamma":            x.Gamma,
		"reg_lambda":       x.RegLambda,
		"reg_alpha":        x.RegAlpha,
		"subsample":        x.Subsample,
		"colsample_bytree": x.ColsampleBytree,
		"random_state":     x.RandomState,
	}
}

// SetParams sets the hyperparameters.
func (x *XGBRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("XGBRegressor", params, map[string]interface{}{
		"n_estimators":     &x.NEstimators,
		"learning_rate":    &x.LearningRate,
		"max_depth":        &x.MaxDepth,
		"min_child_weight": &x.MinChildWeight,
		"gamma":            &x.Gamma,
		"reg_lambda":       &x.RegLambda,
		"reg_alpha":        &x.RegAlpha,
		"subsample":        &x.Subsample,
		"colsample_bytree": &x.ColsampleBytree,
		"random_state":     &x.RandomState,
	})
}

// Clone returns an unfitted copy with the same hyperparameters.
func (x *XGBRegressor) Clone() model.Regressor {
	c := *x
	c.State = model.NewStateManager()
	c.BaseScore = 0
	c.Trees = nil
	return &c
}
