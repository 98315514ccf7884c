// Package tree implements CART regression trees.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

func init() {
	model.Register(&DecisionTreeRegressor{})
}

// Node is one node of a fitted tree. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Impurity  float64
	Samples   int
	Weight    float64
}

// IsLeaf reports whether the node is a leaf.
func (n Node) IsLeaf() bool { return n.Feature < 0 }

// DecisionTreeRegressor is a CART regression tree.
type DecisionTreeRegressor struct {
	State *model.StateManager

	Criterion       string
	MaxDepth        int // 0 = unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 = all features
	RandomState     int64

	Nodes []Node
}

var _ model.Regressor = (*DecisionTreeRegressor)(nil)

// NewDecisionTreeRegressor creates a tree with scikit-learn defaults:
// squared_error, unlimited depth, min_samples_split 2, min_samples_leaf 1.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		Criterion:       CriterionSquaredError,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit grows the tree on X and y with unit sample weights.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return t.FitWeighted(X, y, nil)
}

// FitWeighted grows the tree with per-sample weights. Samples with zero
// weight are ignored, which is how bootstrap counts and subsampling masks are
// passed in by the ensembles. A nil slice means unit weights.
func (t *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	rows, cols := X.Dims()
	ry, cy := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != rows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", rows, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "y must be a column vector")
	}
	if sampleWeight != nil && len(sampleWeight) != rows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", rows, len(sampleWeight), 0)
	}
	if err := t.validate(); err != nil {
		return err
	}

	b := &builder{
		criterion: t.Criterion,
		maxDepth:  t.MaxDepth,
		minSplit:  t.MinSamplesSplit,
		minLeaf:   t.MinSamplesLeaf,
		cols:      make([][]float64, cols),
		y:         make([]float64, rows),
		w:         make([]float64, rows),
	}
	for j := 0; j < cols; j++ {
		b.cols[j] = make([]float64, rows)
		for i := 0; i < rows; i++ {
			b.cols[j][i] = X.At(i, j)
		}
	}

	indices := make([]int, 0, rows)
	sumY := 0.0
	for i := 0; i < rows; i++ {
		b.y[i] = y.At(i, 0)
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
		}
		if w < 0 || math.IsNaN(w) {
			return errors.NewValidationError("sample_weight", "must be non-negative", w)
		}
		b.w[i] = w
		if w > 0 {
			indices = append(indices, i)
			sumY += w * b.y[i]
		}
	}
	if len(indices) == 0 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "all sample weights are zero")
	}
	if t.Criterion == CriterionPoisson {
		for _, i := range indices {
			if b.y[i] < 0 {
				return errors.NewValueError("DecisionTreeRegressor.Fit", "some value(s) of y are negative which is not allowed for Poisson regression")
			}
		}
		if sumY <= 0 {
			return errors.NewValueError("DecisionTreeRegressor.Fit", "sum of y is not positive which is necessary for Poisson regression")
		}
	}

	if t.MaxFeatures > 0 && t.MaxFeatures < cols {
		b.maxFeatures = t.MaxFeatures
		b.rng = rand.New(rand.NewPCG(uint64(t.RandomState), 0x5eed))
	}

	b.grow(indices, 0)

	t.Nodes = b.nodes
	if t.State == nil {
		t.State = model.NewStateManager()
	}
	t.State.SetFitted(cols, rows)
	return nil
}

func (t *DecisionTreeRegressor) validate() error {
	if !validCriterion(t.Criterion) {
		return errors.NewValidationError("criterion",
			"must be one of squared_error, friedman_mse, absolute_error, poisson", t.Criterion)
	}
	if t.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", t.MinSamplesLeaf)
	}
	if t.MaxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be >= 0", t.MaxFeatures)
	}
	return nil
}

// Predict returns the leaf value reached by each row of X.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := t.State.CheckFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, t.predictAt(X, i))
	}
	return out, nil
}

// PredictRow evaluates a single feature row. The caller is responsible for
// passing a row of the fitted width.
func (t *DecisionTreeRegressor) PredictRow(row []float64) float64 {
	n := 0
	for !t.Nodes[n].IsLeaf() {
		if row[t.Nodes[n].Feature] <= t.Nodes[n].Threshold {
			n = t.Nodes[n].Left
		} else {
			n = t.Nodes[n].Right
		}
	}
	return t.Nodes[n].Value
}

func (t *DecisionTreeRegressor) predictAt(X mat.Matrix, i int) float64 {
	n := 0
	for !t.Nodes[n].IsLeaf() {
		if X.At(i, t.Nodes[n].Feature) <= t.Nodes[n].Threshold {
			n = t.Nodes[n].Left
		} else {
			n = t.Nodes[n].Right
		}
	}
	return t.Nodes[n].Value
}

// Depth returns the depth of the fitted tree (a single leaf has depth 0).
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(n, d int) int
	walk = func(n, d int) int {
		if t.Nodes[n].IsLeaf() {
			return d
		}
		return max(walk(t.Nodes[n].Left, d+1), walk(t.Nodes[n].Right, d+1))
	}
	return walk(0, 0)
}

// NLeaves returns the number of leaves.
func (t *DecisionTreeRegressor) NLeaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.IsLeaf() {
			n++
		}
	}
	return n
}

// GetParams returns the hyperparameters.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         t.Criterion,
		"max_depth":         t.MaxDepth,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
		"max_features":      t.MaxFeatures,
		"random_state":      t.RandomState,
	}
}

// SetParams sets the hyperparameters. A nil max_depth means unlimited.
func (t *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	if err := model.UnknownParams("DecisionTreeRegressor", params,
		"criterion", "max_depth", "min_samples_split", "min_samples_leaf", "max_features", "random_state"); err != nil {
		return err
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := params[k]
		var err error
		switch k {
		case "criterion":
			t.Criterion, err = model.ParamString(k, v)
			if err == nil && !validCriterion(t.Criterion) {
				err = errors.NewValidationError(k, fmt.Sprintf("unknown criterion %q", t.Criterion), v)
			}
		case "max_depth":
			if v == nil {
				t.MaxDepth = 0
				continue
			}
			t.MaxDepth, err = model.ParamInt(k, v)
		case "min_samples_split":
			t.MinSamplesSplit, err = model.ParamInt(k, v)
		case "min_samples_leaf":
			t.MinSamplesLeaf, err = model.ParamInt(k, v)
		case "max_features":
			t.MaxFeatures, err = model.ParamInt(k, v)
		case "random_state":
			var seed int
			seed, err = model.ParamInt(k, v)
			t.RandomState = int64(seed)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (t *DecisionTreeRegressor) Clone() model.Regressor {
	return &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		Criterion:       t.Criterion,
		MaxDepth:        t.MaxDepth,
		MinSamplesSplit: t.MinSamplesSplit,
		MinSamplesLeaf:  t.MinSamplesLeaf,
		MaxFeatures:     t.MaxFeatures,
		RandomState:     t.RandomState,
	}
}
