// Package catboost implements gradient boosting on oblivious (symmetric)
// decision trees with CatBoost's parameter names and RMSE loss.
package catboost

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

func init() {
	model.Register(&CatBoostRegressor{})
}

// ObliviousTree applies the same (feature, border) test to every node of a
// level. A sample's leaf index is the bit pattern of its test outcomes, with
// level 0 as the most significant bit.
type ObliviousTree struct {
	Features   []int
	Thresholds []float64
	Leaves     []float64
}

func (t *ObliviousTree) leafIndex(row []float64) int {
	idx := 0
	for d, f := range t.Features {
		idx <<= 1
		if row[f] > t.Thresholds[d] {
			idx |= 1
		}
	}
	return idx
}

func (t *ObliviousTree) predict(row []float64) float64 {
	return t.Leaves[t.leafIndex(row)]
}

// CatBoostRegressor boosts oblivious trees on squared error. Borders are
// computed once per feature (BorderCount per feature), every level picks the
// single split that maximises Σ_leaves (Σr)²/(n + l2_leaf_reg), and leaf values
// are Σr/(n + l2_leaf_reg) shrunk by the learning rate.
type CatBoostRegressor struct {
	State *model.StateManager

	Iterations   int
	LearningRate float64
	Depth        int
	L2LeafReg    float64
	BorderCount  int

	BaseScore float64
	Trees     []ObliviousTree
}

var _ model.Regressor = (*CatBoostRegressor)(nil)

// NewCatBoostRegressor creates a regressor with CatBoost's defaults: 1000
// iterations, learning_rate 0.03, depth 6, l2_leaf_reg 3, border_count 254.
func NewCatBoostRegressor() *CatBoostRegressor {
	return &CatBoostRegressor{
		State:        model.NewStateManager(),
		Iterations:   1000,
		LearningRate: 0.03,
		Depth:        6,
		L2LeafReg:    3,
		BorderCount:  254,
	}
}

// WithIterations sets the number of trees.
func (c *CatBoostRegressor) WithIterations(n int) *CatBoostRegressor {
	c.Iterations = n
	return c
}

// WithLearningRate sets the shrinkage.
func (c *CatBoostRegressor) WithLearningRate(lr float64) *CatBoostRegressor {
	c.LearningRate = lr
	return c
}

// WithDepth sets the depth of every oblivious tree.
func (c *CatBoostRegressor) WithDepth(d int) *CatBoostRegressor {
	c.Depth = d
	return c
}

func (c *CatBoostRegressor) validate() error {
	switch {
	case c.Iterations < 1:
		return errors.NewValidationError("iterations", "must be >= 1", c.Iterations)
	case c.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", c.LearningRate)
	case c.Depth < 1 || c.Depth > 16:
		return errors.NewValidationError("depth", "must be in [1, 16]", c.Depth)
	case c.L2LeafReg < 0:
		return errors.NewValidationError("l2_leaf_reg", "must be >= 0", c.L2LeafReg)
	case c.BorderCount < 1:
		return errors.NewValidationError("border_count", "must be >= 1", c.BorderCount)
	}
	return nil
}

// Fit runs the boosting iterations.
func (c *CatBoostRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "CatBoostRegressor.Fit")

	n, nf := X.Dims()
	ry, cy := y.Dims()
	if n == 0 || nf == 0 {
		return errors.NewModelError("CatBoostRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("CatBoostRegressor.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("CatBoostRegressor.Fit", "y must be a column vector")
	}
	if err := c.validate(); err != nil {
		return err
	}

	q := newQuantized(X, c.BorderCount)

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

	residual := make([]float64, n)
	leaf := make([]int, n)
	trees := make([]ObliviousTree, 0, c.Iterations)
	for it := 0; it < c.Iterations; it++ {
		for i := range residual {
			residual[i] = target[i] - pred[i]
		}
		t := c.growTree(q, residual, leaf)
		for i := 0; i < n; i++ {
			pred[i] += t.Leaves[leaf[i]]
		}
		if err := errors.CheckNumericalStability("CatBoostRegressor.Fit", pred, it); err != nil {
			return err
		}
		trees = append(trees, t)
	}

	c.BaseScore = base
	c.Trees = trees
	if c.State == nil {
		c.State = model.NewStateManager()
	}
	c.State.SetFitted(nf, n)
	return nil
}

// growTree builds one oblivious tree on the residuals. On return leaf holds
// each training sample's leaf index.
func (c *CatBoostRegressor) growTree(q *quantized, residual []float64, leaf []int) ObliviousTree {
	for i := range leaf {
		leaf[i] = 0
	}
	t := ObliviousTree{}
	for d := 0; d < c.Depth; d++ {
		nLeaves := 1 << d
		f, b, ok := c.bestLevelSplit(q, residual, leaf, nLeaves)
		if !ok {
			break
		}
		t.Features = append(t.Features, f)
		t.Thresholds = append(t.Thresholds, q.borders[f][b])
		for i := range leaf {
			leaf[i] <<= 1
			if q.bins[f][i] > b {
				leaf[i] |= 1
			}
		}
	}

	nLeaves := 1 << len(t.Features)
	sum := make([]float64, nLeaves)
	cnt := make([]float64, nLeaves)
	for i, r := range residual {
		sum[leaf[i]] += r
		cnt[leaf[i]]++
	}
	t.Leaves = make([]float64, nLeaves)
	for l := range t.Leaves {
		if cnt[l] > 0 {
			t.Leaves[l] = c.LearningRate * sum[l] / (cnt[l] + c.L2LeafReg)
		}
	}
	return t
}

// bestLevelSplit chooses the (feature, border) pair applied to every leaf of
// the current level. Ties keep the lowest feature, then the lowest border.
func (c *CatBoostRegressor) bestLevelSplit(q *quantized, residual []float64, leaf []int, nLeaves int) (int, int, bool) {
	bestScore := math.Inf(-1)
	bestF, bestB := -1, -1

	for f := range q.borders {
		nb := len(q.borders[f])
		if nb == 0 {
			continue
		}
		// per-leaf histograms over bins 0..nb
		nBins := nb + 1
		hs := make([]float64, nLeaves*nBins)
		hc := make([]float64, nLeaves*nBins)
		for i, r := range residual {
			k := leaf[i]*nBins + q.bins[f][i]
			hs[k] += r
			hc[k]++
		}

		totS := make([]float64, nLeaves)
		totC := make([]float64, nLeaves)
		for l := 0; l < nLeaves; l++ {
			for bin := 0; bin < nBins; bin++ {
				totS[l] += hs[l*nBins+bin]
				totC[l] += hc[l*nBins+bin]
			}
		}

		leftS := make([]float64, nLeaves)
		leftC := make([]float64, nLeaves)
		for b := 0; b < nb; b++ {
			score := 0.0
			useful := false
			for l := 0; l < nLeaves; l++ {
				leftS[l] += hs[l*nBins+b]
				leftC[l] += hc[l*nBins+b]
				rs, rc := totS[l]-leftS[l], totC[l]-leftC[l]
				if leftC[l] > 0 && rc > 0 {
					useful = true
				}
				score += c.leafScore(leftS[l], leftC[l]) + c.leafScore(rs, rc)
			}
			if useful && score > bestScore {
				bestScore = score
				bestF, bestB = f, b
			}
		}
	}
	return bestF, bestB, bestF >= 0
}

func (c *CatBoostRegressor) leafScore(sum, count float64) float64 {
	if count == 0 {
		return 0
	}
	return sum * sum / (count + c.L2LeafReg)
}

// Predict returns BaseScore plus the sum of the tree outputs.
func (c *CatBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := c.State.RequireFitted("CatBoostRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, nf := X.Dims()
	if err := c.State.CheckFeatures("CatBoostRegressor.Predict", nf); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, 1, nil)
	row := make([]float64, nf)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		v := c.BaseScore
		for k := range c.Trees {
			v += c.Trees[k].predict(row)
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

// GetParams returns the hyperparameters.
func (c *CatBoostRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"iterations":    c.Iterations,
		"learning_rate": c.LearningRate,
		"depth":         c.Depth,
		"l2_leaf_reg":   c.L2LeafReg,
		"border_count":  c.BorderCount,
	}
}

// SetParams sets the hyperparameters.
func (c *CatBoostRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("CatBoostRegressor", params, map[string]interface{}{
		"iterations":    &c.Iterations,
		"learning_rate": &c.LearningRate,
		"depth":         &c.Depth,
		"l2_leaf_reg":   &c.L2LeafReg,
		"border_count":  &c.BorderCount,
	})
}

// Clone returns an unfitted copy with the same hyperparameters.
func (c *CatBoostRegressor) Clone() model.Regressor {
	cp := *c
	cp.State = model.NewStateManager()
	cp.BaseScore = 0
	cp.Trees = nil
	return &cp
}

// quantized holds per-feature borders and the bin of every training value.
type quantized struct {
	borders [][]float64
	bins    [][]int
}

func newQuantized(X mat.Matrix, borderCount int) *quantized {
	n, nf := X.Dims()
	q := &quantized{
		borders: make([][]float64, nf),
		bins:    make([][]int, nf),
	}
	col := make([]float64, n)
	for f := 0; f < nf; f++ {
		mat.Col(col, f, X)
		q.borders[f] = borders(col, borderCount)
		q.bins[f] = make([]int, n)
		for i, v := range col {
			q.bins[f][i] = binIndex(v, q.borders[f])
		}
	}
	return q
}
