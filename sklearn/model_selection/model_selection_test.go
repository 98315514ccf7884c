package model_selection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/linear"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
	"github.com/YuminosukeSato/scoreml/sklearn/neighbors"
)

// offsetRegressor predicts the training mean plus Offset. Tag has no effect on
// predictions. Fail makes Fit return an error.
type offsetRegressor struct {
	Offset float64
	Tag    string
	Fail   bool
	mean   float64
	fits   *int
}

func newOffsetRegressor() *offsetRegressor {
	return &offsetRegressor{Tag: "a", fits: new(int)}
}

func (o *offsetRegressor) Fit(_, y mat.Matrix) error {
	*o.fits++
	if o.Fail {
		return errors.New("induced failure")
	}
	r, _ := y.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		sum += y.At(i, 0)
	}
	o.mean = sum / float64(r)
	return nil
}

func (o *offsetRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, o.mean+o.Offset)
	}
	return out, nil
}

func (o *offsetRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"offset": o.Offset, "tag": o.Tag, "fail": o.Fail}
}

func (o *offsetRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("offsetRegressor", params, map[string]interface{}{
		"offset": &o.Offset,
		"tag":    &o.Tag,
		"fail":   &o.Fail,
	})
}

func (o *offsetRegressor) Clone() model.Regressor {
	return &offsetRegressor{Offset: o.Offset, Tag: o.Tag, Fail: o.Fail, fits: o.fits}
}

func linearData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := float64(i%11) - 5
		b := float64((i*3)%7) / 2
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		y.Set(i, 0, 2*a-b+1)
	}
	return X, y
}

func TestKFold(t *testing.T) {
	t.Run("fold sizes follow n mod k", func(t *testing.T) {
		folds, err := NewKFold(3).Split(10)
		require.NoError(t, err)
		require.Len(t, folds, 3)

		assert.Equal(t, []int{0, 1, 2, 3}, folds[0].Test)
		assert.Equal(t, []int{4, 5, 6}, folds[1].Test)
		assert.Equal(t, []int{7, 8, 9}, folds[2].Test)
		assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].Train)
	})

	t.Run("every index is tested once", func(t *testing.T) {
		kf := &KFold{NSplits: 4, Shuffle: true, RandomState: 7}
		folds, err := kf.Split(23)
		require.NoError(t, err)

		seen := make(map[int]int)
		for _, f := range folds {
			assert.Equal(t, 23, len(f.Train)+len(f.Test))
			for _, i := range f.Test {
				seen[i]++
			}
		}
		for i := 0; i < 23; i++ {
			assert.Equal(t, 1, seen[i], "index %d", i)
		}
	})

	t.Run("invalid splits", func(t *testing.T) {
		_, err := NewKFold(1).Split(10)
		assert.Error(t, err)
		_, err = NewKFold(5).Split(4)
		assert.Error(t, err)
	})
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(10, 0.25, 42)
	require.NoError(t, err)
	assert.Len(t, test, 3)
	assert.Len(t, train, 7)

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), train...), test...) {
		assert.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, 10)

	train2, test2, err := TrainTestSplit(10, 0.25, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, _, err = TrainTestSplit(10, 1.5, 42)
	assert.Error(t, err)
}

func TestParamGridCombinations(t *testing.T) {
	grid := ParamGrid{
		"b": {1, 2},
		"a": {"x", "y", "z"},
	}
	assert.Equal(t, 6, grid.Size())

	combos, err := grid.Combinations()
	require.NoError(t, err)
	require.Len(t, combos, 6)

	// sorted keys, last key fastest
	assert.Equal(t, map[string]interface{}{"a": "x", "b": 1}, combos[0])
	assert.Equal(t, map[string]interface{}{"a": "x", "b": 2}, combos[1])
	assert.Equal(t, map[string]interface{}{"a": "y", "b": 1}, combos[2])
	assert.Equal(t, map[string]interface{}{"a": "z", "b": 2}, combos[5])

	empty, err := ParamGrid{}.Combinations()
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParamGrid{"a": {}}.Combinations()
	assert.Error(t, err)
}

func TestGridSearchCV(t *testing.T) {
	X, y := linearData(60)

	t.Run("picks the best offset and refits", func(t *testing.T) {
		base := newOffsetRegressor()
		gs := NewGridSearchCV(base, ParamGrid{"offset": {3.0, 0.0, -2.0}})
		require.NoError(t, gs.Fit(context.Background(), X, y))

		assert.Equal(t, 0.0, gs.BestParams["offset"])
		assert.Equal(t, 1, gs.BestIndex)
		require.Len(t, gs.CVResults, 3)
		assert.Len(t, gs.CVResults[0].FoldScores, 3)
		// three configurations times three folds plus the refit
		assert.Equal(t, 10, *base.fits)
		assert.Equal(t, 0.0, base.Offset, "base estimator must not change")

		best := gs.BestEstimator.(*offsetRegressor)
		assert.Equal(t, 0.0, best.Offset)
	})

	t.Run("first configuration wins ties", func(t *testing.T) {
		gs := NewGridSearchCV(newOffsetRegressor(), ParamGrid{"tag": {"first", "second"}})
		require.NoError(t, gs.Fit(context.Background(), X, y))
		assert.Equal(t, "first", gs.BestParams["tag"])
		assert.Equal(t, gs.CVResults[0].MeanScore, gs.CVResults[1].MeanScore)
	})

	t.Run("failure is a SearchError naming the params", func(t *testing.T) {
		gs := NewGridSearchCV(newOffsetRegressor(), ParamGrid{"fail": {false, true}}, WithName("Stub"))
		err := gs.Fit(context.Background(), X, y)
		require.Error(t, err)

		var se *errors.SearchError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "Stub", se.Model)
		assert.Equal(t, true, se.Params["fail"])
		assert.Nil(t, gs.BestEstimator)
	})

	t.Run("unknown parameter fails", func(t *testing.T) {
		gs := NewGridSearchCV(newOffsetRegressor(), ParamGrid{"depth": {1}})
		assert.Error(t, gs.Fit(context.Background(), X, y))
	})

	t.Run("cancelled context stops the search", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		base := newOffsetRegressor()
		gs := NewGridSearchCV(base, ParamGrid{"offset": {0.0}})
		err := gs.Fit(ctx, X, y)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, *base.fits)
	})

	t.Run("knn neighbours on real data", func(t *testing.T) {
		gs := NewGridSearchCV(neighbors.NewKNeighborsRegressor(),
			ParamGrid{"n_neighbors": {1, 3, 5}, "weights": {"uniform", "distance"}},
			WithCV(5))
		require.NoError(t, gs.Fit(context.Background(), X, y))
		assert.Len(t, gs.CVResults, 6)
		assert.False(t, math.IsNaN(gs.BestScore))
		assert.Contains(t, []interface{}{1, 3, 5}, gs.BestParams["n_neighbors"])
	})

	t.Run("linear model scores near one and logs each point", func(t *testing.T) {
		logger := log.NewTestLogger(log.LevelDebug)
		gs := NewGridSearchCV(linear.NewLinearRegression(),
			ParamGrid{"fit_intercept": {true, false}}, WithLogger(logger), WithName("Linear Regression"))
		require.NoError(t, gs.Fit(context.Background(), X, y))

		assert.Equal(t, true, gs.BestParams["fit_intercept"])
		assert.InDelta(t, 1.0, gs.BestScore, 1e-9)
		assert.Equal(t, 2, logger.Count("Grid point evaluated"))
		assert.True(t, logger.ContainsField(log.ModelNameKey, "Linear Regression"))
	})
}
