package training

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/linear"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
	"github.com/YuminosukeSato/scoreml/sklearn/model_selection"
	"github.com/YuminosukeSato/scoreml/sklearn/neighbors"
	"github.com/YuminosukeSato/scoreml/sklearn/tree"
)

type callCounts struct {
	mu                    sync.Mutex
	fit, clone, setParams int
}

func (c *callCounts) inc(field *int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*field++
}

// stubRegressor predicts Score - 0.1·|Alpha-2| for every row, so with
// constScore its score is known in advance.
type stubRegressor struct {
	Score   float64
	Alpha   int
	FailFit bool
	calls   *callCounts
}

func newStub(score float64) *stubRegressor {
	return &stubRegressor{Score: score, Alpha: 2, calls: &callCounts{}}
}

func (s *stubRegressor) Fit(_, _ mat.Matrix) error {
	s.calls.inc(&s.calls.fit)
	if s.FailFit {
		return errors.New("induced fit failure")
	}
	return nil
}

func (s *stubRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	v := s.Score - 0.1*math.Abs(float64(s.Alpha-2))
	for i := 0; i < r; i++ {
		out.Set(i, 0, v)
	}
	return out, nil
}

func (s *stubRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"alpha": s.Alpha}
}

func (s *stubRegressor) SetParams(params map[string]interface{}) error {
	s.calls.inc(&s.calls.setParams)
	return model.ApplyParams("stubRegressor", params, map[string]interface{}{"alpha": &s.Alpha})
}

func (s *stubRegressor) Clone() model.Regressor {
	s.calls.inc(&s.calls.clone)
	return &stubRegressor{Score: s.Score, Alpha: s.Alpha, FailFit: s.FailFit, calls: s.calls}
}

// constScore reports the first prediction as the score.
func constScore(_, yPred mat.Matrix) (float64, error) {
	return yPred.At(0, 0), nil
}

type recordingSaver struct {
	saved []model.Regressor
	paths []string
	err   error
}

func (r *recordingSaver) Save(path string, obj model.Regressor) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, obj)
	r.paths = append(r.paths, path)
	return nil
}

func arrays(rows int) (*mat.Dense, *mat.Dense) {
	train := mat.NewDense(rows, 3, nil)
	test := mat.NewDense(rows, 3, nil)
	for i := 0; i < rows; i++ {
		for _, m := range []*mat.Dense{train, test} {
			m.Set(i, 0, float64(i))
			m.Set(i, 1, float64(i%3))
			m.Set(i, 2, float64(2*i+i%3))
		}
	}
	return train, test
}

func xy(rows int) (*mat.Dense, *mat.Dense) {
	train, _ := arrays(rows)
	return splitTarget(train)
}

func stubCatalog(stubs ...*stubRegressor) func() []Candidate {
	names := []string{"A", "B", "C", "D"}
	return func() []Candidate {
		out := make([]Candidate, len(stubs))
		for i, s := range stubs {
			out[i] = Candidate{Name: names[i], Estimator: s}
		}
		return out
	}
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	names := make([]string, len(catalog))
	for i, c := range catalog {
		names[i] = c.Name
		require.NotNil(t, c.Estimator)
	}
	assert.Equal(t, []string{
		"Linear Regression", "Decision Tree", "Random Forest", "Gradient Boosting",
		"AdaBoost", "K-Nearest Neighbors", "XGBoost", "CatBoost",
	}, names)

	grids := DefaultGrids()
	assert.Zero(t, grids[LinearRegressionName].Size())
	assert.Zero(t, grids[KNeighborsName].Size())
	assert.Equal(t, 4, grids[DecisionTreeName].Size())
	assert.Equal(t, 144, grids[GradientBoostingName].Size())
	assert.Equal(t, 27, grids[CatBoostName].Size())

	// every grid key must be accepted by its estimator
	for _, c := range catalog {
		combos, err := grids[c.Name].Combinations()
		require.NoError(t, err)
		for _, p := range combos {
			require.NoError(t, c.Estimator.Clone().SetParams(p), "%s %v", c.Name, p)
		}
	}

	merged := grids.Merge(Grids{RandomForestName: {"n_estimators": {4}}})
	assert.Equal(t, 1, merged[RandomForestName].Size())
	assert.Equal(t, 6, grids[RandomForestName].Size(), "merge must not modify the receiver")
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	X, y := xy(12)

	t.Run("one entry per candidate in catalog order", func(t *testing.T) {
		e := NewEvaluator(WithScoring(constScore))
		report, err := e.Evaluate(ctx, X, y, X, y, stubCatalog(newStub(0.3), newStub(0.9), newStub(0.5))(), nil)
		require.NoError(t, err)
		require.Len(t, report.Results, 3)
		for i, name := range []string{"A", "B", "C"} {
			assert.Equal(t, name, report.Results[i].Name)
			assert.Equal(t, i, report.Results[i].Index)
		}
		b, ok := report.Get("B")
		require.True(t, ok)
		assert.Equal(t, 0.9, b.TestR2)
		_, ok = report.Get("Z")
		assert.False(t, ok)
	})

	t.Run("empty grid fits once without search", func(t *testing.T) {
		stub := newStub(0.7)
		e := NewEvaluator(WithScoring(constScore))
		report, err := e.Evaluate(ctx, X, y, X, y, []Candidate{{"A", stub}},
			Grids{"A": model_selection.ParamGrid{}})
		require.NoError(t, err)

		res := report.Results[0]
		assert.Nil(t, res.BestParams)
		assert.False(t, res.Searched)
		assert.Same(t, stub, res.Estimator)
		assert.Equal(t, 1, stub.calls.fit)
		assert.Equal(t, 0, stub.calls.clone)
		assert.Equal(t, 0, stub.calls.setParams)
	})

	t.Run("grid search picks params from the grid", func(t *testing.T) {
		stub := newStub(0.7)
		grid := model_selection.ParamGrid{"alpha": {1, 2, 3}}
		e := NewEvaluator(WithScoring(constScore))
		report, err := e.Evaluate(ctx, X, y, X, y, []Candidate{{"A", stub}}, Grids{"A": grid})
		require.NoError(t, err)

		res := report.Results[0]
		assert.True(t, res.Searched)
		assert.Contains(t, grid["alpha"], res.BestParams["alpha"])
		assert.Equal(t, 2, res.BestParams["alpha"])
		assert.InDelta(t, 0.7, res.CVScore, 1e-12)
		assert.NotSame(t, stub, res.Estimator)
		// 3 configurations × 3 folds + refit
		assert.Equal(t, 10, stub.calls.fit)
	})

	t.Run("fit failure aborts the evaluation", func(t *testing.T) {
		bad := newStub(0.9)
		bad.FailFit = true
		good := newStub(0.9)
		e := NewEvaluator(WithScoring(constScore))
		report, err := e.Evaluate(ctx, X, y, X, y, stubCatalog(bad, good)(), nil)
		assert.Nil(t, report)

		var fe *errors.FitError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "A", fe.Model)
		assert.Equal(t, 0, good.calls.fit)
	})

	t.Run("search failure is a SearchError", func(t *testing.T) {
		bad := newStub(0.9)
		bad.FailFit = true
		e := NewEvaluator(WithScoring(constScore))
		_, err := e.Evaluate(ctx, X, y, X, y, []Candidate{{"A", bad}},
			Grids{"A": {"alpha": {1, 2}}})
		var se *errors.SearchError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "A", se.Model)
	})

	t.Run("shape validation", func(t *testing.T) {
		e := NewEvaluator()
		cands := []Candidate{{"A", newStub(1)}}
		Xbad := mat.NewDense(12, 3, nil)
		ybad := mat.NewDense(11, 1, nil)

		cases := []struct {
			name                         string
			Xtrain, ytrain, Xtest, ytest mat.Matrix
		}{
			{"train rows", X, ybad, X, y},
			{"test rows", X, y, X, ybad},
			{"feature width", X, y, Xbad, y},
			{"target width", X, mat.NewDense(12, 2, nil), X, y},
		}
		for _, tc := range cases {
			_, err := e.Evaluate(ctx, tc.Xtrain, tc.ytrain, tc.Xtest, tc.ytest, cands, nil)
			var ie *errors.InputShapeError
			assert.True(t, errors.As(err, &ie), tc.name)
		}

		_, err := e.Evaluate(ctx, X, y, X, y, nil, nil)
		var ie *errors.InputShapeError
		assert.True(t, errors.As(err, &ie))

		_, err = e.Evaluate(ctx, X, y, X, y, []Candidate{{"A", newStub(1)}, {"A", newStub(1)}}, nil)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		stub := newStub(0.9)
		_, err := NewEvaluator().Evaluate(cctx, X, y, X, y, []Candidate{{"A", stub}}, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, stub.calls.fit)
	})

	t.Run("workers do not change the report", func(t *testing.T) {
		catalog := func() []Candidate {
			return []Candidate{
				{"Linear", linear.NewLinearRegression()},
				{"Tree", tree.NewDecisionTreeRegressor()},
				{"KNN", neighbors.NewKNeighborsRegressor()},
			}
		}
		grids := Grids{"KNN": {"n_neighbors": {1, 3}}}
		seq, err := NewEvaluator().Evaluate(ctx, X, y, X, y, catalog(), grids)
		require.NoError(t, err)
		par, err := NewEvaluator(WithWorkers(3)).Evaluate(ctx, X, y, X, y, catalog(), grids)
		require.NoError(t, err)

		for i := range seq.Results {
			assert.Equal(t, seq.Results[i].Name, par.Results[i].Name)
			assert.Equal(t, seq.Results[i].TestR2, par.Results[i].TestR2)
			assert.Equal(t, seq.Results[i].BestParams, par.Results[i].BestParams)
		}
	})

	t.Run("one span per candidate", func(t *testing.T) {
		sr := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
		defer tp.Shutdown(ctx)

		e := NewEvaluator(WithScoring(constScore), WithTracerProvider(tp))
		_, err := e.Evaluate(ctx, X, y, X, y, stubCatalog(newStub(0.2), newStub(0.4))(), nil)
		require.NoError(t, err)

		spans := sr.Ended()
		require.Len(t, spans, 3)
		var names []string
		for _, s := range spans {
			if s.Name() != "training.candidate" {
				continue
			}
			for _, kv := range s.Attributes() {
				if kv.Key == attribute.Key("candidate.name") {
					names = append(names, kv.Value.AsString())
				}
			}
		}
		assert.ElementsMatch(t, []string{"A", "B"}, names)
	})
}

func TestTrainScenarioA(t *testing.T) {
	train := mat.NewDense(3, 3, []float64{
		1, 2, 10,
		2, 3, 12,
		3, 4, 14,
	})
	test := mat.NewDense(1, 3, []float64{1.5, 2.5, 11})

	saver := &recordingSaver{}
	tr := NewTrainer(
		WithCatalog(func() []Candidate {
			return []Candidate{{"Linear", linear.NewLinearRegression()}}
		}),
		WithGrids(Grids{}),
		WithSaver(saver),
	)
	outcome, err := tr.Train(context.Background(), train, test)
	require.NoError(t, err)

	assert.Equal(t, 1.0, outcome.TestR2())
	assert.Equal(t, "Linear", outcome.Selection.Name)
	assert.Nil(t, outcome.Selection.Params)
	assert.Equal(t, StagePersisted, outcome.Stage)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, DefaultModelPath, saver.paths[0])
}

func TestTrainScenarioB(t *testing.T) {
	a, b := newStub(0.9), newStub(0.55)
	saver := &recordingSaver{}
	train, test := arrays(9)

	tr := NewTrainer(
		WithCatalog(stubCatalog(a, b)),
		WithGrids(Grids{}),
		WithSaver(saver),
		WithEvaluator(NewEvaluator(WithScoring(constScore))),
	)
	outcome, err := tr.Train(context.Background(), train, test)
	require.NoError(t, err)

	assert.Equal(t, "A", outcome.Selection.Name)
	assert.Equal(t, 0.9, outcome.TestR2())
	require.Len(t, saver.saved, 1)
	assert.Same(t, a, saver.saved[0])
}

func TestQualityGate(t *testing.T) {
	tests := []struct {
		name   string
		score  float64
		passes bool
	}{
		{"just below", 0.59999, false},
		{"exactly at threshold", 0.6, true},
		{"above", 0.75, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &recordingSaver{}
			var observed []*Outcome
			train, test := arrays(9)
			tr := NewTrainer(
				WithCatalog(stubCatalog(newStub(tt.score))),
				WithGrids(Grids{}),
				WithSaver(saver),
				WithEvaluator(NewEvaluator(WithScoring(constScore))),
				WithObservers(ObserverFunc(func(_ context.Context, o *Outcome) error {
					observed = append(observed, o)
					return nil
				})),
			)
			outcome, err := tr.Train(context.Background(), train, test)
			require.Len(t, observed, 1)

			if tt.passes {
				require.NoError(t, err)
				assert.True(t, outcome.Passed)
				assert.Len(t, saver.saved, 1)
				assert.Equal(t, StagePersisted, observed[0].Stage)
				return
			}
			var ge *errors.QualityGateError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, tt.score, ge.Score)
			assert.Equal(t, DefaultThreshold, ge.Threshold)
			assert.Empty(t, saver.saved)
			assert.Equal(t, StageGatedFail, outcome.Stage)
			assert.False(t, outcome.Passed)
		})
	}
}

func TestTrainTieGoesToEarlierCandidate(t *testing.T) {
	saver := &recordingSaver{}
	first, second := newStub(0.8), newStub(0.8)
	train, test := arrays(9)
	tr := NewTrainer(
		WithCatalog(stubCatalog(first, second)),
		WithGrids(Grids{}),
		WithSaver(saver),
		WithEvaluator(NewEvaluator(WithScoring(constScore))),
	)
	outcome, err := tr.Train(context.Background(), train, test)
	require.NoError(t, err)
	assert.Equal(t, "A", outcome.Selection.Name)
	assert.Same(t, first, saver.saved[0])
}

func TestTrainErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("too few columns", func(t *testing.T) {
		tr := NewTrainer(WithSaver(&recordingSaver{}))
		_, err := tr.Train(ctx, mat.NewDense(3, 1, nil), mat.NewDense(1, 1, nil))
		var ie *errors.InputShapeError
		assert.True(t, errors.As(err, &ie))
	})

	t.Run("column mismatch", func(t *testing.T) {
		tr := NewTrainer(WithSaver(&recordingSaver{}))
		_, err := tr.Train(ctx, mat.NewDense(3, 3, nil), mat.NewDense(1, 4, nil))
		var ie *errors.InputShapeError
		assert.True(t, errors.As(err, &ie))
	})

	t.Run("save failure is a PersistenceError", func(t *testing.T) {
		train, test := arrays(9)
		tr := NewTrainer(
			WithCatalog(stubCatalog(newStub(0.9))),
			WithGrids(Grids{}),
			WithSaver(&recordingSaver{err: errors.New("disk full")}),
			WithEvaluator(NewEvaluator(WithScoring(constScore))),
		)
		_, err := tr.Train(ctx, train, test)
		var pe *errors.PersistenceError
		assert.True(t, errors.As(err, &pe))
	})

	t.Run("observer errors are logged only", func(t *testing.T) {
		train, test := arrays(9)
		logger := log.NewTestLogger(log.LevelDebug)
		tr := NewTrainer(
			WithCatalog(stubCatalog(newStub(0.9))),
			WithGrids(Grids{}),
			WithSaver(&recordingSaver{}),
			WithEvaluator(NewEvaluator(WithScoring(constScore))),
			WithTrainerLogger(logger),
			WithObservers(ObserverFunc(func(context.Context, *Outcome) error {
				return errors.New("registry offline")
			})),
		)
		outcome, err := tr.Train(ctx, train, test)
		require.NoError(t, err)
		assert.True(t, outcome.Passed)
		assert.True(t, logger.ContainsMessage("Observer failed"))
		assert.True(t, logger.ContainsMessage("Best model found on both training and testing data"))
	})
}

func TestPersistRoundTrip(t *testing.T) {
	train := mat.NewDense(5, 3, []float64{
		1, 2, 10,
		2, 1, 9,
		3, 4, 17,
		4, 0, 9,
		5, 5, 21,
	})
	path := filepath.Join(t.TempDir(), "model.gob")
	tr := NewTrainer(
		WithCatalog(func() []Candidate {
			return []Candidate{
				{"Linear", linear.NewLinearRegression()},
				{"Tree", tree.NewDecisionTreeRegressor()},
			}
		}),
		WithGrids(Grids{}),
		WithModelPath(path),
		WithThreshold(-1),
	)
	outcome, err := tr.Train(context.Background(), train, train)
	require.NoError(t, err)

	loaded, err := model.GobStore{}.Load(path)
	require.NoError(t, err)

	X, _ := splitTarget(train)
	want, err := outcome.Selection.Estimator.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
