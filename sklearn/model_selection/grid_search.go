package model_selection

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/metrics"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
)

// ScoreFunc scores predictions against targets; larger is better.
type ScoreFunc func(yTrue, yPred mat.Matrix) (float64, error)

// CVResult records the cross-validated score of one parameter combination.
type CVResult struct {
	Params     map[string]interface{}
	FoldScores []float64
	MeanScore  float64
}

// GridSearchCV exhaustively evaluates every combination of ParamGrid with
// K-fold cross-validation and refits the best combination on the full data.
//
// Each fold fits a fresh clone of Estimator, so Estimator itself is never
// fitted or modified. The best combination is the one with the highest mean
// fold score; among equal means the earliest in grid order wins.
type GridSearchCV struct {
	Estimator model.Regressor
	ParamGrid ParamGrid
	CV        *KFold
	Scoring   ScoreFunc

	// Name labels errors and log records, typically the candidate name.
	Name   string
	Logger log.Logger

	CVResults     []CVResult
	BestIndex     int
	BestParams    map[string]interface{}
	BestScore     float64
	BestEstimator model.Regressor
}

// GridSearchOption configures a GridSearchCV.
type GridSearchOption func(*GridSearchCV)

// WithCV sets the number of unshuffled folds.
func WithCV(folds int) GridSearchOption {
	return func(g *GridSearchCV) { g.CV = NewKFold(folds) }
}

// WithScoring replaces the default R² scorer.
func WithScoring(fn ScoreFunc) GridSearchOption {
	return func(g *GridSearchCV) { g.Scoring = fn }
}

// WithName sets the label used in errors and logs.
func WithName(name string) GridSearchOption {
	return func(g *GridSearchCV) { g.Name = name }
}

// WithLogger sets the logger used for per-combination debug records.
func WithLogger(logger log.Logger) GridSearchOption {
	return func(g *GridSearchCV) { g.Logger = logger }
}

// NewGridSearchCV creates a search with 3 unshuffled folds and R² scoring.
func NewGridSearchCV(estimator model.Regressor, grid ParamGrid, opts ...GridSearchOption) *GridSearchCV {
	g := &GridSearchCV{
		Estimator: estimator,
		ParamGrid: grid,
		CV:        NewKFold(3),
		Scoring:   metrics.R2ScoreMatrix,
		Logger:    log.Nop(),
		BestIndex: -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fit runs the search. Any failing fit or score aborts the search with a
// SearchError naming the offending combination.
func (g *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	combos, err := g.ParamGrid.Combinations()
	if err != nil {
		return errors.NewSearchError(g.Name, nil, err)
	}
	if len(combos) == 0 {
		return errors.NewSearchError(g.Name, nil, errors.New("empty parameter grid"))
	}

	n, _ := X.Dims()
	folds, err := g.CV.Split(n)
	if err != nil {
		return errors.NewSearchError(g.Name, nil, err)
	}

	type foldData struct{ Xtr, ytr, Xte, yte *mat.Dense }
	data := make([]foldData, len(folds))
	for i, f := range folds {
		data[i] = foldData{
			Xtr: TakeRows(X, f.Train), ytr: TakeRows(y, f.Train),
			Xte: TakeRows(X, f.Test), yte: TakeRows(y, f.Test),
		}
	}

	results := make([]CVResult, 0, len(combos))
	bestIdx, bestScore := -1, math.Inf(-1)
	for ci, params := range combos {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()

		scores := make([]float64, len(folds))
		for fi, d := range data {
			est := g.Estimator.Clone()
			if err := est.SetParams(params); err != nil {
				return errors.NewSearchError(g.Name, params, err)
			}
			if err := est.Fit(d.Xtr, d.ytr); err != nil {
				return errors.NewSearchError(g.Name, params, err)
			}
			pred, err := est.Predict(d.Xte)
			if err != nil {
				return errors.NewSearchError(g.Name, params, err)
			}
			s, err := g.Scoring(d.yte, pred)
			if err != nil {
				return errors.NewSearchError(g.Name, params, err)
			}
			scores[fi] = s
		}

		mean := 0.0
		for _, s := range scores {
			mean += s
		}
		mean /= float64(len(scores))
		results = append(results, CVResult{Params: params, FoldScores: scores, MeanScore: mean})

		g.Logger.Debug("Grid point evaluated",
			log.ModelNameKey, g.Name,
			log.HyperParamsKey, errors.FormatParams(params),
			log.CVScoreKey, mean,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)

		if !math.IsNaN(mean) && mean > bestScore {
			bestIdx, bestScore = ci, mean
		}
	}
	if bestIdx < 0 {
		return errors.NewSearchError(g.Name, nil, errors.New("no parameter combination produced a finite score"))
	}

	best := g.Estimator.Clone()
	bestParams := combos[bestIdx]
	if err := best.SetParams(bestParams); err != nil {
		return errors.NewSearchError(g.Name, bestParams, err)
	}
	if err := best.Fit(X, y); err != nil {
		return errors.NewSearchError(g.Name, bestParams, err)
	}

	g.CVResults = results
	g.BestIndex = bestIdx
	g.BestParams = model.CopyParams(bestParams)
	g.BestScore = bestScore
	g.BestEstimator = best
	return nil
}
