package training

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/metrics"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
	"github.com/YuminosukeSato/scoreml/sklearn/model_selection"
)

const tracerName = "github.com/YuminosukeSato/scoreml/training"

// Result is the evaluation of one candidate.
type Result struct {
	Name      string
	Index     int
	Estimator model.Regressor

	// BestParams is nil when the candidate was fitted without a search.
	BestParams map[string]interface{}
	TrainR2    float64
	TestR2     float64

	// CVScore is the mean fold score of BestParams; zero without a search.
	CVScore  float64
	Searched bool
	Duration time.Duration
}

// Report holds one Result per candidate in catalog order.
type Report struct {
	Results []Result
}

// Get returns the result of the named candidate.
func (r *Report) Get(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return Result{}, false
}

// Evaluator fits and scores every candidate of a catalog.
type Evaluator struct {
	// CVFolds is the fold count of grid searches.
	CVFolds int

	// Workers bounds how many candidates are evaluated at once.
	Workers int

	Scoring        model_selection.ScoreFunc
	Logger         log.Logger
	TracerProvider trace.TracerProvider
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithCVFolds sets the grid-search fold count.
func WithCVFolds(folds int) EvaluatorOption {
	return func(e *Evaluator) { e.CVFolds = folds }
}

// WithWorkers sets how many candidates run concurrently.
func WithWorkers(n int) EvaluatorOption {
	return func(e *Evaluator) { e.Workers = n }
}

// WithScoring replaces R² as the score of searches and splits.
func WithScoring(fn model_selection.ScoreFunc) EvaluatorOption {
	return func(e *Evaluator) { e.Scoring = fn }
}

// WithLogger sets the evaluator's logger.
func WithLogger(logger log.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.Logger = logger }
}

// WithTracerProvider sets where candidate spans are sent.
func WithTracerProvider(tp trace.TracerProvider) EvaluatorOption {
	return func(e *Evaluator) { e.TracerProvider = tp }
}

// NewEvaluator creates a sequential evaluator with 3-fold searches scored by R².
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		CVFolds: 3,
		Workers: 1,
		Scoring: metrics.R2ScoreMatrix,
		Logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate fits every candidate on the training split and scores it on both
// splits. Candidates with a non-empty grid are tuned with a cross-validated
// grid search and refitted on the whole training split with the best
// parameters; the others are fitted once with their current parameters.
//
// The first failure aborts the evaluation and no report is returned.
// Evaluate writes nothing to disk.
func (e *Evaluator) Evaluate(ctx context.Context, Xtrain, ytrain, Xtest, ytest mat.Matrix,
	candidates []Candidate, grids Grids) (*Report, error) {
	if err := validateInputs(Xtrain, ytrain, Xtest, ytest, candidates); err != nil {
		return nil, err
	}

	tp := e.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(tracerName)
	logger := e.Logger
	if logger == nil {
		logger = log.Nop()
	}

	ctx, span := tracer.Start(ctx, "training.Evaluate",
		trace.WithAttributes(attribute.Int("candidates", len(candidates))))
	defer span.End()

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.evaluateOne(gctx, tracer, logger, i, c, grids[c.Name],
				Xtrain, ytrain, Xtest, ytest)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	// Prefer the caller's cancellation over a partially filled report.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &Report{Results: results}, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, tracer trace.Tracer, logger log.Logger,
	index int, c Candidate, grid model_selection.ParamGrid,
	Xtrain, ytrain, Xtest, ytest mat.Matrix) (Result, error) {
	start := time.Now()
	searched := grid.Size() > 0

	ctx, span := tracer.Start(ctx, "training.candidate",
		trace.WithAttributes(
			attribute.String("candidate.name", c.Name),
			attribute.Int("candidate.index", index),
			attribute.Bool("candidate.searched", searched),
			attribute.Int("candidate.grid_size", grid.Size()),
		),
	)
	defer span.End()
	fail := func(err error) (Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Candidate evaluation failed", err, log.ModelNameKey, c.Name)
		return Result{}, err
	}

	res := Result{Name: c.Name, Index: index, Searched: searched}
	if searched {
		logger.Info("Hyperparameter tuning started",
			log.ModelNameKey, c.Name,
			log.OperationKey, log.OperationSearch,
			log.GridSizeKey, grid.Size(),
			log.FoldsKey, e.CVFolds,
		)
		gs := model_selection.NewGridSearchCV(c.Estimator, grid,
			model_selection.WithCV(e.CVFolds),
			model_selection.WithScoring(e.Scoring),
			model_selection.WithName(c.Name),
			model_selection.WithLogger(logger),
		)
		if err := gs.Fit(ctx, Xtrain, ytrain); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return fail(err)
			}
			var se *errors.SearchError
			if !errors.As(err, &se) {
				err = errors.NewSearchError(c.Name, nil, err)
			}
			return fail(err)
		}
		res.Estimator = gs.BestEstimator
		res.BestParams = gs.BestParams
		res.CVScore = gs.BestScore
	} else {
		logger.Info("Fitting with default parameters",
			log.ModelNameKey, c.Name,
			log.OperationKey, log.OperationFit,
		)
		if err := c.Estimator.Fit(Xtrain, ytrain); err != nil {
			return fail(errors.NewFitError(c.Name, err))
		}
		res.Estimator = c.Estimator
	}

	trainR2, err := e.score(res.Estimator, Xtrain, ytrain)
	if err != nil {
		return fail(errors.NewFitError(c.Name, err))
	}
	testR2, err := e.score(res.Estimator, Xtest, ytest)
	if err != nil {
		return fail(errors.NewFitError(c.Name, err))
	}
	res.TrainR2, res.TestR2 = trainR2, testR2
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Float64("candidate.train_r2", trainR2),
		attribute.Float64("candidate.test_r2", testR2),
	)
	span.SetStatus(codes.Ok, "")

	fields := []any{
		log.ModelNameKey, c.Name,
		log.TrainR2Key, trainR2,
		log.TestR2Key, testR2,
		log.DurationMsKey, res.Duration.Milliseconds(),
	}
	if searched {
		fields = append(fields,
			log.CVScoreKey, res.CVScore,
			log.HyperParamsKey, errors.FormatParams(res.BestParams),
		)
	}
	logger.Info("Candidate evaluated", fields...)
	return res, nil
}

func (e *Evaluator) score(est model.Regressor, X, y mat.Matrix) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	scoring := e.Scoring
	if scoring == nil {
		scoring = metrics.R2ScoreMatrix
	}
	return scoring(y, pred)
}

func validateInputs(Xtrain, ytrain, Xtest, ytest mat.Matrix, candidates []Candidate) error {
	if len(candidates) == 0 {
		return errors.NewInputShapeError("candidates", []int{1}, []int{0})
	}
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.Estimator == nil {
			return errors.NewValidationError("candidates", "candidate has no estimator", c.Name)
		}
		if seen[c.Name] {
			return errors.NewValidationError("candidates", "duplicate candidate name", c.Name)
		}
		seen[c.Name] = true
	}

	if Xtrain == nil || ytrain == nil || Xtest == nil || ytest == nil {
		return errors.NewInputShapeError("evaluate", []int{1, 1}, []int{0, 0})
	}
	rTr, cTr := Xtrain.Dims()
	ryTr, cyTr := ytrain.Dims()
	rTe, cTe := Xtest.Dims()
	ryTe, cyTe := ytest.Dims()

	switch {
	case rTr == 0 || cTr == 0:
		return errors.NewInputShapeError("train", []int{1, 1}, []int{rTr, cTr})
	case rTe == 0:
		return errors.NewInputShapeError("test", []int{1, cTr}, []int{rTe, cTe})
	case ryTr != rTr || cyTr != 1:
		return errors.NewInputShapeError("train target", []int{rTr, 1}, []int{ryTr, cyTr})
	case ryTe != rTe || cyTe != 1:
		return errors.NewInputShapeError("test target", []int{rTe, 1}, []int{ryTe, cyTe})
	case cTe != cTr:
		return errors.NewInputShapeError("test features", []int{rTe, cTr}, []int{rTe, cTe})
	}
	return nil
}
