package training

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
)

// Defaults of a Trainer.
const (
	DefaultThreshold = 0.6
	DefaultModelPath = "artifacts/model.gob"
)

// Stage is the position of a training run in its lifecycle:
// Start → Evaluated → GatedFail, or Start → Evaluated → Selected → Persisted.
type Stage string

const (
	StageStart     Stage = "start"
	StageEvaluated Stage = "evaluated"
	StageGatedFail Stage = "gated_fail"
	StageSelected  Stage = "selected"
	StagePersisted Stage = "persisted"
)

// Selection is the winning candidate of a report.
type Selection struct {
	Name      string
	Estimator model.Regressor
	Params    map[string]interface{}
	TestR2    float64
}

// Outcome describes a finished training run.
type Outcome struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Stage     Stage

	Report    *Report
	Selection Selection
	Threshold float64
	Passed    bool
	ModelPath string
}

// TestR2 is the winning test score.
func (o *Outcome) TestR2() float64 { return o.Selection.TestR2 }

// Observer is notified once a run has reached a final stage. Observer errors
// are logged and do not change the run's result.
type Observer interface {
	Observe(ctx context.Context, outcome *Outcome) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, outcome *Outcome) error

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, outcome *Outcome) error { return f(ctx, outcome) }

// Trainer runs the evaluation, selection, gating and persistence of one
// training run.
type Trainer struct {
	// Catalog returns the candidates of a run. Nil means DefaultCatalog.
	Catalog func() []Candidate
	// Grids nil means DefaultGrids.
	Grids Grids

	Threshold float64
	ModelPath string
	Saver     model.Saver
	Evaluator *Evaluator
	Logger    log.Logger
	Observers []Observer
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithCatalog replaces the default catalog.
func WithCatalog(catalog func() []Candidate) TrainerOption {
	return func(t *Trainer) { t.Catalog = catalog }
}

// WithGrids replaces the default grids.
func WithGrids(grids Grids) TrainerOption {
	return func(t *Trainer) { t.Grids = grids }
}

// WithThreshold sets the minimum acceptable test R².
func WithThreshold(threshold float64) TrainerOption {
	return func(t *Trainer) { t.Threshold = threshold }
}

// WithModelPath sets where the winner is saved.
func WithModelPath(path string) TrainerOption {
	return func(t *Trainer) { t.ModelPath = path }
}

// WithSaver sets the persistence collaborator.
func WithSaver(s model.Saver) TrainerOption {
	return func(t *Trainer) { t.Saver = s }
}

// WithEvaluator sets the evaluation engine.
func WithEvaluator(e *Evaluator) TrainerOption {
	return func(t *Trainer) { t.Evaluator = e }
}

// WithTrainerLogger sets the trainer's logger.
func WithTrainerLogger(logger log.Logger) TrainerOption {
	return func(t *Trainer) { t.Logger = logger }
}

// WithObservers appends observers.
func WithObservers(obs ...Observer) TrainerOption {
	return func(t *Trainer) { t.Observers = append(t.Observers, obs...) }
}

// NewTrainer creates a trainer over the default catalog and grids with a
// 0.6 threshold, saving to artifacts/model.gob through model.GobStore.
func NewTrainer(opts ...TrainerOption) *Trainer {
	t := &Trainer{
		Threshold: DefaultThreshold,
		ModelPath: DefaultModelPath,
		Saver:     model.GobStore{},
		Logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.Evaluator == nil {
		t.Evaluator = NewEvaluator(WithLogger(t.Logger))
	}
	return t
}

// Train splits both arrays into features (all but the last column) and target
// (last column), evaluates the catalog, selects the candidate with the highest
// test R² and saves it when that score reaches the threshold.
//
// A best score below the threshold returns the outcome together with a
// QualityGateError and nothing is saved. A score exactly at the threshold
// passes. Observers run after the model is saved, or after the gate fails.
func (t *Trainer) Train(ctx context.Context, train, test *mat.Dense) (*Outcome, error) {
	logger := t.Logger
	if logger == nil {
		logger = log.Nop()
	}
	outcome := &Outcome{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Stage:     StageStart,
		Threshold: t.Threshold,
	}
	logger = logger.With(log.RunIDKey, outcome.RunID, log.ComponentKey, "training")

	if train == nil || test == nil {
		return nil, errors.NewInputShapeError("train", []int{1, 2}, []int{0, 0})
	}
	rTr, cTr := train.Dims()
	rTe, cTe := test.Dims()
	if cTr < 2 {
		return nil, errors.NewInputShapeError("train", []int{rTr, 2}, []int{rTr, cTr})
	}
	if cTe != cTr {
		return nil, errors.NewInputShapeError("test", []int{rTe, cTr}, []int{rTe, cTe})
	}

	logger.Info("Split training and test input data",
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, rTr,
		log.FeaturesKey, cTr-1,
		"test_samples", rTe,
	)
	Xtrain, ytrain := splitTarget(train)
	Xtest, ytest := splitTarget(test)

	catalog := DefaultCatalog
	if t.Catalog != nil {
		catalog = t.Catalog
	}
	grids := t.Grids
	if grids == nil {
		grids = DefaultGrids()
	}
	evaluator := t.Evaluator
	if evaluator == nil {
		evaluator = NewEvaluator(WithLogger(logger))
	}

	report, err := evaluator.Evaluate(ctx, Xtrain, ytrain, Xtest, ytest, catalog(), grids)
	if err != nil {
		logger.Error("Evaluation failed", err)
		return nil, err
	}
	outcome.Report = report
	outcome.Stage = StageEvaluated

	sel := Select(report)
	outcome.Selection = sel

	if sel.TestR2 < t.Threshold {
		outcome.Stage = StageGatedFail
		outcome.Duration = time.Since(outcome.StartedAt)
		gateErr := errors.NewQualityGateError(sel.Name, sel.TestR2, t.Threshold)
		logger.Warn("No acceptable model found",
			log.ModelNameKey, sel.Name,
			log.TestR2Key, sel.TestR2,
			log.ThresholdKey, t.Threshold,
		)
		t.notify(ctx, logger, outcome)
		return outcome, gateErr
	}
	outcome.Passed = true
	outcome.Stage = StageSelected
	logger.Info("Best model found on both training and testing data",
		log.ModelNameKey, sel.Name,
		log.TestR2Key, sel.TestR2,
		log.HyperParamsKey, errors.FormatParams(sel.Params),
	)

	saver := t.Saver
	if saver == nil {
		saver = model.GobStore{}
	}
	if err := saver.Save(t.ModelPath, sel.Estimator); err != nil {
		var pe *errors.PersistenceError
		if !errors.As(err, &pe) {
			err = errors.NewPersistenceError("save", t.ModelPath, err)
		}
		logger.Error("Saving the model failed", err, log.PathKey, t.ModelPath)
		return nil, err
	}
	outcome.ModelPath = t.ModelPath
	outcome.Stage = StagePersisted
	outcome.Duration = time.Since(outcome.StartedAt)
	logger.Info("Model saved",
		log.PathKey, t.ModelPath,
		log.OperationKey, log.OperationSave,
		log.DurationMsKey, outcome.Duration.Milliseconds(),
	)

	t.notify(ctx, logger, outcome)
	return outcome, nil
}

func (t *Trainer) notify(ctx context.Context, logger log.Logger, outcome *Outcome) {
	for _, obs := range t.Observers {
		if err := obs.Observe(ctx, outcome); err != nil {
			logger.Warn("Observer failed", log.ErrorTypeKey, err.Error())
		}
	}
}

// Select returns the result with the highest test R². The scan starts from
// negative infinity and only a strictly greater score replaces the current
// best, so ties go to the earlier candidate.
func Select(report *Report) Selection {
	best := Selection{TestR2: math.Inf(-1)}
	for _, r := range report.Results {
		if r.TestR2 > best.TestR2 {
			best = Selection{
				Name:      r.Name,
				Estimator: r.Estimator,
				Params:    r.BestParams,
				TestR2:    r.TestR2,
			}
		}
	}
	return best
}

// splitTarget returns all columns but the last as features and the last as
// a column-vector target.
func splitTarget(data *mat.Dense) (*mat.Dense, *mat.Dense) {
	r, c := data.Dims()
	X := mat.DenseCopyOf(data.Slice(0, r, 0, c-1))
	y := mat.DenseCopyOf(data.Slice(0, r, c-1, c))
	return X, y
}
