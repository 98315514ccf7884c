// Package prediction serves single-record predictions from the artifacts a
// training run leaves behind.
package prediction

import (
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/dataset"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
	"github.com/YuminosukeSato/scoreml/preprocessing"
	"github.com/YuminosukeSato/scoreml/training"
)

// Pipeline loads the fitted preprocessor and model on first use and predicts
// math scores for student records. It is safe for concurrent use.
type Pipeline struct {
	PreprocessorPath string
	ModelPath        string
	Loader           model.Loader
	Logger           log.Logger

	once         sync.Once
	loadErr      error
	preprocessor *preprocessing.ColumnTransformer
	model        model.Regressor
}

// NewPipeline creates a pipeline reading the default artifact paths.
func NewPipeline(logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		PreprocessorPath: preprocessing.DefaultPreprocessorPath,
		ModelPath:        training.DefaultModelPath,
		Loader:           model.GobStore{},
		Logger:           logger,
	}
}

func (p *Pipeline) load() error {
	p.once.Do(func() {
		logger := p.Logger
		if logger == nil {
			logger = log.Nop()
		}
		loader := p.Loader
		if loader == nil {
			loader = model.GobStore{}
		}
		p.preprocessor, p.loadErr = preprocessing.LoadColumnTransformer(p.PreprocessorPath)
		if p.loadErr != nil {
			return
		}
		p.model, p.loadErr = loader.Load(p.ModelPath)
		if p.loadErr != nil {
			return
		}
		logger.Info("Prediction artifacts loaded",
			log.ComponentKey, "prediction",
			"model_path", p.ModelPath,
			"preprocessor_path", p.PreprocessorPath,
		)
	})
	return p.loadErr
}

// Predict returns one predicted math score per record. The math score of the
// records is ignored.
func (p *Pipeline) Predict(records []dataset.StudentRecord) ([]float64, error) {
	if len(records) == 0 {
		return nil, errors.NewModelError("Pipeline.Predict", "empty data", errors.ErrEmptyData)
	}
	if err := p.load(); err != nil {
		return nil, err
	}

	X, err := p.preprocessor.Transform(dataset.NewFrame(records))
	if err != nil {
		return nil, errors.Wrap(err, "transform records")
	}
	pred, err := p.model.Predict(X)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	out := mat.Col(nil, 0, pred)
	if p.Logger != nil {
		p.Logger.Debug("Prediction served",
			log.OperationKey, log.OperationPredict,
			log.SamplesKey, len(records),
		)
	}
	return out, nil
}
