package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/dataset"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
)

// DefaultPreprocessorPath is where the fitted transformer is stored.
const DefaultPreprocessorPath = "artifacts/preprocessor.gob"

// NewStudentTransformer builds the transformer for the student table:
// writing and reading scores are median-imputed and standardized; the five
// categorical columns are mode-imputed, one-hot encoded without their first
// category and scaled to unit variance without centering.
func NewStudentTransformer() *ColumnTransformer {
	return &ColumnTransformer{
		Numeric: &NumericPipeline{
			Columns: append([]string(nil), dataset.NumericFeatures...),
			Imputer: NewSimpleImputer(StrategyMedian),
			Scaler:  NewStandardScaler(true, true),
		},
		Categorical: &CategoricalPipeline{
			Columns: append([]string(nil), dataset.CategoricalFeatures...),
			Imputer: NewCategoricalImputer(),
			Encoder: NewOneHotEncoder(DropFirst),
			Scaler:  NewStandardScaler(false, true),
		},
	}
}

// Save writes the transformer to path as gob.
func (ct *ColumnTransformer) Save(path string) error {
	if err := model.SaveGob(path, ct); err != nil {
		return errors.NewPersistenceError("save", path, err)
	}
	return nil
}

// LoadColumnTransformer reads a transformer written by Save.
func LoadColumnTransformer(path string) (*ColumnTransformer, error) {
	ct := &ColumnTransformer{}
	if err := model.LoadGob(path, ct); err != nil {
		return nil, errors.NewPersistenceError("load", path, err)
	}
	if !ct.Fitted {
		return nil, errors.NewPersistenceError("load", path, errors.New("transformer was saved unfitted"))
	}
	return ct, nil
}

// Arrays holds the transformed splits; the last column of each is the target.
type Arrays struct {
	Train            *mat.Dense
	Test             *mat.Dense
	PreprocessorPath string
	FeatureNames     []string
}

// PrepareArrays reads the train and test CSV files, fits the student
// transformer on the train split, transforms both splits, appends the
// math score as the last column and saves the transformer to
// preprocessorPath.
func PrepareArrays(trainPath, testPath, preprocessorPath string, logger log.Logger) (*Arrays, error) {
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.With(log.ComponentKey, "transformation", log.PhaseKey, log.PhasePreprocessing)

	train, err := dataset.ReadCSV(trainPath)
	if err != nil {
		return nil, err
	}
	test, err := dataset.ReadCSV(testPath)
	if err != nil {
		return nil, err
	}
	train, test = withTarget(train), withTarget(test)
	logger.Info("Load train and test data completed",
		"train_rows", len(train),
		"test_rows", len(test),
	)

	ct := NewStudentTransformer()
	Xtrain, err := ct.FitTransform(dataset.NewFrame(train))
	if err != nil {
		return nil, errors.Wrap(err, "fit transformer")
	}
	Xtest, err := ct.Transform(dataset.NewFrame(test))
	if err != nil {
		return nil, errors.Wrap(err, "transform test split")
	}
	_, nFeatures := Xtrain.Dims()
	logger.Info("Input features transformed",
		log.FeaturesKey, nFeatures,
		"target", dataset.Target,
	)

	if err := ct.Save(preprocessorPath); err != nil {
		return nil, err
	}
	logger.Info("Preprocessing object saved", log.PathKey, preprocessorPath)

	return &Arrays{
		Train:            appendColumn(Xtrain, dataset.Targets(train)),
		Test:             appendColumn(Xtest, dataset.Targets(test)),
		PreprocessorPath: preprocessorPath,
		FeatureNames:     ct.FeatureNames(),
	}, nil
}

// withTarget drops records whose math score is missing.
func withTarget(records []dataset.StudentRecord) []dataset.StudentRecord {
	out := records[:0:0]
	for _, r := range records {
		if !math.IsNaN(r.MathScore) {
			out = append(out, r)
		}
	}
	return out
}

// appendColumn returns [X | col].
func appendColumn(X *mat.Dense, col []float64) *mat.Dense {
	return hstack(X, mat.NewDense(len(col), 1, col))
}
