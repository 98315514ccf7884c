package dataset

import (
	"path/filepath"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/pkg/log"
	"github.com/YuminosukeSato/scoreml/sklearn/model_selection"
)

// IngestConfig locates the raw table and the artifacts it is split into.
type IngestConfig struct {
	DataPath     string
	ArtifactsDir string
	TestSize     float64
	RandomState  int64
}

// DefaultIngestConfig returns the standard layout: artifacts/ with a 30%
// test split seeded with 42.
func DefaultIngestConfig(dataPath string) IngestConfig {
	return IngestConfig{
		DataPath:     dataPath,
		ArtifactsDir: "artifacts",
		TestSize:     0.3,
		RandomState:  42,
	}
}

// Paths of the files written by Ingest.
type Paths struct {
	Raw   string
	Train string
	Test  string
}

// ArtifactPaths returns where Ingest writes its files under dir.
func ArtifactPaths(dir string) Paths {
	return Paths{
		Raw:   filepath.Join(dir, "data.csv"),
		Train: filepath.Join(dir, "train.csv"),
		Test:  filepath.Join(dir, "test.csv"),
	}
}

// Ingest reads the raw table, copies it into the artifacts directory and
// writes a shuffled train/test split next to it.
func Ingest(cfg IngestConfig, logger log.Logger) (Paths, error) {
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.With(log.ComponentKey, "ingestion")
	logger.Info("Enter data ingestion", log.PathKey, cfg.DataPath)

	records, err := ReadCSV(cfg.DataPath)
	if err != nil {
		return Paths{}, err
	}
	logger.Info("Read the dataset",
		log.SamplesKey, len(records),
		log.FeaturesKey, len(Header),
	)

	paths := ArtifactPaths(cfg.ArtifactsDir)
	if err := WriteCSV(paths.Raw, records); err != nil {
		return Paths{}, errors.NewPersistenceError("save", paths.Raw, err)
	}

	logger.Info("Train test split initiated", log.PhaseKey, log.PhaseIngestion)
	trainIdx, testIdx, err := model_selection.TrainTestSplit(len(records), cfg.TestSize, cfg.RandomState)
	if err != nil {
		return Paths{}, err
	}
	train := pick(records, trainIdx)
	test := pick(records, testIdx)

	if err := WriteCSV(paths.Train, train); err != nil {
		return Paths{}, errors.NewPersistenceError("save", paths.Train, err)
	}
	if err := WriteCSV(paths.Test, test); err != nil {
		return Paths{}, errors.NewPersistenceError("save", paths.Test, err)
	}
	logger.Info("Data ingestion completed",
		"train_rows", len(train),
		"test_rows", len(test),
	)
	return paths, nil
}

func pick(records []StudentRecord, idx []int) []StudentRecord {
	out := make([]StudentRecord, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}
