package training

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/scoreml/dataset"
	"github.com/YuminosukeSato/scoreml/pkg/log"
	"github.com/YuminosukeSato/scoreml/preprocessing"
)

func TestTrainDefaultCatalogOnStudentData(t *testing.T) {
	if testing.Short() {
		t.Skip("fits every default candidate")
	}
	dir := t.TempDir()
	cfg := dataset.DefaultIngestConfig("../dataset/testdata/students.csv")
	cfg.ArtifactsDir = dir
	paths, err := dataset.Ingest(cfg, nil)
	require.NoError(t, err)
	arrays, err := preprocessing.PrepareArrays(paths.Train, paths.Test, filepath.Join(dir, "preprocessor.gob"), nil)
	require.NoError(t, err)

	// small grids keep the run short
	grids := DefaultGrids().Merge(Grids{
		DecisionTreeName:     {"criterion": {"squared_error", "friedman_mse"}},
		RandomForestName:     {"n_estimators": {8, 16}},
		GradientBoostingName: {"learning_rate": {0.1}, "n_estimators": {32}, "subsample": {0.8}},
		AdaBoostName:         {"learning_rate": {0.5}, "n_estimators": {16}},
		XGBoostName:          {"learning_rate": {0.1}, "n_estimators": {32}},
		CatBoostName:         {"depth": {4}, "learning_rate": {0.1}, "iterations": {50}},
	})

	logger := log.NewTestLogger(log.LevelInfo)
	tr := NewTrainer(
		WithGrids(grids),
		WithModelPath(filepath.Join(dir, "model.gob")),
		WithTrainerLogger(logger),
		WithEvaluator(NewEvaluator(WithWorkers(4), WithLogger(logger))),
	)
	outcome, err := tr.Train(context.Background(), arrays.Train, arrays.Test)
	require.NoError(t, err)

	require.Len(t, outcome.Report.Results, 8)
	for i, c := range DefaultCatalog() {
		res := outcome.Report.Results[i]
		assert.Equal(t, c.Name, res.Name)
		if g := grids[c.Name]; g.Size() > 0 {
			combos, err := g.Combinations()
			require.NoError(t, err)
			assert.Contains(t, combos, res.BestParams, c.Name)
		} else {
			assert.Nil(t, res.BestParams, c.Name)
		}
		assert.LessOrEqual(t, res.TestR2, outcome.TestR2())
	}
	assert.True(t, outcome.Passed)
	assert.FileExists(t, outcome.ModelPath)
	assert.Equal(t, 6, logger.Count("Hyperparameter tuning started"))
}
