// Package scoreml trains and serves a regression model that predicts a
// student's math score from demographic attributes and the reading and
// writing scores.
//
// The pipeline has four stages, each in its own package:
//
//   - dataset: read the raw CSV table and split it into train and test files
//   - preprocessing: impute, one-hot encode and scale the columns
//   - training: tune and score every candidate regressor, keep the best one
//     when its test R² clears the quality threshold
//   - prediction: load the saved preprocessor and model and predict new rows
//
// # Quick Start
//
//	cfg := dataset.DefaultIngestConfig("notebooks/data/stud.csv")
//	paths, err := dataset.Ingest(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	arrays, err := preprocessing.PrepareArrays(paths.Train, paths.Test,
//	    preprocessing.DefaultPreprocessorPath, logger)
//	if err != nil {
//	    return err
//	}
//	outcome, err := training.NewTrainer(
//	    training.WithTrainerLogger(logger),
//	).Train(ctx, arrays.Train, arrays.Test)
//
// The cmd/scoreml command wraps the same steps behind the ingest, train,
// predict and runs subcommands and reads its settings from scoreml.yaml.
//
// # Packages
//
//   - core/model: Regressor interface, parameter helpers, gob persistence
//   - core/parallel: range splitting across goroutines
//   - linear, sklearn/tree, sklearn/ensemble, sklearn/neighbors,
//     sklearn/xgboost, sklearn/catboost: the candidate regressors
//   - sklearn/model_selection: KFold, TrainTestSplit, ParamGrid, GridSearchCV
//   - metrics: MSE, MAE, R²
//   - registry: badger-backed history of training runs
//   - report: Prometheus textfile metrics and score charts
//   - config: YAML settings with environment overrides
//   - pkg/errors, pkg/log: error kinds and structured logging
package scoreml
