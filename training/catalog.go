// Package training evaluates a catalog of candidate regressors, selects the
// best one on held-out data, enforces a minimum quality and persists the
// winner.
package training

import (
	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/linear"
	"github.com/YuminosukeSato/scoreml/sklearn/catboost"
	"github.com/YuminosukeSato/scoreml/sklearn/ensemble"
	"github.com/YuminosukeSato/scoreml/sklearn/model_selection"
	"github.com/YuminosukeSato/scoreml/sklearn/neighbors"
	"github.com/YuminosukeSato/scoreml/sklearn/tree"
	"github.com/YuminosukeSato/scoreml/sklearn/xgboost"
)

// Candidate binds a unique name to an untrained estimator.
type Candidate struct {
	Name      string
	Estimator model.Regressor
}

// Grids maps candidate names to their hyperparameter grids. A missing or
// empty entry means the candidate is fitted with its defaults.
type Grids map[string]model_selection.ParamGrid

// Candidate names of the default catalog.
const (
	LinearRegressionName = "Linear Regression"
	DecisionTreeName     = "Decision Tree"
	RandomForestName     = "Random Forest"
	GradientBoostingName = "Gradient Boosting"
	AdaBoostName         = "AdaBoost"
	KNeighborsName       = "K-Nearest Neighbors"
	XGBoostName          = "XGBoost"
	CatBoostName         = "CatBoost"
)

// DefaultCatalog returns fresh instances of the eight standard candidates in
// their fixed evaluation order.
func DefaultCatalog() []Candidate {
	return []Candidate{
		{LinearRegressionName, linear.NewLinearRegression()},
		{DecisionTreeName, tree.NewDecisionTreeRegressor()},
		{RandomForestName, ensemble.NewRandomForestRegressor()},
		{GradientBoostingName, ensemble.NewGradientBoostingRegressor()},
		{AdaBoostName, ensemble.NewAdaBoostRegressor()},
		{KNeighborsName, neighbors.NewKNeighborsRegressor()},
		{XGBoostName, xgboost.NewXGBRegressor()},
		{CatBoostName, catboost.NewCatBoostRegressor()},
	}
}

var nEstimatorsGrid = []interface{}{8, 16, 32, 64, 128, 256}

// DefaultGrids returns the search grids of the default catalog. Linear
// Regression and K-Nearest Neighbors have none.
func DefaultGrids() Grids {
	return Grids{
		DecisionTreeName: {
			"criterion": {
				tree.CriterionSquaredError,
				tree.CriterionFriedmanMSE,
				tree.CriterionAbsoluteError,
				tree.CriterionPoisson,
			},
		},
		RandomForestName: {
			"n_estimators": nEstimatorsGrid,
		},
		GradientBoostingName: {
			"learning_rate": {0.1, 0.01, 0.05, 0.001},
			"subsample":     {0.6, 0.7, 0.75, 0.8, 0.85, 0.9},
			"n_estimators":  nEstimatorsGrid,
		},
		AdaBoostName: {
			"learning_rate": {0.1, 0.01, 0.5, 0.001},
			"n_estimators":  nEstimatorsGrid,
		},
		XGBoostName: {
			"learning_rate": {0.1, 0.01, 0.05, 0.001},
			"n_estimators":  nEstimatorsGrid,
		},
		CatBoostName: {
			"depth":         {6, 8, 10},
			"learning_rate": {0.01, 0.05, 0.1},
			"iterations":    {30, 50, 100},
		},
	}
}

// Merge returns a copy of g with the entries of override replacing those of
// the same name.
func (g Grids) Merge(override Grids) Grids {
	out := make(Grids, len(g)+len(override))
	for k, v := range g {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
