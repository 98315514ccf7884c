package report

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/scoreml/training"
)

func outcome(passed bool) *training.Outcome {
	return &training.Outcome{
		RunID:     "run-1",
		Threshold: 0.6,
		Passed:    passed,
		Selection: training.Selection{Name: "CatBoost", TestR2: 0.88},
		Report: &training.Report{Results: []training.Result{
			{Name: "Linear Regression", TrainR2: 0.87, TestR2: 0.85},
			{Name: "CatBoost", TrainR2: 0.95, TestR2: 0.88, CVScore: 0.86, Searched: true},
			{Name: "K-Nearest Neighbors", TrainR2: 0.8, TestR2: math.Inf(-1)},
		}},
	}
}

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()
	require.NoError(t, m.Observe(ctx, outcome(true)))
	require.NoError(t, m.Observe(ctx, outcome(false)))
	require.NoError(t, m.Observe(ctx, outcome(true)))

	assert.Equal(t, 0.88, testutil.ToFloat64(m.BestTestR2))
	assert.Equal(t, 0.6, testutil.ToFloat64(m.Threshold))
	assert.Equal(t, 0.95, testutil.ToFloat64(m.CandidateR2.WithLabelValues("CatBoost", "train")))
	assert.Equal(t, 0.86, testutil.ToFloat64(m.CandidateR2.WithLabelValues("CatBoost", "cv")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(ResultPassed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(ResultGated)))
	// train, test for three candidates plus one cv series
	assert.Equal(t, 7, testutil.CollectAndCount(m.CandidateR2))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	path := filepath.Join(t.TempDir(), "textfile", "scoreml.prom")
	obs := m.TextfileObserver(path)
	require.NoError(t, obs.Observe(context.Background(), outcome(true)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "scoreml_best_test_r2 0.88"), text)
	assert.True(t, strings.Contains(text, `scoreml_training_runs_total{result="passed"} 1`), text)
}

func TestPlotScores(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"scores.png", "scores.svg"} {
		path := filepath.Join(dir, "plots", name)
		require.NoError(t, PlotObserver(path).Observe(context.Background(), outcome(true)))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	assert.Error(t, PlotScores(&training.Report{}, 0.6, filepath.Join(dir, "empty.png")))
}
