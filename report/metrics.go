// Package report publishes the scores of a training run as Prometheus
// textfile metrics and as a bar chart.
package report

import (
	"context"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/training"
)

const namespace = "scoreml"

// Run results used as the "result" label.
const (
	ResultPassed = "passed"
	ResultGated  = "gated"
)

// Metrics holds the training gauges in a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	// CandidateR2 is labelled by candidate and split ("train", "test", "cv").
	CandidateR2 *prometheus.GaugeVec
	BestTestR2  prometheus.Gauge
	Threshold   prometheus.Gauge
	RunsTotal   *prometheus.CounterVec
}

var _ training.Observer = (*Metrics)(nil)

// NewMetrics registers the training metrics in a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		CandidateR2: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_r2",
			Help:      "R² of each candidate on each split of the latest run.",
		}, []string{"candidate", "split"}),
		BestTestR2: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_test_r2",
			Help:      "Test R² of the selected candidate of the latest run.",
		}),
		Threshold: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_threshold",
			Help:      "Minimum test R² a run must reach to be saved.",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Training runs by result.",
		}, []string{"result"}),
	}
}

// Observe updates the gauges from outcome and counts the run.
func (m *Metrics) Observe(_ context.Context, outcome *training.Outcome) error {
	m.CandidateR2.Reset()
	if outcome.Report != nil {
		for _, r := range outcome.Report.Results {
			m.CandidateR2.WithLabelValues(r.Name, "train").Set(r.TrainR2)
			m.CandidateR2.WithLabelValues(r.Name, "test").Set(r.TestR2)
			if r.Searched {
				m.CandidateR2.WithLabelValues(r.Name, "cv").Set(r.CVScore)
			}
		}
	}
	m.BestTestR2.Set(outcome.Selection.TestR2)
	m.Threshold.Set(outcome.Threshold)
	if outcome.Passed {
		m.RunsTotal.WithLabelValues(ResultPassed).Inc()
	} else {
		m.RunsTotal.WithLabelValues(ResultGated).Inc()
	}
	return nil
}

// WriteTextfile writes the registry in the Prometheus text format for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewPersistenceError("save", path, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return errors.NewPersistenceError("save", path, err)
	}
	return nil
}

// TextfileObserver updates m and writes it to path after every run.
func (m *Metrics) TextfileObserver(path string) training.Observer {
	return training.ObserverFunc(func(ctx context.Context, outcome *training.Outcome) error {
		if err := m.Observe(ctx, outcome); err != nil {
			return err
		}
		return m.WriteTextfile(path)
	})
}
