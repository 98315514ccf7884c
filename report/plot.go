package report

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
	"github.com/YuminosukeSato/scoreml/training"
)

// PlotScores draws the test R² of every candidate as a bar chart and saves it
// to path; the format follows the extension (.png, .svg, .pdf).
// Non-finite scores are drawn as zero.
func PlotScores(rep *training.Report, threshold float64, path string) error {
	if rep == nil || len(rep.Results) == 0 {
		return errors.NewModelError("PlotScores", "empty report", errors.ErrEmptyData)
	}

	names := make([]string, len(rep.Results))
	values := make(plotter.Values, len(rep.Results))
	for i, r := range rep.Results {
		names[i] = r.Name
		v := r.TestR2
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		values[i] = v
	}

	p := plot.New()
	p.Title.Text = "Test R² by candidate"
	p.Y.Label.Text = "R²"

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return errors.Wrap(err, "bar chart")
	}
	p.Add(bars)
	p.NominalX(names...)

	line, err := plotter.NewLine(plotter.XYs{
		{X: -0.5, Y: threshold},
		{X: float64(len(values)) - 0.5, Y: threshold},
	})
	if err != nil {
		return errors.Wrap(err, "threshold line")
	}
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(line)
	p.Legend.Add("threshold", line)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewPersistenceError("save", path, err)
		}
	}
	width := vg.Length(math.Max(6, 1.2*float64(len(values)))) * vg.Inch
	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return errors.NewPersistenceError("save", path, err)
	}
	return nil
}

// PlotObserver saves a chart of every passed or gated run to path.
func PlotObserver(path string) training.Observer {
	return training.ObserverFunc(func(_ context.Context, outcome *training.Outcome) error {
		return PlotScores(outcome.Report, outcome.Threshold, path)
	})
}
