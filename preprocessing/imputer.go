package preprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// Imputation strategies.
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
)

// SimpleImputer replaces NaN entries of numeric columns with a per-column
// statistic learned at fit time.
type SimpleImputer struct {
	State      *model.StateManager
	Strategy   string
	Statistics []float64
}

var _ model.Transformer = (*SimpleImputer)(nil)

// NewSimpleImputer creates an imputer with the given strategy.
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{State: model.NewStateManager(), Strategy: strategy}
}

// Fit learns one fill value per column from the non-missing entries.
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	switch s.Strategy {
	case StrategyMean, StrategyMedian, StrategyMostFrequent:
	default:
		return errors.NewValidationError("strategy", "must be mean, median or most_frequent", s.Strategy)
	}

	s.Statistics = make([]float64, c)
	for j := 0; j < c; j++ {
		vals := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			return errors.NewValueError("SimpleImputer.Fit", "column has no observed values")
		}
		sort.Float64s(vals)

		switch s.Strategy {
		case StrategyMean:
			s.Statistics[j] = stat.Mean(vals, nil)
		case StrategyMedian:
			s.Statistics[j] = median(vals)
		case StrategyMostFrequent:
			s.Statistics[j] = mostFrequentFloat(vals)
		}
	}

	if s.State == nil {
		s.State = model.NewStateManager()
	}
	s.State.SetFitted(c, r)
	return nil
}

// Transform fills NaN entries with the learned statistics.
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.State.CheckFeatures("SimpleImputer.Transform", c); err != nil {
		return nil, err
	}
	out := mat.DenseCopyOf(X)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(out.At(i, j)) {
				out.Set(i, j, s.Statistics[j])
			}
		}
	}
	return out, nil
}

// FitTransform fits on X and returns X with missing entries filled.
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// median of sorted values; the mean of the two middle values for even lengths.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// mostFrequentFloat returns the modal value of sorted, the smallest on ties.
func mostFrequentFloat(sorted []float64) float64 {
	best, bestCount := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if j-i > bestCount {
			best, bestCount = sorted[i], j-i
		}
		i = j
	}
	return best
}

// CategoricalImputer replaces empty strings in categorical columns with the
// most frequent category of each column, the lexically smallest on ties.
type CategoricalImputer struct {
	NFeatures  int
	Statistics []string
}

// NewCategoricalImputer creates a most-frequent categorical imputer.
func NewCategoricalImputer() *CategoricalImputer {
	return &CategoricalImputer{}
}

// Fit learns the modal category of each column. columns[j][i] is row i of
// column j.
func (c *CategoricalImputer) Fit(columns [][]string) error {
	if len(columns) == 0 || len(columns[0]) == 0 {
		return errors.NewModelError("CategoricalImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	c.NFeatures = len(columns)
	c.Statistics = make([]string, len(columns))
	for j, col := range columns {
		counts := make(map[string]int)
		for _, v := range col {
			if v != "" {
				counts[v]++
			}
		}
		if len(counts) == 0 {
			return errors.NewValueError("CategoricalImputer.Fit", "column has no observed values")
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		best := keys[0]
		for _, k := range keys[1:] {
			if counts[k] > counts[best] {
				best = k
			}
		}
		c.Statistics[j] = best
	}
	return nil
}

// Transform returns a copy of columns with empty entries filled.
func (c *CategoricalImputer) Transform(columns [][]string) ([][]string, error) {
	if c.Statistics == nil {
		return nil, errors.NewNotFittedError("CategoricalImputer", "Transform")
	}
	if len(columns) != c.NFeatures {
		return nil, errors.NewDimensionError("CategoricalImputer.Transform", c.NFeatures, len(columns), 1)
	}
	out := make([][]string, len(columns))
	for j, col := range columns {
		filled := make([]string, len(col))
		for i, v := range col {
			if v == "" {
				v = c.Statistics[j]
			}
			filled[i] = v
		}
		out[j] = filled
	}
	return out, nil
}
