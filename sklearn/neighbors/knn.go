// Package neighbors implements nearest-neighbor regression.
package neighbors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/core/model"
	"github.com/YuminosukeSato/scoreml/core/parallel"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

func init() {
	model.Register(&KNeighborsRegressor{})
}

// Weighting schemes.
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// KNeighborsRegressor predicts the (optionally distance-weighted) mean target
// of the k nearest training samples under the Minkowski-p metric. Neighbors
// at equal distance are ordered by training index.
type KNeighborsRegressor struct {
	State *model.StateManager

	NNeighbors int
	Weights    string
	P          float64

	TrainX [][]float64
	TrainY []float64
}

var _ model.Regressor = (*KNeighborsRegressor)(nil)

// NewKNeighborsRegressor creates a 5-neighbor, uniformly weighted Euclidean regressor.
func NewKNeighborsRegressor() *KNeighborsRegressor {
	return &KNeighborsRegressor{
		State:      model.NewStateManager(),
		NNeighbors: 5,
		Weights:    WeightsUniform,
		P:          2,
	}
}

// WithNNeighbors sets k.
func (k *KNeighborsRegressor) WithNNeighbors(n int) *KNeighborsRegressor {
	k.NNeighbors = n
	return k
}

// WithWeights sets the weighting scheme.
func (k *KNeighborsRegressor) WithWeights(w string) *KNeighborsRegressor {
	k.Weights = w
	return k
}

// Fit memorises the training data.
func (k *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	ry, cy := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("KNeighborsRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != rows {
		return errors.NewDimensionError("KNeighborsRegressor.Fit", rows, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("KNeighborsRegressor.Fit", "y must be a column vector")
	}
	if k.NNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be >= 1", k.NNeighbors)
	}
	if k.NNeighbors > rows {
		return errors.NewValidationError("n_neighbors",
			"must not exceed the number of training samples", k.NNeighbors)
	}
	if k.Weights != WeightsUniform && k.Weights != WeightsDistance {
		return errors.NewValidationError("weights", "must be uniform or distance", k.Weights)
	}
	if k.P < 1 {
		return errors.NewValidationError("p", "must be >= 1", k.P)
	}

	k.TrainX = make([][]float64, rows)
	k.TrainY = make([]float64, rows)
	for i := 0; i < rows; i++ {
		k.TrainX[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			k.TrainX[i][j] = X.At(i, j)
		}
		k.TrainY[i] = y.At(i, 0)
	}

	if k.State == nil {
		k.State = model.NewStateManager()
	}
	k.State.SetFitted(cols, rows)
	return nil
}

// Predict returns the neighbor average for each row of X.
func (k *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := k.State.RequireFitted("KNeighborsRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := k.State.CheckFeatures("KNeighborsRegressor.Predict", c); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, 1, nil)
	const parallelThreshold = 256
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		query := make([]float64, c)
		dist := make([]float64, len(k.TrainX))
		order := make([]int, len(k.TrainX))
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				query[j] = X.At(i, j)
			}
			out.Set(i, 0, k.predictOne(query, dist, order))
		}
	})
	return out, nil
}

func (k *KNeighborsRegressor) predictOne(query, dist []float64, order []int) float64 {
	for i, row := range k.TrainX {
		dist[i] = minkowski(query, row, k.P)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] < dist[order[b]] })
	nearest := order[:k.NNeighbors]

	if k.Weights == WeightsDistance {
		// exact matches take all the weight
		exact, n := 0.0, 0
		for _, i := range nearest {
			if dist[i] == 0 {
				exact += k.TrainY[i]
				n++
			}
		}
		if n > 0 {
			return exact / float64(n)
		}
		num, den := 0.0, 0.0
		for _, i := range nearest {
			w := 1 / dist[i]
			num += w * k.TrainY[i]
			den += w
		}
		return num / den
	}

	sum := 0.0
	for _, i := range nearest {
		sum += k.TrainY[i]
	}
	return sum / float64(len(nearest))
}

func minkowski(a, b []float64, p float64) float64 {
	switch p {
	case 1:
		d := 0.0
		for j := range a {
			d += math.Abs(a[j] - b[j])
		}
		return d
	case 2:
		d := 0.0
		for j := range a {
			diff := a[j] - b[j]
			d += diff * diff
		}
		return math.Sqrt(d)
	default:
		d := 0.0
		for j := range a {
			d += math.Pow(math.Abs(a[j]-b[j]), p)
		}
		return math.Pow(d, 1/p)
	}
}

// GetParams returns the hyperparameters.
func (k *KNeighborsRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": k.NNeighbors,
		"weights":     k.Weights,
		"p":           k.P,
	}
}

// SetParams sets the hyperparameters.
func (k *KNeighborsRegressor) SetParams(params map[string]interface{}) error {
	return model.ApplyParams("KNeighborsRegressor", params, map[string]interface{}{
		"n_neighbors": &k.NNeighbors,
		"weights":     &k.Weights,
		"p":           &k.P,
	})
}

// Clone returns an unfitted copy with the same hyperparameters.
func (k *KNeighborsRegressor) Clone() model.Regressor {
	return &KNeighborsRegressor{
		State:      model.NewStateManager(),
		NNeighbors: k.NNeighbors,
		Weights:    k.Weights,
		P:          k.P,
	}
}
