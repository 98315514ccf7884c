package neighbors

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

func TestKNeighborsRegressorUniform(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{1, 2, 3, 10, 20, 30})

	knn := NewKNeighborsRegressor().WithNNeighbors(3)
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	pred, err := knn.Predict(mat.NewDense(2, 1, []float64{1, 11}))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	want := []float64{2, 20}
	for i, w := range want {
		if math.Abs(pred.At(i, 0)-w) > 1e-12 {
			t.Errorf("prediction %d = %v, want %v", i, pred.At(i, 0), w)
		}
	}
}

func TestKNeighborsRegressorDistance(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 3})
	y := mat.NewDense(3, 1, []float64{0, 10, 30})

	knn := NewKNeighborsRegressor().WithNNeighbors(2).WithWeights(WeightsDistance)
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	tests := []struct {
		name  string
		query float64
		want  float64
	}{
		// neighbors 1 (d=1) and 3 (d=1): equal weights
		{"midpoint", 2, 20},
		// exact match takes all the weight
		{"exact", 1, 10},
		// neighbors 0 (d=0.5, w=2) and 1 (d=0.5, w=2)
		{"between", 0.5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := knn.Predict(mat.NewDense(1, 1, []float64{tt.query}))
			if err != nil {
				t.Fatalf("Predict failed: %v", err)
			}
			if math.Abs(pred.At(0, 0)-tt.want) > 1e-12 {
				t.Errorf("prediction = %v, want %v", pred.At(0, 0), tt.want)
			}
		})
	}
}

func TestKNeighborsRegressorTiesByIndex(t *testing.T) {
	// query 0 is equidistant from -1 and 1; the earlier training row wins
	X := mat.NewDense(3, 1, []float64{1, -1, 5})
	y := mat.NewDense(3, 1, []float64{100, 200, 300})

	knn := NewKNeighborsRegressor().WithNNeighbors(1)
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	pred, _ := knn.Predict(mat.NewDense(1, 1, []float64{0}))
	if pred.At(0, 0) != 100 {
		t.Errorf("prediction = %v, want 100", pred.At(0, 0))
	}
}

func TestKNeighborsRegressorErrors(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	var verr *errors.ValidationError
	if err := NewKNeighborsRegressor().Fit(X, y); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for k > n_samples, got %v", err)
	}

	knn := NewKNeighborsRegressor().WithNNeighbors(2)
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	var dim *errors.DimensionError
	if _, err := knn.Predict(mat.NewDense(1, 2, []float64{1, 2})); !errors.As(err, &dim) {
		t.Errorf("expected DimensionError, got %v", err)
	}

	if err := knn.SetParams(map[string]interface{}{"weights": "distance", "n_neighbors": 1}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	clone := knn.Clone().(*KNeighborsRegressor)
	if clone.Weights != WeightsDistance || clone.NNeighbors != 1 || clone.State.IsFitted() {
		t.Errorf("unexpected clone: %+v", clone)
	}
}
