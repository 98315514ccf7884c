package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

func TestLinearRegressionBasic(t *testing.T) {
	// y = 2x + 1
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if math.Abs(lr.Coef[0]-2.0) > 1e-9 {
		t.Errorf("Expected coefficient 2.0, got %f", lr.Coef[0])
	}
	if math.Abs(lr.Intercept-1.0) > 1e-9 {
		t.Errorf("Expected intercept 1.0, got %f", lr.Intercept)
	}

	pred, err := lr.Predict(mat.NewDense(2, 1, []float64{5, 6}))
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	expected := []float64{11, 13}
	for i := range expected {
		if math.Abs(pred.At(i, 0)-expected[i]) > 1e-9 {
			t.Errorf("Expected prediction %f, got %f", expected[i], pred.At(i, 0))
		}
	}
}

func TestLinearRegressionNoIntercept(t *testing.T) {
	// y = 2x
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	lr := NewLinearRegression(WithFitIntercept(false))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if math.Abs(lr.Coef[0]-2.0) > 1e-9 {
		t.Errorf("Expected coefficient 2.0, got %f", lr.Coef[0])
	}
	if lr.Intercept != 0 {
		t.Errorf("Expected intercept 0, got %f", lr.Intercept)
	}
}

func TestLinearRegressionMultipleFeatures(t *testing.T) {
	// y = 2*x1 + 3*x2 + 1
	X := mat.NewDense(5, 2, []float64{
		1, 1,
		2, 1,
		3, 2,
		4, 2,
		5, 3,
	})
	y := mat.NewDense(5, 1, []float64{6, 8, 13, 15, 20})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	want := []float64{2, 3}
	for j, w := range want {
		if math.Abs(lr.Coef[j]-w) > 1e-8 {
			t.Errorf("coef[%d] = %f, want %f", j, lr.Coef[j], w)
		}
	}
	if math.Abs(lr.Intercept-1.0) > 1e-8 {
		t.Errorf("intercept = %f, want 1.0", lr.Intercept)
	}
	if lr.Rank != 2 {
		t.Errorf("rank = %d, want 2", lr.Rank)
	}
}

// Collinear features: the minimum-norm solution splits the weight evenly.
func TestLinearRegressionCollinearMinNorm(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, 2,
		2, 3,
		3, 4,
	})
	y := mat.NewDense(3, 1, []float64{10, 12, 14})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if lr.Rank != 1 {
		t.Errorf("rank = %d, want 1", lr.Rank)
	}
	for j, w := range []float64{1, 1} {
		if math.Abs(lr.Coef[j]-w) > 1e-9 {
			t.Errorf("coef[%d] = %v, want %v", j, lr.Coef[j], w)
		}
	}
	if math.Abs(lr.Intercept-7) > 1e-9 {
		t.Errorf("intercept = %v, want 7", lr.Intercept)
	}

	pred, err := lr.Predict(mat.NewDense(1, 2, []float64{1.5, 2.5}))
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if math.Abs(pred.At(0, 0)-11) > 1e-9 {
		t.Errorf("prediction = %v, want 11", pred.At(0, 0))
	}
}

func TestLinearRegressionErrors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}))
	var dim *errors.DimensionError
	if !errors.As(err, &dim) {
		t.Errorf("expected DimensionError, got %v", err)
	}

	if err := lr.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	_, err = lr.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	if !errors.As(err, &dim) {
		t.Errorf("expected DimensionError for wrong width, got %v", err)
	}
}

func TestLinearRegressionParams(t *testing.T) {
	lr := NewLinearRegression()
	if err := lr.SetParams(map[string]interface{}{"fit_intercept": false}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if lr.GetParams()["fit_intercept"] != false {
		t.Error("fit_intercept not applied")
	}
	if err := lr.SetParams(map[string]interface{}{"alpha": 1.0}); err == nil {
		t.Error("expected error for unknown parameter")
	}

	clone := lr.Clone().(*LinearRegression)
	if clone.FitIntercept {
		t.Error("clone should carry fit_intercept=false")
	}
	if clone.State.IsFitted() {
		t.Error("clone should be unfitted")
	}
}
