package model

import (
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// constRegressor predicts a constant learned as the mean of y.
type constRegressor struct {
	State *StateManager
	Mean  float64
	Scale float64
}

func newConstRegressor() *constRegressor {
	return &constRegressor{State: NewStateManager(), Scale: 1}
}

func (c *constRegressor) Fit(X, y mat.Matrix) error {
	r, cols := X.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		sum += y.At(i, 0)
	}
	c.Mean = c.Scale * sum / float64(r)
	c.State.SetFitted(cols, r)
	return nil
}

func (c *constRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := c.State.RequireFitted("constRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, c.Mean)
	}
	return out, nil
}

func (c *constRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"scale": c.Scale}
}

func (c *constRegressor) SetParams(params map[string]interface{}) error {
	if err := UnknownParams("constRegressor", params, "scale"); err != nil {
		return err
	}
	if v, ok := params["scale"]; ok {
		f, err := ParamFloat("scale", v)
		if err != nil {
			return err
		}
		c.Scale = f
	}
	return nil
}

func (c *constRegressor) Clone() Regressor {
	return &constRegressor{State: NewStateManager(), Scale: c.Scale}
}

func init() {
	Register(&constRegressor{})
}

func TestGobStoreRoundTrip(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	reg := newConstRegressor()
	if err := reg.SetParams(map[string]interface{}{"scale": 2}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "model.gob")
	var store GobStore
	if err := store.Save(path, reg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want, _ := reg.Predict(X)
	got, err := loaded.Predict(X)
	if err != nil {
		t.Fatalf("Predict on loaded model failed: %v", err)
	}
	if !mat.Equal(want, got) {
		t.Errorf("predictions differ after round trip: want %v, got %v", mat.Formatted(want), mat.Formatted(got))
	}
}

func TestGobStoreErrors(t *testing.T) {
	var store GobStore
	dir := t.TempDir()

	err := store.Save(filepath.Join(dir, "nil.gob"), nil)
	var perr *errors.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError for nil estimator, got %v", err)
	}

	_, err = store.Load(filepath.Join(dir, "missing.gob"))
	if !errors.As(err, &perr) || perr.Op != "load" {
		t.Fatalf("expected load PersistenceError, got %v", err)
	}
}

func TestRequireFitted(t *testing.T) {
	reg := newConstRegressor()
	_, err := reg.Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
}

func TestParamCoercion(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		wantInt int
		intErr  bool
		wantF   float64
		floatOK bool
	}{
		{"int", 16, 16, false, 16, true},
		{"int64", int64(8), 8, false, 8, true},
		{"integral float", 32.0, 32, false, 32, true},
		{"fractional float", 0.75, 0, true, 0.75, true},
		{"string", "many", 0, true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParamInt("n_estimators", tt.value)
			if (err != nil) != tt.intErr {
				t.Fatalf("ParamInt error = %v, wantErr %v", err, tt.intErr)
			}
			if err == nil && got != tt.wantInt {
				t.Errorf("ParamInt = %d, want %d", got, tt.wantInt)
			}
			f, err := ParamFloat("learning_rate", tt.value)
			if (err == nil) != tt.floatOK {
				t.Fatalf("ParamFloat error = %v, wantOK %v", err, tt.floatOK)
			}
			if err == nil && f != tt.wantF {
				t.Errorf("ParamFloat = %v, want %v", f, tt.wantF)
			}
		})
	}
}

func TestUnknownParams(t *testing.T) {
	reg := newConstRegressor()
	err := reg.SetParams(map[string]interface{}{"scale": 1.0, "depth": 3, "alpha": 1})
	if err == nil {
		t.Fatal("expected error for unknown parameters")
	}
	var verr *errors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestCloneIsUnfitted(t *testing.T) {
	reg := newConstRegressor()
	reg.Scale = 3
	_ = reg.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 1}))

	clone := reg.Clone().(*constRegressor)
	if clone.State.IsFitted() {
		t.Error("clone should be unfitted")
	}
	if clone.Scale != 3 {
		t.Errorf("clone scale = %v, want 3", clone.Scale)
	}
}

func TestApplyParams(t *testing.T) {
	var (
		n    int
		seed int64
		lr   float64
		loss string
		boot bool
	)
	fields := map[string]interface{}{
		"n_estimators":  &n,
		"random_state":  &seed,
		"learning_rate": &lr,
		"loss":          &loss,
		"bootstrap":     &boot,
	}
	err := ApplyParams("test", map[string]interface{}{
		"n_estimators":  64.0,
		"random_state":  7,
		"learning_rate": 1,
		"loss":          "square",
		"bootstrap":     true,
	}, fields)
	if err != nil {
		t.Fatalf("ApplyParams failed: %v", err)
	}
	if n != 64 || seed != 7 || lr != 1.0 || loss != "square" || !boot {
		t.Errorf("unexpected values: n=%d seed=%d lr=%v loss=%q boot=%v", n, seed, lr, loss, boot)
	}

	if err := ApplyParams("test", map[string]interface{}{"depth": 3}, fields); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := ApplyParams("test", map[string]interface{}{"loss": 3}, fields); err == nil {
		t.Error("expected error for wrong type")
	}
}
