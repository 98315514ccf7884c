package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func guarded(prior error, fn func()) (err error) {
	defer Recover(&err, "Stub.Fit")
	err = prior
	fn()
	return err
}

func TestRecover(t *testing.T) {
	cause := fmt.Errorf("index out of range [3] with length 3")
	prior := fmt.Errorf("split failed")

	tests := []struct {
		name      string
		prior     error
		fn        func()
		wantNil   bool
		wantCause bool
		wantPrior bool
	}{
		{name: "no panic", fn: func() {}, wantNil: true},
		{name: "string panic", fn: func() { panic("boom") }},
		{name: "error panic", fn: func() { panic(cause) }, wantCause: true},
		{name: "panic after error", prior: prior, fn: func() { panic("boom") }, wantPrior: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guarded(tt.prior, tt.fn)
			if tt.wantNil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			var pe *PanicError
			if !As(err, &pe) {
				t.Fatalf("expected PanicError, got %T: %v", err, err)
			}
			if pe.Op != "Stub.Fit" || len(pe.Stack) == 0 {
				t.Errorf("unexpected panic error %+v", pe)
			}
			if !strings.HasPrefix(err.Error(), "panic in Stub.Fit: ") {
				t.Errorf("message %q", err.Error())
			}
			if tt.wantCause && !Is(err, cause) {
				t.Errorf("panic value should be reachable through Unwrap")
			}
			if tt.wantPrior && !strings.Contains(fmt.Sprintf("%+v", err), "split failed") {
				t.Errorf("detailed output should keep the earlier error")
			}
		})
	}
}

func TestRecoverWrapsAsFitError(t *testing.T) {
	err := NewFitError("Decision Tree", guarded(nil, func() { panic("boom") }))
	var fe *FitError
	var pe *PanicError
	if !As(err, &fe) || !As(err, &pe) {
		t.Fatalf("expected FitError around PanicError, got %v", err)
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("update", []float64{1, 2, 3}, 0); err != nil {
		t.Fatalf("finite values: %v", err)
	}
	vals := []float64{1, nan(), 2, inf(), nan(), nan(), nan(), nan()}
	err := CheckNumericalStability("update", vals, 7)
	var ne *NumericalInstabilityError
	if !As(err, &ne) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if ne.Iteration != 7 || ne.Count != 6 || len(ne.Sample) != maxInstabilitySample {
		t.Errorf("unexpected %+v", ne)
	}
	if !strings.Contains(err.Error(), "6 non-finite values") {
		t.Errorf("message %q", err.Error())
	}
}

func nan() float64 { return math.NaN() }
func inf() float64 { return math.Inf(1) }
