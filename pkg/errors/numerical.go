package errors

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

const maxInstabilitySample = 5

// NumericalInstabilityError はブースティングの更新中に予測値や重みが NaN / Inf になったことを示します。
type NumericalInstabilityError struct {
	Operation string
	Iteration int
	Count     int       // 非有限値の個数
	Sample    []float64 // 先頭の非有限値
}

func (e *NumericalInstabilityError) Error() string {
	parts := make([]string, len(e.Sample))
	for i, v := range e.Sample {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("scoreml: %d non-finite values in %s at iteration %d: [%s]",
		e.Count, e.Operation, e.Iteration, strings.Join(parts, ", "))
}

// CheckNumericalStability は values に NaN か Inf があれば NumericalInstabilityError を返します。
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	e := &NumericalInstabilityError{Operation: operation, Iteration: iteration}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			e.Count++
			if len(e.Sample) < maxInstabilitySample {
				e.Sample = append(e.Sample, v)
			}
		}
	}
	if e.Count == 0 {
		return nil
	}
	return errors.WithStack(e)
}

// SafeDivide は分母がほぼ 0 のとき 0 を返す除算です。
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}
