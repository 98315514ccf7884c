package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// Hyperparameter values arrive from Go literals, YAML and gob, so the same
// logical value may be an int, an int64 or a float64. These helpers coerce
// them and reject anything that does not fit.

// ParamInt converts v to an int. Floats are accepted only when integral.
func ParamInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, errors.NewValidationError(name, "must be an integer", v)
		}
		return int(x), nil
	case float32:
		return ParamInt(name, float64(x))
	default:
		return 0, errors.NewValidationError(name, fmt.Sprintf("unsupported type %T", v), v)
	}
}

// ParamFloat converts v to a float64.
func ParamFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, errors.NewValidationError(name, fmt.Sprintf("unsupported type %T", v), v)
	}
}

// ParamString converts v to a string.
func ParamString(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(name, fmt.Sprintf("expected string, got %T", v), v)
	}
	return s, nil
}

// ParamBool converts v to a bool.
func ParamBool(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(name, fmt.Sprintf("expected bool, got %T", v), v)
	}
	return b, nil
}

// UnknownParams returns an error naming every key of params that is not in
// known, or nil when all keys are recognised.
func UnknownParams(model string, params map[string]interface{}, known ...string) error {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	var bad []string
	for k := range params {
		if !allowed[k] {
			bad = append(bad, k)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return errors.NewValidationError(model, fmt.Sprintf("unknown parameters %v", bad), params)
}

// CopyParams returns a shallow copy of params, or nil for a nil map.
func CopyParams(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// ApplyParams assigns each entry of params to the matching destination in
// fields, which maps parameter names to *int, *int64, *float64, *string or
// *bool. Keys missing from fields are rejected before anything is assigned.
//
//	return model.ApplyParams("RandomForestRegressor", params, map[string]interface{}{
//	    "n_estimators": &f.NEstimators,
//	    "bootstrap":    &f.Bootstrap,
//	})
func ApplyParams(model string, params map[string]interface{}, fields map[string]interface{}) error {
	known := make([]string, 0, len(fields))
	for k := range fields {
		known = append(known, k)
	}
	if err := UnknownParams(model, params, known...); err != nil {
		return err
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := params[k]
		switch dst := fields[k].(type) {
		case *int:
			n, err := ParamInt(k, v)
			if err != nil {
				return err
			}
			*dst = n
		case *int64:
			n, err := ParamInt(k, v)
			if err != nil {
				return err
			}
			*dst = int64(n)
		case *float64:
			f, err := ParamFloat(k, v)
			if err != nil {
				return err
			}
			*dst = f
		case *string:
			s, err := ParamString(k, v)
			if err != nil {
				return err
			}
			*dst = s
		case *bool:
			b, err := ParamBool(k, v)
			if err != nil {
				return err
			}
			*dst = b
		default:
			return errors.NewValidationError(k, fmt.Sprintf("unsupported destination %T", fields[k]), v)
		}
	}
	return nil
}
