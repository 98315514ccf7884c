package model_selection

import (
	"sort"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// ParamGrid maps hyperparameter names to the values to try.
type ParamGrid map[string][]interface{}

// Size returns the number of combinations in the grid.
func (g ParamGrid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, vs := range g {
		n *= len(vs)
	}
	return n
}

// Combinations expands the grid into its Cartesian product. Keys are taken
// in sorted order and the last key varies fastest, so the enumeration order
// is stable across runs.
func (g ParamGrid) Combinations() ([]map[string]interface{}, error) {
	if len(g) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(g))
	for k, vs := range g {
		if len(vs) == 0 {
			return nil, errors.NewValidationError(k, "parameter grid entry has no values", vs)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]map[string]interface{}, 0, g.Size())
	pos := make([]int, len(keys))
	for {
		combo := make(map[string]interface{}, len(keys))
		for i, k := range keys {
			combo[k] = g[k][pos[i]]
		}
		out = append(out, combo)

		// odometer increment from the last key
		i := len(keys) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(g[keys[i]]) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return out, nil
		}
	}
}
