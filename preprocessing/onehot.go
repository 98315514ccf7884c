package preprocessing

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// Drop policies for OneHotEncoder.
const (
	DropNone  = ""
	DropFirst = "first"
)

// OneHotEncoder expands categorical columns into indicator columns. With
// DropFirst the first (lexically smallest) category of each column gets no
// indicator. Categories not seen at fit time encode as all zeros.
type OneHotEncoder struct {
	Drop       string
	Categories [][]string
}

// NewOneHotEncoder creates an encoder with the given drop policy.
func NewOneHotEncoder(drop string) *OneHotEncoder {
	return &OneHotEncoder{Drop: drop}
}

// Fit learns the sorted category set of each column.
func (o *OneHotEncoder) Fit(columns [][]string) error {
	if len(columns) == 0 || len(columns[0]) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	if o.Drop != DropNone && o.Drop != DropFirst {
		return errors.NewValidationError("drop", "must be empty or \"first\"", o.Drop)
	}
	o.Categories = make([][]string, len(columns))
	for j, col := range columns {
		seen := make(map[string]struct{})
		for _, v := range col {
			seen[v] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		o.Categories[j] = cats
	}
	return nil
}

func (o *OneHotEncoder) dropped() int {
	if o.Drop == DropFirst {
		return 1
	}
	return 0
}

// NOutputs returns the number of indicator columns Transform produces.
func (o *OneHotEncoder) NOutputs() int {
	n := 0
	for _, cats := range o.Categories {
		n += len(cats) - o.dropped()
	}
	return n
}

// Transform encodes columns into a rows × NOutputs() indicator matrix.
func (o *OneHotEncoder) Transform(columns [][]string) (*mat.Dense, error) {
	if o.Categories == nil {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(columns) != len(o.Categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", len(o.Categories), len(columns), 1)
	}
	rows := len(columns[0])
	width := o.NOutputs()
	if rows == 0 || width == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty output", errors.ErrEmptyData)
	}

	out := mat.NewDense(rows, width, nil)
	offset := 0
	for j, col := range columns {
		cats := o.Categories[j]
		for i, v := range col {
			k := sort.SearchStrings(cats, v)
			if k == len(cats) || cats[k] != v || k < o.dropped() {
				continue
			}
			out.Set(i, offset+k-o.dropped(), 1)
		}
		offset += len(cats) - o.dropped()
	}
	return out, nil
}

// FeatureNames returns "<column>_<category>" for each output column.
func (o *OneHotEncoder) FeatureNames(columns []string) []string {
	names := make([]string, 0, o.NOutputs())
	for j, cats := range o.Categories {
		for _, c := range cats[o.dropped():] {
			names = append(names, columns[j]+"_"+c)
		}
	}
	return names
}
