package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/dataset"
	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// NumericPipeline imputes then scales a block of numeric columns.
type NumericPipeline struct {
	Columns []string
	Imputer *SimpleImputer
	Scaler  *StandardScaler
}

// CategoricalPipeline imputes, one-hot encodes, then scales a block of
// categorical columns.
type CategoricalPipeline struct {
	Columns []string
	Imputer *CategoricalImputer
	Encoder *OneHotEncoder
	Scaler  *StandardScaler
}

// ColumnTransformer applies the numeric pipeline and the categorical pipeline
// to their columns of a Frame and concatenates the results, numeric block
// first.
type ColumnTransformer struct {
	Numeric     *NumericPipeline
	Categorical *CategoricalPipeline
	Fitted      bool
}

// Fit learns every step from f.
func (ct *ColumnTransformer) Fit(f *dataset.Frame) error {
	_, err := ct.fit(f)
	return err
}

// FitTransform fits on f and returns its encoded matrix.
func (ct *ColumnTransformer) FitTransform(f *dataset.Frame) (*mat.Dense, error) {
	return ct.fit(f)
}

func (ct *ColumnTransformer) fit(f *dataset.Frame) (*mat.Dense, error) {
	if f == nil || f.NumRows == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}
	ct.Fitted = false

	var blocks []mat.Matrix
	if p := ct.Numeric; p != nil && len(p.Columns) > 0 {
		X, err := numericBlock(f, p.Columns)
		if err != nil {
			return nil, err
		}
		filled, err := p.Imputer.FitTransform(X)
		if err != nil {
			return nil, errors.Wrap(err, "numeric imputer")
		}
		scaled, err := p.Scaler.FitTransform(filled)
		if err != nil {
			return nil, errors.Wrap(err, "numeric scaler")
		}
		blocks = append(blocks, scaled)
	}

	if p := ct.Categorical; p != nil && len(p.Columns) > 0 {
		cols, err := categoricalBlock(f, p.Columns)
		if err != nil {
			return nil, err
		}
		if err := p.Imputer.Fit(cols); err != nil {
			return nil, errors.Wrap(err, "categorical imputer")
		}
		filled, err := p.Imputer.Transform(cols)
		if err != nil {
			return nil, err
		}
		if err := p.Encoder.Fit(filled); err != nil {
			return nil, errors.Wrap(err, "one-hot encoder")
		}
		if p.Encoder.NOutputs() > 0 {
			encoded, err := p.Encoder.Transform(filled)
			if err != nil {
				return nil, err
			}
			scaled, err := p.Scaler.FitTransform(encoded)
			if err != nil {
				return nil, errors.Wrap(err, "categorical scaler")
			}
			blocks = append(blocks, scaled)
		}
	}

	if len(blocks) == 0 {
		return nil, errors.NewValueError("ColumnTransformer.Fit", "no output columns")
	}
	ct.Fitted = true
	return hstack(blocks...), nil
}

// Transform encodes f with the fitted steps.
func (ct *ColumnTransformer) Transform(f *dataset.Frame) (*mat.Dense, error) {
	if !ct.Fitted {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Transform")
	}
	if f == nil || f.NumRows == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Transform", "empty data", errors.ErrEmptyData)
	}

	var blocks []mat.Matrix
	if p := ct.Numeric; p != nil && len(p.Columns) > 0 {
		X, err := numericBlock(f, p.Columns)
		if err != nil {
			return nil, err
		}
		filled, err := p.Imputer.Transform(X)
		if err != nil {
			return nil, err
		}
		scaled, err := p.Scaler.Transform(filled)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, scaled)
	}
	if p := ct.Categorical; p != nil && len(p.Columns) > 0 && p.Encoder.NOutputs() > 0 {
		cols, err := categoricalBlock(f, p.Columns)
		if err != nil {
			return nil, err
		}
		filled, err := p.Imputer.Transform(cols)
		if err != nil {
			return nil, err
		}
		encoded, err := p.Encoder.Transform(filled)
		if err != nil {
			return nil, err
		}
		scaled, err := p.Scaler.Transform(encoded)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, scaled)
	}
	return hstack(blocks...), nil
}

// FeatureNames returns the output column names, prefixed "num__" or "cat__".
func (ct *ColumnTransformer) FeatureNames() []string {
	var names []string
	if p := ct.Numeric; p != nil {
		for _, c := range p.Columns {
			names = append(names, "num__"+c)
		}
	}
	if p := ct.Categorical; p != nil && p.Encoder != nil {
		for _, c := range p.Encoder.FeatureNames(p.Columns) {
			names = append(names, "cat__"+c)
		}
	}
	return names
}

func numericBlock(f *dataset.Frame, columns []string) (*mat.Dense, error) {
	X := mat.NewDense(f.NumRows, len(columns), nil)
	for j, name := range columns {
		col, ok := f.Numeric[name]
		if !ok {
			return nil, errors.NewValidationError(name, "numeric column missing from frame", nil)
		}
		if len(col) != f.NumRows {
			return nil, errors.NewFeatureShapeError("transform", name, []int{f.NumRows}, []int{len(col)})
		}
		for i, v := range col {
			X.Set(i, j, v)
		}
	}
	return X, nil
}

func categoricalBlock(f *dataset.Frame, columns []string) ([][]string, error) {
	out := make([][]string, len(columns))
	for j, name := range columns {
		col, ok := f.Categorical[name]
		if !ok {
			return nil, errors.NewValidationError(name, "categorical column missing from frame", nil)
		}
		if len(col) != f.NumRows {
			return nil, errors.NewFeatureShapeError("transform", name, []int{f.NumRows}, []int{len(col)})
		}
		out[j] = col
	}
	return out, nil
}

// hstack concatenates matrices with equal row counts side by side.
func hstack(blocks ...mat.Matrix) *mat.Dense {
	rows, width := 0, 0
	for _, b := range blocks {
		r, c := b.Dims()
		rows = r
		width += c
	}
	out := mat.NewDense(rows, width, nil)
	offset := 0
	for _, b := range blocks {
		r, c := b.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out.Set(i, offset+j, b.At(i, j))
			}
		}
		offset += c
	}
	return out
}
