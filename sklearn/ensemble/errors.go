package ensemble

import "github.com/YuminosukeSato/scoreml/pkg/errors"

func newEmptyDataError(op string) error {
	return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
}

func newRowMismatchError(op string, want, got int) error {
	return errors.NewDimensionError(op, want, got, 0)
}

func newColumnVectorError(op string) error {
	return errors.NewValueError(op, "y must be a column vector")
}
