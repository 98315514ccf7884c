// Package model_selection provides cross-validation splitters, parameter
// grids and exhaustive grid search.
package model_selection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

// Fold holds the train and test row indices of one split.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits n samples into NSplits consecutive folds. The first n % NSplits
// folds have one extra sample. When Shuffle is set the indices are permuted
// with RandomState first.
type KFold struct {
	NSplits     int
	Shuffle     bool
	RandomState int64
}

// NewKFold creates an unshuffled KFold.
func NewKFold(nSplits int) *KFold {
	return &KFold{NSplits: nSplits}
}

// Split returns the folds for n samples.
func (k *KFold) Split(n int) ([]Fold, error) {
	if k.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be >= 2", k.NSplits)
	}
	if n < k.NSplits {
		return nil, errors.NewValidationError("n_splits",
			"cannot be greater than the number of samples", k.NSplits)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if k.Shuffle {
		rng := rand.New(rand.NewPCG(uint64(k.RandomState), 0))
		rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}

	folds := make([]Fold, 0, k.NSplits)
	start := 0
	for f := 0; f < k.NSplits; f++ {
		size := n / k.NSplits
		if f < n%k.NSplits {
			size++
		}
		end := start + size
		test := append([]int(nil), idx[start:end]...)
		train := make([]int, 0, n-size)
		train = append(train, idx[:start]...)
		train = append(train, idx[end:]...)
		folds = append(folds, Fold{Train: train, Test: test})
		start = end
	}
	return folds, nil
}

// TrainTestSplit shuffles n row indices with seed and returns the train and
// test partitions. The test partition has ceil(testSize·n) rows.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, errors.NewValidationError("test_size",
			"leaves an empty train or test partition", testSize)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// TakeRows copies the given rows of m into a new matrix.
func TakeRows(m mat.Matrix, rows []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}
