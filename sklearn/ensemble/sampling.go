// Package ensemble implements tree ensembles for regression: random forests,
// gradient boosting and AdaBoost.R2.
package ensemble

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

func newRNG(seed int64, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), stream))
}

// bootstrapCounts draws n indices with replacement and returns how often each
// was drawn.
func bootstrapCounts(rng *rand.Rand, n int) []float64 {
	counts := make([]float64, n)
	for i := 0; i < n; i++ {
		counts[rng.IntN(n)]++
	}
	return counts
}

// weightedBootstrapCounts draws n indices with replacement with probability
// proportional to p.
func weightedBootstrapCounts(rng *rand.Rand, p []float64) []float64 {
	n := len(p)
	cdf := make([]float64, n)
	acc := 0.0
	for i, v := range p {
		acc += v
		cdf[i] = acc
	}
	counts := make([]float64, n)
	for i := 0; i < n; i++ {
		u := rng.Float64() * acc
		j := sort.SearchFloat64s(cdf, u)
		if j >= n {
			j = n - 1
		}
		// skip zero-probability entries that share a cumulative value
		for j < n-1 && p[j] == 0 {
			j++
		}
		counts[j]++
	}
	return counts
}

// subsampleMask selects k of n samples without replacement.
func subsampleMask(rng *rand.Rand, n, k int) []float64 {
	mask := make([]float64, n)
	for _, i := range rng.Perm(n)[:k] {
		mask[i] = 1
	}
	return mask
}

// rowsOf copies X into row slices once so that trees can be evaluated with
// PredictRow.
func rowsOf(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			rows[i][j] = X.At(i, j)
		}
	}
	return rows
}

func checkXY(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	ry, cy := y.Dims()
	switch {
	case rows == 0 || cols == 0:
		return 0, 0, newEmptyDataError(op)
	case ry != rows:
		return 0, 0, newRowMismatchError(op, rows, ry)
	case cy != 1:
		return 0, 0, newColumnVectorError(op)
	}
	return rows, cols, nil
}
