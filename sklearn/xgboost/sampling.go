package xgboost

import (
	"math/rand/v2"
	"sort"
)

func newRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
}

// sampleRows returns the row indices used for one round, in ascending order.
func sampleRows(rng *rand.Rand, n int, fraction float64) []int {
	if fraction >= 1 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	k := max(1, int(fraction*float64(n)))
	out := rng.Perm(n)[:k]
	sort.Ints(out)
	return out
}

// sampleColumns returns the features a tree may split on, in ascending order.
func sampleColumns(rng *rand.Rand, n int, fraction float64) []int {
	return sampleRows(rng, n, fraction)
}
