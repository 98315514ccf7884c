package catboost

import "sort"

// borders computes up to maxBorders split candidates for one feature: the
// midpoints between consecutive distinct values, thinned to evenly spaced
// quantiles when there are too many.
func borders(values []float64, maxBorders int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	distinct := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) < 2 {
		return nil
	}

	mids := make([]float64, len(distinct)-1)
	for i := range mids {
		mids[i] = (distinct[i] + distinct[i+1]) / 2
	}
	if len(mids) <= maxBorders {
		return mids
	}
	if maxBorders == 1 {
		return []float64{mids[len(mids)/2]}
	}

	out := make([]float64, 0, maxBorders)
	for k := 0; k < maxBorders; k++ {
		pos := (k*(len(mids)-1) + (maxBorders-1)/2) / (maxBorders - 1)
		if len(out) == 0 || mids[pos] != out[len(out)-1] {
			out = append(out, mids[pos])
		}
	}
	return out
}

// binIndex returns the number of borders strictly below v, so that
// "v > borders[b]" is equivalent to "binIndex(v) > b".
func binIndex(v float64, bs []float64) int {
	return sort.Search(len(bs), func(i int) bool { return bs[i] >= v })
}
