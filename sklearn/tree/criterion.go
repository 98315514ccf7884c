package tree

import (
	"math"
	"sort"
)

// Supported split criteria.
const (
	CriterionSquaredError  = "squared_error"
	CriterionFriedmanMSE   = "friedman_mse"
	CriterionAbsoluteError = "absolute_error"
	CriterionPoisson       = "poisson"
)

func validCriterion(c string) bool {
	switch c {
	case CriterionSquaredError, CriterionFriedmanMSE, CriterionAbsoluteError, CriterionPoisson:
		return true
	}
	return false
}

// stats accumulates weighted sums over a set of samples.
type stats struct {
	w   float64 // Σw
	wy  float64 // Σw·y
	wy2 float64 // Σw·y²
}

func (s *stats) add(y, w float64) {
	s.w += w
	s.wy += w * y
	s.wy2 += w * y * y
}

func (s stats) minus(o stats) stats {
	return stats{w: s.w - o.w, wy: s.wy - o.wy, wy2: s.wy2 - o.wy2}
}

func (s stats) mean() float64 {
	if s.w <= 0 {
		return 0
	}
	return s.wy / s.w
}

// proxyImprovement scores a candidate split for the sum-based criteria.
// Larger is better. ok is false when the split is not admissible.
func proxyImprovement(criterion string, left, right stats) (float64, bool) {
	switch criterion {
	case CriterionFriedmanMSE:
		diff := right.w*left.wy - left.w*right.wy
		return diff * diff / (left.w * right.w), true
	case CriterionPoisson:
		if left.wy <= 0 || right.wy <= 0 {
			return 0, false
		}
		return left.wy*math.Log(left.mean()) + right.wy*math.Log(right.mean()), true
	default: // squared_error
		return left.wy*left.wy/left.w + right.wy*right.wy/right.w, true
	}
}

// nodeImpurity returns the impurity of a node for reporting and the purity check.
func nodeImpurity(criterion string, s stats, ys, ws []float64) float64 {
	switch criterion {
	case CriterionAbsoluteError:
		med := weightedMedian(ys, ws)
		total := 0.0
		for i, y := range ys {
			total += ws[i] * math.Abs(y-med)
		}
		return total / s.w
	case CriterionPoisson:
		m := s.mean()
		if m <= 0 {
			return 0
		}
		dev := 0.0
		for i, y := range ys {
			if y > 0 {
				dev += ws[i] * y * math.Log(y/m)
			}
			dev -= ws[i] * (y - m)
		}
		return dev / s.w
	default:
		// two-pass to avoid cancellation on large, nearly constant targets
		m := s.mean()
		ss := 0.0
		for i, y := range ys {
			ss += ws[i] * (y - m) * (y - m)
		}
		return ss / s.w
	}
}

// weightedMedian returns the lower weighted median of ys.
func weightedMedian(ys, ws []float64) float64 {
	idx := make([]int, len(ys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return ys[idx[a]] < ys[idx[b]] })
	total := 0.0
	for _, w := range ws {
		total += w
	}
	acc := 0.0
	for _, i := range idx {
		acc += ws[i]
		if acc >= total/2 {
			return ys[i]
		}
	}
	return ys[idx[len(idx)-1]]
}

// absDevPrefix keeps a sorted multiset of weighted targets and reports the
// total weighted absolute deviation from its weighted median.
type absDevPrefix struct {
	ys []float64
	ws []float64
	w  float64
}

func (a *absDevPrefix) insert(y, w float64) {
	pos := sort.SearchFloat64s(a.ys, y)
	a.ys = append(a.ys, 0)
	a.ws = append(a.ws, 0)
	copy(a.ys[pos+1:], a.ys[pos:])
	copy(a.ws[pos+1:], a.ws[pos:])
	a.ys[pos] = y
	a.ws[pos] = w
	a.w += w
}

func (a *absDevPrefix) cost() float64 {
	if len(a.ys) == 0 {
		return 0
	}
	half := a.w / 2
	acc := 0.0
	med := a.ys[len(a.ys)-1]
	for i, w := range a.ws {
		acc += w
		if acc >= half {
			med = a.ys[i]
			break
		}
	}
	total := 0.0
	for i, y := range a.ys {
		total += a.ws[i] * math.Abs(y-med)
	}
	return total
}
