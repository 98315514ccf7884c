package tree

import (
	"math"
	"math/rand/v2"
	"sort"
)

// builder grows a tree depth-first over column-major data.
type builder struct {
	criterion   string
	maxDepth    int
	minSplit    int
	minLeaf     int
	maxFeatures int
	rng         *rand.Rand

	cols [][]float64
	y    []float64
	w    []float64

	nodes []Node
}

// split describes the best split found for a node.
type split struct {
	feature   int
	threshold float64
	score     float64
	pos       int // number of samples going left in feature order
}

// grow appends the subtree for indices and returns its node index.
func (b *builder) grow(indices []int, depth int) int {
	var s stats
	ys := make([]float64, len(indices))
	ws := make([]float64, len(indices))
	for k, i := range indices {
		s.add(b.y[i], b.w[i])
		ys[k] = b.y[i]
		ws[k] = b.w[i]
	}

	node := Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Value:    b.leafValue(s, ys, ws),
		Impurity: nodeImpurity(b.criterion, s, ys, ws),
		Samples:  len(indices),
		Weight:   s.w,
	}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node)

	if (b.maxDepth > 0 && depth >= b.maxDepth) ||
		len(indices) < b.minSplit ||
		len(indices) < 2*b.minLeaf ||
		node.Impurity <= 1e-12 {
		return idx
	}

	best, ok := b.findBestSplit(indices, s)
	if !ok {
		return idx
	}

	left := make([]int, 0, best.pos)
	right := make([]int, 0, len(indices)-best.pos)
	col := b.cols[best.feature]
	for _, i := range indices {
		if col[i] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.nodes[idx].Feature = best.feature
	b.nodes[idx].Threshold = best.threshold
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx].Left = l
	b.nodes[idx].Right = r
	return idx
}

func (b *builder) leafValue(s stats, ys, ws []float64) float64 {
	if b.criterion == CriterionAbsoluteError {
		return weightedMedian(ys, ws)
	}
	return s.mean()
}

// candidateFeatures returns the features examined at a node, in the order
// they are visited. Ties keep the first feature visited.
func (b *builder) candidateFeatures() []int {
	n := len(b.cols)
	if b.rng == nil {
		out := make([]int, n)
		for j := range out {
			out[j] = j
		}
		return out
	}
	perm := b.rng.Perm(n)
	return perm[:b.maxFeatures]
}

func (b *builder) findBestSplit(indices []int, total stats) (split, bool) {
	best := split{score: math.Inf(-1)}
	found := false
	order := make([]int, len(indices))

	for _, f := range b.candidateFeatures() {
		col := b.cols[f]
		copy(order, indices)
		sort.SliceStable(order, func(a, c int) bool { return col[order[a]] < col[order[c]] })
		if col[order[0]] == col[order[len(order)-1]] {
			continue
		}

		var cand split
		var ok bool
		if b.criterion == CriterionAbsoluteError {
			cand, ok = b.bestAbsoluteSplit(order, col)
		} else {
			cand, ok = b.bestSumSplit(order, col, total)
		}
		if ok && cand.score > best.score {
			cand.feature = f
			best = cand
			found = true
		}
	}
	return best, found
}

func (b *builder) bestSumSplit(order []int, col []float64, total stats) (split, bool) {
	best := split{score: math.Inf(-1)}
	found := false
	var left stats
	n := len(order)
	for k := 0; k < n-1; k++ {
		i := order[k]
		left.add(b.y[i], b.w[i])
		if col[i] == col[order[k+1]] {
			continue
		}
		if k+1 < b.minLeaf || n-k-1 < b.minLeaf {
			continue
		}
		right := total.minus(left)
		if left.w <= 0 || right.w <= 0 {
			continue
		}
		score, ok := proxyImprovement(b.criterion, left, right)
		if !ok {
			continue
		}
		if score > best.score {
			best = split{threshold: midpoint(col[i], col[order[k+1]]), score: score, pos: k + 1}
			found = true
		}
	}
	return best, found
}

func (b *builder) bestAbsoluteSplit(order []int, col []float64) (split, bool) {
	n := len(order)
	prefix := make([]float64, n)
	var acc absDevPrefix
	for k, i := range order {
		acc.insert(b.y[i], b.w[i])
		prefix[k] = acc.cost()
	}
	suffix := make([]float64, n)
	acc = absDevPrefix{}
	for k := n - 1; k >= 0; k-- {
		i := order[k]
		acc.insert(b.y[i], b.w[i])
		suffix[k] = acc.cost()
	}

	best := split{score: math.Inf(-1)}
	found := false
	for k := 0; k < n-1; k++ {
		if col[order[k]] == col[order[k+1]] {
			continue
		}
		if k+1 < b.minLeaf || n-k-1 < b.minLeaf {
			continue
		}
		score := -(prefix[k] + suffix[k+1])
		if score > best.score {
			best = split{threshold: midpoint(col[order[k]], col[order[k+1]]), score: score, pos: k + 1}
			found = true
		}
	}
	return best, found
}

// midpoint returns the split threshold between two adjacent sorted values,
// falling back to the lower value when the midpoint rounds up to the upper.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}
