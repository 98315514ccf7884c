package xgboost

import (
	"math"
	"sort"
)

// Node is a node of a boosted tree. Leaves have Feature == -1 and carry the
// already shrunken leaf weight in Value.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Gain      float64
	Cover     float64 // Σh of the samples in the node
}

// Tree is one boosting round.
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(row []float64) float64 {
	n := 0
	for t.Nodes[n].Feature >= 0 {
		if row[t.Nodes[n].Feature] < t.Nodes[n].Threshold {
			n = t.Nodes[n].Left
		} else {
			n = t.Nodes[n].Right
		}
	}
	return t.Nodes[n].Value
}

// splitInfo contains information about a candidate split.
type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
}

// grower builds one tree with the exact greedy algorithm.
type grower struct {
	params *XGBRegressor
	cols   [][]float64
	grad   []float64
	hess   []float64
	feats  []int

	nodes []Node
}

func (g *grower) build(indices []int, depth int) int {
	G, H := g.sums(indices)
	idx := len(g.nodes)
	g.nodes = append(g.nodes, Node{
		Feature: -1,
		Left:    -1,
		Right:   -1,
		Value:   g.params.LearningRate * g.leafWeight(G, H),
		Cover:   H,
	})

	if depth >= g.params.MaxDepth || len(indices) < 2 {
		return idx
	}
	best := g.findBestSplit(indices, G, H)
	if best.gain <= 0 {
		return idx
	}

	var left, right []int
	col := g.cols[best.feature]
	for _, i := range indices {
		if col[i] < best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	g.nodes[idx].Feature = best.feature
	g.nodes[idx].Threshold = best.threshold
	g.nodes[idx].Gain = best.gain
	l := g.build(left, depth+1)
	r := g.build(right, depth+1)
	g.nodes[idx].Left = l
	g.nodes[idx].Right = r
	return idx
}

func (g *grower) sums(indices []int) (G, H float64) {
	for _, i := range indices {
		G += g.grad[i]
		H += g.hess[i]
	}
	return G, H
}

func (g *grower) findBestSplit(indices []int, G, H float64) splitInfo {
	best := splitInfo{feature: -1, gain: math.Inf(-1)}
	order := make([]int, len(indices))
	for _, f := range g.feats {
		col := g.cols[f]
		copy(order, indices)
		sort.SliceStable(order, func(a, b int) bool { return col[order[a]] < col[order[b]] })

		var GL, HL float64
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			GL += g.grad[i]
			HL += g.hess[i]
			next := col[order[k+1]]
			if col[i] == next {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < g.params.MinChildWeight || HR < g.params.MinChildWeight {
				continue
			}
			gain := g.splitGain(GL, HL, GR, HR, G, H)
			if gain > best.gain {
				best = splitInfo{feature: f, threshold: (col[i] + next) / 2, gain: gain}
			}
		}
	}
	return best
}

// splitGain is the structure score improvement minus gamma.
func (g *grower) splitGain(GL, HL, GR, HR, G, H float64) float64 {
	return 0.5*(g.score(GL, HL)+g.score(GR, HR)-g.score(G, H)) - g.params.Gamma
}

func (g *grower) score(G, H float64) float64 {
	t := thresholdL1(G, g.params.RegAlpha)
	return t * t / (H + g.params.RegLambda)
}

func (g *grower) leafWeight(G, H float64) float64 {
	return -thresholdL1(G, g.params.RegAlpha) / (H + g.params.RegLambda)
}

// thresholdL1 applies the soft-threshold used by L1 regularisation.
func thresholdL1(w, alpha float64) float64 {
	switch {
	case w > alpha:
		return w - alpha
	case w < -alpha:
		return w + alpha
	default:
		return 0
	}
}
