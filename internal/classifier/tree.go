package classifier

import (
	"math/rand/v2"
	"slices"
)

// treeNode is one node of a fitted CART tree. Leaves have Feature == -1 and
// carry the class distribution of their training samples.
type treeNode struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

type decisionTree struct {
	Nodes []treeNode `json:"nodes"`
}

type treeParams struct {
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int
	numClasses     int
}

type treeBuilder struct {
	x      [][]float64
	y      []int
	params treeParams
	rng    *rand.Rand
	nodes  []treeNode
	feats  []int
}

// buildTree grows a Gini-impurity CART tree over the given sample indices.
func buildTree(x [][]float64, y []int, samples []int, params treeParams, rng *rand.Rand) *decisionTree {
	b := &treeBuilder{
		x:      x,
		y:      y,
		params: params,
		rng:    rng,
		feats:  make([]int, len(x[0])),
	}
	for i := range b.feats {
		b.feats[i] = i
	}
	b.grow(samples, 0)
	return &decisionTree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(samples []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Feature: -1})

	counts := b.classCounts(samples)
	stop := isPure(counts) ||
		len(samples) < 2*b.params.minSamplesLeaf ||
		(b.params.maxDepth > 0 && depth >= b.params.maxDepth)

	if !stop {
		if feat, thr, ok := b.bestSplit(samples, counts); ok {
			left, right := partition(b.x, samples, feat, thr)
			l := b.grow(left, depth+1)
			r := b.grow(right, depth+1)
			b.nodes[idx].Feature = feat
			b.nodes[idx].Threshold = thr
			b.nodes[idx].Left = l
			b.nodes[idx].Right = r
			return idx
		}
	}

	b.nodes[idx].Value = distribution(counts, len(samples))
	return idx
}

// bestSplit evaluates up to maxFeatures non-constant features in random order
// and returns the split with the lowest weighted Gini impurity.
func (b *treeBuilder) bestSplit(samples []int, counts []int) (int, float64, bool) {
	n := len(samples)
	sorted := make([]int, n)
	left := make([]int, b.params.numClasses)
	right := make([]int, b.params.numClasses)

	bestFeat, bestThr, bestImp := -1, 0.0, 0.0
	visited := 0

	b.rng.Shuffle(len(b.feats), func(i, j int) { b.feats[i], b.feats[j] = b.feats[j], b.feats[i] })

	for _, f := range b.feats {
		if visited >= b.params.maxFeatures {
			break
		}

		copy(sorted, samples)
		slices.SortFunc(sorted, func(a, c int) int {
			switch {
			case b.x[a][f] < b.x[c][f]:
				return -1
			case b.x[a][f] > b.x[c][f]:
				return 1
			}
			return 0
		})
		if b.x[sorted[0]][f] == b.x[sorted[n-1]][f] {
			continue
		}
		visited++

		clear(left)
		copy(right, counts)
		for i := 0; i < n-1; i++ {
			cls := b.y[sorted[i]]
			left[cls]++
			right[cls]--

			lo, hi := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := i+1, n-i-1
			if nl < b.params.minSamplesLeaf || nr < b.params.minSamplesLeaf {
				continue
			}

			imp := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
			if bestFeat < 0 || imp < bestImp {
				thr := lo + (hi-lo)/2
				if thr >= hi {
					thr = lo
				}
				bestFeat, bestThr, bestImp = f, thr, imp
			}
		}
	}

	return bestFeat, bestThr, bestFeat >= 0
}

func (b *treeBuilder) classCounts(samples []int) []int {
	counts := make([]int, b.params.numClasses)
	for _, s := range samples {
		counts[b.y[s]]++
	}
	return counts
}

// predict returns the leaf class distribution for x.
func (t *decisionTree) predict(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// validate checks structural consistency of a decoded tree.
func (t *decisionTree) validate(width, numClasses int) bool {
	if len(t.Nodes) == 0 {
		return false
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			if len(n.Value) != numClasses {
				return false
			}
			continue
		}
		if n.Feature >= width {
			return false
		}
		// children are always appended after their parent
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return false
		}
	}
	return true
}

func partition(x [][]float64, samples []int, feat int, thr float64) ([]int, []int) {
	var left, right []int
	for _, s := range samples {
		if x[s][feat] <= thr {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	return left, right
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func distribution(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	if n == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(n)
	}
	return out
}
