package forest

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

var errCorruptTree = errors.New("corrupt tree")

// Node is either a split (Left/Right > 0) or a leaf holding Value.
// The root is always Nodes[0], so child index 0 means "no child".
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

func (n Node) isLeaf() bool { return n.Left == 0 && n.Right == 0 }

// Tree is a single regression tree.
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(x []float64) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, errCorruptTree
	}
	i := 0
	// A well-formed tree reaches a leaf in at most len(Nodes) steps.
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[i]
		if n.isLeaf() {
			return n.Value, nil
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		if i <= 0 || i >= len(t.Nodes) {
			return 0, fmt.Errorf("%w: child index %d", errCorruptTree, i)
		}
	}
	return 0, fmt.Errorf("%w: cycle detected", errCorruptTree)
}

func (t *Tree) validate(nFeatures int) error {
	if len(t.Nodes) == 0 {
		return errCorruptTree
	}
	for i, n := range t.Nodes {
		if n.isLeaf() {
			if !isFinite(n.Value) {
				return fmt.Errorf("%w: leaf %d has non-finite value", errCorruptTree, i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("%w: node %d splits on feature %d", errCorruptTree, i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("%w: node %d has invalid children", errCorruptTree, i)
		}
	}
	return nil
}

type builder struct {
	X         [][]float64
	y         []float64
	params    Params
	nFeatures int
	rng       *rand.Rand
	nodes     []Node
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Value: b.mean(idx)})

	if len(idx) < b.params.MinSamplesSplit {
		return self
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self].Feature = feature
	b.nodes[self].Threshold = threshold
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

func (b *builder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += b.y[i]
	}
	return s / float64(len(idx))
}

func (b *builder) candidateFeatures() []int {
	all := b.rng.Perm(b.nFeatures)
	if b.params.MaxFeatures > 0 && b.params.MaxFeatures < b.nFeatures {
		return all[:b.params.MaxFeatures]
	}
	sort.Ints(all)
	return all
}

// bestSplit scans midpoints between distinct sorted values of each candidate
// feature and keeps the split with the lowest summed squared error.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf

	var total, totalSq float64
	for _, i := range idx {
		total += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	parentSSE := totalSq - total*total/float64(n)

	bestSSE := parentSSE
	bestFeature, bestThreshold, found := -1, 0.0, false

	order := make([]int, n)
	for _, f := range b.candidateFeatures() {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool {
			return b.X[order[a]][f] < b.X[order[c]][f]
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yk := b.y[order[k]]
			leftSum += yk
			leftSq += yk * yk

			cur, next := b.X[order[k]][f], b.X[order[k+1]][f]
			if cur == next {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if sse < bestSSE-1e-12 {
				bestSSE = sse
				bestFeature = f
				bestThreshold = (cur + next) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
