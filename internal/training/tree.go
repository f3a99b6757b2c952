package training

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TreeParams are the CART hyperparameters shared by the single tree and the
// trees inside both ensembles.
type TreeParams struct {
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	// MaxFeatures limits the candidate features per split; 0 means all.
	MaxFeatures int   `json:"max_features,omitempty"`
	Seed        int64 `json:"seed"`
}

// treeNode is one node of the flattened tree. Leaves carry the mean target
// of their training samples; internal nodes route on Feature <= Threshold.
type treeNode struct {
	Leaf      bool    `json:"leaf"`
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// RegressionTree is a CART regressor minimizing squared error.
type RegressionTree struct {
	Params      TreeParams `json:"params"`
	Nodes       []treeNode `json:"nodes"`
	NumFeatures int        `json:"num_features"`
	Importances []float64  `json:"importances,omitempty"`

	rng *rand.Rand
}

// NewRegressionTree returns an untrained tree with the given parameters.
func NewRegressionTree(params TreeParams) *RegressionTree {
	return &RegressionTree{Params: params}
}

func (t *RegressionTree) Kind() string { return KindDecisionTree }

func (t *RegressionTree) FeatureImportances() []float64 {
	if t.Importances == nil {
		return nil
	}
	out := make([]float64, len(t.Importances))
	copy(out, t.Importances)
	return out
}

// Fit grows the tree on X/y. Deterministic for a fixed Seed.
func (t *RegressionTree) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("tree fit: %d rows vs %d targets", len(X), len(y))
	}
	t.NumFeatures = len(X[0])
	t.Nodes = t.Nodes[:0]
	t.Importances = make([]float64, t.NumFeatures)
	t.rng = rand.New(rand.NewSource(t.Params.Seed))

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.grow(X, y, idx, 0, len(X))
	t.normalizeImportances()
	t.rng = nil
	return nil
}

// grow appends the subtree over idx and returns its node index.
func (t *RegressionTree) grow(X [][]float64, y []float64, idx []int, depth, total int) int {
	sum, sumSq := momentsOf(y, idx)
	n := float64(len(idx))
	mean := sum / n
	sse := sumSq - sum*sum/n

	nodeIdx := len(t.Nodes)
	t.Nodes = append(t.Nodes, treeNode{Leaf: true, Value: mean})

	if depth >= t.Params.MaxDepth || len(idx) < t.Params.MinSamplesSplit || sse <= 1e-12 {
		return nodeIdx
	}

	feature, threshold, gain, ok := t.bestSplit(X, y, idx, sse)
	if !ok {
		return nodeIdx
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < t.Params.MinSamplesLeaf || len(right) < t.Params.MinSamplesLeaf {
		return nodeIdx
	}

	t.Importances[feature] += gain * n / float64(total)

	leftIdx := t.grow(X, y, left, depth+1, total)
	rightIdx := t.grow(X, y, right, depth+1, total)
	t.Nodes[nodeIdx] = treeNode{Feature: feature, Threshold: threshold, Left: leftIdx, Right: rightIdx}
	return nodeIdx
}

// bestSplit scans candidate features for the squared-error-minimizing
// threshold. With MaxFeatures set, features are scanned in a random order
// and the scan stops after MaxFeatures features once a valid split exists;
// scanning continues past the limit while no split has been found.
func (t *RegressionTree) bestSplit(X [][]float64, y []float64, idx []int, parentSSE float64) (feature int, threshold, gain float64, ok bool) {
	candidates := t.candidateFeatures()
	limit := t.Params.MaxFeatures
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	type pair struct {
		v float64
		y float64
	}
	pairs := make([]pair, len(idx))

	bestGain := 0.0
	for fi, f := range candidates {
		if fi >= limit && bestGain > 1e-12 {
			break
		}
		for j, i := range idx {
			pairs[j] = pair{v: X[i][f], y: y[i]}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		total := 0.0
		totalSq := 0.0
		for _, p := range pairs {
			total += p.y
			totalSq += p.y * p.y
		}

		leftSum := 0.0
		leftSq := 0.0
		n := len(pairs)
		for j := 0; j < n-1; j++ {
			leftSum += pairs[j].y
			leftSq += pairs[j].y * pairs[j].y

			if pairs[j].v == pairs[j+1].v {
				continue
			}
			nl := j + 1
			nr := n - nl
			if nl < t.Params.MinSamplesLeaf || nr < t.Params.MinSamplesLeaf {
				continue
			}
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			childSSE := (leftSq - leftSum*leftSum/float64(nl)) +
				(rightSq - rightSum*rightSum/float64(nr))
			g := parentSSE - childSSE
			if g > bestGain {
				bestGain = g
				feature = f
				threshold = (pairs[j].v + pairs[j+1].v) / 2
			}
		}
	}
	if bestGain <= 1e-12 {
		return 0, 0, 0, false
	}
	return feature, threshold, bestGain, true
}

// candidateFeatures returns every feature index, shuffled when per-split
// feature subsampling is on.
func (t *RegressionTree) candidateFeatures() []int {
	all := make([]int, t.NumFeatures)
	for i := range all {
		all[i] = i
	}
	if t.Params.MaxFeatures > 0 && t.Params.MaxFeatures < t.NumFeatures {
		t.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	}
	return all
}

func (t *RegressionTree) normalizeImportances() {
	sum := 0.0
	for _, v := range t.Importances {
		sum += v
	}
	if sum <= 0 {
		return
	}
	for i := range t.Importances {
		t.Importances[i] /= sum
	}
}

// Predict routes x to its leaf and returns the leaf mean.
func (t *RegressionTree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return math.NaN()
	}
	node := &t.Nodes[0]
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = &t.Nodes[node.Left]
		} else {
			node = &t.Nodes[node.Right]
		}
	}
	return node.Value
}

func momentsOf(y []float64, idx []int) (sum, sumSq float64) {
	for _, i := range idx {
		sum += y[i]
		sumSq += y[i] * y[i]
	}
	return sum, sumSq
}
