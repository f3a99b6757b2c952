package training

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

// ForestParams configures the bagged ensemble. Defaults are tuned for
// scrape datasets in the tens of thousands of rows.
type ForestParams struct {
	NumTrees        int   `json:"num_trees"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"seed"`
}

// DefaultForestParams mirrors the hyperparameters the dataset was tuned on.
func DefaultForestParams(seed int64) ForestParams {
	return ForestParams{
		NumTrees:        200,
		MaxDepth:        20,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		Seed:            seed,
	}
}

// RandomForest averages bootstrap-sampled CART trees with sqrt feature
// subsampling per split.
type RandomForest struct {
	Params ForestParams      `json:"params"`
	Trees  []*RegressionTree `json:"trees"`
}

func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

func (f *RandomForest) Kind() string { return KindRandomForest }

// Fit grows the trees. Tree i derives its rng from Seed+i, so the build is
// deterministic regardless of how many goroutines construct trees.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("forest fit: %d rows vs %d targets", len(X), len(y))
	}
	n := len(X)
	maxFeatures := int(math.Sqrt(float64(len(X[0]))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	f.Trees = make([]*RegressionTree, f.Params.NumTrees)
	workers := runtime.GOMAXPROCS(0)
	sem := make(chan struct{}, workers)
	errs := make([]error, f.Params.NumTrees)

	var wg sync.WaitGroup
	for i := 0; i < f.Params.NumTrees; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			seed := f.Params.Seed + int64(i)
			rng := rand.New(rand.NewSource(seed))
			sampleX := make([][]float64, n)
			sampleY := make([]float64, n)
			for j := 0; j < n; j++ {
				k := rng.Intn(n)
				sampleX[j] = X[k]
				sampleY[j] = y[k]
			}

			tree := NewRegressionTree(TreeParams{
				MaxDepth:        f.Params.MaxDepth,
				MinSamplesSplit: f.Params.MinSamplesSplit,
				MinSamplesLeaf:  f.Params.MinSamplesLeaf,
				MaxFeatures:     maxFeatures,
				Seed:            seed,
			})
			errs[i] = tree.Fit(sampleX, sampleY)
			f.Trees[i] = tree
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Predict averages the tree estimates.
func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, tree := range f.Trees {
		sum += tree.Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// FeatureImportances averages the per-tree impurity importances.
func (f *RandomForest) FeatureImportances() []float64 {
	if len(f.Trees) == 0 || f.Trees[0].Importances == nil {
		return nil
	}
	out := make([]float64, len(f.Trees[0].Importances))
	for _, tree := range f.Trees {
		for i, v := range tree.Importances {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(f.Trees))
	}
	return out
}
