package training

import (
	"fmt"
	"math"
	"math/rand"
)

// BoostingParams configures the gradient-boosted ensemble.
type BoostingParams struct {
	NumRounds       int     `json:"num_rounds"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
	Subsample       float64 `json:"subsample"`
	Seed            int64   `json:"seed"`
}

// DefaultBoostingParams mirrors the hyperparameters the dataset was tuned on.
func DefaultBoostingParams(seed int64) BoostingParams {
	return BoostingParams{
		NumRounds:       200,
		LearningRate:    0.1,
		MaxDepth:        8,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		Subsample:       0.9,
		Seed:            seed,
	}
}

// GradientBoosting fits shallow CART trees to residuals under squared loss.
type GradientBoosting struct {
	Params BoostingParams    `json:"params"`
	Init   float64           `json:"init"`
	Trees  []*RegressionTree `json:"trees"`
}

func NewGradientBoosting(params BoostingParams) *GradientBoosting {
	return &GradientBoosting{Params: params}
}

func (g *GradientBoosting) Kind() string { return KindGradientBoosting }

// Fit boosts sequentially: each round fits a tree to the current residuals
// on a random row subsample, then shrinks its contribution by the learning
// rate. Deterministic for a fixed Seed.
func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("boosting fit: %d rows vs %d targets", len(X), len(y))
	}
	n := len(X)

	g.Init = 0
	for _, v := range y {
		g.Init += v
	}
	g.Init /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = g.Init
	}

	rng := rand.New(rand.NewSource(g.Params.Seed))
	sampleSize := int(g.Params.Subsample * float64(n))
	if sampleSize < 1 || sampleSize > n {
		sampleSize = n
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	residual := make([]float64, n)
	g.Trees = make([]*RegressionTree, 0, g.Params.NumRounds)

	for round := 0; round < g.Params.NumRounds; round++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}

		rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		sampleX := make([][]float64, sampleSize)
		sampleY := make([]float64, sampleSize)
		for j := 0; j < sampleSize; j++ {
			sampleX[j] = X[perm[j]]
			sampleY[j] = residual[perm[j]]
		}

		tree := NewRegressionTree(TreeParams{
			MaxDepth:        g.Params.MaxDepth,
			MinSamplesSplit: g.Params.MinSamplesSplit,
			MinSamplesLeaf:  g.Params.MinSamplesLeaf,
			Seed:            g.Params.Seed + int64(round),
		})
		if err := tree.Fit(sampleX, sampleY); err != nil {
			return fmt.Errorf("boosting round %d: %w", round, err)
		}
		g.Trees = append(g.Trees, tree)

		for i := 0; i < n; i++ {
			pred[i] += g.Params.LearningRate * tree.Predict(X[i])
		}
	}
	return nil
}

// Predict sums the shrunken tree contributions over the initial estimate.
func (g *GradientBoosting) Predict(x []float64) float64 {
	if len(g.Trees) == 0 {
		return math.NaN()
	}
	out := g.Init
	for _, tree := range g.Trees {
		out += g.Params.LearningRate * tree.Predict(x)
	}
	return out
}

// FeatureImportances averages the per-round tree importances.
func (g *GradientBoosting) FeatureImportances() []float64 {
	if len(g.Trees) == 0 || g.Trees[0].Importances == nil {
		return nil
	}
	out := make([]float64, len(g.Trees[0].Importances))
	for _, tree := range g.Trees {
		for i, v := range tree.Importances {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(g.Trees))
	}
	return out
}
