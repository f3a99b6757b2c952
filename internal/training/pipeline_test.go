package training

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/flightfare/flightprice/internal/features"
)

func TestSelectBestUsesCrossValidatedError(t *testing.T) {
	candidates := []*CandidateResult{
		{Name: "Decision Tree", Metrics: EvaluationMetrics{CVMAEMean: 500000, TestMAE: 100}},
		{Name: "Random Forest", Metrics: EvaluationMetrics{CVMAEMean: 480000, TestMAE: 999999}},
		{Name: "Gradient Boosting", Metrics: EvaluationMetrics{CVMAEMean: 510000, TestMAE: 50}},
	}

	best := SelectBest(candidates)
	require.NotNil(t, best)
	assert.Equal(t, "Random Forest", best.Name,
		"selection follows CV MAE even when test MAE ranks differently")
}

func TestSelectBestEmpty(t *testing.T) {
	assert.Nil(t, SelectBest(nil))
}

func TestKFoldIndices(t *testing.T) {
	folds := kfoldIndices(10, 5, 42)
	require.Len(t, folds, 5)

	seen := map[int]bool{}
	for _, fold := range folds {
		assert.Len(t, fold, 2)
		for _, i := range fold {
			assert.False(t, seen[i], "index %d appears in two folds", i)
			seen[i] = true
		}
	}
	assert.Len(t, seen, 10)

	t.Run("SameSeedSameFolds", func(t *testing.T) {
		assert.Equal(t, folds, kfoldIndices(10, 5, 42))
	})

	t.Run("UnevenSizes", func(t *testing.T) {
		uneven := kfoldIndices(11, 5, 42)
		total := 0
		for _, fold := range uneven {
			total += len(fold)
		}
		assert.Equal(t, 11, total)
	})
}

func TestHoldoutSplit(t *testing.T) {
	X := make([][]float64, 50)
	y := make([]float64, 50)
	for i := range X {
		X[i] = []float64{float64(i)}
		y[i] = float64(i)
	}

	trainX, trainY, testX, testY := holdoutSplit(X, y, 0.2, 42)
	assert.Len(t, trainX, 40)
	assert.Len(t, testX, 10)
	assert.Len(t, trainY, 40)
	assert.Len(t, testY, 10)

	t.Run("PartitionsWithoutOverlap", func(t *testing.T) {
		seen := map[float64]bool{}
		for _, v := range trainY {
			seen[v] = true
		}
		for _, v := range testY {
			assert.False(t, seen[v])
			seen[v] = true
		}
		assert.Len(t, seen, 50)
	})

	t.Run("RowsStayAlignedWithTargets", func(t *testing.T) {
		for i := range trainX {
			assert.Equal(t, trainX[i][0], trainY[i])
		}
	})
}

// syntheticMatrix builds a price-like dataset where the target is a noisy
// function of two features, enough for every candidate to beat the mean.
func syntheticMatrix(n int) *features.Matrix {
	m := &features.Matrix{Columns: []string{"duration", "advance"}}
	for i := 0; i < n; i++ {
		duration := float64(60 + (i*37)%300)
		advance := float64(i % 90)
		price := 900000 + duration*4000 - advance*3000 + float64((i*13)%7)*1000
		m.Rows = append(m.Rows, []float64{duration, advance})
		m.Target = append(m.Target, price)
	}
	return m
}

func TestTrainerEndToEnd(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	cfg := &TrainerConfig{
		TestSplit:           0.2,
		CVFolds:             3,
		Seed:                42,
		TreeMaxDepth:        6,
		TreeMinSamplesSplit: 4,
		TreeMinSamplesLeaf:  2,
		ForestTrees:         10,
		BoostingRounds:      20,
	}
	trainer := NewTrainer(cfg, logger)

	report, err := trainer.Train(context.Background(), syntheticMatrix(120))
	require.NoError(t, err)

	require.Len(t, report.Candidates, 3)
	require.NotNil(t, report.Best)
	assert.Equal(t, report.Best.Name, report.BestName)
	assert.NotEmpty(t, report.RunID)

	for _, cand := range report.Candidates {
		assert.False(t, math.IsNaN(cand.Metrics.CVMAEMean), cand.Name)
		assert.Greater(t, cand.Metrics.CVMAEMean, 0.0, cand.Name)
		assert.Greater(t, cand.Metrics.TestRMSE, 0.0, cand.Name)
		assert.GreaterOrEqual(t, cand.Metrics.OverfittingRatio, 0.0, cand.Name)
		assert.GreaterOrEqual(t, report.Best.Metrics.CVMAEMean, 0.0)
		assert.LessOrEqual(t, report.Best.Metrics.CVMAEMean, cand.Metrics.CVMAEMean)
	}

	t.Run("ModelsGeneralize", func(t *testing.T) {
		// the synthetic surface is nearly linear in duration, so even the
		// single tree should land well under the ~400k MAE of a mean guess
		for _, cand := range report.Candidates {
			assert.Less(t, cand.Metrics.TestMAE, 300000.0, cand.Name)
		}
	})

	t.Run("Cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := trainer.Train(ctx, syntheticMatrix(120))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTrainerEmptyMatrix(t *testing.T) {
	trainer := NewTrainer(nil, zaptest.NewLogger(t).Sugar())
	_, err := trainer.Train(context.Background(), &features.Matrix{})
	assert.Error(t, err)
}
