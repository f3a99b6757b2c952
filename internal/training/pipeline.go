// =============================
// Model Training Pipeline
// =============================
// Trains the candidate regressors, cross-validates each on the training
// split, and selects the winner by mean cross-validated MAE. Test-set error
// is reported but never drives selection; CV error is the least
// overfit-biased estimate available.

package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flightfare/flightprice/internal/features"
)

// TrainerConfig configures one training run.
type TrainerConfig struct {
	TestSplit float64 `json:"test_split" mapstructure:"test_split"`
	CVFolds   int     `json:"cv_folds" mapstructure:"cv_folds"`
	Seed      int64   `json:"seed" mapstructure:"seed"`

	TreeMaxDepth        int `json:"tree_max_depth" mapstructure:"tree_max_depth"`
	TreeMinSamplesSplit int `json:"tree_min_samples_split" mapstructure:"tree_min_samples_split"`
	TreeMinSamplesLeaf  int `json:"tree_min_samples_leaf" mapstructure:"tree_min_samples_leaf"`

	ForestTrees int `json:"forest_trees" mapstructure:"forest_trees"`

	BoostingRounds int `json:"boosting_rounds" mapstructure:"boosting_rounds"`
}

// DefaultTrainerConfig returns the hyperparameters the dataset was tuned on.
func DefaultTrainerConfig() *TrainerConfig {
	return &TrainerConfig{
		TestSplit:           0.2,
		CVFolds:             5,
		Seed:                42,
		TreeMaxDepth:        20,
		TreeMinSamplesSplit: 5,
		TreeMinSamplesLeaf:  2,
		ForestTrees:         200,
		BoostingRounds:      200,
	}
}

// EvaluationMetrics are the per-candidate accuracy numbers.
type EvaluationMetrics struct {
	CVMAEMean        float64 `json:"cv_mae_mean"`
	CVMAEStd         float64 `json:"cv_mae_std"`
	TrainMAE         float64 `json:"train_mae"`
	TestMAE          float64 `json:"test_mae"`
	TrainRMSE        float64 `json:"train_rmse"`
	TestRMSE         float64 `json:"test_rmse"`
	TrainR2          float64 `json:"train_r2"`
	TestR2           float64 `json:"test_r2"`
	OverfittingRatio float64 `json:"overfitting_ratio"`
}

// CandidateResult is one trained candidate with its metrics.
type CandidateResult struct {
	Name    string            `json:"name"`
	Kind    string            `json:"kind"`
	Model   Model             `json:"-"`
	Metrics EvaluationMetrics `json:"metrics"`
}

// TrainingReport is the trainer's full output for one run.
type TrainingReport struct {
	RunID      string             `json:"run_id"`
	Candidates []*CandidateResult `json:"candidates"`
	Best       *CandidateResult   `json:"-"`
	BestName   string             `json:"best_name"`
}

// candidate pairs a name with a fresh-model factory so cross-validation can
// refit from scratch per fold.
type candidate struct {
	name  string
	kind  string
	build func() Model
}

// Trainer runs the train/evaluate/select stage.
type Trainer struct {
	config *TrainerConfig
	logger *zap.SugaredLogger
}

func NewTrainer(config *TrainerConfig, logger *zap.SugaredLogger) *Trainer {
	if config == nil {
		config = DefaultTrainerConfig()
	}
	return &Trainer{config: config, logger: logger}
}

func (t *Trainer) candidates() []candidate {
	cfg := t.config
	return []candidate{
		{
			name: "Decision Tree",
			kind: KindDecisionTree,
			build: func() Model {
				return NewRegressionTree(TreeParams{
					MaxDepth:        cfg.TreeMaxDepth,
					MinSamplesSplit: cfg.TreeMinSamplesSplit,
					MinSamplesLeaf:  cfg.TreeMinSamplesLeaf,
					Seed:            cfg.Seed,
				})
			},
		},
		{
			name: "Random Forest",
			kind: KindRandomForest,
			build: func() Model {
				p := DefaultForestParams(cfg.Seed)
				p.NumTrees = cfg.ForestTrees
				p.MaxDepth = cfg.TreeMaxDepth
				p.MinSamplesSplit = cfg.TreeMinSamplesSplit
				p.MinSamplesLeaf = cfg.TreeMinSamplesLeaf
				return NewRandomForest(p)
			},
		},
		{
			name: "Gradient Boosting",
			kind: KindGradientBoosting,
			build: func() Model {
				p := DefaultBoostingParams(cfg.Seed)
				p.NumRounds = cfg.BoostingRounds
				p.MinSamplesSplit = cfg.TreeMinSamplesSplit
				p.MinSamplesLeaf = cfg.TreeMinSamplesLeaf
				return NewGradientBoosting(p)
			},
		},
	}
}

// Train evaluates every candidate on m and returns the report with the
// winner selected by lowest mean cross-validated MAE.
func (t *Trainer) Train(ctx context.Context, m *features.Matrix) (*TrainingReport, error) {
	if len(m.Rows) == 0 {
		return nil, fmt.Errorf("empty feature matrix")
	}
	trainX, trainY, testX, testY := holdoutSplit(m.Rows, m.Target, t.config.TestSplit, t.config.Seed)
	if len(trainX) == 0 || len(testX) == 0 {
		return nil, fmt.Errorf("split produced an empty partition (%d rows, test split %.2f)", len(m.Rows), t.config.TestSplit)
	}

	report := &TrainingReport{RunID: uuid.NewString()}

	for _, cand := range t.candidates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t.logger.Infow("evaluating candidate", "model", cand.name, "run_id", report.RunID)

		cvMean, cvStd, err := t.crossValidate(ctx, cand, trainX, trainY)
		if err != nil {
			return nil, fmt.Errorf("cross-validate %s: %w", cand.name, err)
		}

		model := cand.build()
		if err := model.Fit(trainX, trainY); err != nil {
			return nil, fmt.Errorf("fit %s: %w", cand.name, err)
		}

		trainPred := predictAll(model, trainX)
		testPred := predictAll(model, testX)

		metrics := EvaluationMetrics{
			CVMAEMean: cvMean,
			CVMAEStd:  cvStd,
			TrainMAE:  MAE(trainPred, trainY),
			TestMAE:   MAE(testPred, testY),
			TrainRMSE: RMSE(trainPred, trainY),
			TestRMSE:  RMSE(testPred, testY),
			TrainR2:   R2(trainPred, trainY),
			TestR2:    R2(testPred, testY),
		}
		if metrics.TestMAE > 0 {
			metrics.OverfittingRatio = metrics.TrainMAE / metrics.TestMAE
		} else {
			metrics.OverfittingRatio = math.Inf(1)
		}

		report.Candidates = append(report.Candidates, &CandidateResult{
			Name:    cand.name,
			Kind:    cand.kind,
			Model:   model,
			Metrics: metrics,
		})

		t.logger.Infow("candidate evaluated",
			"model", cand.name,
			"cv_mae", metrics.CVMAEMean,
			"cv_mae_std", metrics.CVMAEStd,
			"train_mae", metrics.TrainMAE,
			"test_mae", metrics.TestMAE,
			"test_r2", metrics.TestR2,
			"overfitting_ratio", metrics.OverfittingRatio,
		)
	}

	best := SelectBest(report.Candidates)
	if best == nil {
		return nil, fmt.Errorf("no candidates evaluated")
	}
	report.Best = best
	report.BestName = best.Name

	t.logger.Infow("selected model",
		"model", best.Name,
		"cv_mae", best.Metrics.CVMAEMean,
		"test_mae", best.Metrics.TestMAE,
		"test_r2", best.Metrics.TestR2,
	)
	t.logTopImportances(best, m.Columns)
	return report, nil
}

// SelectBest picks the candidate with the lowest mean cross-validated MAE.
// Test-set error never participates.
func SelectBest(candidates []*CandidateResult) *CandidateResult {
	var best *CandidateResult
	for _, c := range candidates {
		if best == nil || c.Metrics.CVMAEMean < best.Metrics.CVMAEMean {
			best = c
		}
	}
	return best
}

// crossValidate runs shuffled k-fold CV scored by MAE on the held-out fold.
func (t *Trainer) crossValidate(ctx context.Context, cand candidate, X [][]float64, y []float64) (mean, std float64, err error) {
	folds := kfoldIndices(len(X), t.config.CVFolds, t.config.Seed)
	scores := make([]float64, 0, len(folds))

	for _, holdout := range folds {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		inHoldout := make([]bool, len(X))
		for _, i := range holdout {
			inHoldout[i] = true
		}

		foldTrainX := make([][]float64, 0, len(X)-len(holdout))
		foldTrainY := make([]float64, 0, len(X)-len(holdout))
		for i := range X {
			if !inHoldout[i] {
				foldTrainX = append(foldTrainX, X[i])
				foldTrainY = append(foldTrainY, y[i])
			}
		}

		model := cand.build()
		if err := model.Fit(foldTrainX, foldTrainY); err != nil {
			return 0, 0, err
		}

		pred := make([]float64, len(holdout))
		truth := make([]float64, len(holdout))
		for j, i := range holdout {
			pred[j] = model.Predict(X[i])
			truth[j] = y[i]
		}
		scores = append(scores, MAE(pred, truth))
	}

	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	for _, s := range scores {
		std += (s - mean) * (s - mean)
	}
	std = math.Sqrt(std / float64(len(scores)))
	return mean, std, nil
}

// holdoutSplit shuffles row indices with the run seed and carves off the
// trailing fraction as the test partition.
func holdoutSplit(X [][]float64, y []float64, testSplit float64, seed int64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	n := len(X)
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	testSize := int(float64(n) * testSplit)
	trainSize := n - testSize

	for i, p := range perm {
		if i < trainSize {
			trainX = append(trainX, X[p])
			trainY = append(trainY, y[p])
		} else {
			testX = append(testX, X[p])
			testY = append(testY, y[p])
		}
	}
	return trainX, trainY, testX, testY
}

// kfoldIndices shuffles row indices with the run seed and partitions them
// into k contiguous holdout folds.
func kfoldIndices(n, k int, seed int64) [][]int {
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	folds := make([][]int, k)
	base := n / k
	extra := n % k
	pos := 0
	for f := 0; f < k; f++ {
		size := base
		if f < extra {
			size++
		}
		folds[f] = perm[pos : pos+size]
		pos += size
	}
	return folds
}

// logTopImportances reports the winner's ten most important features.
func (t *Trainer) logTopImportances(best *CandidateResult, columns []string) {
	importances := best.Model.FeatureImportances()
	if importances == nil {
		return
	}
	type ranked struct {
		column string
		weight float64
	}
	rankings := make([]ranked, 0, len(importances))
	for i, w := range importances {
		if i < len(columns) {
			rankings = append(rankings, ranked{column: columns[i], weight: w})
		}
	}
	sort.Slice(rankings, func(a, b int) bool { return rankings[a].weight > rankings[b].weight })
	if len(rankings) > 10 {
		rankings = rankings[:10]
	}
	for _, r := range rankings {
		t.logger.Infow("feature importance", "model", best.Name, "feature", r.column, "importance", r.weight)
	}
}
