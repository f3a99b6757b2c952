// =============================
// Regression Models
// =============================
// Candidate regressors for price prediction. All models are plain
// tree-based regressors over the ordered feature matrix and serialize to
// JSON for the artifact bundle.

package training

import "math"

// Model kind identifiers, persisted in the bundle.
const (
	KindDecisionTree     = "decision_tree"
	KindRandomForest     = "random_forest"
	KindGradientBoosting = "gradient_boosting"
)

// Model is a trained point regressor.
type Model interface {
	// Fit trains on the row-major matrix X with target y.
	Fit(X [][]float64, y []float64) error
	// Predict returns the point estimate for one feature vector.
	Predict(x []float64) float64
	// Kind returns the persisted model kind identifier.
	Kind() string
	// FeatureImportances returns normalized impurity-based importances per
	// feature column, or nil when the model is untrained.
	FeatureImportances() []float64
}

// predictAll evaluates the model over every row of X.
func predictAll(m Model, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.Predict(x)
	}
	return out
}

// MAE is the mean absolute error between predictions and truth.
func MAE(pred, truth []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	sum := 0.0
	for i := range pred {
		sum += math.Abs(pred[i] - truth[i])
	}
	return sum / float64(len(pred))
}

// RMSE is the root mean squared error between predictions and truth.
func RMSE(pred, truth []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	sum := 0.0
	for i := range pred {
		d := pred[i] - truth[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(pred)))
}

// R2 is the coefficient of determination.
func R2(pred, truth []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range truth {
		mean += v
	}
	mean /= float64(len(truth))

	var ssRes, ssTot float64
	for i := range truth {
		r := truth[i] - pred[i]
		t := truth[i] - mean
		ssRes += r * r
		ssTot += t * t
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
