// =============================
// Model Artifact Store
// =============================
// Persists the trained model plus every piece of frozen training state as
// one JSON bundle. The bundle is the sole contract between a training run
// and the predictor; writes are atomic so a concurrent reader never sees a
// partial artifact.

package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/flightfare/flightprice/internal/dataset"
	"github.com/flightfare/flightprice/internal/features"
	"github.com/flightfare/flightprice/internal/training"
)

// Defaults substituted when an older bundle predates popularity statistics.
var (
	DefaultRoutePopularity   = features.PopularityStats{Mean: 100, Std: 50}
	DefaultAirlinePopularity = features.PopularityStats{Mean: 50, Std: 25}
)

// ModelBundle is everything the predictor needs from one training run.
// Read-only after load.
type ModelBundle struct {
	Model             training.Model
	ModelKind         string
	FeatureColumns    []string
	Encoders          map[string]*features.Encoder
	PriceStats        dataset.PriceStatistics
	RoutePopularity   features.PopularityStats
	AirlinePopularity features.PopularityStats
}

// bundleJSON is the persisted shape. Popularity statistics are pointers so
// that absence in an older artifact is distinguishable from zeros.
type bundleJSON struct {
	ModelKind         string                       `json:"model_kind"`
	Model             json.RawMessage              `json:"model"`
	FeatureColumns    []string                     `json:"feature_column_order"`
	Encoders          map[string]*features.Encoder `json:"categorical_encoders"`
	PriceStats        dataset.PriceStatistics      `json:"price_statistics"`
	RoutePopularity   *features.PopularityStats    `json:"route_popularity_statistics,omitempty"`
	AirlinePopularity *features.PopularityStats    `json:"airline_popularity_statistics,omitempty"`
}

// NewBundle assembles a bundle from the outputs of one training run.
func NewBundle(best *training.CandidateResult, arts *features.Artifacts, stats dataset.PriceStatistics) *ModelBundle {
	return &ModelBundle{
		Model:             best.Model,
		ModelKind:         best.Kind,
		FeatureColumns:    arts.Columns,
		Encoders:          arts.Encoders,
		PriceStats:        stats,
		RoutePopularity:   arts.RoutePopularity,
		AirlinePopularity: arts.AirlinePopularity,
	}
}

// Store reads and writes the bundle at a fixed path.
type Store struct {
	path   string
	logger *zap.SugaredLogger
}

func NewStore(path string, logger *zap.SugaredLogger) *Store {
	return &Store{path: path, logger: logger}
}

// Save writes the bundle atomically: serialize to a temp file in the target
// directory, then rename over the destination.
func (s *Store) Save(bundle *ModelBundle) error {
	raw, err := json.Marshal(bundle.Model)
	if err != nil {
		return fmt.Errorf("serialize %s model: %w", bundle.ModelKind, err)
	}
	routePop := bundle.RoutePopularity
	airlinePop := bundle.AirlinePopularity
	persisted := bundleJSON{
		ModelKind:         bundle.ModelKind,
		Model:             raw,
		FeatureColumns:    bundle.FeatureColumns,
		Encoders:          bundle.Encoders,
		PriceStats:        bundle.PriceStats,
		RoutePopularity:   &routePop,
		AirlinePopularity: &airlinePop,
	}

	data, err := json.Marshal(&persisted)
	if err != nil {
		return fmt.Errorf("serialize bundle: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace artifact: %w", err)
	}

	if s.logger != nil {
		s.logger.Infow("saved model bundle",
			"path", s.path,
			"model_kind", bundle.ModelKind,
			"feature_columns", len(bundle.FeatureColumns),
			"bytes", len(data),
		)
	}
	return nil
}

// Load reads and validates the bundle. Popularity statistics missing from
// an older artifact fall back to documented defaults so the bundle stays
// loadable across schema versions.
func (s *Store) Load() (*ModelBundle, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var persisted bundleJSON
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}

	model, err := unmarshalModel(persisted.ModelKind, persisted.Model)
	if err != nil {
		return nil, err
	}
	if len(persisted.FeatureColumns) == 0 {
		return nil, fmt.Errorf("artifact has no feature column order")
	}

	bundle := &ModelBundle{
		Model:             model,
		ModelKind:         persisted.ModelKind,
		FeatureColumns:    persisted.FeatureColumns,
		Encoders:          persisted.Encoders,
		PriceStats:        persisted.PriceStats,
		RoutePopularity:   DefaultRoutePopularity,
		AirlinePopularity: DefaultAirlinePopularity,
	}
	if persisted.RoutePopularity != nil {
		bundle.RoutePopularity = *persisted.RoutePopularity
	}
	if persisted.AirlinePopularity != nil {
		bundle.AirlinePopularity = *persisted.AirlinePopularity
	}

	if s.logger != nil {
		s.logger.Infow("loaded model bundle", "path", s.path, "model_kind", bundle.ModelKind)
	}
	return bundle, nil
}

// unmarshalModel decodes the model payload for its persisted kind.
func unmarshalModel(kind string, raw json.RawMessage) (training.Model, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("artifact has no model payload")
	}
	switch kind {
	case training.KindDecisionTree:
		var m training.RegressionTree
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode decision tree: %w", err)
		}
		return &m, nil
	case training.KindRandomForest:
		var m training.RandomForest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode random forest: %w", err)
		}
		return &m, nil
	case training.KindGradientBoosting:
		var m training.GradientBoosting
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode gradient boosting: %w", err)
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
}
