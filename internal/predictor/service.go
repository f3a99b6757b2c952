// =============================
// Price Prediction Service
// =============================
// Serves point predictions for single itineraries against a loaded model
// bundle. Feature derivation reuses the exact per-row path the trainer
// used, with the two documented single-record deviations: popularity
// columns take the frozen training means, and unseen categorical values map
// to the fallback code instead of failing.

package predictor

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/flightfare/flightprice/internal/artifacts"
	"github.com/flightfare/flightprice/internal/dataset"
	"github.com/flightfare/flightprice/internal/features"
)

// ErrNoBundle is returned when Predict is called before a bundle is loaded.
var ErrNoBundle = errors.New("no model bundle loaded")

// Prediction floor/ceiling guarding against a degenerate training set whose
// observed price bounds are implausible.
const (
	MinReasonablePrice = 100_000
	MaxReasonablePrice = 50_000_000
)

// Request is one itinerary to price.
type Request struct {
	FlightNumber     string `json:"flight_number"`
	DepartureAirport string `json:"departure_airport"`
	ArrivalAirport   string `json:"arrival_airport"`
	DepartureTime    string `json:"departure_time"`
	ArrivalTime      string `json:"arrival_time"`
	FareClass        string `json:"fare_class"`
	AircraftType     string `json:"aircraft_type"`
	CreatedAt        string `json:"creation_timestamp"`
	FlightDate       string `json:"flight_date"`
}

// Service answers price predictions. The bundle is read-only once set; the
// RWMutex only guards the swap a retrain performs, so concurrent Predict
// calls never contend with each other.
type Service struct {
	mu     sync.RWMutex
	bundle *artifacts.ModelBundle
	logger *zap.SugaredLogger
}

func NewService(logger *zap.SugaredLogger) *Service {
	return &Service{logger: logger}
}

// SetBundle installs a bundle, replacing any previous one.
func (s *Service) SetBundle(bundle *artifacts.ModelBundle) {
	s.mu.Lock()
	s.bundle = bundle
	s.mu.Unlock()
}

// LoadBundle reads the bundle from the store and installs it.
func (s *Service) LoadBundle(store *artifacts.Store) error {
	bundle, err := store.Load()
	if err != nil {
		return err
	}
	s.SetBundle(bundle)
	return nil
}

// Predict re-derives the training feature vector for one itinerary and
// returns the clipped price estimate.
func (s *Service) Predict(req *Request) (float64, error) {
	s.mu.RLock()
	bundle := s.bundle
	s.mu.RUnlock()
	if bundle == nil {
		return 0, ErrNoBundle
	}

	createdAt, err := dataset.ParseTimestamp(req.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("creation timestamp: %w", err)
	}
	flightDate, err := dataset.ParseTimestamp(req.FlightDate)
	if err != nil {
		return 0, fmt.Errorf("flight date: %w", err)
	}

	rec := dataset.Record{
		CreatedAt:        createdAt,
		FlightNumber:     req.FlightNumber,
		AircraftType:     req.AircraftType,
		DepartureAirport: req.DepartureAirport,
		ArrivalAirport:   req.ArrivalAirport,
		FlightDate:       flightDate,
		DepartureTime:    req.DepartureTime,
		ArrivalTime:      req.ArrivalTime,
		FareClass:        req.FareClass,
	}

	m := make(map[string]float64, len(bundle.FeatureColumns))
	// lenient clock mode: a malformed HH:MM degrades to 0 minutes
	if err := features.Derive(m, &rec, false); err != nil {
		return 0, fmt.Errorf("derive features: %w", err)
	}

	// single-record deviation: true popularity counts need the full table
	m[features.ColRoutePopularity] = bundle.RoutePopularity.Mean
	m[features.ColAirlinePopularity] = bundle.AirlinePopularity.Mean

	for _, field := range features.CategoricalFields() {
		enc, ok := bundle.Encoders[field]
		if !ok {
			return 0, fmt.Errorf("bundle has no encoder for %s", field)
		}
		value := features.CategoricalValue(&rec, field)
		code, known := enc.Lookup(value)
		if !known {
			code = features.FallbackCode
			s.logger.Warnw("categorical value not in training vocabulary, using fallback code",
				"field", field,
				"value", value,
				"fallback_code", code,
			)
		}
		m[field+"_encoded"] = float64(code)
	}

	vector := make([]float64, len(bundle.FeatureColumns))
	for i, col := range bundle.FeatureColumns {
		v, ok := m[col]
		if !ok || math.IsNaN(v) {
			// column trained but not derivable from the request
			v = 0
		}
		vector[i] = v
	}

	raw := bundle.Model.Predict(vector)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("model %s produced a non-finite prediction", bundle.ModelKind)
	}

	clipped := clipPrice(raw, bundle.PriceStats)
	s.logger.Debugw("prediction served",
		"flight_number", req.FlightNumber,
		"route", req.DepartureAirport+"-"+req.ArrivalAirport,
		"raw_price", raw,
		"clipped_price", clipped,
	)
	return clipped, nil
}

// clipPrice bounds the raw estimate by the training price range, itself
// fenced by the fixed plausibility floor and ceiling.
func clipPrice(raw float64, stats dataset.PriceStatistics) float64 {
	floor := math.Max(stats.Min, MinReasonablePrice)
	ceiling := math.Min(stats.Max, MaxReasonablePrice)
	if raw < floor {
		return floor
	}
	if raw > ceiling {
		return ceiling
	}
	return raw
}
