package predictor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/flightfare/flightprice/internal/artifacts"
	"github.com/flightfare/flightprice/internal/dataset"
	"github.com/flightfare/flightprice/internal/features"
)

// fixedModel always predicts the same raw price, which makes the clipping
// contract directly observable.
type fixedModel struct {
	out float64
}

func (m *fixedModel) Fit(X [][]float64, y []float64) error { return nil }
func (m *fixedModel) Predict(x []float64) float64          { return m.out }
func (m *fixedModel) Kind() string                         { return "fixed" }
func (m *fixedModel) FeatureImportances() []float64        { return nil }

// capturingModel records the vector it was asked to score.
type capturingModel struct {
	out  float64
	seen []float64
}

func (m *capturingModel) Fit(X [][]float64, y []float64) error { return nil }
func (m *capturingModel) Predict(x []float64) float64 {
	m.seen = append([]float64(nil), x...)
	return m.out
}
func (m *capturingModel) Kind() string                  { return "capturing" }
func (m *capturingModel) FeatureImportances() []float64 { return nil }

func testBundle(out float64) *artifacts.ModelBundle {
	return &artifacts.ModelBundle{
		Model:          &fixedModel{out: out},
		ModelKind:      "fixed",
		FeatureColumns: features.ColumnOrder(),
		Encoders: map[string]*features.Encoder{
			features.FieldFlightNumber:     features.FitEncoder([]string{"VJ1198", "VN208"}),
			features.FieldDepartureAirport: features.FitEncoder([]string{"SGN", "HAN"}),
			features.FieldArrivalAirport:   features.FitEncoder([]string{"HAN", "DAD"}),
			features.FieldFareClass:        features.FitEncoder([]string{"Eco", "Business"}),
			features.FieldAircraftType:     features.FitEncoder([]string{"Airbus A321", "Airbus A320"}),
			features.FieldAirline:          features.FitEncoder([]string{"VJ", "VN"}),
		},
		PriceStats:        dataset.PriceStatistics{Min: 800000, Max: 4000000, Mean: 1500000, Std: 400000, Q1: 1200000, Q3: 1900000},
		RoutePopularity:   features.PopularityStats{Mean: 37, Std: 9},
		AirlinePopularity: features.PopularityStats{Mean: 21, Std: 4},
	}
}

func validRequest() *Request {
	return &Request{
		FlightNumber:     "VJ1198",
		DepartureAirport: "SGN",
		ArrivalAirport:   "HAN",
		DepartureTime:    "08:00",
		ArrivalTime:      "10:15",
		FareClass:        "Eco",
		AircraftType:     "Airbus A321",
		CreatedAt:        "2024-01-15 10:30:00",
		FlightDate:       "2024-01-20T08:00:00",
	}
}

func TestPredictRequiresBundle(t *testing.T) {
	svc := NewService(zaptest.NewLogger(t).Sugar())
	_, err := svc.Predict(validRequest())
	assert.ErrorIs(t, err, ErrNoBundle)
}

func TestPredictClipping(t *testing.T) {
	svc := NewService(zaptest.NewLogger(t).Sugar())

	t.Run("BelowFloor", func(t *testing.T) {
		svc.SetBundle(testBundle(12345))
		price, err := svc.Predict(validRequest())
		require.NoError(t, err)
		assert.Equal(t, 800000.0, price, "training min beats the 100k fixed floor")
	})

	t.Run("AboveCeiling", func(t *testing.T) {
		svc.SetBundle(testBundle(99000000))
		price, err := svc.Predict(validRequest())
		require.NoError(t, err)
		assert.Equal(t, 4000000.0, price, "training max beats the 50M fixed ceiling")
	})

	t.Run("PassThrough", func(t *testing.T) {
		svc.SetBundle(testBundle(1750000))
		price, err := svc.Predict(validRequest())
		require.NoError(t, err)
		assert.Equal(t, 1750000.0, price)
	})

	t.Run("DegenerateTrainingSetUsesFixedBounds", func(t *testing.T) {
		bundle := testBundle(5)
		bundle.PriceStats.Min = 5     // implausible scrape
		bundle.PriceStats.Max = 9e+12 // implausible scrape
		svc.SetBundle(bundle)

		price, err := svc.Predict(validRequest())
		require.NoError(t, err)
		assert.Equal(t, float64(MinReasonablePrice), price)

		bundle.Model = &fixedModel{out: 9e+12}
		svc.SetBundle(bundle)
		price, err = svc.Predict(validRequest())
		require.NoError(t, err)
		assert.Equal(t, float64(MaxReasonablePrice), price)
	})
}

func TestPredictFeatureVector(t *testing.T) {
	svc := NewService(zaptest.NewLogger(t).Sugar())
	model := &capturingModel{out: 1500000}
	bundle := testBundle(0)
	bundle.Model = model
	svc.SetBundle(bundle)

	_, err := svc.Predict(validRequest())
	require.NoError(t, err)
	require.Len(t, model.seen, len(features.ColumnOrder()))

	byName := map[string]float64{}
	for i, col := range bundle.FeatureColumns {
		byName[col] = model.seen[i]
	}

	assert.Equal(t, 135.0, byName[features.ColFlightDuration])
	assert.Equal(t, 480.0, byName[features.ColDepartureMinutes])
	assert.Equal(t, 0.0, byName[features.ColDepartureTimeCategory])
	assert.Equal(t, 4.0, byName[features.ColDaysInAdvance], "Jan 15 10:30 to Jan 20 08:00 is 4 whole days")
	assert.Equal(t, 0.0, byName[features.ColBookingCategory])

	t.Run("PopularityUsesFrozenMeans", func(t *testing.T) {
		assert.Equal(t, 37.0, byName[features.ColRoutePopularity])
		assert.Equal(t, 21.0, byName[features.ColAirlinePopularity])
	})

	t.Run("ColumnOrderFollowsBundle", func(t *testing.T) {
		reversed := append([]string(nil), features.ColumnOrder()...)
		for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
			reversed[i], reversed[j] = reversed[j], reversed[i]
		}
		bundle := testBundle(0)
		bundle.Model = model
		bundle.FeatureColumns = reversed
		svc.SetBundle(bundle)

		_, err := svc.Predict(validRequest())
		require.NoError(t, err)
		assert.Equal(t, 135.0, model.seen[indexOf(t, reversed, features.ColFlightDuration)])
	})

	t.Run("UnknownTrainedColumnFilledWithZero", func(t *testing.T) {
		bundle := testBundle(0)
		bundle.Model = model
		bundle.FeatureColumns = append([]string{"retired_feature"}, features.ColumnOrder()...)
		svc.SetBundle(bundle)

		_, err := svc.Predict(validRequest())
		require.NoError(t, err)
		assert.Equal(t, 0.0, model.seen[0])
	})
}

func TestPredictUnseenCategoricalFallsBack(t *testing.T) {
	svc := NewService(zaptest.NewLogger(t).Sugar())
	model := &capturingModel{out: 1500000}
	bundle := testBundle(0)
	bundle.Model = model
	svc.SetBundle(bundle)

	req := validRequest()
	req.FlightNumber = "QH404" // airline prefix and flight number both unseen

	_, err := svc.Predict(req)
	require.NoError(t, err)

	byName := map[string]float64{}
	for i, col := range bundle.FeatureColumns {
		byName[col] = model.seen[i]
	}
	assert.Equal(t, float64(features.FallbackCode), byName[features.ColFlightNumberEncoded])
	assert.Equal(t, float64(features.FallbackCode), byName[features.ColAirlineEncoded])
}

func TestPredictMalformedClockRecovers(t *testing.T) {
	svc := NewService(zaptest.NewLogger(t).Sugar())
	model := &capturingModel{out: 1500000}
	bundle := testBundle(0)
	bundle.Model = model
	svc.SetBundle(bundle)

	req := validRequest()
	req.DepartureTime = "morning-ish"

	_, err := svc.Predict(req)
	require.NoError(t, err)

	byName := map[string]float64{}
	for i, col := range bundle.FeatureColumns {
		byName[col] = model.seen[i]
	}
	assert.Equal(t, 0.0, byName[features.ColDepartureMinutes])
}

func TestPredictBadTimestampSurfaces(t *testing.T) {
	svc := NewService(zaptest.NewLogger(t).Sugar())
	svc.SetBundle(testBundle(1500000))

	req := validRequest()
	req.CreatedAt = "someday"
	_, err := svc.Predict(req)
	assert.ErrorContains(t, err, "creation timestamp")

	req = validRequest()
	req.FlightDate = "eventually"
	_, err = svc.Predict(req)
	assert.ErrorContains(t, err, "flight date")
}

func TestPredictConcurrentCallers(t *testing.T) {
	svc := NewService(zaptest.NewLogger(t).Sugar())
	svc.SetBundle(testBundle(1750000))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				price, err := svc.Predict(validRequest())
				assert.NoError(t, err)
				assert.Equal(t, 1750000.0, price)
			}
		}()
	}
	wg.Wait()
}

func indexOf(t *testing.T, columns []string, name string) int {
	t.Helper()
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	t.Fatalf("column %s not found", name)
	return -1
}
