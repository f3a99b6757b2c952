// =============================
// Feature Engineering Pipeline
// =============================
// Fits the frozen per-run state (categorical encoders, route/airline
// popularity statistics) on the cleaned training table and materializes the
// ordered feature matrix consumed by the trainer.

package features

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/flightfare/flightprice/internal/dataset"
)

// PopularityStats is the frozen mean/std of a popularity column. At
// inference the mean stands in for counts that require the full table.
type PopularityStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Artifacts is the immutable state one training run freezes for serving.
type Artifacts struct {
	Columns           []string            `json:"feature_columns"`
	Encoders          map[string]*Encoder `json:"categorical_encoders"`
	RoutePopularity   PopularityStats     `json:"route_popularity_statistics"`
	AirlinePopularity PopularityStats     `json:"airline_popularity_statistics"`
}

// Matrix is the ordered feature matrix plus target for one training run.
type Matrix struct {
	Columns []string
	Rows    [][]float64
	Target  []float64
}

// Engineer derives the feature matrix and fits the frozen artifacts.
type Engineer struct {
	logger *zap.SugaredLogger
}

func NewEngineer(logger *zap.SugaredLogger) *Engineer {
	return &Engineer{logger: logger}
}

// Fit derives features for every cleaned record, fits the categorical
// encoders and popularity statistics, and assembles the matrix in canonical
// column order. Rows with an unparsable clock time or a NaN feature or
// target are excluded from the matrix; popularity statistics are computed
// over the full table before any such exclusion.
func (e *Engineer) Fit(records []dataset.Record) (*Matrix, *Artifacts, error) {
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("no records to engineer features from")
	}

	routeCounts := make(map[string]int)
	airlineCounts := make(map[string]int)
	for i := range records {
		routeCounts[routeKey(&records[i])]++
		airlineCounts[AirlinePrefix(records[i].FlightNumber)]++
	}

	encoders := fitEncoders(records)

	columns := ColumnOrder()
	matrix := &Matrix{
		Columns: columns,
		Rows:    make([][]float64, 0, len(records)),
		Target:  make([]float64, 0, len(records)),
	}

	routePop := make([]float64, 0, len(records))
	airlinePop := make([]float64, 0, len(records))
	droppedClock := 0
	droppedNaN := 0

	for i := range records {
		rec := &records[i]
		route := float64(routeCounts[routeKey(rec)])
		airline := float64(airlineCounts[AirlinePrefix(rec.FlightNumber)])
		routePop = append(routePop, route)
		airlinePop = append(airlinePop, airline)

		m := make(map[string]float64, len(columns))
		if err := Derive(m, rec, true); err != nil {
			droppedClock++
			continue
		}
		m[ColRoutePopularity] = route
		m[ColAirlinePopularity] = airline
		for _, field := range CategoricalFields() {
			code, ok := encoders[field].Lookup(CategoricalValue(rec, field))
			if !ok {
				// cannot happen: the encoder was fitted on this table
				return nil, nil, fmt.Errorf("value missing from freshly fitted %s encoder", field)
			}
			m[encodedColumn(field)] = float64(code)
		}

		row := make([]float64, len(columns))
		bad := false
		for j, col := range columns {
			v := m[col]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				bad = true
				break
			}
			row[j] = v
		}
		if bad || math.IsNaN(rec.Price) {
			droppedNaN++
			continue
		}
		matrix.Rows = append(matrix.Rows, row)
		matrix.Target = append(matrix.Target, rec.Price)
	}

	if len(matrix.Rows) == 0 {
		return nil, nil, fmt.Errorf("no usable rows after feature derivation (%d clock drops)", droppedClock)
	}

	artifacts := &Artifacts{
		Columns:           columns,
		Encoders:          encoders,
		RoutePopularity:   popularityStats(routePop),
		AirlinePopularity: popularityStats(airlinePop),
	}

	if e.logger != nil {
		e.logger.Infow("engineered features",
			"rows", len(matrix.Rows),
			"columns", len(columns),
			"dropped_bad_clock", droppedClock,
			"dropped_nan", droppedNaN,
			"route_popularity_mean", artifacts.RoutePopularity.Mean,
			"airline_popularity_mean", artifacts.AirlinePopularity.Mean,
		)
	}
	return matrix, artifacts, nil
}

func popularityStats(values []float64) PopularityStats {
	s := PopularityStats{Mean: stat.Mean(values, nil)}
	if len(values) > 1 {
		s.Std = stat.StdDev(values, nil)
	}
	return s
}

func fitEncoders(records []dataset.Record) map[string]*Encoder {
	values := make(map[string][]string, 6)
	for i := range records {
		for _, field := range CategoricalFields() {
			values[field] = append(values[field], CategoricalValue(&records[i], field))
		}
	}
	encoders := make(map[string]*Encoder, len(values))
	for field, vals := range values {
		encoders[field] = FitEncoder(vals)
	}
	return encoders
}

func routeKey(rec *dataset.Record) string {
	return rec.DepartureAirport + "\x1f" + rec.ArrivalAirport
}

// CategoricalValue extracts the raw value of one encoded field from a
// record. Both the bulk path and the predictor go through this.
func CategoricalValue(rec *dataset.Record, field string) string {
	switch field {
	case FieldFlightNumber:
		return rec.FlightNumber
	case FieldDepartureAirport:
		return rec.DepartureAirport
	case FieldArrivalAirport:
		return rec.ArrivalAirport
	case FieldFareClass:
		return rec.FareClass
	case FieldAircraftType:
		return rec.AircraftType
	case FieldAirline:
		return AirlinePrefix(rec.FlightNumber)
	default:
		return ""
	}
}

func encodedColumn(field string) string {
	return field + "_encoded"
}
