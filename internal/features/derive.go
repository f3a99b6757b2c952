// =============================
// Per-Row Feature Derivation
// =============================
// One derivation path shared verbatim by bulk training and single-record
// inference, so the two can never drift. Popularity and categorical codes
// are layered on top by the caller: training counts them from the table,
// inference substitutes frozen statistics.

package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/flightfare/flightprice/internal/dataset"
)

// Feature column names. The order in ColumnOrder is the training/serving
// contract and is recorded in every persisted bundle.
const (
	ColFlightNumberEncoded     = "flight_number_encoded"
	ColDepartureAirportEncoded = "departure_airport_encoded"
	ColArrivalAirportEncoded   = "arrival_airport_encoded"
	ColFareClassEncoded        = "fare_class_encoded"
	ColAircraftTypeEncoded     = "aircraft_type_encoded"
	ColAirlineEncoded          = "airline_encoded"
	ColCreatedHour             = "created_hour"
	ColCreatedDayOfWeek        = "created_day_of_week"
	ColCreatedMonth            = "created_month"
	ColFlightMonth             = "flight_month"
	ColFlightDayOfWeek         = "flight_day_of_week"
	ColDaysInAdvance           = "days_in_advance"
	ColDepartureMinutes        = "departure_minutes"
	ColFlightDuration          = "flight_duration"
	ColIsWeekendBooking        = "is_weekend_booking"
	ColIsWeekendFlight         = "is_weekend_flight"
	ColBookingCategory         = "booking_category"
	ColDepartureTimeCategory   = "departure_time_category"
	ColRoutePopularity         = "route_popularity"
	ColAirlinePopularity       = "airline_popularity"
)

// ColumnOrder returns the canonical feature column order.
func ColumnOrder() []string {
	return []string{
		ColFlightNumberEncoded,
		ColDepartureAirportEncoded,
		ColArrivalAirportEncoded,
		ColFareClassEncoded,
		ColAircraftTypeEncoded,
		ColAirlineEncoded,
		ColCreatedHour,
		ColCreatedDayOfWeek,
		ColCreatedMonth,
		ColFlightMonth,
		ColFlightDayOfWeek,
		ColDaysInAdvance,
		ColDepartureMinutes,
		ColFlightDuration,
		ColIsWeekendBooking,
		ColIsWeekendFlight,
		ColBookingCategory,
		ColDepartureTimeCategory,
		ColRoutePopularity,
		ColAirlinePopularity,
	}
}

// Categorical field names, keyed the same way in the persisted bundle.
const (
	FieldFlightNumber     = "flight_number"
	FieldDepartureAirport = "departure_airport"
	FieldArrivalAirport   = "arrival_airport"
	FieldFareClass        = "fare_class"
	FieldAircraftType     = "aircraft_type"
	FieldAirline          = "airline"
)

// CategoricalFields returns the encoded fields in canonical order.
func CategoricalFields() []string {
	return []string{
		FieldFlightNumber,
		FieldDepartureAirport,
		FieldArrivalAirport,
		FieldFareClass,
		FieldAircraftType,
		FieldAirline,
	}
}

// ClockMinutes parses an "HH:MM" clock string to minutes since midnight.
func ClockMinutes(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock time %q is not HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("clock time %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("clock time %q: %w", s, err)
	}
	return hour*60 + minute, nil
}

// BookingCategory buckets days-in-advance: <7 → 0, <30 → 1, <90 → 2, else 3.
func BookingCategory(days int) int {
	switch {
	case days < 7:
		return 0
	case days < 30:
		return 1
	case days < 90:
		return 2
	default:
		return 3
	}
}

// DepartureTimeCategory buckets departure minutes by hour:
// [6,12) → 0, [12,18) → 1, [18,22) → 2, else 3.
func DepartureTimeCategory(minutes int) int {
	hour := minutes / 60
	switch {
	case hour >= 6 && hour < 12:
		return 0
	case hour >= 12 && hour < 18:
		return 1
	case hour >= 18 && hour < 22:
		return 2
	default:
		return 3
	}
}

// AirlinePrefix extracts the airline designator, the first two characters of
// the flight number.
func AirlinePrefix(flightNumber string) string {
	if len(flightNumber) < 2 {
		return flightNumber
	}
	return flightNumber[:2]
}

// dayOfWeek maps to the Monday=0..Sunday=6 convention the model was trained
// with, not Go's Sunday=0.
func dayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// daysBetween is the whole-day difference, floored toward negative infinity.
func daysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}

// Derive computes every calendar and clock feature of one record into m.
// With strictClock set, an unparsable departure or arrival time is an error
// (training drops the row); otherwise it degrades to 0 minutes (inference).
// Popularity and encoded categorical columns are not filled here.
func Derive(m map[string]float64, rec *dataset.Record, strictClock bool) error {
	createdDow := dayOfWeek(rec.CreatedAt)
	flightDow := dayOfWeek(rec.FlightDate)
	days := daysBetween(rec.CreatedAt, rec.FlightDate)

	m[ColCreatedHour] = float64(rec.CreatedAt.Hour())
	m[ColCreatedDayOfWeek] = float64(createdDow)
	m[ColCreatedMonth] = float64(int(rec.CreatedAt.Month()))
	m[ColFlightMonth] = float64(int(rec.FlightDate.Month()))
	m[ColFlightDayOfWeek] = float64(flightDow)
	m[ColDaysInAdvance] = float64(days)
	m[ColIsWeekendBooking] = boolToFloat(createdDow >= 5)
	m[ColIsWeekendFlight] = boolToFloat(flightDow >= 5)
	m[ColBookingCategory] = float64(BookingCategory(days))

	depMin, err := ClockMinutes(rec.DepartureTime)
	if err != nil {
		if strictClock {
			return fmt.Errorf("departure time: %w", err)
		}
		depMin = 0
	}
	arrMin, err := ClockMinutes(rec.ArrivalTime)
	if err != nil {
		if strictClock {
			return fmt.Errorf("arrival time: %w", err)
		}
		arrMin = 0
	}

	duration := arrMin - depMin
	if duration < 0 {
		duration += 24 * 60
	}

	m[ColDepartureMinutes] = float64(depMin)
	m[ColFlightDuration] = float64(duration)
	m[ColDepartureTimeCategory] = float64(DepartureTimeCategory(depMin))
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
