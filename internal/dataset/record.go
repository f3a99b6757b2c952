// =============================
// Listing Records
// =============================
// Raw scraped listing rows and their parsed form. The scraper emits a ten
// column CSV with a header row; everything downstream works on Record.

package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// NumColumns is the fixed width of the scraped listing table.
const NumColumns = 10

// RawRow is one unparsed line of the scraped listing table, in source
// column order.
type RawRow struct {
	CreatedAt        string `json:"creation_timestamp"`
	FlightNumber     string `json:"flight_number"`
	AircraftType     string `json:"aircraft_type"`
	DepartureAirport string `json:"departure_airport"`
	ArrivalAirport   string `json:"arrival_airport"`
	FlightDate       string `json:"flight_date"`
	DepartureTime    string `json:"departure_time"`
	ArrivalTime      string `json:"arrival_time"`
	FareClass        string `json:"fare_class"`
	Price            string `json:"price"`
}

// key returns the exact-duplicate identity of the row.
func (r *RawRow) key() string {
	return strings.Join([]string{
		r.CreatedAt, r.FlightNumber, r.AircraftType, r.DepartureAirport,
		r.ArrivalAirport, r.FlightDate, r.DepartureTime, r.ArrivalTime,
		r.FareClass, r.Price,
	}, "\x1f")
}

// Record is a cleaned listing row with parsed timestamps and price.
// Departure/arrival clock times stay as "HH:MM" strings; the feature layer
// owns their interpretation.
type Record struct {
	CreatedAt        time.Time `json:"creation_timestamp"`
	FlightNumber     string    `json:"flight_number"`
	AircraftType     string    `json:"aircraft_type"`
	DepartureAirport string    `json:"departure_airport"`
	ArrivalAirport   string    `json:"arrival_airport"`
	FlightDate       time.Time `json:"flight_date"`
	DepartureTime    string    `json:"departure_time"`
	ArrivalTime      string    `json:"arrival_time"`
	FareClass        string    `json:"fare_class"`
	Price            float64   `json:"price"`
}

// timestampLayouts are the formats the scraper has been observed to emit.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp parses a scrape timestamp in any of the known layouts.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseFlightDate parses the flight date column. The scraper writes valid
// flight dates in a date-with-time form; anything without the 'T' separator
// is a malformed scrape artifact and is rejected outright, which is stricter
// than ParseTimestamp on purpose.
func ParseFlightDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "T") {
		return time.Time{}, fmt.Errorf("flight date %q is not in date-with-time form", s)
	}
	return ParseTimestamp(s)
}

// ReadCSV loads the scraped listing table from path. The first line is a
// header and is skipped. Lines with the wrong column count are dropped and
// counted; a missing or unreadable file is fatal to the run.
func ReadCSV(path string) ([]RawRow, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open listing table: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows := make([]RawRow, 0, 1024)
	malformed := 0
	first := true
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read listing table: %w", err)
		}
		if first {
			first = false
			continue
		}
		if len(fields) != NumColumns {
			malformed++
			continue
		}
		rows = append(rows, RawRow{
			CreatedAt:        fields[0],
			FlightNumber:     fields[1],
			AircraftType:     fields[2],
			DepartureAirport: fields[3],
			ArrivalAirport:   fields[4],
			FlightDate:       fields[5],
			DepartureTime:    fields[6],
			ArrivalTime:      fields[7],
			FareClass:        fields[8],
			Price:            fields[9],
		})
	}
	return rows, malformed, nil
}
