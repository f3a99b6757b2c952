// =============================
// Dataset Cleaning
// =============================
// Deduplication, timestamp validation and statistical outlier removal for
// scraped listing tables. Rows never fail the run: a bad row is dropped and
// counted, and the survivors plus frozen price statistics flow downstream.

package dataset

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DropCounts records why rows were removed during cleaning.
type DropCounts struct {
	Duplicates       int `json:"duplicates"`
	BadPrice         int `json:"bad_price"`
	BadCreatedAt     int `json:"bad_created_at"`
	BadFlightDate    int `json:"bad_flight_date"`
	EmptyAircraft    int `json:"empty_aircraft"`
	OutlierPrice     int `json:"outlier_price"`
	MissingRequired  int `json:"missing_required"`
	MalformedColumns int `json:"malformed_columns"`
}

// CleanResult is the cleaner's full output for one training run.
type CleanResult struct {
	Records []Record        `json:"-"`
	Stats   PriceStatistics `json:"price_statistics"`
	Dropped DropCounts      `json:"dropped"`
}

// Cleaner turns raw scraped rows into a training-ready table.
type Cleaner struct {
	logger *zap.SugaredLogger
}

func NewCleaner(logger *zap.SugaredLogger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean runs the cleaning sequence: dedupe, parse creation timestamp, parse
// flight date (strict date-with-time form), trim and require aircraft type,
// then fence prices by 1.5*IQR. Returns an error only when nothing survives.
func (c *Cleaner) Clean(rows []RawRow) (*CleanResult, error) {
	res := &CleanResult{}

	seen := make(map[string]struct{}, len(rows))
	parsed := make([]Record, 0, len(rows))

	for i := range rows {
		row := &rows[i]

		if _, dup := seen[row.key()]; dup {
			res.Dropped.Duplicates++
			continue
		}
		seen[row.key()] = struct{}{}

		if row.FlightNumber == "" || row.DepartureAirport == "" ||
			row.ArrivalAirport == "" || row.FareClass == "" || row.Price == "" {
			res.Dropped.MissingRequired++
			continue
		}

		price, err := decimal.NewFromString(strings.TrimSpace(row.Price))
		if err != nil {
			res.Dropped.BadPrice++
			continue
		}

		createdAt, err := ParseTimestamp(row.CreatedAt)
		if err != nil {
			res.Dropped.BadCreatedAt++
			continue
		}

		flightDate, err := ParseFlightDate(row.FlightDate)
		if err != nil {
			res.Dropped.BadFlightDate++
			continue
		}

		aircraft := strings.TrimSpace(row.AircraftType)
		if aircraft == "" {
			res.Dropped.EmptyAircraft++
			continue
		}

		parsed = append(parsed, Record{
			CreatedAt:        createdAt,
			FlightNumber:     row.FlightNumber,
			AircraftType:     aircraft,
			DepartureAirport: row.DepartureAirport,
			ArrivalAirport:   row.ArrivalAirport,
			FlightDate:       flightDate,
			DepartureTime:    row.DepartureTime,
			ArrivalTime:      row.ArrivalTime,
			FareClass:        row.FareClass,
			Price:            price.InexactFloat64(),
		})
	}

	if len(parsed) == 0 {
		return nil, fmt.Errorf("no rows survived cleaning (%d input rows)", len(rows))
	}

	prices := make([]float64, len(parsed))
	for i := range parsed {
		prices[i] = parsed[i].Price
	}
	res.Stats.Q1 = Quantile(prices, 0.25)
	res.Stats.Q3 = Quantile(prices, 0.75)
	lower, upper := res.Stats.OutlierBounds()

	kept := parsed[:0]
	keptPrices := prices[:0]
	for i := range parsed {
		if parsed[i].Price < lower || parsed[i].Price > upper {
			res.Dropped.OutlierPrice++
			continue
		}
		kept = append(kept, parsed[i])
		keptPrices = append(keptPrices, parsed[i].Price)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("all %d rows fell outside the price fence [%.0f, %.0f]", len(parsed), lower, upper)
	}

	res.Records = kept
	res.Stats.summarize(keptPrices)

	if c.logger != nil {
		c.logger.Infow("cleaned listing table",
			"input_rows", len(rows),
			"kept_rows", len(kept),
			"duplicates", res.Dropped.Duplicates,
			"bad_created_at", res.Dropped.BadCreatedAt,
			"bad_flight_date", res.Dropped.BadFlightDate,
			"empty_aircraft", res.Dropped.EmptyAircraft,
			"price_outliers", res.Dropped.OutlierPrice,
			"price_fence_lower", lower,
			"price_fence_upper", upper,
		)
	}
	return res, nil
}

// CleanFile loads the listing table from path and cleans it.
func (c *Cleaner) CleanFile(path string) (*CleanResult, error) {
	rows, malformed, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	res, err := c.Clean(rows)
	if err != nil {
		return nil, err
	}
	res.Dropped.MalformedColumns = malformed
	return res, nil
}
