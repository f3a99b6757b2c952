package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PriceStatistics is the frozen price distribution of one training run.
// Q1/Q3 are computed before outlier removal and define the outlier bounds;
// min/max/mean/std describe the surviving rows and later bound predictions.
type PriceStatistics struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Q1   float64 `json:"q1"`
	Q3   float64 `json:"q3"`
}

// IQR returns the interquartile range.
func (s PriceStatistics) IQR() float64 {
	return s.Q3 - s.Q1
}

// OutlierBounds returns the [Q1-1.5*IQR, Q3+1.5*IQR] fence.
func (s PriceStatistics) OutlierBounds() (lower, upper float64) {
	iqr := s.IQR()
	return s.Q1 - 1.5*iqr, s.Q3 + 1.5*iqr
}

// Quantile returns the p-quantile of values using linear interpolation
// between order statistics, matching how the scrape analysis historically
// computed quartiles. gonum's stat.Quantile supports only the empirical
// cumulant kinds, so this is local.
func Quantile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// summarize fills the distribution fields from the post-outlier prices.
func (s *PriceStatistics) summarize(prices []float64) {
	if len(prices) == 0 {
		return
	}
	s.Min = floats.Min(prices)
	s.Max = floats.Max(prices)
	s.Mean = stat.Mean(prices, nil)
	if len(prices) > 1 {
		s.Std = stat.StdDev(prices, nil)
	}
}
