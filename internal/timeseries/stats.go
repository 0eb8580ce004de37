package timeseries

import (
	"math"
	"sort"
)

// Percentile computes the p-th percentile (0-100) of the non-missing
// values using the linear-interpolation quantile definition. NaN is
// returned when no finite values are present.
func Percentile(values []float64, p float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)

	if p <= 0 {
		return finite[0]
	}
	if p >= 100 {
		return finite[len(finite)-1]
	}

	rank := p / 100 * float64(len(finite)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return finite[lower]
	}
	frac := rank - float64(lower)
	return finite[lower]*(1-frac) + finite[upper]*frac
}

// YearlyPercentiles computes the p-th percentile of the series per local
// calendar year. Years are determined from the series' local time zone.
func YearlyPercentiles(s Series, p float64) (map[int]float64, error) {
	if s.loc == nil {
		return nil, ErrTimezoneRequired
	}
	byYear := make(map[int][]float64)
	for _, pt := range s.points {
		year := pt.Time.In(s.loc).Year()
		byYear[year] = append(byYear[year], pt.Value)
	}
	out := make(map[int]float64, len(byYear))
	for year, values := range byYear {
		out[year] = Percentile(values, p)
	}
	return out, nil
}
