package services

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"

	"github.com/demandcast/demandcast/internal/sources"
	"github.com/demandcast/demandcast/internal/timeseries"
)

// SmoothingPeriod is the window of the demand moving average, one day of
// hourly samples.
const SmoothingPeriod = 24

// FeatureInput collects everything the demand model consumes for one
// prediction point.
type FeatureInput struct {
	Row               timeseries.FrameRow
	Temperature       float64
	SmoothedDemand    float64
	DemandP5          float64
	DemandP95         float64
	GDPPerCapita      decimal.Decimal
	PopulationDensity decimal.Decimal
}

// FeatureService derives model features from harmonized series and
// annual indicators.
type FeatureService struct{}

func NewFeatureService() *FeatureService {
	return &FeatureService{}
}

// Vector flattens a feature input into the order the model was trained
// with. Decimal indicators become floats only here, at the model
// boundary.
func (s *FeatureService) Vector(in FeatureInput) []float64 {
	gdp, _ := in.GDPPerCapita.Float64()
	density, _ := in.PopulationDensity.Float64()
	return []float64{
		float64(in.Row.LocalHour),
		float64(in.Row.LocalDayOfWeek),
		float64(in.Row.LocalMonth),
		in.Temperature,
		in.SmoothedDemand,
		in.DemandP5,
		in.DemandP95,
		gdp,
		density,
	}
}

// SmoothDemand applies a simple moving average over the series values.
// The output has len(values) - period + 1 samples, aligned to the end of
// each window. Missing values poison their windows and must be handled
// upstream.
func (s *FeatureService) SmoothDemand(series timeseries.Series, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("smoothing period must be positive, got %d", period)
	}
	values := series.Values()
	if len(values) < period {
		return nil, fmt.Errorf("need at least %d samples to smooth, got %d", period, len(values))
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(values))), nil
}

// DemandPercentiles returns the yearly 5th and 95th percentiles of a
// harmonized demand series.
func (s *FeatureService) DemandPercentiles(series timeseries.Series) (p5, p95 map[int]float64, err error) {
	if p5, err = timeseries.YearlyPercentiles(series, 5); err != nil {
		return nil, nil, err
	}
	if p95, err = timeseries.YearlyPercentiles(series, 95); err != nil {
		return nil, nil, err
	}
	return p5, p95, nil
}

// IndicatorForYear picks the most recent annual observation at or before
// the given year. Indicator publication lags a year or two behind the
// demand data, so an exact match is not required.
func (s *FeatureService) IndicatorForYear(observations []sources.AnnualObservation, year int) (decimal.Decimal, error) {
	best := -1
	for i, obs := range observations {
		if obs.Year <= year && (best < 0 || obs.Year > observations[best].Year) {
			best = i
		}
	}
	if best < 0 {
		return decimal.Decimal{}, fmt.Errorf("no indicator observation at or before %d", year)
	}
	return observations[best].Value, nil
}

// FillMissing replaces NaN values with the given fallback so smoothing
// windows are never poisoned by harmonization gaps.
func (s *FeatureService) FillMissing(values []float64, fallback float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = fallback
			continue
		}
		out[i] = v
	}
	return out
}
