package timeseries

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// HarmonizeOptions controls resampling and gap interpolation.
type HarmonizeOptions struct {
	// Resample enables mean downsampling when the native resolution is
	// finer than TargetResolution.
	Resample bool
	// TargetResolution is the canonical sample spacing. Zero means hourly.
	TargetResolution time.Duration
	// InterpolateMissing enables isolated-gap interpolation.
	InterpolateMissing bool
}

// DefaultHarmonizeOptions returns the options used for all persisted
// series: hourly resolution with resampling and interpolation enabled.
func DefaultHarmonizeOptions() HarmonizeOptions {
	return HarmonizeOptions{
		Resample:           true,
		TargetResolution:   time.Hour,
		InterpolateMissing: true,
	}
}

// FrameRow is one sample of a harmonized series framed for persistence:
// a UTC timestamp, the value, and calendar columns computed from the
// original local timestamp. The local columns feed the demand model and
// must reflect local calendar context, not UTC.
type FrameRow struct {
	TimeUTC        time.Time `json:"time_utc"`
	Value          float64   `json:"value"`
	LocalHour      int       `json:"local_hour"`
	LocalDayOfWeek int       `json:"local_day_of_week"`
	LocalMonth     int       `json:"local_month"`
	LocalYear      int       `json:"local_year"`
}

// frameRowJSON carries a FrameRow over JSON with null standing in for
// missing values, since NaN is not representable in JSON.
type frameRowJSON struct {
	TimeUTC        time.Time `json:"time_utc"`
	Value          *float64  `json:"value"`
	LocalHour      int       `json:"local_hour"`
	LocalDayOfWeek int       `json:"local_day_of_week"`
	LocalMonth     int       `json:"local_month"`
	LocalYear      int       `json:"local_year"`
}

func (r FrameRow) MarshalJSON() ([]byte, error) {
	encoded := frameRowJSON{
		TimeUTC:        r.TimeUTC,
		LocalHour:      r.LocalHour,
		LocalDayOfWeek: r.LocalDayOfWeek,
		LocalMonth:     r.LocalMonth,
		LocalYear:      r.LocalYear,
	}
	if !math.IsNaN(r.Value) {
		value := r.Value
		encoded.Value = &value
	}
	return json.Marshal(encoded)
}

func (r *FrameRow) UnmarshalJSON(data []byte) error {
	var decoded frameRowJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	r.TimeUTC = decoded.TimeUTC
	r.Value = math.NaN()
	if decoded.Value != nil {
		r.Value = *decoded.Value
	}
	r.LocalHour = decoded.LocalHour
	r.LocalDayOfWeek = decoded.LocalDayOfWeek
	r.LocalMonth = decoded.LocalMonth
	r.LocalYear = decoded.LocalYear
	return nil
}

// Harmonize transforms a cleaned series into a canonical one: missing
// time steps are added onto the full local-year grid, the series is
// downsampled to the target resolution when its native resolution is
// finer, and strictly isolated missing samples are filled with the mean
// of their neighbors. Longer gaps remain missing. The input index must be
// strictly increasing; duplicates must have been resolved by Clean.
func Harmonize(s Series, loc *time.Location, opts HarmonizeOptions) (Series, error) {
	if loc == nil {
		loc = s.loc
	}
	if loc == nil {
		return Series{}, ErrTimezoneRequired
	}
	if !s.sortedByTime() {
		return Series{}, ErrNonMonotonicIndex
	}
	if err := s.checkStrictlyIncreasing(); err != nil {
		return Series{}, err
	}
	if s.Len() == 0 {
		return Series{loc: loc}, nil
	}

	target := opts.TargetResolution
	if target == 0 {
		target = time.Hour
	}

	out := AddMissingTimeSteps(s, loc)

	if opts.Resample {
		out = Resample(out, target, loc)
	}

	if opts.InterpolateMissing {
		out = InterpolateIsolated(out)
	}

	out.loc = loc
	return out, nil
}

// Frame converts a harmonized series into persistence rows, attaching
// local calendar columns derived from the pre-UTC-conversion local
// timestamps. Day of week is 0 for Monday through 6 for Sunday.
func Frame(s Series) ([]FrameRow, error) {
	if s.loc == nil {
		return nil, ErrTimezoneRequired
	}
	rows := make([]FrameRow, len(s.points))
	for i, p := range s.points {
		local := p.Time.In(s.loc)
		rows[i] = FrameRow{
			TimeUTC:        p.Time.In(time.UTC),
			Value:          p.Value,
			LocalHour:      local.Hour(),
			LocalDayOfWeek: (int(local.Weekday()) + 6) % 7,
			LocalMonth:     int(local.Month()),
			LocalYear:      local.Year(),
		}
	}
	return rows, nil
}

// HoursInYear returns 8784 for leap years and 8760 otherwise.
func HoursInYear(year int) int {
	if isLeapYear(year) {
		return 8784
	}
	return 8760
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// AddMissingTimeSteps reindexes the series onto the full local-time grid
// of its calendar year when fewer samples than expected are present,
// inserting NaN placeholders at slots the source omitted. The grid is
// built from local midnight on January 1 with the native resolution, so
// DST transitions fall out naturally.
func AddMissingTimeSteps(s Series, loc *time.Location) Series {
	resolution := s.Resolution()
	if resolution <= 0 {
		return s
	}

	year := s.points[0].Time.In(loc).Year()
	expected := int(time.Duration(HoursInYear(year)) * time.Hour / resolution)
	if s.Len() >= expected {
		return s
	}

	logrus.WithFields(logrus.Fields{
		"added":    expected - s.Len(),
		"expected": expected,
	}).Warn("Added missing time steps")

	byInstant := make(map[int64]float64, s.Len())
	for _, p := range s.points {
		byInstant[p.Time.UnixNano()] = p.Value
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc)
	grid := make([]Point, 0, expected)
	for t := start; t.Before(end); t = t.Add(resolution) {
		value := math.NaN()
		if v, ok := byInstant[t.UnixNano()]; ok {
			value = v
		}
		grid = append(grid, Point{Time: t.In(time.UTC), Value: value})
	}

	return Series{points: grid, loc: loc}
}

// Resample downsamples the series to the target resolution by
// averaging all samples falling within each target bucket. Buckets are
// aligned to local wall-clock boundaries so that zones with fractional
// UTC offsets resample onto their own hour marks. Samples with a coarser
// or equal native resolution are returned unchanged.
func Resample(s Series, target time.Duration, loc *time.Location) Series {
	resolution := s.Resolution()
	if resolution <= 0 || resolution >= target {
		return s
	}

	logrus.WithFields(logrus.Fields{
		"from": resolution.String(),
		"to":   target.String(),
	}).Warn("Resampled the time series")

	type bucket struct {
		start time.Time
		sum   float64
		n     int
	}

	var buckets []*bucket
	var current *bucket
	for _, p := range s.points {
		start := floorToResolution(p.Time, target, loc)
		if current == nil || !current.start.Equal(start) {
			current = &bucket{start: start}
			buckets = append(buckets, current)
		}
		if !math.IsNaN(p.Value) {
			current.sum += p.Value
			current.n++
		}
	}

	points := make([]Point, len(buckets))
	for i, b := range buckets {
		value := math.NaN()
		if b.n > 0 {
			value = b.sum / float64(b.n)
		}
		points[i] = Point{Time: b.start.In(time.UTC), Value: value}
	}

	return Series{points: points, loc: loc}
}

// floorToResolution floors an instant to the previous resolution boundary
// of the local wall clock.
func floorToResolution(t time.Time, resolution time.Duration, loc *time.Location) time.Time {
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	offset := local.Sub(midnight)
	return midnight.Add(offset.Truncate(resolution))
}

// InterpolateIsolated replaces each missing value whose immediate
// neighbors by index position are both present with their arithmetic
// mean. Neighbors are taken from the original values, so runs of two or
// more consecutive missing samples are left untouched.
func InterpolateIsolated(s Series) Series {
	if s.Len() < 3 {
		return s
	}

	points := make([]Point, len(s.points))
	copy(points, s.points)

	filled := 0
	for i := 1; i < len(s.points)-1; i++ {
		if !math.IsNaN(s.points[i].Value) {
			continue
		}
		prev := s.points[i-1].Value
		next := s.points[i+1].Value
		if math.IsNaN(prev) || math.IsNaN(next) {
			continue
		}
		points[i].Value = (prev + next) / 2
		filled++
	}

	if filled > 0 {
		logrus.WithField("interpolated", filled).Warn("Interpolated isolated missing values")
	}

	return Series{points: points, loc: s.loc}
}
