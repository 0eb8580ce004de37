// Package timeseries implements the harmonization core: cleaning raw
// observation series, completing them onto a full local-year grid,
// downsampling to a target resolution, interpolating isolated gaps and
// framing the result on a UTC index with local calendar columns.
package timeseries

import (
	"errors"
	"math"
	"sort"
	"time"
)

var (
	// ErrTimezoneRequired is returned when a series has no local time zone
	// and none was supplied.
	ErrTimezoneRequired = errors.New("time series must be timezone-aware")

	// ErrNonMonotonicIndex is returned when duplicate timestamps survive
	// the cleaning stage and cannot be resolved.
	ErrNonMonotonicIndex = errors.New("time series index contains unresolved duplicate timestamps")
)

// Point is a single timestamped observation. A NaN value marks a missing
// sample.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is an ordered collection of observations in a known local time
// zone. Raw series produced by source adapters may be unsorted, contain
// duplicates, or have gaps; Clean and Harmonize establish the canonical
// invariants.
type Series struct {
	points []Point
	loc    *time.Location
}

// New creates a series from points in the given local time zone. The
// points are not copied, sorted, or validated.
func New(points []Point, loc *time.Location) Series {
	return Series{points: points, loc: loc}
}

// Len returns the number of points in the series.
func (s Series) Len() int {
	return len(s.points)
}

// At returns the point at index i.
func (s Series) At(i int) Point {
	return s.points[i]
}

// Location returns the local time zone of the series, or nil if unknown.
func (s Series) Location() *time.Location {
	return s.loc
}

// Points returns a copy of the underlying points.
func (s Series) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Values returns the observation values in index order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}

// Missing returns the number of missing (NaN) samples.
func (s Series) Missing() int {
	n := 0
	for _, p := range s.points {
		if math.IsNaN(p.Value) {
			n++
		}
	}
	return n
}

// Append adds points from other to the end of the series, preserving
// order. The location of the receiver wins; if the receiver is empty and
// has no location, the location of other is adopted.
func (s Series) Append(other Series) Series {
	loc := s.loc
	if loc == nil {
		loc = other.loc
	}
	points := make([]Point, 0, len(s.points)+len(other.points))
	points = append(points, s.points...)
	points = append(points, other.points...)
	return Series{points: points, loc: loc}
}

// Resolution returns the native sampling resolution, defined as the
// minimum difference between consecutive timestamps. A series with fewer
// than two points has no measurable resolution and zero is returned.
func (s Series) Resolution() time.Duration {
	if len(s.points) < 2 {
		return 0
	}
	min := time.Duration(math.MaxInt64)
	for i := 1; i < len(s.points); i++ {
		d := s.points[i].Time.Sub(s.points[i-1].Time)
		if d < min {
			min = d
		}
	}
	return min
}

// sortedByTime reports whether the index is non-decreasing.
func (s Series) sortedByTime() bool {
	return sort.SliceIsSorted(s.points, func(i, j int) bool {
		return s.points[i].Time.Before(s.points[j].Time)
	})
}

// checkStrictlyIncreasing verifies that the index is sorted with no
// duplicate timestamps.
func (s Series) checkStrictlyIncreasing() error {
	for i := 1; i < len(s.points); i++ {
		if !s.points[i-1].Time.Before(s.points[i].Time) {
			return ErrNonMonotonicIndex
		}
	}
	return nil
}
