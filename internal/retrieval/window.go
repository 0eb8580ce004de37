// Package retrieval implements the retrieval core: tiling a target date
// range into per-request windows bounded by a source's maximum span,
// driving each window through a source adapter with bounded retry, and
// concatenating the results in chronological order.
package retrieval

import (
	"fmt"
	"time"
)

// Window is one half-open fetch interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Span is the maximum interval a source accepts per request. Calendar
// spans (months, years) advance with calendar arithmetic so that monthly
// pagination lands on month boundaries; fixed spans advance by absolute
// duration. Months and Fixed may be combined.
type Span struct {
	Months int
	Fixed  time.Duration
}

// SpanDays returns a fixed span of n days.
func SpanDays(n int) Span {
	return Span{Fixed: time.Duration(n) * 24 * time.Hour}
}

// SpanMonths returns a calendar span of n months.
func SpanMonths(n int) Span {
	return Span{Months: n}
}

// SpanYears returns a calendar span of n years.
func SpanYears(n int) Span {
	return Span{Months: 12 * n}
}

func (s Span) valid() bool {
	if s.Months < 0 || s.Fixed < 0 {
		return false
	}
	return s.Months > 0 || s.Fixed > 0
}

func (s Span) advance(t time.Time) time.Time {
	if s.Months > 0 {
		t = t.AddDate(0, s.Months, 0)
	}
	return t.Add(s.Fixed)
}

// Tile splits [t0, t1) into consecutive windows of at most span each.
// The windows union to exactly [t0, t1) with no gap or overlap; the last
// window is clipped to t1 regardless of whether span divides the range
// evenly. An empty range yields no windows.
func Tile(t0, t1 time.Time, span Span) ([]Window, error) {
	if !span.valid() {
		return nil, fmt.Errorf("invalid span: %d months + %s", span.Months, span.Fixed)
	}
	if !t0.Before(t1) {
		return nil, nil
	}

	var windows []Window
	for start := t0; start.Before(t1); {
		end := span.advance(start)
		if end.After(t1) {
			end = t1
		}
		windows = append(windows, Window{Start: start, End: end})
		start = end
	}
	return windows, nil
}
