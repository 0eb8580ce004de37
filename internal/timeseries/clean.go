package timeseries

import (
	"math"
	"sort"
	"time"
)

// CleanOptions controls the adapter-facing cleaning stage.
type CleanOptions struct {
	// DropZeroValues removes samples whose value is exactly zero. Several
	// portals encode "no reading" as a literal zero; the convention holds
	// for electricity demand (never legitimately zero) but not for
	// quantities such as generation or irradiance, so it is a per-quantity
	// policy rather than a harmonizer rule.
	DropZeroValues bool
}

// Clean prepares a raw observation series for harmonization: it drops
// samples with a zero timestamp or a missing value (and, per options,
// exact-zero values), removes duplicate timestamps keeping the first
// occurrence, sorts ascending and rewrites all instants in UTC. The
// series must carry a local time zone or ErrTimezoneRequired is returned.
func Clean(s Series, opts CleanOptions) (Series, error) {
	if s.loc == nil {
		return Series{}, ErrTimezoneRequired
	}

	seen := make(map[int64]struct{}, len(s.points))
	cleaned := make([]Point, 0, len(s.points))
	for _, p := range s.points {
		if p.Time.IsZero() {
			continue
		}
		if math.IsNaN(p.Value) {
			continue
		}
		if opts.DropZeroValues && p.Value == 0 {
			continue
		}
		key := p.Time.UnixNano()
		if _, dup := seen[key]; dup {
			// First occurrence wins.
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, Point{Time: p.Time.In(time.UTC), Value: p.Value})
	}

	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].Time.Before(cleaned[j].Time)
	})

	return Series{points: cleaned, loc: s.loc}, nil
}
