package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/demandcast/demandcast/internal/fetcher"
	"github.com/demandcast/demandcast/internal/retrieval"
	"github.com/demandcast/demandcast/internal/timeseries"
)

const iesoBaseURL = "https://reports-public.ieso.ca/public/Demand"

// IESO retrieves Ontario electricity demand from the public yearly CSV
// reports. Files carry a short preamble before the header row and stamp
// each observation with a local date plus an hour-ending number 1-24.
type IESO struct {
	fetcher *fetcher.Fetcher
	baseURL string
	loc     *time.Location
}

// NewIESO creates the adapter. It fails only when the tz database is
// missing the Toronto zone.
func NewIESO(f *fetcher.Fetcher) (*IESO, error) {
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		return nil, fmt.Errorf("failed to load the IESO time zone: %w", err)
	}
	return &IESO{fetcher: f, baseURL: iesoBaseURL, loc: loc}, nil
}

func (a *IESO) Name() string               { return "IESO" }
func (a *IESO) Span() retrieval.Span       { return retrieval.SpanYears(1) }
func (a *IESO) MaxAttempts() int           { return 2 }
func (a *IESO) WithBaseURL(u string) *IESO { a.baseURL = u; return a }

// Fetch downloads the yearly report covering the window. The year comes
// from the window midpoint so a window expressed in UTC still resolves
// to the local calendar year it covers. A missing report file means the
// year has no published data yet.
func (a *IESO) Fetch(ctx context.Context, w retrieval.Window, _ string) (timeseries.Series, error) {
	mid := w.Start.Add(w.End.Sub(w.Start) / 2)
	year := mid.In(a.loc).Year()
	url := fmt.Sprintf("%s/PUB_Demand_%d.csv", a.baseURL, year)

	records, err := a.fetcher.CSV(ctx, fetcher.Request{URL: url})
	if err != nil {
		var httpErr *fetcher.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return timeseries.Series{}, retrieval.ErrNoData
		}
		return timeseries.Series{}, err
	}

	header := -1
	for i, record := range records {
		if len(record) > 0 && record[0] == "Date" {
			header = i
			break
		}
	}
	if header < 0 {
		return timeseries.Series{}, fmt.Errorf("unexpected response shape: missing header row in %s", url)
	}

	columns := make(map[string]int, len(records[header]))
	for i, name := range records[header] {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"Date", "Hour", "Ontario Demand"} {
		if _, ok := columns[required]; !ok {
			return timeseries.Series{}, fmt.Errorf("unexpected response shape: missing column %q in %s", required, url)
		}
	}

	observations := make([]timeseries.Point, 0, len(records)-header-1)
	for _, record := range records[header+1:] {
		if len(record) <= columns["Ontario Demand"] {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", record[columns["Date"]], a.loc)
		if err != nil {
			return timeseries.Series{}, fmt.Errorf("failed to parse date %q: %w", record[columns["Date"]], err)
		}
		hour, err := strconv.Atoi(record[columns["Hour"]])
		if err != nil || hour < 1 || hour > 24 {
			return timeseries.Series{}, fmt.Errorf("invalid hour-ending value %q", record[columns["Hour"]])
		}
		value, err := strconv.ParseFloat(record[columns["Ontario Demand"]], 64)
		if err != nil {
			return timeseries.Series{}, fmt.Errorf("invalid demand value %q: %w", record[columns["Ontario Demand"]], err)
		}
		observations = append(observations, timeseries.Point{
			// Hour 1 covers 00:00-01:00 local, so hour-1 is the
			// interval-beginning wall-clock hour.
			Time:  day.Add(time.Duration(hour-1) * time.Hour),
			Value: value,
		})
	}
	if len(observations) == 0 {
		return timeseries.Series{}, retrieval.ErrNoData
	}
	return timeseries.New(observations, a.loc), nil
}
