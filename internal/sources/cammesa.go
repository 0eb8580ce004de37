package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/demandcast/demandcast/internal/fetcher"
	"github.com/demandcast/demandcast/internal/retrieval"
	"github.com/demandcast/demandcast/internal/timeseries"
)

const cammesaBaseURL = "https://api.cammesa.com/demanda-svc/demanda/ObtieneDemandaYTemperaturaRegionByFecha"

// Quantity selects which field of a combined demand-and-weather payload
// an adapter extracts.
type Quantity string

const (
	QuantityDemand      Quantity = "demand"
	QuantityTemperature Quantity = "temperature"
)

// cammesaRegions maps entity codes to CAMMESA region identifiers.
var cammesaRegions = map[string]int{
	"AR":     1002, // whole country
	"AR_CEN": 422,  // Centro
	"AR_COM": 420,  // Comahue
	"AR_CUY": 429,  // Cuyo
	"AR_LIT": 417,  // Litoral
	"AR_NEA": 418,  // Nordeste Argentino
	"AR_NOA": 419,  // Noroeste Argentino
	"AR_PAT": 111,  // Patagonia
}

type cammesaRow struct {
	Fecha string   `json:"fecha"`
	Dem   *float64 `json:"dem"`
	Temp  *float64 `json:"temp"`
}

// CAMMESA retrieves Argentine electricity demand and temperature from
// the wholesale market administrator's API, one day per request.
type CAMMESA struct {
	fetcher  *fetcher.Fetcher
	baseURL  string
	quantity Quantity
	loc      *time.Location
}

// NewCAMMESA creates an adapter extracting the given quantity.
func NewCAMMESA(f *fetcher.Fetcher, quantity Quantity) (*CAMMESA, error) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		return nil, fmt.Errorf("failed to load the CAMMESA time zone: %w", err)
	}
	if quantity != QuantityDemand && quantity != QuantityTemperature {
		return nil, fmt.Errorf("unsupported quantity %q", quantity)
	}
	return &CAMMESA{fetcher: f, baseURL: cammesaBaseURL, quantity: quantity, loc: loc}, nil
}

func (a *CAMMESA) Name() string                  { return "CAMMESA" }
func (a *CAMMESA) Span() retrieval.Span          { return retrieval.SpanDays(1) }
func (a *CAMMESA) MaxAttempts() int              { return 5 }
func (a *CAMMESA) WithBaseURL(u string) *CAMMESA { a.baseURL = u; return a }

// Fetch retrieves one day of observations. The API returns five-minute
// rows whose last entry belongs to the following day; that entry is
// dropped so daily windows never overlap.
func (a *CAMMESA) Fetch(ctx context.Context, w retrieval.Window, code string) (timeseries.Series, error) {
	region, ok := cammesaRegions[code]
	if !ok {
		return timeseries.Series{}, fmt.Errorf("no CAMMESA region known for code %q", code)
	}

	query := url.Values{}
	query.Set("id_region", fmt.Sprintf("%d", region))
	query.Set("fecha", w.Start.In(a.loc).Format("2006-01-02"))

	var rows []cammesaRow
	if err := a.fetcher.JSON(ctx, fetcher.Request{URL: a.baseURL, Query: query}, &rows); err != nil {
		return timeseries.Series{}, err
	}
	if len(rows) == 0 {
		return timeseries.Series{}, retrieval.ErrNoData
	}
	// The last row is the first sample of the next day.
	rows = rows[:len(rows)-1]

	observations := make([]timeseries.Point, 0, len(rows))
	for _, row := range rows {
		value := row.Dem
		if a.quantity == QuantityTemperature {
			value = row.Temp
		}
		if value == nil {
			continue
		}
		ts, err := time.Parse("2006-01-02T15:04:05.000-0700", row.Fecha)
		if err != nil {
			return timeseries.Series{}, fmt.Errorf("failed to parse timestamp %q: %w", row.Fecha, err)
		}
		observations = append(observations, timeseries.Point{Time: ts, Value: *value})
	}
	if len(observations) == 0 {
		return timeseries.Series{}, retrieval.ErrNoData
	}
	return timeseries.New(observations, a.loc), nil
}
