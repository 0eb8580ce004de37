package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/demandcast/demandcast/internal/fetcher"
)

const worldBankBaseURL = "https://api.worldbank.org/v2"

// World Bank indicator codes used by the feature layer.
const (
	IndicatorGDPPerCapitaPPP   = "NY.GDP.PCAP.PP.CD"
	IndicatorElectricityUse    = "EG.USE.ELEC.KH.PC"
	IndicatorPopulationDensity = "EN.POP.DNST"
)

const worldBankPageSize = 1000

// AnnualObservation is one year's value of an indicator. Monetary values
// keep full precision until the feature layer converts them.
type AnnualObservation struct {
	Year  int
	Value decimal.Decimal
}

// WorldBank is a client for the World Bank indicator API. Indicators are
// annual, so this client feeds the feature layer directly rather than
// going through the window orchestrator.
type WorldBank struct {
	fetcher *fetcher.Fetcher
	baseURL string
}

// NewWorldBank creates the client. No authentication is required.
func NewWorldBank(f *fetcher.Fetcher) *WorldBank {
	return &WorldBank{fetcher: f, baseURL: worldBankBaseURL}
}

func (c *WorldBank) WithBaseURL(u string) *WorldBank { c.baseURL = u; return c }

type worldBankMeta struct {
	Pages int `json:"pages"`
}

type worldBankEntry struct {
	Date  string       `json:"date"`
	Value *json.Number `json:"value"`
}

// Indicator retrieves all available annual values of an indicator for a
// country, following the API's pagination and skipping years the bank
// has no value for. Results are sorted by ascending year.
func (c *WorldBank) Indicator(ctx context.Context, countryCode, indicator string) ([]AnnualObservation, error) {
	var observations []AnnualObservation
	for page := 1; ; page++ {
		entries, pages, err := c.page(ctx, countryCode, indicator, page)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Value == nil {
				continue
			}
			year, err := strconv.Atoi(entry.Date)
			if err != nil {
				return nil, fmt.Errorf("invalid indicator year %q: %w", entry.Date, err)
			}
			value, err := decimal.NewFromString(entry.Value.String())
			if err != nil {
				return nil, fmt.Errorf("invalid indicator value %q: %w", entry.Value.String(), err)
			}
			observations = append(observations, AnnualObservation{Year: year, Value: value})
		}
		if page >= pages {
			break
		}
	}

	sort.Slice(observations, func(i, j int) bool {
		return observations[i].Year < observations[j].Year
	})
	return observations, nil
}

// page fetches one page of the indicator listing. The API wraps results
// in a two-element array: pagination metadata, then the entries.
func (c *WorldBank) page(ctx context.Context, countryCode, indicator string, page int) ([]worldBankEntry, int, error) {
	query := url.Values{}
	query.Set("format", "json")
	query.Set("per_page", strconv.Itoa(worldBankPageSize))
	query.Set("page", strconv.Itoa(page))

	target := fmt.Sprintf("%s/country/%s/indicator/%s", c.baseURL, countryCode, indicator)

	var envelope []json.RawMessage
	if err := c.fetcher.JSON(ctx, fetcher.Request{URL: target, Query: query}, &envelope); err != nil {
		return nil, 0, err
	}
	if len(envelope) < 2 {
		return nil, 0, fmt.Errorf("unexpected response shape from %s: %d top-level elements", target, len(envelope))
	}

	var meta worldBankMeta
	if err := json.Unmarshal(envelope[0], &meta); err != nil {
		return nil, 0, fmt.Errorf("failed to decode pagination metadata: %w", err)
	}
	var entries []worldBankEntry
	if err := json.Unmarshal(envelope[1], &entries); err != nil {
		return nil, 0, fmt.Errorf("failed to decode indicator entries: %w", err)
	}
	if meta.Pages < 1 {
		meta.Pages = 1
	}
	return entries, meta.Pages, nil
}
