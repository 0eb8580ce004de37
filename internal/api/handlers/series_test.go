package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/demandcast/internal/models"
	"github.com/demandcast/demandcast/internal/timeseries"
)

type fakeSeriesStore struct {
	rows       map[string][]timeseries.FrameRow
	latestYear int
	queryErr   error
}

func storeKey(code, quantity string, year int) string {
	return fmt.Sprintf("%s/%s/%d", code, quantity, year)
}

func (s *fakeSeriesStore) QueryYear(_ context.Context, code, quantity string, year int) ([]timeseries.FrameRow, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.rows[storeKey(code, quantity, year)], nil
}

func (s *fakeSeriesStore) LatestYear(_ context.Context, _, _ string) (int, error) {
	return s.latestYear, nil
}

type fakeSeriesCache struct {
	entries map[string][]timeseries.FrameRow
	sets    int
}

func (c *fakeSeriesCache) Get(_ context.Context, code, quantity string, year int) ([]timeseries.FrameRow, bool, error) {
	rows, ok := c.entries[storeKey(code, quantity, year)]
	return rows, ok, nil
}

func (c *fakeSeriesCache) Set(_ context.Context, code, quantity string, year int, rows []timeseries.FrameRow) error {
	c.entries[storeKey(code, quantity, year)] = rows
	c.sets++
	return nil
}

func demandRows() []timeseries.FrameRow {
	base := time.Date(2021, time.June, 1, 10, 0, 0, 0, time.UTC)
	return []timeseries.FrameRow{
		{TimeUTC: base, Value: 48210.5, LocalHour: 12, LocalDayOfWeek: 1, LocalMonth: 6, LocalYear: 2021},
		{TimeUTC: base.Add(time.Hour), Value: math.NaN(), LocalHour: 13, LocalDayOfWeek: 1, LocalMonth: 6, LocalYear: 2021},
	}
}

func seriesRouter(t *testing.T, store *fakeSeriesStore, cache *fakeSeriesCache) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var cacheArg SeriesCache
	if cache != nil {
		cacheArg = cache
	}
	handler := NewSeriesHandler(testRegistry(t), store, cacheArg, quietLogger())
	router := gin.New()
	router.GET("/api/v1/series/:code", handler.GetSeries)
	return router
}

func TestGetSeries_FromStore(t *testing.T) {
	store := &fakeSeriesStore{
		rows: map[string][]timeseries.FrameRow{
			storeKey("FR", "electricity_demand", 2021): demandRows(),
		},
	}
	cache := &fakeSeriesCache{entries: map[string][]timeseries.FrameRow{}}
	router := seriesRouter(t, store, cache)

	recorder := getRequest(router, "/api/v1/series/FR?year=2021")
	require.Equal(t, http.StatusOK, recorder.Code)

	var response models.SeriesResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "FR", response.EntityCode)
	assert.Equal(t, "electricity_demand", response.Quantity)
	assert.Equal(t, 2021, response.Year)
	assert.False(t, response.Cached)
	require.Len(t, response.Rows, 2)
	assert.Equal(t, 48210.5, response.Rows[0].Value)
	// Missing observations travel as JSON null.
	assert.True(t, math.IsNaN(response.Rows[1].Value))

	// The miss populated the cache.
	assert.Equal(t, 1, cache.sets)
}

func TestGetSeries_CacheHit(t *testing.T) {
	store := &fakeSeriesStore{queryErr: errors.New("store must not be hit")}
	cache := &fakeSeriesCache{entries: map[string][]timeseries.FrameRow{
		storeKey("FR", "electricity_demand", 2021): demandRows(),
	}}
	router := seriesRouter(t, store, cache)

	recorder := getRequest(router, "/api/v1/series/FR?year=2021")
	require.Equal(t, http.StatusOK, recorder.Code)

	var response models.SeriesResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.True(t, response.Cached)
	assert.Len(t, response.Rows, 2)
}

func TestGetSeries_DefaultsToLatestYear(t *testing.T) {
	store := &fakeSeriesStore{
		latestYear: 2023,
		rows: map[string][]timeseries.FrameRow{
			storeKey("FR", "electricity_demand", 2023): demandRows(),
		},
	}
	router := seriesRouter(t, store, nil)

	recorder := getRequest(router, "/api/v1/series/FR")
	require.Equal(t, http.StatusOK, recorder.Code)

	var response models.SeriesResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, 2023, response.Year)
}

func TestGetSeries_NothingStored(t *testing.T) {
	router := seriesRouter(t, &fakeSeriesStore{}, nil)

	recorder := getRequest(router, "/api/v1/series/FR?year=2021")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetSeries_UnknownEntity(t *testing.T) {
	router := seriesRouter(t, &fakeSeriesStore{}, nil)

	recorder := getRequest(router, "/api/v1/series/XX?year=2021")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetSeries_BadParams(t *testing.T) {
	router := seriesRouter(t, &fakeSeriesStore{}, nil)

	for _, path := range []string{
		"/api/v1/series/FR?quantity=humidity&year=2021",
		"/api/v1/series/FR?year=donkey",
		"/api/v1/series/FR?year=1200",
	} {
		recorder := getRequest(router, path)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "path %s", path)
	}
}

func TestGetSeries_NoStoredYears(t *testing.T) {
	// latestYear zero means nothing is stored and no default exists.
	router := seriesRouter(t, &fakeSeriesStore{latestYear: 0}, nil)

	recorder := getRequest(router, "/api/v1/series/FR")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
