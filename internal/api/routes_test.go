package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/demandcast/internal/api/handlers"
	"github.com/demandcast/demandcast/internal/entities"
	"github.com/demandcast/demandcast/internal/middleware"
	"github.com/demandcast/demandcast/internal/models"
	"github.com/demandcast/demandcast/internal/services"
	"github.com/demandcast/demandcast/internal/sources"
	"github.com/demandcast/demandcast/internal/timeseries"
)

type stubStore struct{}

func (stubStore) QueryYear(context.Context, string, string, int) ([]timeseries.FrameRow, error) {
	return nil, nil
}

func (stubStore) LatestYear(context.Context, string, string) (int, error) {
	return 0, nil
}

type stubIndicators struct{}

func (stubIndicators) Indicator(context.Context, string, string) ([]sources.AnnualObservation, error) {
	return nil, errors.New("unavailable")
}

type stubRetrieval struct{}

func (stubRetrieval) Run(context.Context, string, string, int) (*models.RetrievalRun, error) {
	return &models.RetrievalRun{Source: "ENTSOE"}, nil
}

func (stubRetrieval) Status() services.RetrievalStatus {
	return services.RetrievalStatus{}
}

func testRouter(t *testing.T) (*gin.Engine, *middleware.AuthMiddleware) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	yaml := "entities:\n  - code: FR\n    name: france\n    timezone: Europe/Paris\n    start_date: \"2015-01-01\"\n    end_date: \"2024-01-01\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entsoe.yaml"), []byte(yaml), 0o644))
	registry, err := entities.Load(dir)
	require.NoError(t, err)

	logger := logrus.New()
	auth := middleware.NewAuthMiddleware("test-secret")

	router := gin.New()
	SetupRoutes(router, Dependencies{
		Health:     handlers.NewHealthHandler(nil, nil, stubRetrieval{}),
		Entities:   handlers.NewEntityHandler(registry),
		Series:     handlers.NewSeriesHandler(registry, stubStore{}, nil, logger),
		Indicators: handlers.NewIndicatorHandler(registry, stubIndicators{}, services.NewFeatureService(), logger),
		Predict:    handlers.NewPredictHandler(nil),
		Retrieval:  handlers.NewRetrievalHandler(stubRetrieval{}, nil, logger),
		Auth:       auth,
	})
	return router, auth
}

func TestSetupRoutes_PublicEndpoints(t *testing.T) {
	router, _ := testRouter(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/entities", http.StatusOK},
		{http.MethodGet, "/api/v1/entities/FR", http.StatusOK},
		{http.MethodGet, "/api/v1/series/FR", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		assert.Equal(t, tt.status, recorder.Code, "%s %s", tt.method, tt.path)
	}
}

func TestSetupRoutes_AdminRequiresToken(t *testing.T) {
	router, auth := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/retrieval/status", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	token, err := auth.GenerateToken("ops@example.com", middleware.AdminRole, time.Hour)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/retrieval/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
}
