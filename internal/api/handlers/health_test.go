package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/demandcast/internal/services"
)

type fakeChecker struct {
	err error
}

func (f *fakeChecker) HealthCheck(context.Context) error {
	return f.err
}

type fakeStatus struct{}

func (fakeStatus) Status() services.RetrievalStatus {
	return services.RetrievalStatus{Running: true, ActiveTasks: 3}
}

func healthRouter(db, redis HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)

	handler := NewHealthHandler(db, redis, fakeStatus{})
	router := gin.New()
	router.GET("/health", handler.HealthCheck)
	return router
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	router := healthRouter(&fakeChecker{}, &fakeChecker{})

	recorder := getRequest(router, "/health")
	require.Equal(t, http.StatusOK, recorder.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "healthy", response.Services["database"])
	assert.Equal(t, "healthy", response.Services["redis"])
	assert.True(t, response.Retrieval.Running)
	assert.Equal(t, 3, response.Retrieval.ActiveTasks)
}

func TestHealthCheck_DegradedDatabase(t *testing.T) {
	router := healthRouter(&fakeChecker{err: errors.New("connection refused")}, &fakeChecker{})

	recorder := getRequest(router, "/health")
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "unhealthy", response.Status)
	assert.Contains(t, response.Services["database"], "connection refused")
}

func TestHealthCheck_NotConfigured(t *testing.T) {
	router := healthRouter(nil, &fakeChecker{})

	recorder := getRequest(router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "not configured")
}
