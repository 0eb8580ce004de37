package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/demandcast/demandcast/internal/services"
)

var startTime = time.Now()

// HealthChecker is a dependency that can report its own liveness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatusReporter exposes the retrieval service snapshot.
type StatusReporter interface {
	Status() services.RetrievalStatus
}

// HealthHandler reports service and host health.
type HealthHandler struct {
	db        HealthChecker
	redis     HealthChecker
	retrieval StatusReporter
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]string        `json:"services"`
	System    SystemStats              `json:"system"`
	Retrieval services.RetrievalStatus `json:"retrieval"`
}

// SystemStats is a host resource snapshot.
type SystemStats struct {
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	CPUPercent        float64 `json:"cpu_percent"`
}

// NewHealthHandler creates a HealthHandler. Nil dependencies are
// reported as not configured.
func NewHealthHandler(db, redis HealthChecker, retrieval StatusReporter) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redis,
		retrieval: retrieval,
	}
}

// HealthCheck reports dependency health plus a host resource snapshot.
// Any unhealthy dependency degrades the overall status to 503.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()
	servicesStatus := map[string]string{
		"database": checkDependency(ctx, h.db),
		"redis":    checkDependency(ctx, h.redis),
	}

	overall := "healthy"
	for _, status := range servicesStatus {
		if status != "healthy" {
			overall = "unhealthy"
			break
		}
	}

	response := HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime).String(),
		Services:  servicesStatus,
		System:    systemStats(),
	}
	if h.retrieval != nil {
		response.Retrieval = h.retrieval.Status()
	}

	statusCode := http.StatusOK
	if overall != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

func checkDependency(ctx context.Context, dep HealthChecker) string {
	if dep == nil {
		return "unhealthy: not configured"
	}
	if err := dep.HealthCheck(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

func systemStats() SystemStats {
	var stats SystemStats
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsedPercent = vm.UsedPercent
	}
	// Sampling interval zero returns the usage since the last call.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	return stats
}
