// Package api assembles the gin router.
package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/demandcast/demandcast/internal/api/handlers"
	"github.com/demandcast/demandcast/internal/middleware"
)

// Dependencies are the constructed handlers and middleware the router
// mounts.
type Dependencies struct {
	Health     *handlers.HealthHandler
	Entities   *handlers.EntityHandler
	Series     *handlers.SeriesHandler
	Indicators *handlers.IndicatorHandler
	Predict    *handlers.PredictHandler
	Retrieval  *handlers.RetrievalHandler
	Auth       *middleware.AuthMiddleware
}

// SetupRoutes mounts all routes on the router. Tracing spans come from
// the global tracer provider, which is a no-op when telemetry is off.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(otelgin.Middleware("demandcast"))

	router.GET("/health", deps.Health.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		entities := v1.Group("/entities")
		{
			entities.GET("", deps.Entities.ListEntities)
			entities.GET("/:code", deps.Entities.GetEntity)
		}

		series := v1.Group("/series")
		{
			series.GET("/:code", deps.Series.GetSeries)
		}

		v1.GET("/indicators/:code", deps.Indicators.GetIndicator)

		v1.POST("/predict", deps.Predict.Predict)

		admin := v1.Group("/admin")
		admin.Use(deps.Auth.RequireAdmin())
		{
			admin.POST("/retrieval/run", deps.Retrieval.RunRetrieval)
			admin.GET("/retrieval/status", deps.Retrieval.RetrievalStatus)
		}
	}
}
