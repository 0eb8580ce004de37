package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/demandcast/demandcast/internal/models"
	"github.com/demandcast/demandcast/internal/services"
)

// RetrievalRunner is the slice of the retrieval service the admin
// endpoints need.
type RetrievalRunner interface {
	Run(ctx context.Context, source, code string, year int) (*models.RetrievalRun, error)
	Status() services.RetrievalStatus
}

// RunNotifier reports a finished run to operators.
type RunNotifier interface {
	NotifyRun(ctx context.Context, run *models.RetrievalRun) error
}

// RetrievalHandler exposes retrieval runs to authenticated operators.
type RetrievalHandler struct {
	retrieval RetrievalRunner
	notifier  RunNotifier
	logger    *logrus.Logger
}

// NewRetrievalHandler creates a RetrievalHandler. The notifier may be
// nil when no Telegram bot is configured.
func NewRetrievalHandler(retrieval RetrievalRunner, notifier RunNotifier, logger *logrus.Logger) *RetrievalHandler {
	return &RetrievalHandler{
		retrieval: retrieval,
		notifier:  notifier,
		logger:    logger,
	}
}

// RunRetrieval triggers a synchronous retrieval run and returns its
// report. Individual task failures do not fail the request; they are
// listed in the report.
func (h *RetrievalHandler) RunRetrieval(c *gin.Context) {
	var req models.RunRetrievalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	run, err := h.retrieval.Run(c.Request.Context(), req.Source, req.Code, req.Year)
	if run == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Retrieval run aborted")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Retrieval run aborted: " + err.Error()})
		return
	}

	if h.notifier != nil {
		if err := h.notifier.NotifyRun(c.Request.Context(), run); err != nil {
			h.logger.WithError(err).Warn("Failed to send run notification")
		}
	}

	c.JSON(http.StatusOK, run)
}

// RetrievalStatus reports whether a run is in flight and the last
// finished run.
func (h *RetrievalHandler) RetrievalStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.retrieval.Status())
}
