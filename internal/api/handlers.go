package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/signalstack/signal-engine/internal/engine"
	"github.com/signalstack/signal-engine/internal/models"
)

// AnalysisFacade is the service surface the handlers need; the concrete
// AnalysisService satisfies it.
type AnalysisFacade interface {
	DiagnoseIssue(ctx context.Context, req models.DiagnoseRequest) (models.DiagnosisReport, error)
	CorrelateAcrossServices(ctx context.Context, req models.CorrelateRequest) (models.CorrelationResult, error)
	CheckQueueHealth(ctx context.Context, req models.QueueHealthRequest) models.QueueSnapshot
	DetectUsageAnomalies(ctx context.Context, req models.UsageAnomalyRequest) ([]models.UsageComparison, error)
	ResolveIssue(ctx context.Context, project, issueID string) error
	RetryDeadLetters(ctx context.Context) (int64, error)
	ListPatterns(ctx context.Context) ([]models.CategoryPattern, error)
}

// Handler exposes the analysis facade over HTTP.
type Handler struct {
	service AnalysisFacade
	logger  *slog.Logger
}

// NewHandler wires the facade into the HTTP layer.
func NewHandler(service AnalysisFacade, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

type diagnoseRequest struct {
	Project     string `json:"project"`
	IssueID     string `json:"issue_id" binding:"required"`
	Environment string `json:"environment"`
}

// Diagnose handles POST /api/v1/diagnose.
func (h *Handler) Diagnose(c *gin.Context) {
	var req diagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.service.DiagnoseIssue(c.Request.Context(), models.DiagnoseRequest{
		Project:     req.Project,
		IssueID:     req.IssueID,
		Environment: req.Environment,
	})
	if err != nil {
		h.logger.Error("diagnosis failed", slog.String("issue_id", req.IssueID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

type correlateRequest struct {
	TraceID  string   `json:"trace_id"`
	RunID    string   `json:"run_id"`
	Services []string `json:"services"`
}

// Correlate handles POST /api/v1/correlate.
func (h *Handler) Correlate(c *gin.Context) {
	var req correlateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.CorrelateAcrossServices(c.Request.Context(), models.CorrelateRequest{
		TraceID:  req.TraceID,
		RunID:    req.RunID,
		Services: req.Services,
	})
	if err != nil {
		if errors.Is(err, engine.ErrMissingCorrelationKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("correlation failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// QueueHealth handles GET /api/v1/queue/health. Lookback arrives as a
// duration string query parameter.
func (h *Handler) QueueHealth(c *gin.Context) {
	var lookback time.Duration
	if raw := c.Query("lookback"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lookback duration"})
			return
		}
		lookback = parsed
	}

	snapshot := h.service.CheckQueueHealth(c.Request.Context(), models.QueueHealthRequest{Lookback: lookback})
	c.JSON(http.StatusOK, snapshot)
}

// RetryDeadLetters handles POST /api/v1/queue/retry-dead-letters.
func (h *Handler) RetryDeadLetters(c *gin.Context) {
	requeued, err := h.service.RetryDeadLetters(c.Request.Context())
	if err != nil {
		h.logger.Error("dead-letter retry failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": requeued})
}

// UsageAnomalies handles GET /api/v1/usage/anomalies with optional recent and
// baseline duration query parameters.
func (h *Handler) UsageAnomalies(c *gin.Context) {
	var req models.UsageAnomalyRequest
	if raw := c.Query("recent"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recent duration"})
			return
		}
		req.RecentWindow = parsed
	}
	if raw := c.Query("baseline"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid baseline duration"})
			return
		}
		req.BaselineWindow = parsed
	}

	flagged, err := h.service.DetectUsageAnomalies(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("usage scan failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"anomalies": flagged})
}

type resolveRequest struct {
	Project string `json:"project"`
}

// ResolveIssue handles POST /api/v1/issues/:id/resolve.
func (h *Handler) ResolveIssue(c *gin.Context) {
	issueID := c.Param("id")
	var req resolveRequest
	// The body is optional; project defaults to the tracker's own mapping.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.ResolveIssue(c.Request.Context(), req.Project, issueID); err != nil {
		h.logger.Error("resolve failed", slog.String("issue_id", issueID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"issue_id": issueID, "status": "resolved"})
}

// Patterns handles GET /api/v1/patterns.
func (h *Handler) Patterns(c *gin.Context) {
	mined, err := h.service.ListPatterns(c.Request.Context())
	if err != nil {
		h.logger.Error("pattern mining failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": mined})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now()})
}
