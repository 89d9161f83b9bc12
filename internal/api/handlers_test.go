package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/signalstack/signal-engine/internal/engine"
	"github.com/signalstack/signal-engine/internal/models"
)

type fakeFacade struct {
	report      models.DiagnosisReport
	reportErr   error
	correlation models.CorrelationResult
	snapshot    models.QueueSnapshot
	flagged     []models.UsageComparison
	usageErr    error
	resolved    []string
	requeued    int64
	patterns    []models.CategoryPattern
}

func (f *fakeFacade) DiagnoseIssue(context.Context, models.DiagnoseRequest) (models.DiagnosisReport, error) {
	return f.report, f.reportErr
}

func (f *fakeFacade) CorrelateAcrossServices(_ context.Context, req models.CorrelateRequest) (models.CorrelationResult, error) {
	if req.TraceID == "" && req.RunID == "" {
		return models.CorrelationResult{}, engine.ErrMissingCorrelationKey
	}
	return f.correlation, nil
}

func (f *fakeFacade) CheckQueueHealth(context.Context, models.QueueHealthRequest) models.QueueSnapshot {
	return f.snapshot
}

func (f *fakeFacade) DetectUsageAnomalies(context.Context, models.UsageAnomalyRequest) ([]models.UsageComparison, error) {
	return f.flagged, f.usageErr
}

func (f *fakeFacade) ResolveIssue(_ context.Context, _, issueID string) error {
	f.resolved = append(f.resolved, issueID)
	return nil
}

func (f *fakeFacade) RetryDeadLetters(context.Context) (int64, error) {
	return f.requeued, nil
}

func (f *fakeFacade) ListPatterns(context.Context) ([]models.CategoryPattern, error) {
	return f.patterns, nil
}

func newTestRouter(facade *fakeFacade) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRoutes(NewHandler(facade, nil))
}

func TestDiagnoseEndpoint(t *testing.T) {
	facade := &fakeFacade{report: models.DiagnosisReport{
		Diagnosis: models.Diagnosis{Category: "timeout", Severity: models.SeverityHigh},
		Temporal:  models.TemporalVerdict{Pattern: models.PatternSteady},
	}}
	router := newTestRouter(facade)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose",
		strings.NewReader(`{"project":"billing-worker","issue_id":"ISSUE-1"}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var report models.DiagnosisReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Diagnosis.Category != "timeout" || report.Temporal.Pattern != models.PatternSteady {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestDiagnoseEndpointRequiresIssueID(t *testing.T) {
	router := newTestRouter(&fakeFacade{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", strings.NewReader(`{"project":"x"}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDiagnoseEndpointServiceError(t *testing.T) {
	router := newTestRouter(&fakeFacade{reportErr: errors.New("tracker down")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", strings.NewReader(`{"issue_id":"ISSUE-1"}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestCorrelateEndpointMissingKey(t *testing.T) {
	router := newTestRouter(&fakeFacade{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/correlate", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing correlation key", w.Code)
	}
}

func TestCorrelateEndpoint(t *testing.T) {
	facade := &fakeFacade{correlation: models.CorrelationResult{
		TraceID:         "trace-1",
		TotalIssues:     2,
		CascadeDetected: true,
	}}
	router := newTestRouter(facade)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/correlate", strings.NewReader(`{"trace_id":"trace-1"}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var result models.CorrelationResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.CascadeDetected || result.TotalIssues != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestQueueHealthEndpoint(t *testing.T) {
	facade := &fakeFacade{snapshot: models.QueueSnapshot{
		Healthy:         true,
		Recommendations: []string{"Queue is healthy; no action needed"},
	}}
	router := newTestRouter(facade)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/health?lookback=30m", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/queue/health?lookback=bogus", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad duration", w.Code)
	}
}

func TestUsageAnomaliesEndpoint(t *testing.T) {
	facade := &fakeFacade{flagged: []models.UsageComparison{
		{OrgID: "org-1", Ratio: 4.2, Kind: models.UsageSpike},
	}}
	router := newTestRouter(facade)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage/anomalies?recent=1h&baseline=24h", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Anomalies []models.UsageComparison `json:"anomalies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Anomalies) != 1 || body.Anomalies[0].Kind != models.UsageSpike {
		t.Fatalf("unexpected anomalies: %+v", body.Anomalies)
	}
}

func TestResolveEndpoint(t *testing.T) {
	facade := &fakeFacade{}
	router := newTestRouter(facade)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/issues/ISSUE-3/resolve",
		strings.NewReader(`{"project":"billing-worker"}`))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(facade.resolved) != 1 || facade.resolved[0] != "ISSUE-3" {
		t.Fatalf("resolved = %v", facade.resolved)
	}
}

func TestRetryDeadLettersEndpoint(t *testing.T) {
	facade := &fakeFacade{requeued: 4}
	router := newTestRouter(facade)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queue/retry-dead-letters", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]int64
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["requeued"] != 4 {
		t.Fatalf("requeued = %d, want 4", body["requeued"])
	}
}

func TestPatternsEndpoint(t *testing.T) {
	facade := &fakeFacade{patterns: []models.CategoryPattern{
		{ID: "billing-worker/database_error", Occurrences: 7, LastSeen: time.Now()},
	}}
	router := newTestRouter(facade)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patterns", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeFacade{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
