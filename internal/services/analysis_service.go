package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/signalstack/signal-engine/internal/engine"
	"github.com/signalstack/signal-engine/internal/metrics"
	"github.com/signalstack/signal-engine/internal/models"
	"github.com/signalstack/signal-engine/internal/utils"
)

// IssueSource defines the tracker operations the analysis facade needs.
type IssueSource interface {
	SearchIssues(ctx context.Context, service, query string) ([]models.CorrelatedIssue, error)
	FetchIssue(ctx context.Context, project, issueID string) (models.ErrorRecord, error)
	FetchEventTimestamps(ctx context.Context, project, issueID string) ([]string, error)
	UpdateIssueStatus(ctx context.Context, project, issueID, status string) error
}

// OutboxSource defines the aggregate queries over the metering outbox.
type OutboxSource interface {
	VolumeCounts(ctx context.Context, since time.Time) (total, sent int64, err error)
	PendingCount(ctx context.Context, since time.Time) (int64, error)
	DeadLetterCount(ctx context.Context, since time.Time) (int64, error)
	LeaseCounts(ctx context.Context, since time.Time) (leased, stuck int64, err error)
	UsageTotals(ctx context.Context, start, end time.Time) (map[string]float64, error)
	RequeueDeadLetters(ctx context.Context) (int64, error)
}

// DiagnosisSink persists composed diagnoses for pattern mining.
type DiagnosisSink interface {
	SaveDiagnosis(ctx context.Context, d models.Diagnosis) error
}

// PatternSource mines recurring category patterns from stored history.
type PatternSource interface {
	Mine(ctx context.Context, lookback time.Duration) ([]models.CategoryPattern, error)
}

// Config bounds the facade's fan-out and analysis windows.
type Config struct {
	WatchedServices      []string
	MaxConcurrentQueries int
	QueueLookback        time.Duration
	QueueDepthThreshold  int64
	DeadLetterThreshold  int64
	SpikeMultiplier      float64
	RecentWindow         time.Duration
	BaselineWindow       time.Duration
	PatternLookback      time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrentQueries <= 0 {
		c.MaxConcurrentQueries = 6
	}
	if c.QueueLookback <= 0 {
		c.QueueLookback = time.Hour
	}
	if c.QueueDepthThreshold <= 0 {
		c.QueueDepthThreshold = 500
	}
	if c.SpikeMultiplier <= 0 {
		c.SpikeMultiplier = 3
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = time.Hour
	}
	if c.BaselineWindow <= 0 {
		c.BaselineWindow = 24 * time.Hour
	}
	if c.PatternLookback <= 0 {
		c.PatternLookback = 7 * 24 * time.Hour
	}
}

// AnalysisService orchestrates the tracker, the outbox store, and the pure
// analysis engine behind one facade.
type AnalysisService struct {
	logger    *slog.Logger
	cfg       Config
	tracker   IssueSource
	outbox    OutboxSource
	history   DiagnosisSink
	miner     PatternSource
	diagnoser *engine.Diagnoser
	latencies *utils.LatencyTracker
}

// NewAnalysisService constructs the facade. History and miner are optional;
// when absent, diagnoses are not persisted and pattern listing returns empty.
func NewAnalysisService(logger *slog.Logger, cfg Config, tracker IssueSource, outbox OutboxSource, history DiagnosisSink, miner PatternSource, diagnoser *engine.Diagnoser) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &AnalysisService{
		logger:    logger,
		cfg:       cfg,
		tracker:   tracker,
		outbox:    outbox,
		history:   history,
		miner:     miner,
		diagnoser: diagnoser,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// DiagnoseIssue fetches one issue from the tracker, composes its diagnosis,
// and classifies its event timestamp series. A failed timestamp fetch degrades
// to an unknown temporal verdict rather than failing the diagnosis.
func (s *AnalysisService) DiagnoseIssue(ctx context.Context, req models.DiagnoseRequest) (models.DiagnosisReport, error) {
	if req.IssueID == "" {
		return models.DiagnosisReport{}, fmt.Errorf("issue id is required")
	}

	start := time.Now()
	record, err := s.tracker.FetchIssue(ctx, req.Project, req.IssueID)
	if err != nil {
		metrics.ObserveDiagnosis(time.Since(start), metrics.OutcomeError)
		return models.DiagnosisReport{}, fmt.Errorf("fetch issue %s: %w", req.IssueID, err)
	}

	diagnosis := s.diagnoser.Diagnose(record, req.Environment)

	timestamps, err := s.tracker.FetchEventTimestamps(ctx, req.Project, req.IssueID)
	if err != nil {
		s.logger.Warn("event timestamps unavailable", slog.String("issue_id", req.IssueID), slog.Any("error", err))
		timestamps = nil
	}
	temporal := engine.ClassifyTemporal(timestamps)

	if s.history != nil {
		if err := s.history.SaveDiagnosis(ctx, diagnosis); err != nil {
			s.logger.Warn("diagnosis not persisted", slog.Any("error", err))
		}
	}

	duration := time.Since(start)
	s.latencies.Observe(duration)
	metrics.ObserveDiagnosis(duration, metrics.OutcomeSuccess)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("diagnosis latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}

	return models.DiagnosisReport{Diagnosis: diagnosis, Temporal: temporal}, nil
}

// CorrelateAcrossServices queries every watched service for issues sharing the
// request's trace or run identifier and merges the results into one timeline.
// Per-service query failures contribute empty issue sets; only a missing
// correlation key fails the call.
func (s *AnalysisService) CorrelateAcrossServices(ctx context.Context, req models.CorrelateRequest) (models.CorrelationResult, error) {
	if req.TraceID == "" && req.RunID == "" {
		return models.CorrelationResult{}, engine.ErrMissingCorrelationKey
	}

	services := req.Services
	if len(services) == 0 {
		services = s.cfg.WatchedServices
	}

	query := "trace:" + req.TraceID
	if req.TraceID == "" {
		query = "run:" + req.RunID
	}

	start := time.Now()
	perService := make([]models.ServiceIssues, len(services))
	sem := make(chan struct{}, s.cfg.MaxConcurrentQueries)
	var wg sync.WaitGroup
	for i, service := range services {
		wg.Add(1)
		go func(i int, service string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			issues, err := s.tracker.SearchIssues(ctx, service, query)
			if err != nil {
				s.logger.Warn("service query failed", slog.String("service", service), slog.Any("error", err))
				issues = nil
			}
			perService[i] = models.ServiceIssues{Service: service, Issues: issues}
		}(i, service)
	}
	wg.Wait()

	result, err := engine.Correlate(req.TraceID, req.RunID, perService)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveCorrelation(duration, metrics.OutcomeError)
		return models.CorrelationResult{}, err
	}
	metrics.ObserveCorrelation(duration, metrics.OutcomeSuccess)
	return result, nil
}

// CheckQueueHealth runs the four outbox aggregates concurrently and feeds the
// counters through the health analyzer. A failed aggregate contributes zeros
// and is logged; the check itself never fails on a query error.
func (s *AnalysisService) CheckQueueHealth(ctx context.Context, req models.QueueHealthRequest) models.QueueSnapshot {
	lookback := req.Lookback
	if lookback <= 0 {
		lookback = s.cfg.QueueLookback
	}
	since := time.Now().Add(-lookback)

	var counters models.QueueCounters
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		total, sent, err := s.outbox.VolumeCounts(ctx, since)
		if err != nil {
			s.logger.Warn("volume aggregate failed", slog.Any("error", err))
			return
		}
		counters.Total, counters.Sent = total, sent
	}()
	go func() {
		defer wg.Done()
		pending, err := s.outbox.PendingCount(ctx, since)
		if err != nil {
			s.logger.Warn("pending aggregate failed", slog.Any("error", err))
			return
		}
		counters.Pending = pending
	}()
	go func() {
		defer wg.Done()
		dead, err := s.outbox.DeadLetterCount(ctx, since)
		if err != nil {
			s.logger.Warn("dead-letter aggregate failed", slog.Any("error", err))
			return
		}
		counters.DeadLetter = dead
	}()
	go func() {
		defer wg.Done()
		leased, stuck, err := s.outbox.LeaseCounts(ctx, since)
		if err != nil {
			s.logger.Warn("lease aggregate failed", slog.Any("error", err))
			return
		}
		counters.CurrentlyLeased, counters.StuckLeases = leased, stuck
	}()
	wg.Wait()

	snapshot := engine.AnalyzeQueue(lookback, counters, models.QueueThresholds{
		QueueDepth: s.cfg.QueueDepthThreshold,
		DeadLetter: s.cfg.DeadLetterThreshold,
	})
	metrics.ObserveQueueCheck(len(snapshot.Anomalies), metrics.OutcomeSuccess)
	return snapshot
}

// DetectUsageAnomalies compares each account's recent token usage against its
// baseline window, normalized to the recent window's length.
func (s *AnalysisService) DetectUsageAnomalies(ctx context.Context, req models.UsageAnomalyRequest) ([]models.UsageComparison, error) {
	recentWindow := req.RecentWindow
	if recentWindow <= 0 {
		recentWindow = s.cfg.RecentWindow
	}
	baselineWindow := req.BaselineWindow
	if baselineWindow <= 0 {
		baselineWindow = s.cfg.BaselineWindow
	}
	if baselineWindow <= recentWindow {
		return nil, fmt.Errorf("baseline window must exceed the recent window")
	}

	now := time.Now()
	recent, err := s.outbox.UsageTotals(ctx, now.Add(-recentWindow), now)
	if err != nil {
		metrics.ObserveUsageScan(metrics.OutcomeError)
		return nil, fmt.Errorf("recent usage aggregate: %w", err)
	}
	baselineRaw, err := s.outbox.UsageTotals(ctx, now.Add(-baselineWindow), now.Add(-recentWindow))
	if err != nil {
		metrics.ObserveUsageScan(metrics.OutcomeError)
		return nil, fmt.Errorf("baseline usage aggregate: %w", err)
	}

	// Scale the baseline down to the recent window's length so the ratio
	// compares rates, not raw totals.
	scale := recentWindow.Seconds() / (baselineWindow - recentWindow).Seconds()
	baseline := make(map[string]float64, len(baselineRaw))
	for org, total := range baselineRaw {
		baseline[org] = total * scale
	}

	metrics.ObserveUsageScan(metrics.OutcomeSuccess)
	return engine.DetectUsageAnomalies(recent, baseline, s.cfg.SpikeMultiplier), nil
}

// ResolveIssue marks an issue resolved in the tracker.
func (s *AnalysisService) ResolveIssue(ctx context.Context, project, issueID string) error {
	if issueID == "" {
		return fmt.Errorf("issue id is required")
	}
	if err := s.tracker.UpdateIssueStatus(ctx, project, issueID, "resolved"); err != nil {
		return fmt.Errorf("resolve issue %s: %w", issueID, err)
	}
	return nil
}

// RetryDeadLetters requeues dead-lettered outbox events for delivery.
func (s *AnalysisService) RetryDeadLetters(ctx context.Context) (int64, error) {
	requeued, err := s.outbox.RequeueDeadLetters(ctx)
	if err != nil {
		return 0, fmt.Errorf("requeue dead letters: %w", err)
	}
	if requeued > 0 {
		s.logger.Info("dead letters requeued", slog.Int64("count", requeued))
	}
	return requeued, nil
}

// ListPatterns mines recurring per-service category patterns from stored
// diagnosis history.
func (s *AnalysisService) ListPatterns(ctx context.Context) ([]models.CategoryPattern, error) {
	if s.miner == nil {
		return nil, nil
	}
	return s.miner.Mine(ctx, s.cfg.PatternLookback)
}

// LatencyP95 returns the current p95 diagnosis latency.
func (s *AnalysisService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
