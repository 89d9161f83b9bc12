package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/signalstack/signal-engine/internal/models"
)

// ErrMissingCorrelationKey signals a usage error: neither a trace nor a run
// identifier was supplied.
var ErrMissingCorrelationKey = errors.New("correlation requires a trace_id or run_id")

// Correlate merges per-service query results keyed by a shared identifier
// into one de-duplicated, most-recent-first timeline and a cascade verdict.
// The caller has already executed the per-service queries; a failed query is
// expected to arrive here as an empty issue set.
func Correlate(traceID, runID string, perService []models.ServiceIssues) (models.CorrelationResult, error) {
	if traceID == "" && runID == "" {
		return models.CorrelationResult{}, ErrMissingCorrelationKey
	}

	// First occurrence wins: an issue surfaced by two service queries keeps
	// its original service attribution.
	seen := make(map[string]struct{})
	timeline := make([]models.CorrelatedIssue, 0)
	for _, svc := range perService {
		for _, issue := range svc.Issues {
			if _, dup := seen[issue.ID]; dup {
				continue
			}
			seen[issue.ID] = struct{}{}
			if issue.Service == "" {
				issue.Service = svc.Service
			}
			timeline = append(timeline, issue)
		}
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].LastSeen.After(timeline[j].LastSeen)
	})

	services := distinctServices(timeline)
	result := models.CorrelationResult{
		TraceID:          traceID,
		RunID:            runID,
		TotalIssues:      len(timeline),
		AffectedServices: services,
		CascadeDetected:  len(services) > 1,
		Timeline:         timeline,
	}
	result.Analysis = analysisText(result)
	return result, nil
}

func distinctServices(timeline []models.CorrelatedIssue) []string {
	seen := make(map[string]struct{})
	services := make([]string, 0)
	for _, issue := range timeline {
		if issue.Service == "" {
			continue
		}
		if _, ok := seen[issue.Service]; ok {
			continue
		}
		seen[issue.Service] = struct{}{}
		services = append(services, issue.Service)
	}
	return services
}

func analysisText(result models.CorrelationResult) string {
	key := result.TraceID
	if key == "" {
		key = result.RunID
	}

	switch {
	case result.TotalIssues == 0:
		return fmt.Sprintf("No issues found for %s across the watched services.", key)
	case result.CascadeDetected:
		oldest := result.Timeline[len(result.Timeline)-1]
		return fmt.Sprintf(
			"Cascade detected: %d issues across %s. Start with the oldest issue (%s in %s); the later failures are likely downstream of it.",
			result.TotalIssues,
			strings.Join(result.AffectedServices, ", "),
			oldest.ID,
			oldest.Service,
		)
	default:
		service := "one service"
		if len(result.AffectedServices) == 1 {
			service = result.AffectedServices[0]
		}
		return fmt.Sprintf("%d issue(s) isolated to %s; no cross-service cascade.", result.TotalIssues, service)
	}
}
