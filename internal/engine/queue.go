package engine

import (
	"fmt"
	"time"

	"github.com/signalstack/signal-engine/internal/models"
)

// AnalyzeQueue turns aggregate outbox counters into a health verdict and a
// ranked remediation list. All four anomaly checks run; they are appended in
// a fixed order and never short-circuit each other.
func AnalyzeQueue(window time.Duration, counters models.QueueCounters, thresholds models.QueueThresholds) models.QueueSnapshot {
	anomalies := make([]string, 0, 4)
	recommendations := make([]string, 0, 4)

	if counters.Pending > thresholds.QueueDepth {
		anomalies = append(anomalies, fmt.Sprintf("pending backlog %d exceeds queue depth threshold %d", counters.Pending, thresholds.QueueDepth))
		recommendations = append(recommendations, "Raise the delivery batch size or shorten the flush interval to drain the backlog")
	}
	if counters.DeadLetter > thresholds.DeadLetter {
		anomalies = append(anomalies, fmt.Sprintf("%d events in the dead-letter state", counters.DeadLetter))
		recommendations = append(recommendations, "Inspect dead-letter payloads and requeue them with the retry operation")
	}
	if counters.StuckLeases > 0 {
		anomalies = append(anomalies, fmt.Sprintf("%d leases expired without completion", counters.StuckLeases))
		recommendations = append(recommendations, "Restart the delivery workers; their leases expired mid-flight")
	}
	if counters.Sent == 0 && counters.Total > 0 {
		anomalies = append(anomalies, fmt.Sprintf("%d events created in the window but zero delivered", counters.Total))
		recommendations = append(recommendations, "Verify the metering backend is reachable; nothing has been delivered this window")
	}

	healthy := len(anomalies) == 0
	if healthy {
		recommendations = []string{"Queue is healthy; no action needed"}
	}

	return models.QueueSnapshot{
		Window:          window,
		Counters:        counters,
		Anomalies:       anomalies,
		Healthy:         healthy,
		Recommendations: recommendations,
	}
}
