package models

import "time"

// QueueCounters are the aggregate outbox counts over a lookback window.
type QueueCounters struct {
	Total           int64 `json:"total"`
	Pending         int64 `json:"pending"`
	Sent            int64 `json:"sent"`
	DeadLetter      int64 `json:"dead_letter"`
	CurrentlyLeased int64 `json:"currently_leased"`
	StuckLeases     int64 `json:"stuck_leases"`
}

// QueueThresholds bound the anomaly checks of the queue health analyzer. The
// dead-letter bound defaults to zero: any dead-lettered event is anomalous.
type QueueThresholds struct {
	QueueDepth int64 `json:"queue_depth"`
	DeadLetter int64 `json:"dead_letter"`
}

// QueueSnapshot is the health verdict over the outbox counters.
type QueueSnapshot struct {
	Window          time.Duration `json:"window_ns"`
	Counters        QueueCounters `json:"counters"`
	Anomalies       []string      `json:"anomalies"`
	Healthy         bool          `json:"healthy"`
	Recommendations []string      `json:"recommendations"`
}

// UsageAnomalyKind classifies a flagged account.
type UsageAnomalyKind string

const (
	UsageSpike UsageAnomalyKind = "SPIKE"
	UsageDrop  UsageAnomalyKind = "DROP"
)

// UsageComparison compares an account's recent usage against its normalized
// baseline. Ratio is zero when the baseline is absent or the account dropped.
type UsageComparison struct {
	OrgID       string           `json:"org_id"`
	Recent      float64          `json:"recent"`
	Baseline    float64          `json:"baseline"`
	Ratio       float64          `json:"ratio"`
	Kind        UsageAnomalyKind `json:"kind"`
	Description string           `json:"description"`
}
