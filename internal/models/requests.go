package models

import "time"

// DiagnoseRequest identifies the issue to diagnose. Environment is optional
// and copied into the diagnosis context verbatim.
type DiagnoseRequest struct {
	Project     string `json:"project"`
	IssueID     string `json:"issue_id"`
	Environment string `json:"environment,omitempty"`
}

// CorrelateRequest asks for a cross-service merge keyed by a trace and/or run
// identifier. At least one key is required.
type CorrelateRequest struct {
	TraceID  string   `json:"trace_id,omitempty"`
	RunID    string   `json:"run_id,omitempty"`
	Services []string `json:"services,omitempty"`
}

// QueueHealthRequest bounds the counter aggregation window.
type QueueHealthRequest struct {
	Lookback time.Duration `json:"lookback_ns,omitempty"`
}

// UsageAnomalyRequest bounds the recent and baseline comparison windows. The
// baseline aggregate is normalized to the recent window's length before the
// ratio check.
type UsageAnomalyRequest struct {
	RecentWindow   time.Duration `json:"recent_window_ns,omitempty"`
	BaselineWindow time.Duration `json:"baseline_window_ns,omitempty"`
}

// CategoryPattern is a mined recurrence of a diagnosis category for one
// service, derived from stored history.
type CategoryPattern struct {
	ID          string    `json:"id"`
	Service     string    `json:"service"`
	Category    string    `json:"category"`
	Occurrences int       `json:"occurrences"`
	Prevalence  float64   `json:"prevalence"`
	LastSeen    time.Time `json:"last_seen"`
	TopSeverity Severity  `json:"top_severity"`
}
