package models

import "time"

// TemporalPattern enumerates the shapes a timestamp series can take.
type TemporalPattern string

const (
	PatternBurst      TemporalPattern = "burst"
	PatternSteady     TemporalPattern = "steady"
	PatternRegression TemporalPattern = "regression"
	PatternSporadic   TemporalPattern = "sporadic"
	PatternUnknown    TemporalPattern = "unknown"
)

// TemporalVerdict is the outcome of classifying an event timestamp series.
// Description embeds the measured statistic backing the verdict.
type TemporalVerdict struct {
	Pattern     TemporalPattern `json:"pattern"`
	Description string          `json:"description"`
}

// CorrelatedIssue is one tracked issue surfaced by a per-service query.
type CorrelatedIssue struct {
	ID       string    `json:"id"`
	Service  string    `json:"service"`
	Title    string    `json:"title"`
	Level    string    `json:"level"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
	Link     string    `json:"link,omitempty"`
}

// ServiceIssues is the result of a single watched-service query. A failed
// query contributes an empty issue set, never an error.
type ServiceIssues struct {
	Service string            `json:"service"`
	Issues  []CorrelatedIssue `json:"issues"`
}

// CorrelationResult merges per-service issue sets into one timeline keyed by
// a shared trace or run identifier.
type CorrelationResult struct {
	TraceID          string            `json:"trace_id,omitempty"`
	RunID            string            `json:"run_id,omitempty"`
	TotalIssues      int               `json:"total_issues"`
	AffectedServices []string          `json:"affected_services"`
	CascadeDetected  bool              `json:"cascade_detected"`
	Timeline         []CorrelatedIssue `json:"timeline"`
	Analysis         string            `json:"analysis"`
}
