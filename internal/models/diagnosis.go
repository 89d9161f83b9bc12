package models

// Severity captures impact levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Confidence grades how strongly a suggestion applies.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Tag is a key/value pair attached to an error record by the tracker.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Breadcrumb is a single entry from the event's breadcrumb trail.
type Breadcrumb struct {
	Timestamp string `json:"timestamp"`
	Category  string `json:"category"`
	Message   string `json:"message"`
}

// ErrorRecord is the raw input to classification, built fresh per call and
// never mutated. Timestamps are RFC3339 strings as delivered by the tracker;
// unparsable values degrade to "age unknown" downstream.
type ErrorRecord struct {
	Title       string       `json:"title"`
	Culprit     string       `json:"culprit"`
	Level       string       `json:"level"`
	Count       int          `json:"count"`
	UserCount   int          `json:"user_count"`
	FirstSeen   string       `json:"first_seen"`
	LastSeen    string       `json:"last_seen"`
	Project     string       `json:"project"`
	Tags        []Tag        `json:"tags,omitempty"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs,omitempty"`
	StackTrace  []string     `json:"stack_trace,omitempty"`
}

// Suggestion is a single remediation step attached to a diagnosis.
type Suggestion struct {
	Action      string     `json:"action" yaml:"action"`
	Description string     `json:"description" yaml:"description"`
	Confidence  Confidence `json:"confidence" yaml:"confidence"`
	Command     string     `json:"command,omitempty" yaml:"command,omitempty"`
}

// DiagnosisPattern is an operator-supplied classification rule. Patterns are
// evaluated in declaration order; the first keyword match wins outright.
type DiagnosisPattern struct {
	Category        string       `json:"category" yaml:"category"`
	Keywords        []string     `json:"keywords" yaml:"keywords"`
	RootCause       string       `json:"root_cause" yaml:"root_cause"`
	Suggestions     []Suggestion `json:"suggestions" yaml:"suggestions"`
	RelatedPatterns []string     `json:"related_patterns,omitempty" yaml:"related_patterns,omitempty"`
}

// KnownIssue records a previously identified bug that keyword-matches new
// events regardless of which category wins.
type KnownIssue struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Description string   `json:"description" yaml:"description"`
	Fix         string   `json:"fix" yaml:"fix"`
	Fixed       bool     `json:"fixed" yaml:"fixed"`
}

// Classification is the classifier's verdict before severity and context are
// attached.
type Classification struct {
	Category        string       `json:"category"`
	RootCause       string       `json:"root_cause"`
	Suggestions     []Suggestion `json:"suggestions"`
	RelatedPatterns []string     `json:"related_patterns,omitempty"`
}

// ServiceInfo describes a service's place in the deployment topology.
type ServiceInfo struct {
	Repo      string `json:"repo" yaml:"repo"`
	Runtime   string `json:"runtime" yaml:"runtime"`
	Framework string `json:"framework" yaml:"framework"`
}

// DiagnosisContext carries the resolved service/environment facts for a
// diagnosis.
type DiagnosisContext struct {
	Service     string  `json:"service"`
	Repo        string  `json:"repo"`
	Runtime     string  `json:"runtime"`
	Environment string  `json:"environment"`
	EventCount  int     `json:"event_count"`
	UserCount   int     `json:"user_count"`
	AgeDays     float64 `json:"age_days"`
	AgeKnown    bool    `json:"age_known"`
	Recent      bool    `json:"recent"`
}

// Diagnosis is the composed judgment for a single error record. Computed once
// per request; persistence is the caller's concern.
type Diagnosis struct {
	Category        string           `json:"category"`
	Severity        Severity         `json:"severity"`
	Summary         string           `json:"summary"`
	RootCause       string           `json:"root_cause"`
	Context         DiagnosisContext `json:"context"`
	Suggestions     []Suggestion     `json:"suggestions"`
	RelatedPatterns []string         `json:"related_patterns,omitempty"`
	NextSteps       []string         `json:"next_steps"`
	Breadcrumbs     []Breadcrumb     `json:"breadcrumbs,omitempty"`
}

// DiagnosisReport bundles the composed diagnosis with the temporal verdict
// over the issue's event timestamps.
type DiagnosisReport struct {
	Diagnosis Diagnosis       `json:"diagnosis"`
	Temporal  TemporalVerdict `json:"temporal"`
}
