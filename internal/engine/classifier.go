package engine

import (
	"fmt"
	"strings"

	"github.com/signalstack/signal-engine/internal/models"
)

// builtinRule is one fallback classification family. Families are mutually
// exclusive by evaluation order: the first keyword hit wins.
type builtinRule struct {
	category    string
	keywords    []string
	rootCause   string
	suggestions []models.Suggestion
	related     []string
}

var builtinRules = []builtinRule{
	{
		category:  "network_error",
		keywords:  []string{"econnrefused", "econnreset", "connection refused", "connection reset", "getaddrinfo", "enotfound", "network", "socket hang up", "dns"},
		rootCause: "The service failed to reach a network dependency",
		suggestions: []models.Suggestion{
			{Action: "check_dependency", Description: "Verify the downstream host is reachable and its DNS record resolves", Confidence: models.ConfidenceHigh},
			{Action: "check_firewall", Description: "Confirm security groups and egress rules allow the connection", Confidence: models.ConfidenceMedium},
		},
		related: []string{"timeout", "rate_limit"},
	},
	{
		category:  "timeout",
		keywords:  []string{"timeout", "timed out", "deadline exceeded", "etimedout", "context canceled"},
		rootCause: "An operation exceeded its time budget",
		suggestions: []models.Suggestion{
			{Action: "raise_timeout", Description: "Measure the downstream latency and adjust the client timeout", Confidence: models.ConfidenceMedium},
			{Action: "add_retry", Description: "Wrap the call in a bounded retry with backoff", Confidence: models.ConfidenceMedium},
		},
		related: []string{"network_error"},
	},
	{
		category:  "auth_error",
		keywords:  []string{"unauthorized", "forbidden", "401", "403", "authentication", "invalid token", "expired token", "permission denied"},
		rootCause: "A request was rejected for missing or invalid credentials",
		suggestions: []models.Suggestion{
			{Action: "rotate_credentials", Description: "Check token expiry and rotate the credential if stale", Confidence: models.ConfidenceHigh},
			{Action: "verify_scopes", Description: "Confirm the credential carries the scopes the endpoint requires", Confidence: models.ConfidenceMedium},
		},
	},
	{
		category:  "rate_limit",
		keywords:  []string{"rate limit", "ratelimit", "429", "too many requests", "quota exceeded", "throttl"},
		rootCause: "The caller exceeded an upstream rate limit or quota",
		suggestions: []models.Suggestion{
			{Action: "add_backoff", Description: "Honor Retry-After and add jittered backoff to the client", Confidence: models.ConfidenceHigh},
			{Action: "batch_requests", Description: "Coalesce requests or raise the quota with the provider", Confidence: models.ConfidenceMedium},
		},
	},
	{
		category:  "database_error",
		keywords:  []string{"database", "deadlock", "sqlstate", "connection pool", "too many connections", "unique constraint", "duplicate key", "sqlite", "postgres"},
		rootCause: "A database operation failed",
		suggestions: []models.Suggestion{
			{Action: "inspect_query", Description: "Pull the failing statement from the stack trace and run it manually", Confidence: models.ConfidenceMedium},
			{Action: "check_pool", Description: "Compare pool saturation against the database connection ceiling", Confidence: models.ConfidenceMedium},
		},
		related: []string{"timeout"},
	},
	{
		category:  "validation_error",
		keywords:  []string{"validation", "invalid payload", "schema", "parse error", "unmarshal", "unexpected token", "missing required"},
		rootCause: "Input failed schema or format validation",
		suggestions: []models.Suggestion{
			{Action: "inspect_payload", Description: "Log the offending payload and diff it against the expected schema", Confidence: models.ConfidenceMedium},
			{Action: "tighten_contract", Description: "Version the schema or reject the producer change upstream", Confidence: models.ConfidenceLow},
		},
	},
	{
		category:  "memory_leak",
		keywords:  []string{"out of memory", "oom", "heap", "memory limit", "cannot allocate", "oomkilled"},
		rootCause: "The process exhausted its memory budget",
		suggestions: []models.Suggestion{
			{Action: "capture_profile", Description: "Capture a heap profile near the failure and inspect retained objects", Confidence: models.ConfidenceMedium},
			{Action: "raise_limit", Description: "Raise the memory limit as a stopgap while the leak is isolated", Confidence: models.ConfidenceLow},
		},
	},
}

var genericFallback = builtinRule{
	category:  "application_error",
	rootCause: "Unclassified application failure",
	suggestions: []models.Suggestion{
		{Action: "inspect_stack", Description: "Investigate the stack trace starting from the innermost application frame", Confidence: models.ConfidenceMedium},
		{Action: "reproduce", Description: "Replay the failing request locally with the recorded tags", Confidence: models.ConfidenceLow},
	},
}

// Classify maps an error record to a category, root cause, and remediation
// list. Operator patterns are scanned in declaration order and the first
// keyword match wins outright; built-in families only apply when no operator
// pattern matched. Known-issue matches are prepended independently of which
// category won.
func Classify(record models.ErrorRecord, patterns []models.DiagnosisPattern, knownIssues []models.KnownIssue) models.Classification {
	title := strings.ToLower(record.Title)
	culprit := strings.ToLower(record.Culprit)
	stack := strings.ToLower(strings.Join(record.StackTrace, "\n"))

	result := classifyFields(title, culprit, stack, patterns)

	// Known issues match against title and stack only, and each hit is
	// prepended, so the most recently matched issue ends up first.
	for _, issue := range knownIssues {
		if !keywordsMatch(issue.Keywords, title, stack) {
			continue
		}
		suggestion := models.Suggestion{
			Action:      "known_bug",
			Description: fmt.Sprintf("%s: %s", issue.Title, knownIssueAdvice(issue)),
			Confidence:  models.ConfidenceHigh,
		}
		result.Suggestions = append([]models.Suggestion{suggestion}, result.Suggestions...)
	}

	return result
}

func classifyFields(title, culprit, stack string, patterns []models.DiagnosisPattern) models.Classification {
	for _, pattern := range patterns {
		if keywordsMatch(pattern.Keywords, title, culprit, stack) {
			return models.Classification{
				Category:        pattern.Category,
				RootCause:       pattern.RootCause,
				Suggestions:     append([]models.Suggestion(nil), pattern.Suggestions...),
				RelatedPatterns: append([]string(nil), pattern.RelatedPatterns...),
			}
		}
	}

	for _, rule := range builtinRules {
		if keywordsMatch(rule.keywords, title, culprit, stack) {
			return classificationFromRule(rule)
		}
	}

	return classificationFromRule(genericFallback)
}

func classificationFromRule(rule builtinRule) models.Classification {
	return models.Classification{
		Category:        rule.category,
		RootCause:       rule.rootCause,
		Suggestions:     append([]models.Suggestion(nil), rule.suggestions...),
		RelatedPatterns: append([]string(nil), rule.related...),
	}
}

// keywordsMatch reports whether any keyword substring-matches any of the
// already-lowercased fields.
func keywordsMatch(keywords []string, fields ...string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		needle := strings.ToLower(kw)
		for _, field := range fields {
			if field == "" {
				continue
			}
			if strings.Contains(field, needle) {
				return true
			}
		}
	}
	return false
}

func knownIssueAdvice(issue models.KnownIssue) string {
	if issue.Fixed {
		return fmt.Sprintf("fixed upstream, upgrade past it (%s)", issue.Fix)
	}
	if issue.Fix != "" {
		return issue.Fix
	}
	return issue.Description
}
