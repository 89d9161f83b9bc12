package engine

import (
	"strings"
	"time"

	"github.com/signalstack/signal-engine/internal/models"
)

// recentWindow is the recency bound used by the critical rule. Deliberately a
// fixed constant rather than configuration.
const recentWindow = time.Hour

// ScoreSeverity grades an issue from level, volume, blast radius, and
// recency. Rules are evaluated in order; the first match wins.
func ScoreSeverity(level string, count, userCount int, lastSeen time.Time) models.Severity {
	return scoreSeverityAt(level, count, userCount, lastSeen, time.Now())
}

func scoreSeverityAt(level string, count, userCount int, lastSeen time.Time, now time.Time) models.Severity {
	level = strings.ToLower(level)
	recent := isRecent(lastSeen, now)

	switch {
	case level == "fatal" || count > 1000 || (count > 100 && recent):
		return models.SeverityCritical
	case level == "error" && (count > 100 || userCount > 10):
		return models.SeverityHigh
	case level == "error" && count > 10:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func isRecent(lastSeen, now time.Time) bool {
	if lastSeen.IsZero() {
		return false
	}
	return now.Sub(lastSeen) < recentWindow
}
