package patterns

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/signalstack/signal-engine/internal/models"
	"github.com/signalstack/signal-engine/internal/repo"
)

// historySource supplies the stored diagnosis rows mining runs over.
type historySource interface {
	ListRecent(ctx context.Context, since time.Time) ([]repo.HistoryRow, error)
}

// Miner aggregates diagnosis history into recurring per-service category
// patterns.
type Miner struct {
	history historySource
	logger  *slog.Logger
}

// NewMiner builds a miner over the diagnosis history store.
func NewMiner(history historySource, logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{history: history, logger: logger}
}

var severityRank = map[models.Severity]int{
	models.SeverityLow:      0,
	models.SeverityMedium:   1,
	models.SeverityHigh:     2,
	models.SeverityCritical: 3,
}

// Mine groups stored diagnoses by service and category over the lookback
// window. Prevalence is each group's share of the service's total diagnoses.
// Results are ordered by occurrence count, most frequent first.
func (m *Miner) Mine(ctx context.Context, lookback time.Duration) ([]models.CategoryPattern, error) {
	since := time.Now().Add(-lookback)
	rows, err := m.history.ListRecent(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load diagnosis history: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	type groupKey struct{ service, category string }
	groups := make(map[groupKey]*models.CategoryPattern)
	serviceTotals := make(map[string]int)

	for _, row := range rows {
		serviceTotals[row.Service]++
		key := groupKey{service: row.Service, category: row.Category}
		pattern, ok := groups[key]
		if !ok {
			pattern = &models.CategoryPattern{
				ID:       fmt.Sprintf("%s/%s", row.Service, row.Category),
				Service:  row.Service,
				Category: row.Category,
			}
			groups[key] = pattern
		}
		pattern.Occurrences++
		if row.CreatedAt.After(pattern.LastSeen) {
			pattern.LastSeen = row.CreatedAt
		}
		if severityRank[row.Severity] > severityRank[pattern.TopSeverity] {
			pattern.TopSeverity = row.Severity
		}
	}

	mined := make([]models.CategoryPattern, 0, len(groups))
	for _, pattern := range groups {
		if pattern.TopSeverity == "" {
			pattern.TopSeverity = models.SeverityLow
		}
		if total := serviceTotals[pattern.Service]; total > 0 {
			pattern.Prevalence = float64(pattern.Occurrences) / float64(total)
		}
		mined = append(mined, *pattern)
	}

	sort.Slice(mined, func(i, j int) bool {
		if mined[i].Occurrences != mined[j].Occurrences {
			return mined[i].Occurrences > mined[j].Occurrences
		}
		return mined[i].ID < mined[j].ID
	})

	m.logger.Debug("mined category patterns", "rows", len(rows), "patterns", len(mined))
	return mined, nil
}
