package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/signalstack/signal-engine/internal/models"
)

// HistoryStore persists composed diagnoses for later pattern mining.
type HistoryStore struct {
	db *sql.DB
}

// HistoryRow is one stored diagnosis with the columns mining reads.
type HistoryRow struct {
	Service   string
	Category  string
	Severity  models.Severity
	CreatedAt time.Time
}

// NewHistoryStore wraps an opened database handle.
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// SaveDiagnosis records a diagnosis outcome. The full document is kept as
// JSON; service, category and severity are denormalised for aggregation.
func (s *HistoryStore) SaveDiagnosis(ctx context.Context, d models.Diagnosis) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal diagnosis: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO diagnoses (created_at, service, category, severity, diagnosis_json)
		 VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC(), d.Context.Service, d.Category, string(d.Severity), string(payload))
	if err != nil {
		return fmt.Errorf("insert diagnosis: %w", err)
	}
	return nil
}

// ListRecent returns stored diagnosis rows since the window start, newest
// first.
func (s *HistoryStore) ListRecent(ctx context.Context, since time.Time) ([]HistoryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service, category, severity, created_at FROM diagnoses
		 WHERE created_at >= ? ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var r HistoryRow
		var severity string
		if err := rows.Scan(&r.Service, &r.Category, &severity, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan diagnosis row: %w", err)
		}
		r.Severity = models.Severity(severity)
		out = append(out, r)
	}
	return out, rows.Err()
}
