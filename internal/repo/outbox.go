package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// OutboxStore runs relational aggregates over the metering outbox.
type OutboxStore struct {
	db *sql.DB
}

// OutboxEvent is a single usage event awaiting delivery. Used by seeding and
// tests; the delivery workers own the write path in production.
type OutboxEvent struct {
	OrgID        string
	Status       string
	Attempts     int
	Tokens       float64
	CreatedAt    time.Time
	SentAt       sql.NullTime
	LeaseExpires sql.NullTime
}

// NewOutboxStore wraps an opened database handle.
func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

// VolumeCounts returns the total and delivered event counts since the window
// start.
func (s *OutboxStore) VolumeCounts(ctx context.Context, since time.Time) (total, sent int64, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(status = 'sent'), 0) FROM outbox_events WHERE created_at >= ?`, since)
	if err := row.Scan(&total, &sent); err != nil {
		return 0, 0, fmt.Errorf("volume counts: %w", err)
	}
	return total, sent, nil
}

// PendingCount returns events still awaiting delivery in the window.
func (s *OutboxStore) PendingCount(ctx context.Context, since time.Time) (int64, error) {
	var pending int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_events WHERE status = 'pending' AND created_at >= ?`, since).Scan(&pending)
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return pending, nil
}

// DeadLetterCount returns events that exhausted their delivery attempts.
func (s *OutboxStore) DeadLetterCount(ctx context.Context, since time.Time) (int64, error) {
	var dead int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_events WHERE status = 'dead_letter' AND created_at >= ?`, since).Scan(&dead)
	if err != nil {
		return 0, fmt.Errorf("dead letter count: %w", err)
	}
	return dead, nil
}

// LeaseCounts returns events currently claimed by a worker and events whose
// claim expired without completion.
func (s *OutboxStore) LeaseCounts(ctx context.Context, since time.Time) (leased, stuck int64, err error) {
	now := time.Now()
	row := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(lease_expires_at > ?), 0),
			COALESCE(SUM(lease_expires_at <= ?), 0)
		FROM outbox_events
		WHERE status = 'pending' AND lease_expires_at IS NOT NULL AND created_at >= ?`,
		now, now, since)
	if err := row.Scan(&leased, &stuck); err != nil {
		return 0, 0, fmt.Errorf("lease counts: %w", err)
	}
	return leased, stuck, nil
}

// UsageTotals sums delivered tokens per org over [start, end).
func (s *OutboxStore) UsageTotals(ctx context.Context, start, end time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT org_id, SUM(tokens) FROM outbox_events
		 WHERE created_at >= ? AND created_at < ?
		 GROUP BY org_id`, start, end)
	if err != nil {
		return nil, fmt.Errorf("usage totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var org string
		var tokens float64
		if err := rows.Scan(&org, &tokens); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		totals[org] = tokens
	}
	return totals, rows.Err()
}

// RequeueDeadLetters resets dead-letter events for another delivery round and
// returns how many were requeued.
func (s *OutboxStore) RequeueDeadLetters(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = 'pending', attempts = 0, lease_expires_at = NULL
		 WHERE status = 'dead_letter'`)
	if err != nil {
		return 0, fmt.Errorf("requeue dead letters: %w", err)
	}
	return result.RowsAffected()
}

// Insert adds an event row. Exposed for seeding and tests.
func (s *OutboxStore) Insert(ctx context.Context, event OutboxEvent) error {
	if event.Status == "" {
		event.Status = "pending"
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox_events (org_id, status, attempts, tokens, created_at, sent_at, lease_expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.OrgID, event.Status, event.Attempts, event.Tokens, event.CreatedAt, event.SentAt, event.LeaseExpires)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
