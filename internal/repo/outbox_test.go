package repo

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOutboxCounters(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewOutboxStore(db)

	now := time.Now()
	seed := []OutboxEvent{
		{OrgID: "org-a", Status: "sent", Tokens: 100, CreatedAt: now.Add(-10 * time.Minute)},
		{OrgID: "org-a", Status: "pending", Tokens: 50, CreatedAt: now.Add(-5 * time.Minute)},
		{OrgID: "org-b", Status: "pending", Tokens: 25, CreatedAt: now.Add(-4 * time.Minute),
			LeaseExpires: sql.NullTime{Time: now.Add(-time.Minute), Valid: true}},
		{OrgID: "org-b", Status: "dead_letter", Attempts: 5, Tokens: 10, CreatedAt: now.Add(-3 * time.Minute)},
		{OrgID: "org-c", Status: "sent", Tokens: 5, CreatedAt: now.Add(-2 * time.Hour)},
	}
	for _, e := range seed {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	since := now.Add(-time.Hour)
	total, sent, err := store.VolumeCounts(ctx, since)
	if err != nil {
		t.Fatalf("volume counts: %v", err)
	}
	if total != 4 || sent != 1 {
		t.Fatalf("volume counts = (%d, %d), want (4, 1)", total, sent)
	}

	pending, err := store.PendingCount(ctx, since)
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if pending != 2 {
		t.Fatalf("pending = %d, want 2", pending)
	}

	dead, err := store.DeadLetterCount(ctx, since)
	if err != nil {
		t.Fatalf("dead letter count: %v", err)
	}
	if dead != 1 {
		t.Fatalf("dead letters = %d, want 1", dead)
	}

	leased, stuck, err := store.LeaseCounts(ctx, since)
	if err != nil {
		t.Fatalf("lease counts: %v", err)
	}
	if leased != 0 || stuck != 1 {
		t.Fatalf("lease counts = (%d, %d), want (0, 1)", leased, stuck)
	}
}

func TestOutboxUsageTotals(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewOutboxStore(db)

	now := time.Now()
	seed := []OutboxEvent{
		{OrgID: "org-a", Status: "sent", Tokens: 100, CreatedAt: now.Add(-30 * time.Minute)},
		{OrgID: "org-a", Status: "sent", Tokens: 200, CreatedAt: now.Add(-20 * time.Minute)},
		{OrgID: "org-b", Status: "sent", Tokens: 40, CreatedAt: now.Add(-10 * time.Minute)},
		{OrgID: "org-a", Status: "sent", Tokens: 999, CreatedAt: now.Add(-3 * time.Hour)},
	}
	for _, e := range seed {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	totals, err := store.UsageTotals(ctx, now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("usage totals: %v", err)
	}
	if totals["org-a"] != 300 {
		t.Fatalf("org-a tokens = %v, want 300", totals["org-a"])
	}
	if totals["org-b"] != 40 {
		t.Fatalf("org-b tokens = %v, want 40", totals["org-b"])
	}
}

func TestRequeueDeadLetters(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewOutboxStore(db)

	now := time.Now()
	seed := []OutboxEvent{
		{OrgID: "org-a", Status: "dead_letter", Attempts: 5, CreatedAt: now},
		{OrgID: "org-b", Status: "dead_letter", Attempts: 3, CreatedAt: now},
		{OrgID: "org-c", Status: "sent", CreatedAt: now},
	}
	for _, e := range seed {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	requeued, err := store.RequeueDeadLetters(ctx)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if requeued != 2 {
		t.Fatalf("requeued = %d, want 2", requeued)
	}

	dead, err := store.DeadLetterCount(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("dead letter count: %v", err)
	}
	if dead != 0 {
		t.Fatalf("dead letters after requeue = %d, want 0", dead)
	}
	pending, err := store.PendingCount(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if pending != 2 {
		t.Fatalf("pending after requeue = %d, want 2", pending)
	}
}
