package repo

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS outbox_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	org_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	tokens REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	sent_at DATETIME,
	lease_expires_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_events(status);
CREATE INDEX IF NOT EXISTS idx_outbox_created ON outbox_events(created_at);
CREATE INDEX IF NOT EXISTS idx_outbox_org ON outbox_events(org_id, created_at);

CREATE TABLE IF NOT EXISTS diagnoses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME NOT NULL,
	service TEXT NOT NULL,
	category TEXT NOT NULL,
	severity TEXT NOT NULL,
	diagnosis_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diagnoses_created ON diagnoses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_diagnoses_service ON diagnoses(service);
`

// OpenDB opens (or creates) the engine's sqlite database and applies the
// schema. WAL keeps readers from blocking the delivery workers.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}
