package repository

import (
	"context"
	"fmt"
)

const (
	tableRuns    = "extraction_runs"
	tableRecords = "page_records"
)

// Timestamps are unix milliseconds so both dialects scan them the same way.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS extraction_runs (
		id            TEXT PRIMARY KEY,
		source_path   TEXT NOT NULL,
		filename      TEXT NOT NULL,
		content_hash  TEXT NOT NULL,
		source_type   TEXT NOT NULL DEFAULT '',
		method        TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		pages         INTEGER NOT NULL DEFAULT 0,
		records       INTEGER NOT NULL DEFAULT 0,
		warnings      TEXT NOT NULL DEFAULT '[]',
		error_message TEXT,
		started_at    BIGINT NOT NULL,
		finished_at   BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS extraction_runs_hash_status_idx ON extraction_runs (content_hash, status)`,
	`CREATE TABLE IF NOT EXISTS page_records (
		run_id      TEXT NOT NULL REFERENCES extraction_runs (id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		page_index  INTEGER NOT NULL,
		record_json TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if err := db.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
