// Package migrations creates the run-ledger schema.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS estimation_runs (
		id UUID PRIMARY KEY,
		tag TEXT NOT NULL,
		target INTEGER NOT NULL,
		lags INTEGER NOT NULL,
		max_depth INTEGER NOT NULL,
		capacity INTEGER NOT NULL,
		training_fingerprint TEXT NOT NULL,
		trained_steps BIGINT NOT NULL DEFAULT 0,
		leaf_nodes INTEGER NOT NULL DEFAULT 0,
		branch_nodes INTEGER NOT NULL DEFAULT 0,
		failed_allocs BIGINT NOT NULL DEFAULT 0,
		rescalings BIGINT NOT NULL DEFAULT 0,
		elapsed_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS run_scores (
		run_id UUID NOT NULL REFERENCES estimation_runs(id) ON DELETE CASCADE,
		replication INTEGER NOT NULL,
		raw DOUBLE PRECISION NOT NULL,
		bias DOUBLE PRECISION NOT NULL,
		corrected DOUBLE PRECISION NOT NULL,
		steps INTEGER NOT NULL,
		PRIMARY KEY (run_id, replication)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_estimation_runs_tag ON estimation_runs(tag)`,
	`CREATE INDEX IF NOT EXISTS idx_estimation_runs_created_at ON estimation_runs(created_at DESC)`,
}

// Up creates all ledger tables if they do not exist.
func Up(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply ledger migration %d: %w", i, err)
		}
	}
	return nil
}
