// Package postgres persists the run ledger in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gomic/domain/core"
	"gomic/models"
	"gomic/ports"
)

// RunRepositoryImpl implements RunLedger for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunLedger {
	return &RunRepositoryImpl{db: db}
}

// Connect opens and pings a PostgreSQL connection.
func Connect(url string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// SaveRun stores a run and its replication scores in one transaction.
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, run *models.EstimationRun, scores []models.RunScore) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO estimation_runs
			(id, tag, target, lags, max_depth, capacity, training_fingerprint,
			 trained_steps, leaf_nodes, branch_nodes, failed_allocs, rescalings,
			 elapsed_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, run.ID, run.Tag, run.Target, run.Lags, run.MaxDepth, run.Capacity,
		run.TrainingFingerprint, run.TrainedSteps, run.LeafNodes, run.BranchNodes,
		run.FailedAllocs, run.Rescalings, run.ElapsedMs, run.CreatedAt)
	if err != nil {
		return err
	}

	for _, s := range scores {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_scores (run_id, replication, raw, bias, corrected, steps)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.RunID, s.Replication, s.Raw, s.Bias, s.Corrected, s.Steps)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run and its scores by ID.
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id uuid.UUID) (*models.EstimationRun, []models.RunScore, error) {
	var run models.EstimationRun
	err := r.db.GetContext(ctx, &run, `
		SELECT id, tag, target, lags, max_depth, capacity, training_fingerprint,
		       trained_steps, leaf_nodes, branch_nodes, failed_allocs, rescalings,
		       elapsed_ms, created_at
		FROM estimation_runs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, core.NewNotFoundError("run", id.String())
	}
	if err != nil {
		return nil, nil, err
	}

	var scores []models.RunScore
	err = r.db.SelectContext(ctx, &scores, `
		SELECT run_id, replication, raw, bias, corrected, steps
		FROM run_scores
		WHERE run_id = $1
		ORDER BY replication
	`, id)
	if err != nil {
		return nil, nil, err
	}

	return &run, scores, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]*models.EstimationRun, error) {
	query := `
		SELECT id, tag, target, lags, max_depth, capacity, training_fingerprint,
		       trained_steps, leaf_nodes, branch_nodes, failed_allocs, rescalings,
		       elapsed_ms, created_at
		FROM estimation_runs
		ORDER BY created_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	var runs []*models.EstimationRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, err
	}
	return runs, nil
}
