// Package ports defines the interfaces between the estimation engine and
// its adapters: run persistence and dataset loading.
package ports

import (
	"context"

	"github.com/google/uuid"

	"gomic/models"
)

// RunLedger persists estimation runs and their per-replication scores.
// Implementations: adapters/postgres (durable) and adapters/memory
// (session-local fallback when no database is configured).
type RunLedger interface {
	// SaveRun stores a run together with its replication scores.
	SaveRun(ctx context.Context, run *models.EstimationRun, scores []models.RunScore) error

	// GetRun retrieves a run and its scores by ID.
	GetRun(ctx context.Context, id uuid.UUID) (*models.EstimationRun, []models.RunScore, error)

	// ListRuns returns the most recent runs, newest first. limit <= 0
	// means no limit.
	ListRuns(ctx context.Context, limit int) ([]*models.EstimationRun, error)
}
