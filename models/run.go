// Package models holds the persistence-facing records of the run ledger.
package models

import (
	"time"

	"github.com/google/uuid"
)

// EstimationRun is the ledger record of one completed pipeline unit: the
// model tag, the configuration it ran under, the fingerprint of the
// training data and the tree's closing diagnostics.
type EstimationRun struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	Tag                 string    `db:"tag" json:"tag"`
	Target              int       `db:"target" json:"target"`
	Lags                int       `db:"lags" json:"lags"`
	MaxDepth            int       `db:"max_depth" json:"max_depth"`
	Capacity            int       `db:"capacity" json:"capacity"`
	TrainingFingerprint string    `db:"training_fingerprint" json:"training_fingerprint"`
	TrainedSteps        int64     `db:"trained_steps" json:"trained_steps"`
	LeafNodes           int       `db:"leaf_nodes" json:"leaf_nodes"`
	BranchNodes         int       `db:"branch_nodes" json:"branch_nodes"`
	FailedAllocs        int64     `db:"failed_allocs" json:"failed_allocs"`
	Rescalings          int64     `db:"rescalings" json:"rescalings"`
	ElapsedMs           int64     `db:"elapsed_ms" json:"elapsed_ms"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// RunScore is one replication's scored outcome within a run.
type RunScore struct {
	RunID       uuid.UUID `db:"run_id" json:"run_id"`
	Replication int       `db:"replication" json:"replication"`
	Raw         float64   `db:"raw" json:"raw"`
	Bias        float64   `db:"bias" json:"bias"`
	Corrected   float64   `db:"corrected" json:"corrected"`
	Steps       int       `db:"steps" json:"steps"`
}

// NewEstimationRun builds a run record with a fresh timestamp.
func NewEstimationRun(id uuid.UUID, tag string) *EstimationRun {
	return &EstimationRun{
		ID:        id,
		Tag:       tag,
		CreatedAt: time.Now().UTC(),
	}
}
