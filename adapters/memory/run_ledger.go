// Package memory is the session-local RunLedger used when no database is
// configured, and by tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"gomic/domain/core"
	"gomic/models"
	"gomic/ports"
)

// RunLedgerImpl keeps runs in process memory.
type RunLedgerImpl struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]*models.EstimationRun
	scores map[uuid.UUID][]models.RunScore
}

// NewRunLedger creates an empty in-memory ledger.
func NewRunLedger() ports.RunLedger {
	return &RunLedgerImpl{
		runs:   make(map[uuid.UUID]*models.EstimationRun),
		scores: make(map[uuid.UUID][]models.RunScore),
	}
}

// SaveRun stores a run and its scores.
func (l *RunLedgerImpl) SaveRun(_ context.Context, run *models.EstimationRun, scores []models.RunScore) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := *run
	l.runs[run.ID] = &stored
	l.scores[run.ID] = append([]models.RunScore(nil), scores...)
	return nil
}

// GetRun retrieves a run and its scores by ID.
func (l *RunLedgerImpl) GetRun(_ context.Context, id uuid.UUID) (*models.EstimationRun, []models.RunScore, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	run, ok := l.runs[id]
	if !ok {
		return nil, nil, core.NewNotFoundError("run", id.String())
	}
	out := *run
	return &out, append([]models.RunScore(nil), l.scores[id]...), nil
}

// ListRuns returns runs newest first.
func (l *RunLedgerImpl) ListRuns(_ context.Context, limit int) ([]*models.EstimationRun, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	runs := make([]*models.EstimationRun, 0, len(l.runs))
	for _, run := range l.runs {
		out := *run
		runs = append(runs, &out)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
