package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomic/domain/core"
	"gomic/models"
)

func sampleRun(tag string, createdAt time.Time) (*models.EstimationRun, []models.RunScore) {
	run := models.NewEstimationRun(uuid.New(), tag)
	run.CreatedAt = createdAt
	run.Lags = 1
	run.Capacity = 1024
	scores := []models.RunScore{
		{RunID: run.ID, Replication: 0, Raw: 10, Bias: 0.5, Corrected: 9.5, Steps: 100},
		{RunID: run.ID, Replication: 1, Raw: 11, Bias: 0.5, Corrected: 10.5, Steps: 100},
	}
	return run, scores
}

func TestSaveAndGetRun(t *testing.T) {
	ledger := NewRunLedger()
	ctx := context.Background()

	run, scores := sampleRun("model-a", time.Now().UTC())
	require.NoError(t, ledger.SaveRun(ctx, run, scores))

	got, gotScores, err := ledger.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Tag, got.Tag)
	assert.Len(t, gotScores, 2)
	assert.Equal(t, scores[1].Corrected, gotScores[1].Corrected)
}

func TestGetMissingRun(t *testing.T) {
	ledger := NewRunLedger()
	_, _, err := ledger.GetRun(context.Background(), uuid.New())
	assert.True(t, core.IsNotFoundError(err))
}

func TestListRunsNewestFirst(t *testing.T) {
	ledger := NewRunLedger()
	ctx := context.Background()
	base := time.Now().UTC()

	old, _ := sampleRun("old", base.Add(-time.Hour))
	mid, _ := sampleRun("mid", base.Add(-time.Minute))
	fresh, _ := sampleRun("fresh", base)
	require.NoError(t, ledger.SaveRun(ctx, old, nil))
	require.NoError(t, ledger.SaveRun(ctx, mid, nil))
	require.NoError(t, ledger.SaveRun(ctx, fresh, nil))

	runs, err := ledger.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "fresh", runs[0].Tag)
	assert.Equal(t, "old", runs[2].Tag)

	limited, err := ledger.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, "fresh", limited[0].Tag)
}

func TestStoredRunIsACopy(t *testing.T) {
	ledger := NewRunLedger()
	ctx := context.Background()

	run, scores := sampleRun("mutable", time.Now().UTC())
	require.NoError(t, ledger.SaveRun(ctx, run, scores))

	run.Tag = "changed"
	scores[0].Corrected = -1

	got, gotScores, err := ledger.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "mutable", got.Tag)
	assert.Equal(t, 9.5, gotScores[0].Corrected)
}
