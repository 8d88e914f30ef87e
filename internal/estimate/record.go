package estimate

import (
	"github.com/google/uuid"

	"gomic/models"
)

// LedgerRecord converts a pipeline result into its run-ledger rows.
func (r *Result) LedgerRecord() (*models.EstimationRun, []models.RunScore) {
	id, err := uuid.Parse(r.RunID.String())
	if err != nil {
		id = uuid.New()
	}

	run := models.NewEstimationRun(id, r.Tag.String())
	run.Target = r.Target
	run.Lags = r.Snapshot.Lags
	run.MaxDepth = r.Snapshot.MaxDepth
	run.Capacity = r.Snapshot.Capacity
	run.TrainingFingerprint = string(r.TrainingData)
	run.TrainedSteps = int64(r.Snapshot.TrainedSteps)
	run.LeafNodes = r.Snapshot.LeafNodes
	run.BranchNodes = r.Snapshot.BranchNodes
	run.FailedAllocs = int64(r.Snapshot.FailedAllocs)
	run.Rescalings = int64(r.Snapshot.Rescalings)
	run.ElapsedMs = r.Elapsed.Milliseconds()

	scores := make([]models.RunScore, len(r.Replications))
	for i, rep := range r.Replications {
		scores[i] = models.RunScore{
			RunID:       id,
			Replication: rep.Replication,
			Raw:         rep.Raw,
			Bias:        rep.Bias,
			Corrected:   rep.Corrected,
			Steps:       rep.Steps,
		}
	}
	return run, scores
}
