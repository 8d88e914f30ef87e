// Package estimate orchestrates full MIC estimation pipelines: quantize,
// select a bit permutation, train a context tree and score held-out
// replications. One pipeline unit is one (model, conditioning order) pair;
// units are independent and run embarrassingly parallel, each owning its
// own tree and arena.
package estimate

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"gomic/domain/core"
	"gomic/domain/mic"
	"gomic/internal"
	"gomic/internal/ctw"
	"gomic/internal/errors"
	"gomic/internal/permute"
	"gomic/internal/quantize"
)

// Unit describes one estimation pipeline: a candidate model's simulated
// training data plus the quantization and conditioning configuration.
type Unit struct {
	Tag              core.ModelTag
	Training         [][]float64
	QSpec            mic.QuantizationSpec
	CSpec            mic.ContextSpec
	HighPriorityBits []int
}

// ReplicationScore is the scored outcome of one held-out replication.
type ReplicationScore struct {
	Replication int     `json:"replication"`
	Raw         float64 `json:"raw"`
	Bias        float64 `json:"bias"`
	Corrected   float64 `json:"corrected"`
	Steps       int     `json:"steps"`
}

// Result is the outcome of one pipeline unit.
type Result struct {
	RunID        core.RunID              `json:"run_id"`
	Tag          core.ModelTag           `json:"tag"`
	Target       int                     `json:"target"`
	Permutation  mic.BitPermutation      `json:"permutation"`
	Tree         *ctw.Tree               `json:"-"`
	Snapshot     ctw.Snapshot            `json:"snapshot"`
	Replications []ReplicationScore      `json:"replications"`
	TrainingData core.DatasetFingerprint `json:"training_fingerprint"`
	Elapsed      time.Duration           `json:"elapsed"`
}

// CorrectedScores returns the per-replication corrected MIC values in
// replication order.
func (r *Result) CorrectedScores() []float64 {
	out := make([]float64, len(r.Replications))
	for i, rep := range r.Replications {
		out[i] = rep.Corrected
	}
	return out
}

// Run executes one pipeline unit against a set of held-out replications.
//
// The permutation is selected once from the unit's training sample and
// shared immutably by training and every scoring call. Replications are
// scored concurrently: scoring only reads the trained tree.
func Run(ctx context.Context, unit Unit, heldOut [][][]float64) (*Result, error) {
	start := time.Now()

	trainCodes, _, err := quantize.Quantize(unit.Training, unit.QSpec, mic.DiagnosticsOff)
	if err != nil {
		return nil, errors.Wrapf(err, "quantize training data for %s", unit.Tag)
	}

	perm, err := permute.Select(unit.Training, trainCodes, unit.CSpec, unit.HighPriorityBits)
	if err != nil {
		return nil, errors.Wrapf(err, "select permutation for %s", unit.Tag)
	}

	tree, err := ctw.Train(ctx, nil, trainCodes, unit.CSpec, unit.Tag, perm)
	if err != nil {
		return nil, errors.Wrapf(err, "train %s", unit.Tag)
	}

	result := &Result{
		RunID:        core.RunID(core.NewID()),
		Tag:          unit.Tag,
		Target:       unit.CSpec.Target(),
		Permutation:  perm,
		Tree:         tree,
		Replications: make([]ReplicationScore, len(heldOut)),
		TrainingData: core.ComputeDatasetFingerprint(unit.Training),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range heldOut {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			codes, _, err := quantize.Quantize(heldOut[i], unit.QSpec, mic.DiagnosticsOff)
			if err != nil {
				return errors.Wrapf(err, "quantize replication %d", i)
			}
			score, err := ctw.Score(tree, codes)
			if err != nil {
				return errors.Wrapf(err, "score replication %d", i)
			}
			result.Replications[i] = ReplicationScore{
				Replication: i,
				Raw:         score.Total(),
				Bias:        score.TotalBias(),
				Corrected:   score.Corrected(),
				Steps:       score.Steps(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Snapshot = tree.Describe()
	result.Elapsed = time.Since(start)
	internal.DefaultLogger.Info("estimate %s: %d replications, %d/%d nodes used, %d failed allocs, %.1fs",
		unit.Tag, len(heldOut),
		result.Snapshot.LeafNodes+result.Snapshot.BranchNodes, result.Snapshot.Capacity,
		result.Snapshot.FailedAllocs, result.Elapsed.Seconds())
	return result, nil
}

// RunAll executes several pipeline units concurrently against the same
// held-out replications. workers <= 0 means one per CPU.
func RunAll(ctx context.Context, units []Unit, heldOut [][][]float64, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range units {
		g.Go(func() error {
			res, err := Run(gctx, units[i], heldOut)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
