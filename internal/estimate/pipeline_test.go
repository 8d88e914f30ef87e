package estimate

import (
	"context"
	"math"
	"testing"

	"gomic/domain/core"
	"gomic/domain/mic"
	"gomic/internal/testkit"
)

func demoUnit(tag string, steps int) (Unit, [][][]float64) {
	gen := testkit.NewSeriesGenerator(testkit.SeriesConfig{
		Steps:     steps * 2,
		Variables: 2,
		Seed:      42,
		ARCoeff:   0.8,
		Coupling:  0.3,
		NoiseStd:  0.25,
	})
	training := gen.CoupledAR()[:steps]
	heldOut := testkit.Replications(gen.CoupledAR(), 4)

	unit := Unit{
		Tag:      core.ModelTag(tag),
		Training: training,
		QSpec: mic.QuantizationSpec{
			Lower:      []float64{-3.2, -3.2},
			Upper:      []float64{3.2, 3.2},
			Resolution: []int{4, 4},
		},
		CSpec: mic.ContextSpec{
			Variables: []int{0, 1},
			Lags:      1,
			MaxDepth:  8,
			Capacity:  1 << 12,
		},
	}
	return unit, heldOut
}

func TestRunPipeline(t *testing.T) {
	unit, heldOut := demoUnit("pipeline", 2000)

	result, err := Run(context.Background(), unit, heldOut)
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}

	if result.Tag != unit.Tag {
		t.Errorf("Result tag %s, want %s", result.Tag, unit.Tag)
	}
	if result.RunID.String() == "" {
		t.Error("Every run must get an ID")
	}
	if len(result.Replications) != len(heldOut) {
		t.Fatalf("Expected %d replication scores, got %d", len(heldOut), len(result.Replications))
	}
	for i, rep := range result.Replications {
		if rep.Replication != i {
			t.Errorf("Replication %d recorded index %d", i, rep.Replication)
		}
		if math.IsNaN(rep.Corrected) || math.IsInf(rep.Corrected, 0) {
			t.Errorf("Replication %d corrected score is not finite: %f", i, rep.Corrected)
		}
		if rep.Raw <= 0 {
			t.Errorf("Replication %d raw score should be positive, got %f", i, rep.Raw)
		}
	}
	if result.TrainingData != core.ComputeDatasetFingerprint(unit.Training) {
		t.Error("Training fingerprint must cover exactly the training data")
	}
	if result.Permutation.Depth() == 0 {
		t.Error("A permutation must have been selected")
	}
	if result.Snapshot.Capacity != unit.CSpec.Capacity {
		t.Errorf("Snapshot capacity %d, want %d", result.Snapshot.Capacity, unit.CSpec.Capacity)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	unit, heldOut := demoUnit("det", 1000)

	a, err := Run(context.Background(), unit, heldOut)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	b, err := Run(context.Background(), unit, heldOut)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	// Concurrency must not leak into the numbers, only into the wall clock.
	for i := range a.Replications {
		if a.Replications[i].Corrected != b.Replications[i].Corrected {
			t.Errorf("Replication %d differs across identical runs: %f vs %f",
				i, a.Replications[i].Corrected, b.Replications[i].Corrected)
		}
	}
	if !a.Permutation.Equal(b.Permutation) {
		t.Error("Permutation selection must be deterministic")
	}
}

func TestRunAllPreservesOrder(t *testing.T) {
	unitA, heldOut := demoUnit("model-a", 1000)
	unitB, _ := demoUnit("model-b", 1000)
	unitB.CSpec.Variables = []int{0}

	results, err := RunAll(context.Background(), []Unit{unitA, unitB}, heldOut, 2)
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Tag != "model-a" || results[1].Tag != "model-b" {
		t.Errorf("Results out of order: %s, %s", results[0].Tag, results[1].Tag)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	unit, heldOut := demoUnit("cancelled", 1000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, unit, heldOut); err == nil {
		t.Error("A cancelled context must abort the pipeline")
	}
}

func TestLedgerRecordMapping(t *testing.T) {
	unit, heldOut := demoUnit("ledger", 1000)
	result, err := Run(context.Background(), unit, heldOut)
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}

	run, scores := result.LedgerRecord()
	if run.Tag != "ledger" {
		t.Errorf("Run tag %s, want ledger", run.Tag)
	}
	if run.TrainingFingerprint != string(result.TrainingData) {
		t.Error("Fingerprint must carry over to the ledger record")
	}
	if len(scores) != len(result.Replications) {
		t.Fatalf("Expected %d score rows, got %d", len(result.Replications), len(scores))
	}
	for i, s := range scores {
		if s.RunID != run.ID {
			t.Errorf("Score row %d has run ID %s, want %s", i, s.RunID, run.ID)
		}
		if s.Corrected != result.Replications[i].Corrected {
			t.Errorf("Score row %d corrected %f, want %f", i, s.Corrected, result.Replications[i].Corrected)
		}
	}
}
