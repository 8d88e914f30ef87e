package ctw

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gomic/domain/core"
	"gomic/domain/mic"
	"gomic/internal/quantize"
	"gomic/internal/testkit"
)

func testQuantizationSpec() mic.QuantizationSpec {
	return mic.QuantizationSpec{
		Lower:      []float64{-3.2, -3.2},
		Upper:      []float64{3.2, 3.2},
		Resolution: []int{4, 4},
	}
}

func testContextSpec(capacity int) mic.ContextSpec {
	return mic.ContextSpec{
		Variables: []int{0, 1},
		Lags:      1,
		MaxDepth:  8,
		Capacity:  capacity,
	}
}

// A fixed lag-1 ordering over the top bits of both variables. Hand-built
// so tree tests do not depend on the selector.
func testPermutation() mic.BitPermutation {
	return mic.BitPermutation{
		Bits: []mic.BitRef{
			{Variable: 0, Lag: 1, Bit: 0},
			{Variable: 1, Lag: 1, Bit: 0},
			{Variable: 0, Lag: 1, Bit: 1},
			{Variable: 1, Lag: 1, Bit: 1},
		},
		Correlations: []float64{0, 0, 0, 0},
	}
}

func testCodes(t *testing.T, steps int, seed int64) *mic.Codes {
	t.Helper()
	gen := testkit.NewSeriesGenerator(testkit.SeriesConfig{
		Steps:     steps,
		Variables: 2,
		Seed:      seed,
		ARCoeff:   0.8,
		Coupling:  0.3,
		NoiseStd:  0.25,
	})
	codes, _, err := quantize.Quantize(gen.CoupledAR(), testQuantizationSpec(), mic.DiagnosticsOff)
	if err != nil {
		t.Fatalf("Failed to quantize test data: %v", err)
	}
	return codes
}

func trainTestTree(t *testing.T, steps, capacity int, seed int64) *Tree {
	t.Helper()
	codes := testCodes(t, steps, seed)
	tree, err := Train(context.Background(), nil, codes, testContextSpec(capacity), "test-model", testPermutation())
	if err != nil {
		t.Fatalf("Training failed: %v", err)
	}
	return tree
}

func TestTrainNodeAccounting(t *testing.T) {
	const steps, capacity = 2000, 1 << 12
	tree := trainTestTree(t, steps, capacity, 42)

	snap := tree.Describe()
	if snap.LeafNodes+snap.BranchNodes+snap.FreeNodes != capacity {
		t.Errorf("Leaf+branch+free must equal capacity: %d+%d+%d != %d",
			snap.LeafNodes, snap.BranchNodes, snap.FreeNodes, capacity)
	}
	if snap.TrainedSteps != steps-1 {
		t.Errorf("Expected %d trained steps (one lag of warm-up), got %d", steps-1, snap.TrainedSteps)
	}
	if snap.BranchNodes < 1 {
		t.Error("A trained tree must have interior nodes")
	}
	if snap.FailedAllocs != 0 {
		t.Errorf("A %d-node arena should fit this stream, got %d failed allocs", capacity, snap.FailedAllocs)
	}
}

func TestTrainContinuesOnSameTree(t *testing.T) {
	codes := testCodes(t, 1000, 7)
	cspec := testContextSpec(1 << 12)
	perm := testPermutation()

	tree, err := Train(context.Background(), nil, codes, cspec, "m", perm)
	if err != nil {
		t.Fatalf("Initial training failed: %v", err)
	}
	before := tree.TrainedSteps()

	tree, err = Train(context.Background(), tree, codes, cspec, "m", perm)
	if err != nil {
		t.Fatalf("Continued training failed: %v", err)
	}
	if tree.TrainedSteps() != 2*before {
		t.Errorf("Continued training should double trained steps: %d -> %d", before, tree.TrainedSteps())
	}
}

func TestTrainRejectsPermutationMismatch(t *testing.T) {
	codes := testCodes(t, 500, 1)
	cspec := testContextSpec(1 << 10)
	tree, err := Train(context.Background(), nil, codes, cspec, "m", testPermutation())
	if err != nil {
		t.Fatalf("Initial training failed: %v", err)
	}

	other := testPermutation()
	other.Bits = other.Bits[:2]
	other.Correlations = other.Correlations[:2]

	_, err = Train(context.Background(), tree, codes, cspec, "m", other)
	if !core.IsConfigMismatchError(err) {
		t.Errorf("Expected a config mismatch error, got %v", err)
	}
}

func TestTrainRejectsInsufficientData(t *testing.T) {
	short, _, err := quantize.Quantize([][]float64{{0, 0}}, testQuantizationSpec(), mic.DiagnosticsOff)
	if err != nil {
		t.Fatalf("Quantize failed: %v", err)
	}
	_, err = Train(context.Background(), nil, short, testContextSpec(1<<10), "m", testPermutation())
	if !errors.Is(err, core.ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}
}

func TestTrainHonorsCancellation(t *testing.T) {
	codes := testCodes(t, 500, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tree, err := Train(ctx, nil, codes, testContextSpec(1<<10), "m", testPermutation())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if tree == nil {
		t.Fatal("A cancelled run must still return the tree in a valid state")
	}
	if tree.TrainedSteps() != 0 {
		t.Errorf("Cancellation before the first step should train nothing, got %d", tree.TrainedSteps())
	}
}

func TestTrainReportsProgress(t *testing.T) {
	codes := testCodes(t, 300, 9)
	var calls int
	var lastDone, lastTotal int
	_, err := Train(context.Background(), nil, codes, testContextSpec(1<<10), "m", testPermutation(),
		WithProgress(func(done, total int) {
			calls++
			lastDone, lastTotal = done, total
		}, 100))
	if err != nil {
		t.Fatalf("Training failed: %v", err)
	}
	if calls == 0 {
		t.Fatal("Progress callback never fired")
	}
	if lastDone != lastTotal {
		t.Errorf("Final progress call should report completion: %d/%d", lastDone, lastTotal)
	}
}

func TestDescribeIsStable(t *testing.T) {
	tree := trainTestTree(t, 800, 1<<11, 5)
	a, b := tree.Describe(), tree.Describe()
	if !reflect.DeepEqual(a, b) {
		t.Error("Describe must be a pure function of the tree state")
	}
}
