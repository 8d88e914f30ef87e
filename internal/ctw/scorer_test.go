package ctw

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"gomic/domain/core"
	"gomic/domain/mic"
	"gomic/internal/quantize"
)

func TestScoreIsPureAndRepeatable(t *testing.T) {
	tree := trainTestTree(t, 2000, 1<<12, 42)
	heldOut := testCodes(t, 500, 99)

	before := tree.Describe()
	first, err := Score(tree, heldOut)
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}
	second, err := Score(tree, heldOut)
	if err != nil {
		t.Fatalf("Second scoring failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Scoring the same data twice must be bit-identical")
	}
	if !reflect.DeepEqual(before, tree.Describe()) {
		t.Error("Scoring must not mutate the tree")
	}
}

func TestScoreOutputShape(t *testing.T) {
	tree := trainTestTree(t, 2000, 1<<12, 42)
	heldOut := testCodes(t, 500, 99)

	score, err := Score(tree, heldOut)
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}
	if score.Warmup != 1 {
		t.Errorf("Expected 1 warm-up step, got %d", score.Warmup)
	}
	if score.Steps() != 499 {
		t.Errorf("Expected 499 scored steps, got %d", score.Steps())
	}
	if len(score.Bias) != score.Steps() {
		t.Errorf("One bias term per scored step: %d vs %d", len(score.Bias), score.Steps())
	}
	if score.DistinctContexts < 1 {
		t.Error("At least one terminal context must be visited")
	}
	for i, s := range score.LogScores {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			t.Fatalf("Log-score %d should be finite and non-negative, got %f", i, s)
		}
	}
}

func TestScoreBeatsUniformOnStructuredData(t *testing.T) {
	tree := trainTestTree(t, 5000, 1<<13, 42)
	heldOut := testCodes(t, 1000, 7)

	score, err := Score(tree, heldOut)
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}
	// 4 bits per step under the uniform model.
	uniform := float64(4 * score.Steps())
	if score.Total() >= uniform {
		t.Errorf("Trained tree should beat the uniform coder on AR data: %.1f >= %.1f",
			score.Total(), uniform)
	}
}

func TestScoreRejectsMismatchedQuantization(t *testing.T) {
	tree := trainTestTree(t, 500, 1<<10, 1)

	other := testQuantizationSpec()
	other.Resolution = []int{5, 5}
	gen := testCodes(t, 100, 2)
	gen.Spec = other

	_, err := Score(tree, gen)
	if !core.IsConfigMismatchError(err) {
		t.Errorf("Expected a config mismatch error, got %v", err)
	}
}

func TestScoreRejectsInsufficientData(t *testing.T) {
	tree := trainTestTree(t, 500, 1<<10, 1)
	short, _, err := quantize.Quantize([][]float64{{0, 0}}, testQuantizationSpec(), mic.DiagnosticsOff)
	if err != nil {
		t.Fatalf("Quantize failed: %v", err)
	}
	_, err = Score(tree, short)
	if !errors.Is(err, core.ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}
}

func TestTinyArenaDegradesGracefully(t *testing.T) {
	codes := testCodes(t, 400, 11)
	tree, err := Train(context.Background(), nil, codes, testContextSpec(1), "tiny", testPermutation())
	if err != nil {
		t.Fatalf("Training with capacity 1 must not fail: %v", err)
	}

	snap := tree.Describe()
	if snap.FailedAllocs == 0 {
		t.Error("A one-node arena must report allocation failures")
	}

	score, err := Score(tree, codes)
	if err != nil {
		t.Fatalf("Scoring on a saturated arena failed: %v", err)
	}
	for _, s := range score.LogScores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			t.Fatal("Scores must stay finite when the arena is saturated")
		}
	}
}

func TestDefaultBiasCorrector(t *testing.T) {
	if got := DefaultBiasCorrector(10, 1); got != 0 {
		t.Errorf("Fewer than two observations should contribute no bias, got %f", got)
	}
	// 0.5 * 2 * log2(4) / 4 = 0.5 bits.
	if got := DefaultBiasCorrector(2, 4); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("Expected 0.5, got %f", got)
	}
}

func TestCustomBiasCorrector(t *testing.T) {
	tree := trainTestTree(t, 500, 1<<10, 1)
	codes := testCodes(t, 200, 8)

	score, err := Score(tree, codes, WithBiasCorrector(func(k, n int) float64 { return 0 }))
	if err != nil {
		t.Fatalf("Scoring failed: %v", err)
	}
	if score.TotalBias() != 0 {
		t.Errorf("Zero corrector should yield zero total bias, got %f", score.TotalBias())
	}
	if score.Corrected() != score.Total() {
		t.Error("With zero bias, corrected and raw totals must agree")
	}
}

func TestConcurrentScoring(t *testing.T) {
	tree := trainTestTree(t, 2000, 1<<12, 42)
	heldOut := testCodes(t, 400, 13)

	reference, err := Score(tree, heldOut)
	if err != nil {
		t.Fatalf("Reference scoring failed: %v", err)
	}

	const readers = 8
	results := make([]mic.ScoreResult, readers)
	errs := make([]error, readers)
	done := make(chan int, readers)
	for i := 0; i < readers; i++ {
		go func(i int) {
			results[i], errs[i] = Score(tree, heldOut)
			done <- i
		}(i)
	}
	for i := 0; i < readers; i++ {
		<-done
	}
	for i := 0; i < readers; i++ {
		if errs[i] != nil {
			t.Fatalf("Concurrent scorer %d failed: %v", i, errs[i])
		}
		if !reflect.DeepEqual(results[i], reference) {
			t.Fatalf("Concurrent scorer %d disagrees with the serial result", i)
		}
	}
}
