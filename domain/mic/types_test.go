package mic

import (
	"math"
	"testing"

	"gomic/domain/core"
)

func TestQuantizationSpecValidate(t *testing.T) {
	good := QuantizationSpec{Lower: []float64{0}, Upper: []float64{1}, Resolution: []int{4}}
	if err := good.Validate(); err != nil {
		t.Errorf("Valid spec rejected: %v", err)
	}

	cases := map[string]QuantizationSpec{
		"no variables":      {},
		"length mismatch":   {Lower: []float64{0}, Upper: []float64{1, 2}, Resolution: []int{4}},
		"zero resolution":   {Lower: []float64{0}, Upper: []float64{1}, Resolution: []int{0}},
		"oversized":         {Lower: []float64{0}, Upper: []float64{1}, Resolution: []int{31}},
		"inverted bounds":   {Lower: []float64{1}, Upper: []float64{0}, Resolution: []int{4}},
		"degenerate bounds": {Lower: []float64{1}, Upper: []float64{1}, Resolution: []int{4}},
	}
	for name, spec := range cases {
		if err := spec.Validate(); !core.IsInvalidSpecError(err) {
			t.Errorf("%s: expected an invalid spec error, got %v", name, err)
		}
	}
}

func TestCodesBitIsMSBFirst(t *testing.T) {
	spec := QuantizationSpec{Lower: []float64{0}, Upper: []float64{16}, Resolution: []int{4}}
	codes := &Codes{Spec: spec, Levels: [][]uint32{{0b1010}}}

	want := []uint8{1, 0, 1, 0}
	for k, w := range want {
		if got := codes.Bit(0, 0, k); got != w {
			t.Errorf("Bit %d of 0b1010 should be %d, got %d", k, w, got)
		}
	}
}

func TestReconstructHitsBinMidpoint(t *testing.T) {
	spec := QuantizationSpec{Lower: []float64{0}, Upper: []float64{8}, Resolution: []int{2}}
	codes := &Codes{Spec: spec, Levels: [][]uint32{{0}, {3}}}

	if got := codes.Reconstruct(0, 0); math.Abs(got-1) > 1e-12 {
		t.Errorf("Level 0 of [0,8)x4 should reconstruct to 1, got %f", got)
	}
	if got := codes.Reconstruct(1, 0); math.Abs(got-7) > 1e-12 {
		t.Errorf("Level 3 of [0,8)x4 should reconstruct to 7, got %f", got)
	}
}

func TestContextSpecValidate(t *testing.T) {
	q := QuantizationSpec{Lower: []float64{0, 0}, Upper: []float64{1, 1}, Resolution: []int{4, 4}}
	good := ContextSpec{Variables: []int{0, 1}, Lags: 1, MaxDepth: 8, Capacity: 16}
	if err := good.Validate(q); err != nil {
		t.Errorf("Valid context spec rejected: %v", err)
	}

	cases := map[string]ContextSpec{
		"no target":       {Lags: 1, MaxDepth: 8, Capacity: 16},
		"unknown var":     {Variables: []int{0, 2}, Lags: 1, MaxDepth: 8, Capacity: 16},
		"duplicate var":   {Variables: []int{0, 0}, Lags: 1, MaxDepth: 8, Capacity: 16},
		"zero lags":       {Variables: []int{0}, Lags: 0, MaxDepth: 8, Capacity: 16},
		"zero depth":      {Variables: []int{0}, Lags: 1, MaxDepth: 0, Capacity: 16},
		"excessive depth": {Variables: []int{0}, Lags: 1, MaxDepth: MaxTreeDepth + 1, Capacity: 16},
		"zero capacity":   {Variables: []int{0}, Lags: 1, MaxDepth: 8, Capacity: 0},
	}
	for name, spec := range cases {
		if err := spec.Validate(q); !core.IsInvalidSpecError(err) {
			t.Errorf("%s: expected an invalid spec error, got %v", name, err)
		}
	}
}

func TestBitRefString(t *testing.T) {
	lagged := BitRef{Variable: 1, Lag: 2, Bit: 3}
	if got := lagged.String(); got != "v1.b3@-2" {
		t.Errorf("Unexpected lagged rendering: %s", got)
	}
	contemporaneous := BitRef{Variable: 0, Lag: 0, Bit: 1}
	if got := contemporaneous.String(); got != "v0.b1" {
		t.Errorf("Unexpected contemporaneous rendering: %s", got)
	}
}

func TestScoreResultTotals(t *testing.T) {
	r := ScoreResult{
		LogScores: []float64{1, 2, 3},
		Bias:      []float64{0.1, 0.1, 0.1},
	}
	if got := r.Total(); math.Abs(got-6) > 1e-12 {
		t.Errorf("Total should be 6, got %f", got)
	}
	if got := r.TotalBias(); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("Total bias should be 0.3, got %f", got)
	}
	if got := r.Corrected(); math.Abs(got-5.7) > 1e-12 {
		t.Errorf("Corrected should be 5.7, got %f", got)
	}
	if r.Steps() != 3 {
		t.Errorf("Steps should be 3, got %d", r.Steps())
	}
}
