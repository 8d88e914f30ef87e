package ctw

import (
	"math"
	"testing"
)

func TestKTPredictFreshNode(t *testing.T) {
	n := &node{}
	if p := n.ktPredict(0); p != 0.5 {
		t.Errorf("Fresh node should predict 0.5 for symbol 0, got %f", p)
	}
	if p := n.ktPredict(1); p != 0.5 {
		t.Errorf("Fresh node should predict 0.5 for symbol 1, got %f", p)
	}
}

func TestKTPredictFollowsCounts(t *testing.T) {
	n := &node{c0: 3, c1: 1}
	if p := n.ktPredict(0); math.Abs(p-0.7) > 1e-12 {
		t.Errorf("Expected (3+0.5)/(4+1)=0.7 for symbol 0, got %f", p)
	}
	if p := n.ktPredict(1); math.Abs(p-0.3) > 1e-12 {
		t.Errorf("Expected (1+0.5)/(4+1)=0.3 for symbol 1, got %f", p)
	}
}

func TestObserveAccumulatesLogPe(t *testing.T) {
	n := &node{}
	p, rescaled := n.observe(1)
	if p != 0.5 {
		t.Errorf("First observation should have probability 0.5, got %f", p)
	}
	if rescaled {
		t.Error("First observation should not rescale")
	}
	if n.c1 != 1 || n.c0 != 0 {
		t.Errorf("Counters after observe(1): c0=%d c1=%d", n.c0, n.c1)
	}
	if math.Abs(n.logPe-math.Log2(0.5)) > 1e-12 {
		t.Errorf("logPe should be log2(0.5), got %f", n.logPe)
	}
}

func TestObserveRescalesAtLimit(t *testing.T) {
	n := &node{c0: CounterLimit, c1: 3}
	_, rescaled := n.observe(0)
	if !rescaled {
		t.Fatal("Observation at the counter limit must rescale")
	}
	if n.rescales != 1 {
		t.Errorf("Expected 1 rescaling event, got %d", n.rescales)
	}
	// (65535+1)/2 then the pending increment.
	if n.c0 != 32769 {
		t.Errorf("Expected c0=32769 after rescale+increment, got %d", n.c0)
	}
	if n.c1 != 2 {
		t.Errorf("Expected c1=(3+1)/2=2 after rescale, got %d", n.c1)
	}
}

func TestRescalePreservesSeenSymbols(t *testing.T) {
	n := &node{c0: 1, c1: 0}
	n.rescale()
	if n.c0 == 0 {
		t.Error("Rescaling must not erase a previously seen symbol")
	}
}

func TestLogAdd2(t *testing.T) {
	if got := logAdd2(0, 0); math.Abs(got-1) > 1e-12 {
		t.Errorf("log2(2^0+2^0) should be 1, got %f", got)
	}
	if got := logAdd2(math.Inf(-1), -2.5); got != -2.5 {
		t.Errorf("Adding probability zero should be identity, got %f", got)
	}
	// Symmetry.
	if a, b := logAdd2(-3, -7), logAdd2(-7, -3); math.Abs(a-b) > 1e-12 {
		t.Errorf("logAdd2 should be symmetric: %f vs %f", a, b)
	}
}
