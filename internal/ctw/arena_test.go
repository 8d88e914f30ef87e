package ctw

import "testing"

func TestArenaAllocateThenLookup(t *testing.T) {
	a := newArena(64)
	idx, ok := a.allocate(rootKey, true)
	if !ok {
		t.Fatal("Allocation in an empty arena must succeed")
	}
	found, ok := a.lookup(rootKey)
	if !ok || found != idx {
		t.Errorf("Lookup should find the allocated slot %d, got %d (ok=%v)", idx, found, ok)
	}
	if _, ok := a.lookup(rootKey<<1 | 1); ok {
		t.Error("Lookup of a never-allocated key should fail")
	}
}

func TestArenaAllocateIsIdempotent(t *testing.T) {
	a := newArena(64)
	first, _ := a.allocate(42, false)
	second, ok := a.allocate(42, false)
	if !ok || second != first {
		t.Errorf("Re-allocating the same key should return the same slot: %d vs %d", first, second)
	}
	if a.leafCount != 1 {
		t.Errorf("One key should occupy one slot, leafCount=%d", a.leafCount)
	}
}

func TestArenaPromote(t *testing.T) {
	a := newArena(64)
	idx, _ := a.allocate(7, false)
	if a.leafCount != 1 || a.branchCount != 0 {
		t.Fatalf("Fresh claim should be a leaf: leaves=%d branches=%d", a.leafCount, a.branchCount)
	}
	a.promote(idx)
	if a.leafCount != 0 || a.branchCount != 1 {
		t.Errorf("Promotion should move the leaf to branches: leaves=%d branches=%d", a.leafCount, a.branchCount)
	}
	a.promote(idx) // promoting a branch is a no-op
	if a.branchCount != 1 {
		t.Errorf("Double promotion must not double count, branches=%d", a.branchCount)
	}
	if a.freeCount() != 63 {
		t.Errorf("Expected 63 free slots, got %d", a.freeCount())
	}
}

func TestArenaExhaustionIsCounted(t *testing.T) {
	a := newArena(1)
	if _, ok := a.allocate(rootKey, true); !ok {
		t.Fatal("First allocation in a one-slot arena must succeed")
	}
	if _, ok := a.allocate(rootKey<<1, false); ok {
		t.Fatal("Second distinct key cannot fit in a one-slot arena")
	}
	if a.failedAllocs != 1 {
		t.Errorf("Expected 1 failed allocation, got %d", a.failedAllocs)
	}
	// The resident node is untouched.
	if _, ok := a.lookup(rootKey); !ok {
		t.Error("Failed allocation must not evict the resident node")
	}
}

func TestProbeStats(t *testing.T) {
	var s probeStats
	if s.avg() != 0 {
		t.Error("Empty stats should average to zero")
	}
	s.record(2)
	s.record(4)
	s.record(0)
	if s.count != 3 || s.min != 0 || s.max != 4 {
		t.Errorf("Unexpected stats: count=%d min=%d max=%d", s.count, s.min, s.max)
	}
	if s.avg() != 2 {
		t.Errorf("Expected average 2, got %f", s.avg())
	}
}
