package ctw

// maxProbes caps open-addressing collision retries. A context whose probe
// budget is exhausted is treated exactly like one that found the arena
// full: the allocation fails, is counted, and the walk folds the update
// into the deepest node it did reach.
const maxProbes = 32

// probeStats accumulates hash-probe retry statistics for one insertion
// kind (terminal leaves vs interior branches).
type probeStats struct {
	count uint64
	total uint64
	min   uint32
	max   uint32
}

func (s *probeStats) record(retries uint32) {
	if s.count == 0 || retries < s.min {
		s.min = retries
	}
	if retries > s.max {
		s.max = retries
	}
	s.count++
	s.total += uint64(retries)
}

// Avg returns the mean retry count, zero when nothing was recorded.
func (s *probeStats) avg() float64 {
	if s.count == 0 {
		return 0
	}
	return float64(s.total) / float64(s.count)
}

// arena is the fixed-capacity hashed node store. Slots are addressed by
// open addressing with linear probing on the mixed path key; nodes are
// never deleted, so no free list or tombstones exist. All bookkeeping
// needed by Describe lives here.
type arena struct {
	nodes []node

	leafCount     int
	branchCount   int
	failedAllocs  uint64
	rescaleEvents uint64
	leafProbes    probeStats
	branchProbes  probeStats
}

func newArena(capacity int) *arena {
	return &arena{nodes: make([]node, capacity)}
}

// mix is the 64-bit finalizer of splitmix64; it spreads the structured
// path keys (which differ only in their low bits for sibling contexts)
// across the whole table.
func mix(key uint64) uint64 {
	key ^= key >> 30
	key *= 0xbf58476d1ce4e5b9
	key ^= key >> 27
	key *= 0x94d049bb133111eb
	key ^= key >> 31
	return key
}

// lookup finds the slot holding key without allocating. The probe
// sequence is identical to allocate's, so a node reachable during
// training is reachable during scoring.
func (a *arena) lookup(key uint64) (int, bool) {
	capacity := uint64(len(a.nodes))
	h := mix(key) % capacity
	for i := uint64(0); i < maxProbes && i < capacity; i++ {
		idx := int((h + i) % capacity)
		n := &a.nodes[idx]
		if n.kind == nodeFree {
			return 0, false
		}
		if n.key == key {
			return idx, true
		}
	}
	return 0, false
}

// allocate locates key's slot, claiming a free one if needed. wantBranch
// only selects which probe statistic a fresh claim is charged to; the
// claimed node always starts life as a leaf. Returns ok=false when the
// probe budget is exhausted or every probed slot belongs to other keys.
func (a *arena) allocate(key uint64, wantBranch bool) (int, bool) {
	capacity := uint64(len(a.nodes))
	h := mix(key) % capacity
	for i := uint64(0); i < maxProbes && i < capacity; i++ {
		idx := int((h + i) % capacity)
		n := &a.nodes[idx]
		if n.key == key && n.kind != nodeFree {
			return idx, true
		}
		if n.kind == nodeFree {
			n.key = key
			n.kind = nodeLeaf
			a.leafCount++
			if wantBranch {
				a.branchProbes.record(uint32(i))
			} else {
				a.leafProbes.record(uint32(i))
			}
			return idx, true
		}
	}
	a.failedAllocs++
	return 0, false
}

// promote converts a leaf into a branch when a deeper path passes through
// it. Counters and estimator state carry over unchanged.
func (a *arena) promote(idx int) {
	n := &a.nodes[idx]
	if n.kind == nodeLeaf {
		n.kind = nodeBranch
		a.leafCount--
		a.branchCount++
	}
}

func (a *arena) freeCount() int {
	return len(a.nodes) - a.leafCount - a.branchCount
}
