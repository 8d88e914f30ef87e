// Package ctw implements the memory-bounded Context Tree Weighting
// estimator at the heart of the Markov Information Criterion: a binary
// trie over permuted context bits, stored in a fixed-capacity hashed node
// arena, maintaining Bayesian mixture weights along every observed path.
//
// One tree is created per (model, target variable, conditioning order)
// and lives for all training and scoring calls of that unit. Training is
// strictly sequential; a trained tree is safe for any number of
// concurrent read-only scoring calls as long as no training call overlaps
// them.
package ctw

import (
	"time"
	"unsafe"

	"gomic/domain/core"
	"gomic/domain/mic"
)

// rootKey is the path register of the root: just the sentinel bit.
const rootKey uint64 = 1

// Tree owns the node arena and the full configuration of one estimation
// unit. Mutated only by Train; read-only for Score and Describe.
type Tree struct {
	arena *arena

	qspec mic.QuantizationSpec
	cspec mic.ContextSpec
	perm  mic.BitPermutation
	tag   core.ModelTag

	trainedSteps uint64
	hashNanos    uint64
	mixNanos     uint64

	// Walk scratch, reused across training steps. Only the single writer
	// touches these; scoring allocates its own.
	ctxBits []uint8
	pathIdx []int
	pathKey []uint64
}

// newTree allocates a fresh tree with an empty arena of cspec.Capacity
// nodes. Specs must already be validated.
func newTree(qspec mic.QuantizationSpec, cspec mic.ContextSpec, perm mic.BitPermutation, tag core.ModelTag) *Tree {
	depth := maxWalkDepth(qspec, cspec, perm)
	return &Tree{
		arena:   newArena(cspec.Capacity),
		qspec:   qspec,
		cspec:   cspec,
		perm:    perm,
		tag:     tag,
		ctxBits: make([]uint8, 0, depth),
		pathIdx: make([]int, 0, depth+1),
		pathKey: make([]uint64, 0, depth+1),
	}
}

// maxWalkDepth bounds a single walk: the within-symbol prefix of the
// target plus the permuted context bits, capped at the configured depth.
func maxWalkDepth(qspec mic.QuantizationSpec, cspec mic.ContextSpec, perm mic.BitPermutation) int {
	d := qspec.Resolution[cspec.Target()] - 1 + perm.Depth()
	if d > cspec.MaxDepth {
		d = cspec.MaxDepth
	}
	return d
}

// Tag returns the opaque model label supplied at training time.
func (t *Tree) Tag() core.ModelTag { return t.tag }

// Spec returns the context spec in force.
func (t *Tree) Spec() mic.ContextSpec { return t.cspec }

// QuantizationSpec returns the quantization spec in force.
func (t *Tree) QuantizationSpec() mic.QuantizationSpec { return t.qspec }

// Permutation returns the shared immutable bit permutation.
func (t *Tree) Permutation() mic.BitPermutation { return t.perm }

// TrainedSteps returns the number of time steps consumed across all
// training calls.
func (t *Tree) TrainedSteps() uint64 { return t.trainedSteps }

// buildContext assembles the depth-ordered context bits for target bit
// index sym of time step step into dst: first the already-emitted bits of
// the current target symbol (most significant first), then the permuted
// lagged and contemporaneous bits, truncated to the tree depth.
func (t *Tree) buildContext(dst []uint8, codes *mic.Codes, step, bitIdx int) []uint8 {
	dst = dst[:0]
	target := t.cspec.Target()
	for j := 0; j < bitIdx && len(dst) < t.cspec.MaxDepth; j++ {
		dst = append(dst, codes.Bit(step, target, j))
	}
	for _, ref := range t.perm.Bits {
		if len(dst) >= t.cspec.MaxDepth {
			break
		}
		dst = append(dst, codes.Bit(step-ref.Lag, ref.Variable, ref.Bit))
	}
	return dst
}

// validateCodes checks a batch against the tree's configuration before
// any node is touched.
func (t *Tree) validateCodes(codes *mic.Codes) error {
	if !t.qspec.Equal(codes.Spec) {
		return core.NewConfigMismatchError("quantization", t.qspec.Resolution, codes.Spec.Resolution)
	}
	if codes.Steps() <= t.cspec.Lags {
		return core.ErrInsufficientData
	}
	return nil
}

// ProbeSummary reports hash-probe retry statistics for one insertion kind.
type ProbeSummary struct {
	Count uint64  `json:"count"`
	Min   uint32  `json:"min"`
	Max   uint32  `json:"max"`
	Avg   float64 `json:"avg"`
}

// Snapshot is the read-only diagnostic view of a tree, derived purely
// from its bookkeeping counters - no arena rescan.
type Snapshot struct {
	Tag          string           `json:"tag"`
	Target       int              `json:"target"`
	Lags         int              `json:"lags"`
	MaxDepth     int              `json:"max_depth"`
	Capacity     int              `json:"capacity"`
	NodeBytes    int              `json:"node_bytes"`
	LeafNodes    int              `json:"leaf_nodes"`
	BranchNodes  int              `json:"branch_nodes"`
	FreeNodes    int              `json:"free_nodes"`
	FailedAllocs uint64           `json:"failed_allocs"`
	Rescalings   uint64           `json:"rescalings"`
	LeafProbes   ProbeSummary     `json:"leaf_probes"`
	BranchProbes ProbeSummary     `json:"branch_probes"`
	TrainedSteps uint64           `json:"trained_steps"`
	HashTime     time.Duration    `json:"hash_time_ns"`
	MixTime      time.Duration    `json:"mix_time_ns"`
	Permutation  []mic.BitRef     `json:"permutation"`
}

// Describe returns the diagnostic snapshot of the tree.
func (t *Tree) Describe() Snapshot {
	return Snapshot{
		Tag:          t.tag.String(),
		Target:       t.cspec.Target(),
		Lags:         t.cspec.Lags,
		MaxDepth:     t.cspec.MaxDepth,
		Capacity:     len(t.arena.nodes),
		NodeBytes:    int(unsafe.Sizeof(node{})),
		LeafNodes:    t.arena.leafCount,
		BranchNodes:  t.arena.branchCount,
		FreeNodes:    t.arena.freeCount(),
		FailedAllocs: t.arena.failedAllocs,
		Rescalings:   t.arena.rescaleEvents,
		LeafProbes:   summarize(&t.arena.leafProbes),
		BranchProbes: summarize(&t.arena.branchProbes),
		TrainedSteps: t.trainedSteps,
		HashTime:     time.Duration(t.hashNanos),
		MixTime:      time.Duration(t.mixNanos),
		Permutation:  t.perm.Bits,
	}
}

func summarize(s *probeStats) ProbeSummary {
	return ProbeSummary{Count: s.count, Min: s.min, Max: s.max, Avg: s.avg()}
}
