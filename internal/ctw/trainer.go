package ctw

import (
	"context"
	"time"

	"gomic/domain/core"
	"gomic/domain/mic"
)

// TrainOption customizes a training call.
type TrainOption func(*trainConfig)

type trainConfig struct {
	progress         func(done, total int)
	progressInterval int
}

// WithProgress installs a callback invoked from the training loop every
// interval time steps (and once at completion). The callback runs on the
// training goroutine; keep it cheap.
func WithProgress(fn func(done, total int), interval int) TrainOption {
	return func(c *trainConfig) {
		c.progress = fn
		if interval > 0 {
			c.progressInterval = interval
		}
	}
}

// Train drives incremental CTW updates from one quantized stream.
//
// With tree == nil a fresh tree is created: an arena of cspec.Capacity
// nodes, the supplied permutation and tag. Otherwise training continues
// on the supplied tree, which must share the same permutation, resolution
// and target variable - any mismatch is a fatal configuration error
// detected before a single node is mutated.
//
// For each time step past the lag warm-up, each bit of the target symbol
// is pushed through the tree: the walk locates or creates the node for
// every context prefix, folds the bit into each node's KT estimator and
// refreshes the mixture weights bottom-up. Allocation failures never
// abort the run; the observation's effect lands in the deepest node the
// walk reached and the failure is counted.
//
// Cancellation is cooperative: ctx is checked between time steps, and an
// aborted call returns the tree in a valid, partially-trained state
// together with the context's error.
func Train(ctx context.Context, tree *Tree, codes *mic.Codes, cspec mic.ContextSpec, tag core.ModelTag, perm mic.BitPermutation, opts ...TrainOption) (*Tree, error) {
	cfg := trainConfig{progressInterval: 10000}
	for _, opt := range opts {
		opt(&cfg)
	}

	if tree == nil {
		if err := cspec.Validate(codes.Spec); err != nil {
			return nil, err
		}
		tree = newTree(codes.Spec, cspec, perm, tag)
		if _, ok := tree.arena.allocate(rootKey, true); !ok {
			return nil, core.NewInvalidSpecError("capacity", "arena cannot hold the root node")
		}
	} else {
		if !tree.perm.Equal(perm) {
			return tree, core.NewConfigMismatchError("permutation", tree.perm.Depth(), perm.Depth())
		}
		if tree.cspec.Target() != cspec.Target() {
			return tree, core.NewConfigMismatchError("target", tree.cspec.Target(), cspec.Target())
		}
		if tree.cspec.Lags != cspec.Lags || tree.cspec.MaxDepth != cspec.MaxDepth {
			return tree, core.NewConfigMismatchError("context", tree.cspec, cspec)
		}
	}
	if err := tree.validateCodes(codes); err != nil {
		return tree, err
	}

	steps := codes.Steps()
	target := tree.cspec.Target()
	resolution := tree.qspec.Resolution[target]
	total := steps - tree.cspec.Lags

	for t := tree.cspec.Lags; t < steps; t++ {
		if err := ctx.Err(); err != nil {
			return tree, err
		}
		for k := 0; k < resolution; k++ {
			tree.update(codes, t, k)
		}
		tree.trainedSteps++

		done := t - tree.cspec.Lags + 1
		if cfg.progress != nil && (done%cfg.progressInterval == 0 || done == total) {
			cfg.progress(done, total)
		}
	}
	return tree, nil
}

// update pushes one target bit through the tree: locate/create the path,
// then refresh estimators and mixture weights bottom-up.
func (t *Tree) update(codes *mic.Codes, step, bitIdx int) {
	sym := codes.Bit(step, t.cspec.Target(), bitIdx)
	t.ctxBits = t.buildContext(t.ctxBits, codes, step, bitIdx)

	// Hashing phase: walk the context, extending the tree along the path.
	hashStart := time.Now()
	t.pathIdx = t.pathIdx[:0]
	t.pathKey = t.pathKey[:0]

	rootIdx, _ := t.arena.lookup(rootKey)
	t.pathIdx = append(t.pathIdx, rootIdx)
	t.pathKey = append(t.pathKey, rootKey)

	key := rootKey
	for d, bit := range t.ctxBits {
		key = key<<1 | uint64(bit)
		idx, ok := t.arena.allocate(key, d < len(t.ctxBits)-1)
		if !ok {
			break
		}
		// The parent now has a path running through it.
		t.arena.promote(t.pathIdx[len(t.pathIdx)-1])
		t.pathIdx = append(t.pathIdx, idx)
		t.pathKey = append(t.pathKey, key)
	}
	t.hashNanos += uint64(time.Since(hashStart))

	// Mixture phase: KT updates and CTW weight recursion, deepest first.
	mixStart := time.Now()
	deepest := len(t.pathIdx) - 1
	for d := deepest; d >= 0; d-- {
		nd := &t.arena.nodes[t.pathIdx[d]]
		if _, rescaled := nd.observe(sym); rescaled {
			t.arena.rescaleEvents++
		}
		if nd.kind == nodeLeaf {
			nd.logPw = nd.logPe
		} else {
			t.mixNode(t.pathIdx[d], t.pathKey[d])
		}
	}
	t.mixNanos += uint64(time.Since(mixStart))
}

// mixNode refreshes a branch node's cached mixture weight from its own
// estimator and its children's weights:
// Pw = 1/2 Pe + 1/2 Pw(child0) Pw(child1), in log2 space. A missing child
// has seen no data and contributes probability one.
func (t *Tree) mixNode(idx int, key uint64) {
	children := 0.0
	if c0, ok := t.arena.lookup(key << 1); ok {
		children += t.arena.nodes[c0].logPw
	}
	if c1, ok := t.arena.lookup(key<<1 | 1); ok {
		children += t.arena.nodes[c1].logPw
	}
	nd := &t.arena.nodes[idx]
	nd.logPw = logAdd2(nd.logPe, children) - 1
}
