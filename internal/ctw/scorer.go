package ctw

import (
	"math"

	"gomic/domain/mic"
)

// BiasCorrector computes the per-observation Rissanen bound correction
// from the model complexity seen so far (distinct contexts visited) and
// the number of observations scored so far. The exact closed form is a
// modeling choice, so it is pluggable and tested in isolation.
type BiasCorrector func(distinctContexts, observations int) float64

// DefaultBiasCorrector is the minimum-description-length style term
// (k/2) * log2(n) / n: each distinct context behaves like a parameter
// whose description cost is amortized over the sample.
func DefaultBiasCorrector(distinctContexts, observations int) float64 {
	if observations < 2 {
		return 0
	}
	n := float64(observations)
	return 0.5 * float64(distinctContexts) * math.Log2(n) / n
}

// ScoreOption customizes a scoring call.
type ScoreOption func(*scoreConfig)

type scoreConfig struct {
	corrector BiasCorrector
}

// WithBiasCorrector replaces the default Rissanen correction.
func WithBiasCorrector(fn BiasCorrector) ScoreOption {
	return func(c *scoreConfig) {
		c.corrector = fn
	}
}

// Score replays the tree's learned mixture against held-out quantized
// data, producing one raw log-score (bits) and one bias-correction term
// per time step past the lag warm-up.
//
// Scoring never mutates the tree: it only reads counters and cached
// mixture weights, so any number of Score calls may run concurrently on
// one trained tree provided no Train call overlaps them. Contexts never
// allocated during training degrade gracefully to the deepest node that
// was, and ultimately to the ambient 1/2 estimate.
func Score(tree *Tree, codes *mic.Codes, opts ...ScoreOption) (mic.ScoreResult, error) {
	cfg := scoreConfig{corrector: DefaultBiasCorrector}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := tree.validateCodes(codes); err != nil {
		return mic.ScoreResult{}, err
	}

	steps := codes.Steps()
	target := tree.cspec.Target()
	resolution := tree.qspec.Resolution[target]
	warmup := tree.cspec.Lags

	result := mic.ScoreResult{
		LogScores: make([]float64, 0, steps-warmup),
		Bias:      make([]float64, 0, steps-warmup),
		Warmup:    warmup,
	}

	// Local walk state: scoring must not share the trainer's scratch so
	// concurrent readers stay independent.
	depth := maxWalkDepth(tree.qspec, tree.cspec, tree.perm)
	ctxBits := make([]uint8, 0, depth)
	pathIdx := make([]int, 0, depth+1)
	pathKeys := make([]uint64, 0, depth+1)
	visited := make(map[int]struct{})

	for t := warmup; t < steps; t++ {
		stepScore := 0.0
		for k := 0; k < resolution; k++ {
			sym := codes.Bit(t, target, k)
			ctxBits = tree.buildContext(ctxBits, codes, t, k)
			p, terminal := tree.predict(ctxBits, sym, pathIdx, pathKeys)
			visited[terminal] = struct{}{}
			stepScore += -math.Log2(p)
		}
		result.LogScores = append(result.LogScores, stepScore)
		result.Bias = append(result.Bias, cfg.corrector(len(visited), t-warmup+1))
	}
	result.DistinctContexts = len(visited)
	return result, nil
}

// predict computes the tree's current mixture probability of sym under
// the given context without mutating anything. It walks as deep as the
// trained tree allows, then evaluates the CTW conditional bottom-up:
// at every branch the local KT estimate and the children's continuation
// are combined with their posterior mixture weights. Returns the
// probability and the index of the deepest node reached.
func (t *Tree) predict(ctxBits []uint8, sym uint8, pathIdx []int, pathKeys []uint64) (float64, int) {
	pathIdx = pathIdx[:0]
	pathKeys = pathKeys[:0]
	rootIdx, ok := t.arena.lookup(rootKey)
	if !ok {
		return 0.5, -1
	}
	pathIdx = append(pathIdx, rootIdx)
	pathKeys = append(pathKeys, rootKey)

	key := rootKey
	for _, bit := range ctxBits {
		next := key<<1 | uint64(bit)
		idx, found := t.arena.lookup(next)
		if !found {
			break
		}
		key = next
		pathIdx = append(pathIdx, idx)
		pathKeys = append(pathKeys, key)
	}

	deepest := len(pathIdx) - 1
	terminal := pathIdx[deepest]

	var p float64
	nd := &t.arena.nodes[terminal]
	if nd.kind == nodeLeaf || deepest == len(ctxBits) {
		p = nd.ktPredict(sym)
	} else {
		// The walk stopped at a branch whose child for this continuation
		// was never allocated: that empty subtree predicts the ambient 1/2.
		p = t.conditionalAt(terminal, pathKeys[deepest], ctxBits[deepest], sym, 0.5)
	}
	for d := deepest - 1; d >= 0; d-- {
		p = t.conditionalAt(pathIdx[d], pathKeys[d], ctxBits[d], sym, p)
	}

	if p < 1e-12 {
		p = 1e-12
	}
	if p > 1 {
		p = 1
	}
	return p, terminal
}

// conditionalAt evaluates one level of the CTW conditional recursion at a
// branch node: the posterior-weighted blend of the node's own KT estimate
// and the continuation probability pBelow carried up from the child
// subtree on the walked path.
func (t *Tree) conditionalAt(idx int, key uint64, bit uint8, sym uint8, pBelow float64) float64 {
	nd := &t.arena.nodes[idx]
	if nd.kind == nodeLeaf {
		return nd.ktPredict(sym)
	}

	childLog, siblingLog := 0.0, 0.0
	if cIdx, ok := t.arena.lookup(key<<1 | uint64(bit)); ok {
		childLog = t.arena.nodes[cIdx].logPw
	}
	if sIdx, ok := t.arena.lookup(key<<1 | uint64(bit^1)); ok {
		siblingLog = t.arena.nodes[sIdx].logPw
	}

	wLocal := math.Exp2(nd.logPe - 1 - nd.logPw)
	wChildren := math.Exp2(childLog + siblingLog - 1 - nd.logPw)
	return wLocal*nd.ktPredict(sym) + wChildren*pBelow
}
