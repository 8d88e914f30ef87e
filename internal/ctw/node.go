package ctw

import "math"

// nodeKind is the explicit discriminant of the node state machine:
// a free slot is claimed as a leaf on first visit, and a leaf becomes a
// branch when a deeper context path has to pass through it. Nodes never
// revert or get deleted.
type nodeKind uint8

const (
	nodeFree nodeKind = iota
	nodeLeaf
	nodeBranch
)

// CounterLimit is the overflow threshold of the per-symbol occurrence
// counters. When an update would push a counter past it, both counters are
// halved (a rescaling event) instead of saturating.
const CounterLimit = 1<<16 - 1

// node is one record in the arena. A node is addressed by the hash of its
// context-path key, owns that path position exclusively, and keeps both
// the Krichevsky-Trofimov estimator state (counters plus cumulative logPe)
// and the cached CTW mixture weight logPw. Log quantities are base 2.
//
// key encodes the full path from the root with a leading sentinel bit, so
// depth is implied and two different prefixes can never share a key.
type node struct {
	key      uint64
	kind     nodeKind
	rescales uint32
	c0, c1   uint32
	logPe    float64
	logPw    float64
}

// ktPredict returns the KT predictive probability of sym at this node:
// (count+1/2) / (total+1).
func (n *node) ktPredict(sym uint8) float64 {
	total := float64(n.c0) + float64(n.c1)
	if sym == 0 {
		return (float64(n.c0) + 0.5) / (total + 1)
	}
	return (float64(n.c1) + 0.5) / (total + 1)
}

// observe folds one symbol into the node's KT estimator, rescaling the
// counters first if the update would overflow. Returns the predictive
// probability the symbol had before the update and whether a rescaling
// event occurred.
func (n *node) observe(sym uint8) (float64, bool) {
	p := n.ktPredict(sym)
	n.logPe += math.Log2(p)
	rescaled := false
	if sym == 0 {
		if n.c0 >= CounterLimit {
			n.rescale()
			rescaled = true
		}
		n.c0++
	} else {
		if n.c1 >= CounterLimit {
			n.rescale()
			rescaled = true
		}
		n.c1++
	}
	return p, rescaled
}

// rescale halves both counters, preserving their ratio, and records the
// event. Rounding up keeps a previously seen symbol's count positive.
func (n *node) rescale() {
	n.c0 = (n.c0 + 1) / 2
	n.c1 = (n.c1 + 1) / 2
	n.rescales++
}

// logAdd2 returns log2(2^a + 2^b) without leaving log space.
func logAdd2(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(a, -1) {
		return b
	}
	return a + math.Log2(1+math.Exp2(b-a))
}
