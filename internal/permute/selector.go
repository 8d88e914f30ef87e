// Package permute orders candidate context bits by predictive relevance.
// The selector greedily ranks every lagged and contemporaneous bit by its
// absolute correlation with the target series, honoring high-priority-bit
// constraints, and truncates the ordering to the tree depth. The resulting
// permutation is computed once per context spec and shared immutably by
// all later training and scoring calls.
package permute

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"gomic/domain/core"
	"gomic/domain/mic"
	"gomic/internal"
)

type groupKey struct {
	variable int
	lag      int
}

type candidate struct {
	ref      mic.BitRef
	series   []float64
	corr     float64
	priority bool
	group    groupKey
	selected bool
}

// Select builds the bit permutation for one context spec from a
// representative quantized sample.
//
// raw supplies the target variable's continuous series for the correlation
// ranking; pass nil to fall back to the reconstructed (dequantized) series,
// which differs from the raw one only by bounded quantization error.
// highPriorityBits[v] marks the top bits of variable v that must be placed
// before any of that variable's remaining bits at the same lag; a short or
// nil slice means no priority bits.
//
// Determinism: ties in correlation magnitude break by stable enumeration
// order (lags ascending, then variables in spec order, then bit index), so
// identical input always yields an identical permutation.
func Select(raw [][]float64, codes *mic.Codes, spec mic.ContextSpec, highPriorityBits []int) (mic.BitPermutation, error) {
	if err := spec.Validate(codes.Spec); err != nil {
		return mic.BitPermutation{}, err
	}
	steps := codes.Steps()
	if steps <= spec.Lags+1 {
		return mic.BitPermutation{}, core.ErrInsufficientData
	}

	target := spec.Target()
	if raw != nil {
		if len(raw) != steps {
			return mic.BitPermutation{}, fmt.Errorf("%w: raw series has %d rows, codes have %d",
				core.ErrDimensionMismatch, len(raw), steps)
		}
		for t := range raw {
			if len(raw[t]) <= target {
				return mic.BitPermutation{}, fmt.Errorf("%w: raw row %d has %d columns, target is %d",
					core.ErrDimensionMismatch, t, len(raw[t]), target)
			}
		}
	}
	y := targetSeries(raw, codes, target, spec.Lags)

	pool := enumerateCandidates(codes, spec, highPriorityBits)
	for i := range pool {
		pool[i].corr = absCorrelation(pool[i].series, y)
	}

	depth := spec.MaxDepth
	if len(pool) < depth {
		depth = len(pool)
	}

	perm := mic.BitPermutation{
		Bits:         make([]mic.BitRef, 0, depth),
		Correlations: make([]float64, 0, depth),
	}

	// pendingPriority tracks, per variable/lag group, how many declared
	// high-priority bits are still unplaced. A non-priority bit of a group
	// is ineligible while its group has pending priority bits.
	pendingPriority := make(map[groupKey]int)
	for i := range pool {
		if pool[i].priority {
			pendingPriority[pool[i].group]++
		}
	}

	for len(perm.Bits) < depth {
		best := -1
		for i := range pool {
			c := &pool[i]
			if c.selected {
				continue
			}
			if !c.priority && pendingPriority[c.group] > 0 {
				continue
			}
			if best < 0 || c.corr > pool[best].corr {
				best = i
			}
		}
		if best < 0 {
			break
		}
		chosen := &pool[best]
		chosen.selected = true
		if chosen.priority {
			pendingPriority[chosen.group]--
		}
		perm.Bits = append(perm.Bits, chosen.ref)
		perm.Correlations = append(perm.Correlations, chosen.corr)
		internal.DefaultLogger.Debug("permute: depth %d <- %s |corr|=%.4f",
			len(perm.Bits)-1, chosen.ref, chosen.corr)
	}

	return perm, nil
}

// targetSeries aligns the prediction target over the scored range
// t = lags..steps-1.
func targetSeries(raw [][]float64, codes *mic.Codes, target, lags int) []float64 {
	steps := codes.Steps()
	y := make([]float64, steps-lags)
	for t := lags; t < steps; t++ {
		if raw != nil {
			y[t-lags] = raw[t][target]
		} else {
			y[t-lags] = codes.Reconstruct(t, target)
		}
	}
	return y
}

// enumerateCandidates builds the full candidate pool in stable order:
// every bit of every spec variable at each historical lag, then every bit
// of each contemporaneous conditioning variable.
func enumerateCandidates(codes *mic.Codes, spec mic.ContextSpec, highPriorityBits []int) []candidate {
	var pool []candidate
	for lag := 1; lag <= spec.Lags; lag++ {
		for _, v := range spec.Variables {
			pool = appendVariableBits(pool, codes, spec, v, lag, highPriorityBits)
		}
	}
	for _, v := range spec.Conditioning() {
		pool = appendVariableBits(pool, codes, spec, v, 0, highPriorityBits)
	}
	return pool
}

func appendVariableBits(pool []candidate, codes *mic.Codes, spec mic.ContextSpec, v, lag int, highPriorityBits []int) []candidate {
	steps := codes.Steps()
	hp := 0
	if v < len(highPriorityBits) {
		hp = highPriorityBits[v]
	}
	for k := 0; k < codes.Spec.Resolution[v]; k++ {
		series := make([]float64, steps-spec.Lags)
		for t := spec.Lags; t < steps; t++ {
			series[t-spec.Lags] = float64(codes.Bit(t-lag, v, k))
		}
		pool = append(pool, candidate{
			ref:      mic.BitRef{Variable: v, Lag: lag, Bit: k},
			series:   series,
			priority: k < hp,
			group:    groupKey{variable: v, lag: lag},
		})
	}
	return pool
}

// absCorrelation is |Pearson correlation|, treating degenerate series
// (constant bit, zero variance) as uninformative.
func absCorrelation(x, y []float64) float64 {
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Abs(r)
}
