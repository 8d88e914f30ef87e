// Package mic holds the shared data model of the Markov Information
// Criterion estimation engine: quantization specs and codes, context
// specifications, bit permutations and score results. All algorithmic
// behavior lives in internal/quantize, internal/permute and internal/ctw;
// this package is pure types plus validation.
package mic

import (
	"fmt"

	"gomic/domain/core"
)

// DiagnosticsMode selects how much statistical work a quantization call does.
type DiagnosticsMode int

const (
	// DiagnosticsOff skips diagnostics entirely. This is the fast path used
	// for every call except exploratory ones.
	DiagnosticsOff DiagnosticsMode = iota
	// DiagnosticsQuiet computes the full diagnostics without logging them.
	DiagnosticsQuiet
	// DiagnosticsVerbose computes diagnostics and logs a formatted summary.
	DiagnosticsVerbose
)

// String returns the mode name
func (m DiagnosticsMode) String() string {
	switch m {
	case DiagnosticsOff:
		return "off"
	case DiagnosticsQuiet:
		return "quiet"
	case DiagnosticsVerbose:
		return "verbose"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// QuantizationSpec declares, per variable, the bounded range and the
// fixed bit resolution of the binary code.
type QuantizationSpec struct {
	Lower      []float64 `json:"lower"`
	Upper      []float64 `json:"upper"`
	Resolution []int     `json:"resolution"`
}

// Variables returns the number of variables covered by the spec.
func (s QuantizationSpec) Variables() int {
	return len(s.Resolution)
}

// BinWidth returns the quantization step for one variable.
func (s QuantizationSpec) BinWidth(variable int) float64 {
	return (s.Upper[variable] - s.Lower[variable]) / float64(uint64(1)<<uint(s.Resolution[variable]))
}

// Levels returns the number of quantization levels for one variable.
func (s QuantizationSpec) Levels(variable int) int {
	return 1 << uint(s.Resolution[variable])
}

// Validate checks the spec for caller errors. Violations are fatal
// (core.ErrInvalidSpec); out-of-range observations are not - those are
// clipped and counted at quantization time.
func (s QuantizationSpec) Validate() error {
	n := len(s.Resolution)
	if n == 0 {
		return core.NewInvalidSpecError("resolution", "at least one variable is required")
	}
	if len(s.Lower) != n || len(s.Upper) != n {
		return core.NewInvalidSpecError("bounds", fmt.Sprintf(
			"bound arrays must match resolution length %d (got lower=%d upper=%d)", n, len(s.Lower), len(s.Upper)))
	}
	for v := 0; v < n; v++ {
		if s.Resolution[v] < 1 {
			return core.NewInvalidSpecError("resolution", fmt.Sprintf("variable %d: resolution must be >= 1, got %d", v, s.Resolution[v]))
		}
		if s.Resolution[v] > 30 {
			return core.NewInvalidSpecError("resolution", fmt.Sprintf("variable %d: resolution %d exceeds 30 bits", v, s.Resolution[v]))
		}
		if !(s.Upper[v] > s.Lower[v]) {
			return core.NewInvalidSpecError("bounds", fmt.Sprintf("variable %d: upper %g must exceed lower %g", v, s.Upper[v], s.Lower[v]))
		}
	}
	return nil
}

// Equal reports whether two specs describe identical quantizations.
func (s QuantizationSpec) Equal(other QuantizationSpec) bool {
	if len(s.Resolution) != len(other.Resolution) {
		return false
	}
	for v := range s.Resolution {
		if s.Resolution[v] != other.Resolution[v] || s.Lower[v] != other.Lower[v] || s.Upper[v] != other.Upper[v] {
			return false
		}
	}
	return true
}

// Codes is a batch of binary observations: one quantization level per
// variable per time step, paired with the continuous discretization error
// retained for diagnostics. Levels are bit-addressable MSB first via Bit.
type Codes struct {
	Spec QuantizationSpec
	// Levels[t][v] is the quantization level of variable v at step t.
	Levels [][]uint32
	// Errors[t][v] is value minus reconstructed bin midpoint.
	Errors [][]float64
	// OutOfBounds[v] counts clipped observations of variable v.
	OutOfBounds []int
}

// Steps returns the number of time steps in the batch.
func (c *Codes) Steps() int {
	return len(c.Levels)
}

// Bit returns bit k (MSB first) of variable v at step t.
func (c *Codes) Bit(t, v, k int) uint8 {
	return uint8(c.Levels[t][v] >> uint(c.Spec.Resolution[v]-1-k) & 1)
}

// Reconstruct maps a level back to the bin midpoint in the original units.
func (c *Codes) Reconstruct(t, v int) float64 {
	w := c.Spec.BinWidth(v)
	return c.Spec.Lower[v] + (float64(c.Levels[t][v])+0.5)*w
}

// ContextSpec names the prediction target and the conditioning order of one
// estimation unit. Variables[0] is the target; any further entries are
// contemporaneous conditioning variables. Lags historical steps of every
// named variable contribute context bits.
type ContextSpec struct {
	Variables []int `json:"variables"`
	Lags      int   `json:"lags"`
	MaxDepth  int   `json:"max_depth"`
	Capacity  int   `json:"capacity"`
}

// Target returns the index of the predicted variable.
func (s ContextSpec) Target() int {
	return s.Variables[0]
}

// Conditioning returns the contemporaneous conditioning variables.
func (s ContextSpec) Conditioning() []int {
	return s.Variables[1:]
}

// Validate checks the context spec against a quantization spec.
func (s ContextSpec) Validate(q QuantizationSpec) error {
	if len(s.Variables) == 0 {
		return core.NewInvalidSpecError("variables", "target variable is required")
	}
	seen := make(map[int]bool, len(s.Variables))
	for _, v := range s.Variables {
		if v < 0 || v >= q.Variables() {
			return core.NewInvalidSpecError("variables", fmt.Sprintf("variable index %d outside [0,%d)", v, q.Variables()))
		}
		if seen[v] {
			return core.NewInvalidSpecError("variables", fmt.Sprintf("variable %d listed twice", v))
		}
		seen[v] = true
	}
	if s.Lags < 1 {
		return core.NewInvalidSpecError("lags", fmt.Sprintf("must be >= 1, got %d", s.Lags))
	}
	if s.MaxDepth < 1 {
		return core.NewInvalidSpecError("max_depth", fmt.Sprintf("must be >= 1, got %d", s.MaxDepth))
	}
	if s.MaxDepth > MaxTreeDepth {
		return core.NewInvalidSpecError("max_depth", fmt.Sprintf("must be <= %d, got %d", MaxTreeDepth, s.MaxDepth))
	}
	if s.Capacity < 1 {
		return core.NewInvalidSpecError("capacity", fmt.Sprintf("must be >= 1, got %d", s.Capacity))
	}
	return nil
}

// MaxTreeDepth bounds the context length so a path fits in one 64-bit
// register together with its leading sentinel bit.
const MaxTreeDepth = 56

// BitRef names one candidate context bit: bit index Bit (MSB first) of
// Variable observed Lag steps in the past. Lag 0 is contemporaneous.
type BitRef struct {
	Variable int `json:"variable"`
	Lag      int `json:"lag"`
	Bit      int `json:"bit"`
}

// String renders the reference the way selection logs print it.
func (r BitRef) String() string {
	if r.Lag == 0 {
		return fmt.Sprintf("v%d.b%d", r.Variable, r.Bit)
	}
	return fmt.Sprintf("v%d.b%d@-%d", r.Variable, r.Bit, r.Lag)
}

// BitPermutation is the fixed ordering of context bits selected for one
// ContextSpec. Position i of Bits is read at tree depth i. Once computed
// the permutation is shared immutably by all training and scoring calls
// for that spec.
type BitPermutation struct {
	Bits []BitRef `json:"bits"`
	// Correlations[i] is |corr| of Bits[i] with the target's raw series at
	// selection time. Diagnostic only.
	Correlations []float64 `json:"correlations"`
}

// Depth returns the number of context bits in the permutation.
func (p BitPermutation) Depth() int {
	return len(p.Bits)
}

// Equal reports whether two permutations order the same bits identically.
func (p BitPermutation) Equal(other BitPermutation) bool {
	if len(p.Bits) != len(other.Bits) {
		return false
	}
	for i := range p.Bits {
		if p.Bits[i] != other.Bits[i] {
			return false
		}
	}
	return true
}

// ScoreResult carries held-out scoring output: one raw log-score and one
// Rissanen bias-correction term per time step past warm-up. LogScores[i]
// belongs to input step Warmup+i. Units are bits (log base 2); log-scores
// are negative log-probabilities, so smaller is better.
type ScoreResult struct {
	LogScores []float64 `json:"log_scores"`
	Bias      []float64 `json:"bias"`
	// Warmup is the number of leading steps consumed as lag history.
	Warmup int `json:"warmup"`
	// DistinctContexts is the number of distinct terminal nodes visited,
	// the model-complexity measure behind the bias terms.
	DistinctContexts int `json:"distinct_contexts"`
}

// Steps returns the number of scored observations.
func (r ScoreResult) Steps() int {
	return len(r.LogScores)
}

// Total returns the summed raw log-score in bits.
func (r ScoreResult) Total() float64 {
	sum := 0.0
	for _, s := range r.LogScores {
		sum += s
	}
	return sum
}

// TotalBias returns the summed bias correction in bits.
func (r ScoreResult) TotalBias() float64 {
	sum := 0.0
	for _, b := range r.Bias {
		sum += b
	}
	return sum
}

// Corrected returns the bias-corrected total: raw minus correction, the
// approximately unbiased cross-entropy estimate callers compare across
// models.
func (r ScoreResult) Corrected() float64 {
	return r.Total() - r.TotalBias()
}
