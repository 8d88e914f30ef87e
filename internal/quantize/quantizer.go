// Package quantize maps bounded continuous multivariate series onto
// fixed-resolution binary codes and runs statistical diagnostics on the
// quantization error. Encoding is the hot path of every estimation run;
// the diagnostics are exploratory and only computed on request.
package quantize

import (
	"gomic/domain/core"
	"gomic/domain/mic"
	"gomic/internal"
)

// Quantize encodes each row of data into one quantization level per
// variable. Values outside the declared bounds are clipped and counted,
// never rejected; the per-variable counts come back inside the Codes.
//
// The discretization error (value minus reconstructed bin midpoint) is
// retained for every observation so diagnostics can run on the exact
// batch that was encoded. Diagnostics are computed only when mode is
// Quiet or Verbose; Verbose additionally logs a per-variable summary.
func Quantize(data [][]float64, spec mic.QuantizationSpec, mode mic.DiagnosticsMode) (*mic.Codes, *mic.QuantizationDiagnostics, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	if len(data) == 0 {
		return nil, nil, core.NewInvalidSpecError("data", "empty observation sequence")
	}
	nVars := spec.Variables()

	codes := &mic.Codes{
		Spec:        spec,
		Levels:      make([][]uint32, len(data)),
		Errors:      make([][]float64, len(data)),
		OutOfBounds: make([]int, nVars),
	}

	for t, row := range data {
		if len(row) != nVars {
			return nil, nil, core.NewInvalidSpecError("data",
				"row length does not match variable count")
		}
		levels := make([]uint32, nVars)
		errs := make([]float64, nVars)
		for v := 0; v < nVars; v++ {
			level, err, oob := encodeValue(row[v], spec, v)
			levels[v] = level
			errs[v] = err
			if oob {
				codes.OutOfBounds[v]++
			}
		}
		codes.Levels[t] = levels
		codes.Errors[t] = errs
	}

	if mode == mic.DiagnosticsOff {
		return codes, nil, nil
	}

	diag := computeDiagnostics(data, codes)
	if mode == mic.DiagnosticsVerbose {
		for _, d := range diag.PerVariable {
			internal.DefaultLogger.Info("quantize %s", d.Summary())
		}
	}
	return codes, diag, nil
}

// encodeValue maps one value into its equal-width bin. The returned error
// is value minus the bin midpoint, measured against the raw (unclipped)
// value so clipping shows up in the error distribution.
func encodeValue(value float64, spec mic.QuantizationSpec, v int) (uint32, float64, bool) {
	lo, hi := spec.Lower[v], spec.Upper[v]
	levels := spec.Levels(v)
	w := spec.BinWidth(v)

	oob := value < lo || value > hi
	clipped := value
	if clipped < lo {
		clipped = lo
	}
	if clipped > hi {
		clipped = hi
	}

	level := int((clipped - lo) / w)
	if level >= levels {
		level = levels - 1
	}
	midpoint := lo + (float64(level)+0.5)*w
	return uint32(level), value - midpoint, oob
}

// CoarsenSpec derives the spec obtained by keeping only the keepBits most
// significant bits of every variable. Re-quantizing through the coarsened
// spec answers how much of the raw signal the top bits alone preserve -
// the same encode and error logic, just fewer bins.
func CoarsenSpec(spec mic.QuantizationSpec, keepBits []int) mic.QuantizationSpec {
	out := mic.QuantizationSpec{
		Lower:      append([]float64(nil), spec.Lower...),
		Upper:      append([]float64(nil), spec.Upper...),
		Resolution: make([]int, len(spec.Resolution)),
	}
	for v, r := range spec.Resolution {
		keep := r
		if v < len(keepBits) && keepBits[v] > 0 && keepBits[v] < r {
			keep = keepBits[v]
		}
		out.Resolution[v] = keep
	}
	return out
}
