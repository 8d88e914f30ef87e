package quantize

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"gomic/domain/mic"
)

// computeDiagnostics runs the full per-variable diagnostic battery on a
// quantized batch. A well-behaved quantizer leaves errors uniform over one
// bin width, serially uncorrelated and independent of the quantized level;
// each test below probes one of those properties.
func computeDiagnostics(data [][]float64, codes *mic.Codes) *mic.QuantizationDiagnostics {
	nVars := codes.Spec.Variables()
	diag := &mic.QuantizationDiagnostics{
		PerVariable: make([]mic.VariableDiagnostics, nVars),
	}

	for v := 0; v < nVars; v++ {
		raw := column(data, v)
		errs := make([]float64, codes.Steps())
		levels := make([]float64, codes.Steps())
		for t := range errs {
			errs[t] = codes.Errors[t][v]
			levels[t] = float64(codes.Levels[t][v])
		}

		d := mic.VariableDiagnostics{
			Variable:    v,
			OutOfBounds: codes.OutOfBounds[v],
		}
		d.ObservedMin, _ = stats.Min(raw)
		d.ObservedMax, _ = stats.Max(raw)

		d.TheoreticalSNR = 6.0206*float64(codes.Spec.Resolution[v]) + 1.7609
		d.EffectiveSNR = effectiveSNR(raw, errs)

		d.KSStatistic, d.KSPValue = ksUniformTest(errs, codes.Spec.BinWidth(v))
		d.LjungBoxStatistic, d.LjungBoxLags, d.LjungBoxPValue = ljungBoxTest(errs)
		d.SpearmanRho, d.SpearmanPValue = spearmanTest(errs, levels)

		diag.PerVariable[v] = d
	}
	return diag
}

func column(data [][]float64, v int) []float64 {
	out := make([]float64, len(data))
	for t := range data {
		out[t] = data[t][v]
	}
	return out
}

// effectiveSNR measures the realized signal-to-quantization-noise ratio in
// dB. Degenerate variance on either side collapses to +/-Inf-free zero.
func effectiveSNR(signal, errs []float64) float64 {
	sigVar, _ := stats.PopulationVariance(signal)
	errVar, _ := stats.PopulationVariance(errs)
	if sigVar <= 0 || errVar <= 0 {
		return 0
	}
	return 10 * math.Log10(sigVar/errVar)
}

// ksUniformTest runs a one-sample Kolmogorov-Smirnov test of the errors
// against the uniform distribution on [-w/2, w/2]. The p-value uses the
// standard asymptotic series with the small-sample correction of the
// effective sample size.
func ksUniformTest(errs []float64, binWidth float64) (float64, float64) {
	n := len(errs)
	if n < 2 || binWidth <= 0 {
		return 0, 1
	}
	u := make([]float64, n)
	for i, e := range errs {
		x := e/binWidth + 0.5
		if x < 0 {
			x = 0
		}
		if x > 1 {
			x = 1
		}
		u[i] = x
	}
	sort.Float64s(u)

	d := 0.0
	for i, x := range u {
		upper := float64(i+1)/float64(n) - x
		lower := x - float64(i)/float64(n)
		if upper > d {
			d = upper
		}
		if lower > d {
			d = lower
		}
	}

	sqrtN := math.Sqrt(float64(n))
	lambda := (sqrtN + 0.12 + 0.11/sqrtN) * d
	return d, ksPValue(lambda)
}

// ksPValue evaluates the asymptotic Kolmogorov tail probability
// Q(lambda) = 2 * sum_{k>=1} (-1)^{k-1} exp(-2 k^2 lambda^2).
func ksPValue(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	sum := 0.0
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * math.Exp(-2*float64(k*k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// ljungBoxTest computes the Ljung-Box portmanteau statistic over an
// automatic lag horizon and its chi-squared p-value.
func ljungBoxTest(errs []float64) (float64, int, float64) {
	n := len(errs)
	h := n / 5
	if h > 20 {
		h = 20
	}
	if h < 1 {
		return 0, 0, 1
	}

	mean := stat.Mean(errs, nil)
	variance := 0.0
	for _, e := range errs {
		diff := e - mean
		variance += diff * diff
	}
	if variance == 0 {
		return 0, h, 1
	}

	q := 0.0
	for k := 1; k <= h; k++ {
		acov := 0.0
		for t := k; t < n; t++ {
			acov += (errs[t] - mean) * (errs[t-k] - mean)
		}
		rho := acov / variance
		q += rho * rho / float64(n-k)
	}
	q *= float64(n) * float64(n+2)

	chi := distuv.ChiSquared{K: float64(h)}
	p := 1 - chi.CDF(q)
	return q, h, p
}

// spearmanTest computes the rank correlation between quantization error
// and quantized level plus the two-sided p-value of its t approximation.
// A significant correlation means the error carries signal the code lost.
func spearmanTest(errs, levels []float64) (float64, float64) {
	n := len(errs)
	if n < 4 {
		return 0, 1
	}
	rho := stat.Correlation(ranks(errs), ranks(levels), nil)
	if math.IsNaN(rho) {
		return 0, 1
	}
	if rho > 1 {
		rho = 1
	}
	if rho < -1 {
		rho = -1
	}

	if 1-rho*rho < 1e-12 {
		return rho, 0
	}
	tStat := rho * math.Sqrt(float64(n-2)/(1-rho*rho))
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	p := 2 * (1 - tDist.CDF(math.Abs(tStat)))
	if p > 1 {
		p = 1
	}
	return rho, p
}

// ranks converts values to fractional ranks, averaging ties.
func ranks(data []float64) []float64 {
	n := len(data)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return data[idx[a]] < data[idx[b]]
	})

	out := make([]float64, n)
	i := 0
	for i < n {
		j := i + 1
		for j < n && data[idx[j]] == data[idx[i]] {
			j++
		}
		avgRank := float64(i+1) + float64(j-i-1)/2.0
		for k := i; k < j; k++ {
			out[idx[k]] = avgRank
		}
		i = j
	}
	return out
}
