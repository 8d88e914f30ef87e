package mic

import "fmt"

// VariableDiagnostics summarizes quantization quality for one variable.
// It is computed once per quantization call and never mutated afterwards.
type VariableDiagnostics struct {
	Variable    int     `json:"variable"`
	ObservedMin float64 `json:"observed_min"`
	ObservedMax float64 `json:"observed_max"`
	OutOfBounds int     `json:"out_of_bounds"`

	// Signal-to-noise: TheoreticalSNR is the 6.02R+1.76 dB quantizer bound,
	// EffectiveSNR is measured from the actual signal and error variance.
	TheoreticalSNR float64 `json:"theoretical_snr_db"`
	EffectiveSNR   float64 `json:"effective_snr_db"`

	// Kolmogorov-Smirnov test of error uniformity over one bin width.
	KSStatistic float64 `json:"ks_statistic"`
	KSPValue    float64 `json:"ks_p_value"`

	// Ljung-Box test of error autocorrelation.
	LjungBoxStatistic float64 `json:"ljung_box_statistic"`
	LjungBoxLags      int     `json:"ljung_box_lags"`
	LjungBoxPValue    float64 `json:"ljung_box_p_value"`

	// Spearman rank correlation of error with quantized level, with the
	// two-sided p-value of its t approximation.
	SpearmanRho    float64 `json:"spearman_rho"`
	SpearmanPValue float64 `json:"spearman_p_value"`
}

// Summary renders a one-line operator-facing digest of the diagnostics.
func (d VariableDiagnostics) Summary() string {
	return fmt.Sprintf(
		"var %d: range [%.4g, %.4g] oob=%d snr=%.1f/%.1fdB ks=%.3f(p=%.3f) lb=%.2f(p=%.3f) rho=%.3f(p=%.3f)",
		d.Variable, d.ObservedMin, d.ObservedMax, d.OutOfBounds,
		d.EffectiveSNR, d.TheoreticalSNR,
		d.KSStatistic, d.KSPValue,
		d.LjungBoxStatistic, d.LjungBoxPValue,
		d.SpearmanRho, d.SpearmanPValue)
}

// QuantizationDiagnostics is the immutable per-call diagnostic report.
type QuantizationDiagnostics struct {
	PerVariable []VariableDiagnostics `json:"per_variable"`
}
