package estimate

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"gomic/domain/core"
	"gomic/internal/errors"
)

// Comparison is the paired statistical contrast of two models scored on
// the same held-out replications. Negative MeanDiff means model A
// achieved the lower (better) corrected MIC.
type Comparison struct {
	ID   core.ComparisonID `json:"id"`
	TagA core.ModelTag     `json:"tag_a"`
	TagB core.ModelTag     `json:"tag_b"`

	// Diffs[i] = corrected MIC of A minus B on replication i.
	Diffs    []float64 `json:"diffs"`
	MeanDiff float64   `json:"mean_diff"`
	StdDiff  float64   `json:"std_diff"`
	TStat    float64   `json:"t_stat"`
	PValue   float64   `json:"p_value"`
	DF       int       `json:"df"`
}

// Compare runs a paired t-test on the per-replication corrected scores of
// two pipeline results. Replication i of one model pairs with replication
// i of the other because both scored the identical held-out data.
func Compare(a, b *Result) (Comparison, error) {
	if len(a.Replications) != len(b.Replications) {
		return Comparison{}, errors.InvalidInput("results cover different replication counts")
	}
	n := len(a.Replications)
	if n < 2 {
		return Comparison{}, errors.InvalidInput("need at least two replications for a paired test")
	}

	diffs := make([]float64, n)
	for i := 0; i < n; i++ {
		diffs[i] = a.Replications[i].Corrected - b.Replications[i].Corrected
	}

	mean, _ := stats.Mean(diffs)
	sd, _ := stats.StandardDeviationSample(diffs)

	cmp := Comparison{
		ID:       core.ComparisonID(core.NewID()),
		TagA:     a.Tag,
		TagB:     b.Tag,
		Diffs:    diffs,
		MeanDiff: mean,
		StdDiff:  sd,
		DF:       n - 1,
	}

	if sd == 0 {
		// All replications agree exactly; the direction is certain.
		if mean != 0 {
			cmp.TStat = math.Inf(sign(mean))
			cmp.PValue = 0
		} else {
			cmp.PValue = 1
		}
		return cmp, nil
	}

	cmp.TStat = mean / (sd / math.Sqrt(float64(n)))
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	cmp.PValue = 2 * (1 - tDist.CDF(math.Abs(cmp.TStat)))
	return cmp, nil
}

func sign(x float64) int {
	if x < 0 {
		return -1
	}
	return 1
}

// Preferred returns the tag of the model with the lower mean corrected
// MIC, or empty when the comparison is a tie.
func (c Comparison) Preferred() core.ModelTag {
	switch {
	case c.MeanDiff < 0:
		return c.TagA
	case c.MeanDiff > 0:
		return c.TagB
	default:
		return ""
	}
}
