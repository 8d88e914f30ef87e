// Package report renders estimation outcomes as Markdown and HTML.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gomic/domain/core"
	"gomic/internal/estimate"
)

// Markdown renders a full estimation report: one section per pipeline
// result and one per model comparison.
func Markdown(results []*estimate.Result, comparisons []estimate.Comparison) string {
	var b strings.Builder

	b.WriteString("# MIC Estimation Report\n\n")
	fmt.Fprintf(&b, "Generated %s\n\n", time.Now().UTC().Format(time.RFC3339))

	if len(results) > 0 {
		b.WriteString("## Models\n\n")
		b.WriteString("| Tag | Mean Corrected MIC | Replications | Nodes Used | Failed Allocs | Elapsed |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, r := range results {
			fmt.Fprintf(&b, "| %s | %.6f | %d | %d/%d | %d | %s |\n",
				r.Tag, meanCorrected(r), len(r.Replications),
				r.Snapshot.LeafNodes+r.Snapshot.BranchNodes, r.Snapshot.Capacity,
				r.Snapshot.FailedAllocs, r.Elapsed.Round(time.Millisecond))
		}
		b.WriteString("\n")

		for _, r := range results {
			writeResultSection(&b, r)
		}
	}

	if len(comparisons) > 0 {
		b.WriteString("## Comparisons\n\n")
		for _, c := range comparisons {
			writeComparisonSection(&b, c)
		}
	}

	return b.String()
}

func writeResultSection(b *strings.Builder, r *estimate.Result) {
	fmt.Fprintf(b, "### %s\n\n", r.Tag)
	fmt.Fprintf(b, "- Run ID: `%s`\n", r.RunID)
	fmt.Fprintf(b, "- Target variable: %d\n", r.Target)
	fmt.Fprintf(b, "- Training fingerprint: `%s`\n", r.TrainingData)
	fmt.Fprintf(b, "- Trained steps: %d\n", r.Snapshot.TrainedSteps)
	fmt.Fprintf(b, "- Arena: %d leaves, %d branches, %d free (capacity %d)\n",
		r.Snapshot.LeafNodes, r.Snapshot.BranchNodes, r.Snapshot.FreeNodes, r.Snapshot.Capacity)
	fmt.Fprintf(b, "- Counter rescalings: %d, failed allocations: %d\n",
		r.Snapshot.Rescalings, r.Snapshot.FailedAllocs)
	fmt.Fprintf(b, "- Probe lengths: leaf avg %.2f (max %d), branch avg %.2f (max %d)\n",
		r.Snapshot.LeafProbes.Avg, r.Snapshot.LeafProbes.Max,
		r.Snapshot.BranchProbes.Avg, r.Snapshot.BranchProbes.Max)
	fmt.Fprintf(b, "- Phase time: hashing %s, mixing %s\n\n",
		r.Snapshot.HashTime.Round(time.Millisecond), r.Snapshot.MixTime.Round(time.Millisecond))

	if len(r.Permutation.Bits) > 0 {
		b.WriteString("Conditioning order:\n\n")
		b.WriteString("| Rank | Bit | Abs Corr |\n|---|---|---|\n")
		for i, ref := range r.Permutation.Bits {
			corr := 0.0
			if i < len(r.Permutation.Correlations) {
				corr = r.Permutation.Correlations[i]
			}
			fmt.Fprintf(b, "| %d | %s | %.4f |\n", i+1, ref, corr)
		}
		b.WriteString("\n")
	}

	if len(r.Replications) > 0 {
		b.WriteString("| Replication | Raw | Bias | Corrected | Steps |\n|---|---|---|---|---|\n")
		for _, rep := range r.Replications {
			fmt.Fprintf(b, "| %d | %.6f | %.6f | %.6f | %d |\n",
				rep.Replication, rep.Raw, rep.Bias, rep.Corrected, rep.Steps)
		}
		b.WriteString("\n")
	}
}

func writeComparisonSection(b *strings.Builder, c estimate.Comparison) {
	fmt.Fprintf(b, "### %s vs %s\n\n", c.TagA, c.TagB)
	if !core.ID(c.ID).IsEmpty() {
		fmt.Fprintf(b, "- Comparison ID: `%s`\n", c.ID)
	}
	fmt.Fprintf(b, "- Mean difference (A - B): %.6f bits/step\n", c.MeanDiff)
	fmt.Fprintf(b, "- Std of differences: %.6f\n", c.StdDiff)
	fmt.Fprintf(b, "- Paired t: %.4f on %d df, p = %.4g\n", c.TStat, c.DF, c.PValue)
	if tag := c.Preferred(); tag != "" {
		fmt.Fprintf(b, "- Preferred model: **%s**\n\n", tag)
	} else {
		b.WriteString("- Preferred model: tie\n\n")
	}
}

func meanCorrected(r *estimate.Result) float64 {
	if len(r.Replications) == 0 {
		return 0
	}
	sum := 0.0
	for _, rep := range r.Replications {
		sum += rep.Corrected
	}
	return sum / float64(len(r.Replications))
}

// HTML converts a Markdown report into a standalone HTML document.
func HTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "MIC Estimation Report",
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}
