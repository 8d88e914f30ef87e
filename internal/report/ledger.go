package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gomic/models"
)

// LedgerMarkdown renders stored ledger runs as a Markdown report. Scores
// are keyed by run ID and may be missing for a run.
func LedgerMarkdown(runs []*models.EstimationRun, scores map[uuid.UUID][]models.RunScore) string {
	var b strings.Builder

	b.WriteString("# Run Ledger\n\n")
	fmt.Fprintf(&b, "Generated %s\n\n", time.Now().UTC().Format(time.RFC3339))

	if len(runs) == 0 {
		b.WriteString("No runs recorded.\n")
		return b.String()
	}

	b.WriteString("| Tag | Created | Lags | Depth | Capacity | Leaves | Branches | Failed Allocs |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, run := range runs {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d | %d | %d |\n",
			run.Tag, run.CreatedAt.Format(time.RFC3339), run.Lags, run.MaxDepth,
			run.Capacity, run.LeafNodes, run.BranchNodes, run.FailedAllocs)
	}
	b.WriteString("\n")

	for _, run := range runs {
		runScores, ok := scores[run.ID]
		if !ok || len(runScores) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (`%s`)\n\n", run.Tag, run.ID)
		b.WriteString("| Replication | Raw | Bias | Corrected | Steps |\n|---|---|---|---|---|\n")
		for _, s := range runScores {
			fmt.Fprintf(&b, "| %d | %.6f | %.6f | %.6f | %d |\n",
				s.Replication, s.Raw, s.Bias, s.Corrected, s.Steps)
		}
		b.WriteString("\n")
	}

	return b.String()
}
