package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gomic/adapters/excel"
	"gomic/adapters/memory"
	"gomic/adapters/postgres"
	"gomic/adapters/postgres/migrations"
	"gomic/domain/core"
	"gomic/domain/mic"
	"gomic/internal"
	"gomic/internal/config"
	"gomic/internal/ctw"
	"gomic/internal/estimate"
	"gomic/internal/quantize"
	"gomic/internal/report"
	"gomic/internal/testkit"
	"gomic/ports"
)

func main() {
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "gomic",
		Short: "Markov Information Criterion estimation over quantized time series",
	}

	rootCmd.AddCommand(
		newQuantizeCmd(),
		newEstimateCmd(),
		newCompareCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newQuantizeCmd() *cobra.Command {
	var resolution int
	var sheet string

	cmd := &cobra.Command{
		Use:   "quantize [dataset-file]",
		Short: "Quantize a dataset and print per-variable diagnostics",
		Long: `Quantize every column of an xlsx or csv dataset to a fixed bit
resolution and report signal-to-noise, error uniformity (KS), error
whiteness (Ljung-Box) and error/level independence (Spearman) per column.

Bounds are taken from the observed range of each column.

Example: gomic quantize data.csv --resolution 7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuantize(args[0], sheet, resolution)
		},
	}

	cmd.Flags().IntVar(&resolution, "resolution", 7, "Bits per variable")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet name for xlsx files")

	return cmd
}

func runQuantize(file, sheet string, resolution int) error {
	headers, data, err := excel.NewDataReader(file, sheet).ReadMatrix()
	if err != nil {
		return err
	}

	spec := specFromData(data, resolution)
	_, diag, err := quantize.Quantize(data, spec, mic.DiagnosticsQuiet)
	if err != nil {
		return err
	}

	fmt.Printf("Quantized %d steps x %d variables at %d bits\n", len(data), len(headers), resolution)
	for v, d := range diag.PerVariable {
		name := fmt.Sprintf("var %d", v)
		if v < len(headers) {
			name = headers[v]
		}
		fmt.Printf("%-20s %s\n", name, d.Summary())
	}
	return nil
}

func newEstimateCmd() *cobra.Command {
	var flags estimateFlags

	cmd := &cobra.Command{
		Use:   "estimate [dataset-file]",
		Short: "Train a context tree and score held-out replications",
		Long: `Run one full estimation pipeline: quantize the training span,
select a context bit ordering, train the context tree and score the
held-out replications.

With no dataset file a seeded coupled autoregressive process is
generated instead, so the command works standalone.

Example: gomic estimate data.csv --target 0 --replications 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) > 0 {
				file = args[0]
			}
			return runEstimate(cmd.Context(), file, flags)
		},
	}

	flags.register(cmd)
	return cmd
}

type estimateFlags struct {
	target       int
	replications int
	seed         int64
	steps        int
	sheet        string
	out          string
	treeOut      string
}

func (f *estimateFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.target, "target", 0, "Index of the predicted variable")
	cmd.Flags().IntVar(&f.replications, "replications", 5, "Held-out replications to score")
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "Random seed for the synthetic demo process")
	cmd.Flags().IntVar(&f.steps, "steps", 10000, "Steps of the synthetic demo process")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet name for xlsx files")
	cmd.Flags().StringVar(&f.out, "out", "", "Write a Markdown report to this path")
	cmd.Flags().StringVar(&f.treeOut, "tree", "", "Serialize the trained tree to this path")
}

func runEstimate(ctx context.Context, file string, flags estimateFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	training, heldOut, variables, err := loadOrGenerate(file, flags, cfg)
	if err != nil {
		return err
	}
	if flags.target < 0 || flags.target >= variables {
		return core.NewInvalidSpecError("target", fmt.Sprintf("index %d outside [0,%d)", flags.target, variables))
	}

	unit := buildUnit("estimate", training, flags.target, variables, cfg)
	result, err := estimate.Run(ctx, unit, heldOut)
	if err != nil {
		return err
	}

	printResult(result)

	if flags.treeOut != "" {
		if err := saveTree(result.Tree, flags.treeOut); err != nil {
			return err
		}
		fp, err := result.Tree.Fingerprint()
		if err != nil {
			return err
		}
		fmt.Printf("Tree state written to %s (fingerprint %s)\n", flags.treeOut, fp)
	}
	if flags.out != "" {
		md := report.Markdown([]*estimate.Result{result}, nil)
		if err := os.WriteFile(flags.out, []byte(md), 0644); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", flags.out)
	}

	return persistResults(ctx, cfg, result)
}

func newCompareCmd() *cobra.Command {
	var flags estimateFlags

	cmd := &cobra.Command{
		Use:   "compare [dataset-file]",
		Short: "Compare conditioned vs unconditioned models of the target",
		Long: `Estimate the target variable twice on the same data, once
conditioning on every other variable and once on its own history alone,
then run a paired t-test on the corrected per-replication scores.

A decisively negative mean difference means the extra conditioning
variables carry real predictive information about the target.

Example: gomic compare data.csv --target 0 --replications 8`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) > 0 {
				file = args[0]
			}
			return runCompare(cmd.Context(), file, flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runCompare(ctx context.Context, file string, flags estimateFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	training, heldOut, variables, err := loadOrGenerate(file, flags, cfg)
	if err != nil {
		return err
	}
	if flags.target < 0 || flags.target >= variables {
		return core.NewInvalidSpecError("target", fmt.Sprintf("index %d outside [0,%d)", flags.target, variables))
	}
	if variables < 2 {
		return core.NewInvalidSpecError("variables", "comparison needs at least two variables")
	}

	conditioned := buildUnit("conditioned", training, flags.target, variables, cfg)
	marginal := buildUnit("marginal", training, flags.target, variables, cfg)
	marginal.CSpec.Variables = []int{flags.target}

	results, err := estimate.RunAll(ctx, []estimate.Unit{conditioned, marginal}, heldOut, cfg.Estimation.Workers)
	if err != nil {
		return err
	}

	cmp, err := estimate.Compare(results[0], results[1])
	if err != nil {
		return err
	}

	for _, r := range results {
		printResult(r)
	}
	fmt.Printf("\nmean diff %.6f bits (t=%.3f, df=%d, p=%.4g)\n", cmp.MeanDiff, cmp.TStat, cmp.DF, cmp.PValue)
	if tag := cmp.Preferred(); tag != "" {
		fmt.Printf("preferred: %s\n", tag)
	} else {
		fmt.Println("preferred: tie")
	}

	if flags.out != "" {
		md := report.Markdown(results, []estimate.Comparison{cmp})
		if err := os.WriteFile(flags.out, []byte(md), 0644); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", flags.out)
	}

	return persistResults(ctx, cfg, results...)
}

// loadOrGenerate returns training data, held-out replications and the
// variable count, from a dataset file when given and the seeded demo
// process otherwise. File data is split 70/30 between training and
// held-out replications.
func loadOrGenerate(file string, flags estimateFlags, cfg *config.Config) ([][]float64, [][][]float64, int, error) {
	if file == "" && cfg.Data.DatasetFile != "" {
		file = cfg.Data.DatasetFile
	}

	if file != "" {
		sheet := flags.sheet
		if sheet == "" {
			sheet = cfg.Data.SheetName
		}
		_, data, err := excel.NewDataReader(file, sheet).ReadMatrix()
		if err != nil {
			return nil, nil, 0, err
		}
		split := len(data) * 7 / 10
		training := data[:split]
		heldOut := testkit.Replications(data[split:], flags.replications)
		if len(training) == 0 || len(heldOut) == 0 {
			return nil, nil, 0, core.ErrInsufficientData
		}
		return training, heldOut, len(data[0]), nil
	}

	gen := testkit.NewSeriesGenerator(testkit.SeriesConfig{
		Steps:     flags.steps,
		Variables: 2,
		Seed:      flags.seed,
		ARCoeff:   0.8,
		Coupling:  0.3,
		NoiseStd:  0.25,
	})
	training := gen.CoupledAR()
	heldOut := testkit.Replications(gen.CoupledAR(), flags.replications)
	return training, heldOut, 2, nil
}

func buildUnit(label string, training [][]float64, target, variables int, cfg *config.Config) estimate.Unit {
	spec := specFromData(training, cfg.Estimation.Resolution)

	vars := make([]int, 0, variables)
	vars = append(vars, target)
	for v := 0; v < variables; v++ {
		if v != target {
			vars = append(vars, v)
		}
	}

	return estimate.Unit{
		Tag:      core.ModelTag(label),
		Training: training,
		QSpec:    spec,
		CSpec: mic.ContextSpec{
			Variables: vars,
			Lags:      cfg.Estimation.Lags,
			MaxDepth:  cfg.Estimation.MaxDepth,
			Capacity:  cfg.Estimation.Capacity,
		},
	}
}

// specFromData derives equal-width quantization bounds from the observed
// range of each column, widened slightly so boundary values stay in range.
func specFromData(data [][]float64, resolution int) mic.QuantizationSpec {
	n := len(data[0])
	spec := mic.QuantizationSpec{
		Lower:      make([]float64, n),
		Upper:      make([]float64, n),
		Resolution: make([]int, n),
	}
	for v := 0; v < n; v++ {
		lo, hi := data[0][v], data[0][v]
		for _, row := range data {
			if row[v] < lo {
				lo = row[v]
			}
			if row[v] > hi {
				hi = row[v]
			}
		}
		if hi == lo {
			hi = lo + 1
		}
		margin := (hi - lo) * 0.001
		spec.Lower[v] = lo - margin
		spec.Upper[v] = hi + margin
		spec.Resolution[v] = resolution
	}
	return spec
}

func printResult(r *estimate.Result) {
	fmt.Printf("\n%s (run %s)\n", r.Tag, r.RunID)
	fmt.Printf("  nodes %d/%d  failed allocs %d  rescalings %d\n",
		r.Snapshot.LeafNodes+r.Snapshot.BranchNodes, r.Snapshot.Capacity,
		r.Snapshot.FailedAllocs, r.Snapshot.Rescalings)
	for _, rep := range r.Replications {
		fmt.Printf("  replication %d: raw %.4f  bias %.4f  corrected %.4f (%d steps)\n",
			rep.Replication, rep.Raw, rep.Bias, rep.Corrected, rep.Steps)
	}
}

func saveTree(tree *ctw.Tree, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return tree.Save(f)
}

// persistResults writes runs to the PostgreSQL ledger when one is
// configured. Without a database the records are printed as JSON so the
// run is still auditable.
func persistResults(ctx context.Context, cfg *config.Config, results ...*estimate.Result) error {
	var ledger ports.RunLedger
	if cfg.Database.Enabled() {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrations.Up(ctx, db.DB); err != nil {
			return err
		}
		ledger = postgres.NewRunRepository(db)
	} else {
		ledger = memory.NewRunLedger()
	}

	for _, r := range results {
		run, scores := r.LedgerRecord()
		if err := ledger.SaveRun(ctx, run, scores); err != nil {
			return err
		}
		if !cfg.Database.Enabled() {
			encoded, _ := json.Marshal(run)
			internal.DefaultLogger.Debug("run record (not persisted): %s", encoded)
		}
	}
	if cfg.Database.Enabled() {
		internal.DefaultLogger.Info("Persisted %d run(s) to ledger", len(results))
	}
	return nil
}
