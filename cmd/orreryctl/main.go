package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"orrery/internal/dataset"
	"orrery/internal/metric"
	"orrery/internal/stats"
	"orrery/internal/storage"
	orreryapi "orrery/pkg/orrery"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
	dbPathName   = "orrery.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "convergence":
		return runConvergence(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "generate":
		return runGenerate(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", dbPathName, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", dbPathName, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	datasetName := fs.String("dataset", "blobs", "synthetic dataset: "+strings.Join(dataset.Names(), "|"))
	dataCSV := fs.String("data-csv", "", "train on a numeric CSV instead of a synthetic dataset")
	normalize := fs.String("normalize", dataset.NormalizeNone, "per-column rescaling before training: "+strings.Join(dataset.NormalizationModes(), "|"))
	samples := fs.Int("samples", 500, "synthetic sample count")
	dim := fs.Int("dim", 3, "synthetic feature dimension")
	nodes := fs.Int("nodes", 64, "map node count")
	epochs := fs.Int("epochs", 20, "training epochs")
	batchSize := fs.Int("batch-size", 32, "samples per batch")
	referenceSize := fs.Int("reference-size", 1000, "convergence reference subsample size; <=0 uses every sample")
	significance := fs.Float64("significance", 0.05, "convergence significance level")
	learningRate := fs.Float64("lr", 0.5, "initial learning rate")
	radius := fs.Float64("radius", 2.0, "initial neighbor radius")
	minLR := fs.Float64("min-lr", 0.01, "learning rate floor")
	minRadius := fs.Float64("min-radius", 0.1, "neighbor radius floor")
	weightScale := fs.Float64("weight-scale", 0.1, "std dev of initial weights")
	coordRange := fs.Float64("coord-range", 10.0, "initial coordinate cube edge")
	metricName := fs.String("metric", metric.DefaultName, "distance metric: "+strings.Join(metric.Names(), "|"))
	workers := fs.Int("workers", 1, "parallel BMU search workers")
	seed := fs.Int64("seed", 1, "rng seed")
	saveFrames := fs.Bool("save-frames", false, "write per-epoch coordinate frames")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", dbPathName, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	verbose := fs.Bool("verbose", false, "log per-epoch progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	flagValues := map[string]any{
		"run-id":         *runID,
		"dataset":        *datasetName,
		"data-csv":       *dataCSV,
		"normalize":      *normalize,
		"samples":        *samples,
		"dim":            *dim,
		"nodes":          *nodes,
		"epochs":         *epochs,
		"batch-size":     *batchSize,
		"reference-size": *referenceSize,
		"significance":   *significance,
		"lr":             *learningRate,
		"radius":         *radius,
		"min-lr":         *minLR,
		"min-radius":     *minRadius,
		"weight-scale":   *weightScale,
		"coord-range":    *coordRange,
		"metric":         *metricName,
		"workers":        *workers,
		"seed":           *seed,
		"save-frames":    *saveFrames,
	}
	if *configPath == "" {
		// Without a config every flag applies, defaults included.
		for name := range flagValues {
			setFlags[name] = true
		}
	}
	if err := overrideFromFlags(&req, setFlags, flagValues); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, newLogger(*verbose))
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runSummaryOutput(summary))
	}

	fmt.Printf("run completed run_id=%s nodes=%d epochs=%d seed=%d\n", summary.RunID, req.Nodes, len(summary.ConvergenceHistory), req.Seed)
	for i, c := range summary.ConvergenceHistory {
		fmt.Printf("epoch=%d convergence=%.6f\n", i+1, c)
	}
	fmt.Printf("final_convergence=%.6f final_learning_rate=%.6f final_radius=%.6f\n",
		summary.FinalConvergence,
		summary.FinalLearningRate,
		summary.FinalNeighborRadius,
	)
	if summary.Frames > 0 {
		fmt.Printf("frames=%d\n", summary.Frames)
	}
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

type runSummaryJSON struct {
	RunID               string                   `json:"run_id"`
	ArtifactsDir        string                   `json:"artifacts_dir"`
	ConvergenceHistory  []float64                `json:"convergence_history"`
	FinalConvergence    float64                  `json:"final_convergence"`
	FinalLearningRate   float64                  `json:"final_learning_rate"`
	FinalNeighborRadius float64                  `json:"final_neighbor_radius"`
	Frames              int                      `json:"frames"`
	Summary             stats.ConvergenceSummary `json:"summary"`
}

func runSummaryOutput(s orreryapi.RunSummary) runSummaryJSON {
	return runSummaryJSON{
		RunID:               s.RunID,
		ArtifactsDir:        filepath.Clean(s.ArtifactsDir),
		ConvergenceHistory:  s.ConvergenceHistory,
		FinalConvergence:    s.FinalConvergence,
		FinalLearningRate:   s.FinalLearningRate,
		FinalNeighborRadius: s.FinalNeighborRadius,
		Frames:              s.Frames,
		Summary:             s.Summary,
	}
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *jsonOut {
		return writeJSON(entries)
	}

	for _, e := range entries {
		fmt.Printf("run_id=%s created_at=%s dataset=%s samples=%d dim=%d nodes=%d epochs=%d seed=%d final_convergence=%.6f\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Dataset,
			e.Samples,
			e.Dim,
			e.Nodes,
			e.Epochs,
			e.Seed,
			e.FinalConvergence,
		)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run from run index")
	limit := fs.Int("limit", 50, "max epochs to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", dbPathName, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelection(*runID, *latest, "diagnostics"); err != nil {
		return err
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := newClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, orreryapi.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}

	for _, d := range diagnostics {
		fmt.Printf("epoch=%d convergence=%.6f learning_rate=%.6f radius=%.6f mean_bmu_distance=%.6f mean_neighbors=%.2f coordinate_spread=%.6f\n",
			d.Epoch,
			d.Convergence,
			d.LearningRate,
			d.NeighborRadius,
			d.MeanBMUDistance,
			d.MeanNeighbors,
			d.CoordinateSpread,
		)
	}
	return nil
}

func runConvergence(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("convergence", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show convergence for the most recent run from run index")
	target := fs.Float64("target", 0.9, "convergence level reported as reached")
	jsonOut := fs.Bool("json", false, "emit history and summary as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", dbPathName, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelection(*runID, *latest, "convergence"); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.ConvergenceHistory(ctx, orreryapi.ConvergenceHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
	})
	if err != nil {
		return err
	}
	summary := stats.SummarizeConvergence(history, *target)
	if *jsonOut {
		return writeJSON(struct {
			History []float64                `json:"convergence_history"`
			Summary stats.ConvergenceSummary `json:"summary"`
		}{History: history, Summary: summary})
	}

	for i, c := range history {
		fmt.Printf("epoch=%d convergence=%.6f\n", i+1, c)
	}
	fmt.Printf("epochs=%d final=%.6f mean=%.6f std=%.6f min=%.6f max=%.6f first_epoch_at_target=%d regressions=%d\n",
		summary.Epochs,
		summary.Final,
		summary.Mean,
		summary.Std,
		summary.Min,
		summary.Max,
		summary.FirstEpochAtTarget,
		summary.Regressions,
	)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelection(*runID, *latest, "export"); err != nil {
		return err
	}

	client, err := newClient(storage.KindMemory, "", nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, orreryapi.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runGenerate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	datasetName := fs.String("dataset", "blobs", "synthetic dataset: "+strings.Join(dataset.Names(), "|"))
	samples := fs.Int("samples", 500, "sample count")
	dim := fs.Int("dim", 3, "feature dimension")
	seed := fs.Int64("seed", 1, "rng seed")
	out := fs.String("out", "", "output CSV path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("generate requires --out")
	}

	data, err := dataset.Generate(*datasetName, rand.New(rand.NewSource(*seed)), *samples, *dim)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(*out, data); err != nil {
		return err
	}

	rows, cols := data.Dims()
	fmt.Printf("generated dataset=%s samples=%d dim=%d to=%s\n", *datasetName, rows, cols, filepath.Clean(*out))
	return nil
}

func newClient(storeKind, dbPath string, logger *slog.Logger) (*orreryapi.Client, error) {
	return orreryapi.New(orreryapi.Options{
		StoreKind:    storeKind,
		DBPath:       dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
		Logger:       logger,
	})
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func checkRunSelection(runID string, latest bool, command string) error {
	if runID != "" && latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: orreryctl <init|reset|run|runs|diagnostics|convergence|export|generate> [flags]", msg)
}
