// Package orrery is the embeddable entry point for training Self-Organizing
// Orrery maps, persisting their run records and exporting their artifacts.
package orrery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"orrery/internal/dataset"
	"orrery/internal/metric"
	"orrery/internal/model"
	"orrery/internal/som"
	"orrery/internal/stats"
	"orrery/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "orrery.db"

	defaultDataset           = "blobs"
	defaultSamples           = 500
	defaultDim               = 3
	defaultNodes             = 64
	defaultEpochs            = 20
	defaultConvergenceTarget = 0.9
	csvDatasetName           = "csv"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	// Logger receives run and training progress; nil discards it.
	Logger *slog.Logger
}

type Client struct {
	store       storage.Store
	initialized bool
	log         *slog.Logger

	artifactsDir string
	exportsDir   string
}

// ConvergenceSummary condenses a run's convergence history.
type ConvergenceSummary = stats.ConvergenceSummary

type RunRequest struct {
	// RunID overrides the generated <dataset>-<uuid> identifier.
	RunID string
	// Dataset names a synthetic generator; ignored when DataCSVPath is set.
	Dataset     string
	DataCSVPath string
	Samples     int
	Dim         int
	// Normalize rescales each feature column before training: none|minmax|zscore.
	Normalize string

	Nodes     int
	Epochs    int
	BatchSize int
	// ReferenceSize <= 0 measures convergence against every sample.
	ReferenceSize  int
	Significance   float64
	LearningRate   float64
	NeighborRadius float64
	// MinLearningRate and MinNeighborRadius are the decay floors; nil selects
	// the package defaults, an explicit 0 disables the floor.
	MinLearningRate   *float64
	MinNeighborRadius *float64
	WeightScale       float64
	CoordinateRange   float64
	Metric            string
	Workers           int
	Seed              int64
	SaveFrames        bool
}

type RunSummary struct {
	RunID               string
	ArtifactsDir        string
	ConvergenceHistory  []float64
	FinalConvergence    float64
	FinalLearningRate   float64
	FinalNeighborRadius float64
	Summary             ConvergenceSummary
	Frames              int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Dataset          string
	Samples          int
	Nodes            int
	Dim              int
	Epochs           int
	Seed             int64
	FinalConvergence float64
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ConvergenceHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		log:          logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureInit(ctx)
}

// Reset clears the store. Artifact directories on disk are left alone.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureInit(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := applyRunDefaults(&req); err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return RunSummary{}, err
	}

	data, err := loadRunData(req)
	if err != nil {
		return RunSummary{}, err
	}
	data, err = dataset.Normalize(data, req.Normalize)
	if err != nil {
		return RunSummary{}, err
	}
	req.Samples, req.Dim = data.Dims()

	distance, err := metric.Resolve(req.Metric, req.Workers)
	if err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := req.RunID
	if runID == "" {
		runID = fmt.Sprintf("%s-%s", req.Dataset, uuid.NewString())
	}
	logger := c.log.With("run_id", runID)

	mapCfg := som.Config{
		Nodes:           req.Nodes,
		Dim:             req.Dim,
		WeightScale:     req.WeightScale,
		CoordinateRange: req.CoordinateRange,
		LearningRate:    req.LearningRate,
		NeighborRadius:  req.NeighborRadius,
		Metric:          distance,
		Seed:            req.Seed + 1,
		Logger:          logger,
	}
	m, err := som.NewMap(mapCfg)
	if err != nil {
		return RunSummary{}, err
	}

	trainCfg := som.TrainConfig{
		Epochs:            req.Epochs,
		BatchSize:         req.BatchSize,
		ReferenceSize:     req.ReferenceSize,
		Significance:      req.Significance,
		MinLearningRate:   *req.MinLearningRate,
		MinNeighborRadius: *req.MinNeighborRadius,
	}
	var frames *stats.FrameRecorder
	if req.SaveFrames {
		frames, err = stats.NewFrameRecorder(stats.RunDir(c.artifactsDir, runID))
		if err != nil {
			return RunSummary{}, err
		}
		trainCfg.Observers = append(trainCfg.Observers, frames)
	}

	result, err := m.Train(ctx, data, trainCfg)
	if err != nil {
		return RunSummary{}, err
	}

	diagnostics := toModelDiagnostics(result.Epochs)
	record := model.RunRecord{
		VersionedRecord:     storage.CurrentVersion(),
		ID:                  runID,
		CreatedAtUTC:        now.Format(time.RFC3339Nano),
		Dataset:             req.Dataset,
		Samples:             req.Samples,
		Nodes:               req.Nodes,
		Dim:                 req.Dim,
		Epochs:              req.Epochs,
		BatchSize:           req.BatchSize,
		ReferenceSize:       len(result.ReferenceRows),
		Metric:              req.Metric,
		Seed:                req.Seed,
		InitialLearningRate: req.LearningRate,
		InitialRadius:       req.NeighborRadius,
		FinalConvergence:    result.FinalConvergence,
		FinalLearningRate:   result.FinalLearningRate,
		FinalRadius:         result.FinalRadius,
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveEpochDiagnostics(ctx, runID, diagnostics); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveConvergenceHistory(ctx, runID, result.ConvergenceHistory); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:             runID,
			Dataset:           req.Dataset,
			DataCSVPath:       req.DataCSVPath,
			Samples:           req.Samples,
			Dim:               req.Dim,
			Normalize:         req.Normalize,
			Nodes:             req.Nodes,
			Epochs:            req.Epochs,
			BatchSize:         req.BatchSize,
			ReferenceSize:     req.ReferenceSize,
			Significance:      req.Significance,
			LearningRate:      req.LearningRate,
			NeighborRadius:    req.NeighborRadius,
			MinLearningRate:   *req.MinLearningRate,
			MinNeighborRadius: *req.MinNeighborRadius,
			WeightScale:       req.WeightScale,
			CoordinateRange:   req.CoordinateRange,
			Metric:            req.Metric,
			Workers:           req.Workers,
			Seed:              req.Seed,
			SaveFrames:        req.SaveFrames,
		},
		ConvergenceHistory: result.ConvergenceHistory,
		EpochDiagnostics:   diagnostics,
		FinalConvergence:   result.FinalConvergence,
		FinalCoordinates:   m.Coordinates(),
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            runID,
		Dataset:          req.Dataset,
		Samples:          req.Samples,
		Nodes:            req.Nodes,
		Dim:              req.Dim,
		Epochs:           req.Epochs,
		Seed:             req.Seed,
		FinalConvergence: result.FinalConvergence,
		CreatedAtUTC:     record.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:               runID,
		ArtifactsDir:        filepath.Clean(runDir),
		ConvergenceHistory:  append([]float64(nil), result.ConvergenceHistory...),
		FinalConvergence:    result.FinalConvergence,
		FinalLearningRate:   result.FinalLearningRate,
		FinalNeighborRadius: result.FinalRadius,
		Summary:             stats.SummarizeConvergence(result.ConvergenceHistory, defaultConvergenceTarget),
	}
	if frames != nil {
		summary.Frames = frames.Frames()
	}
	logger.Info("run complete",
		"artifacts_dir", summary.ArtifactsDir,
		"final_convergence", summary.FinalConvergence,
	)
	return summary, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Dataset:          e.Dataset,
			Samples:          e.Samples,
			Nodes:            e.Nodes,
			Dim:              e.Dim,
			Epochs:           e.Epochs,
			Seed:             e.Seed,
			FinalConvergence: e.FinalConvergence,
		})
	}
	return out, nil
}

// Diagnostics returns per-epoch diagnostics from the store, falling back to
// the run's artifacts when the store has no record of it.
func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.EpochDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	diagnostics, ok, err := c.store.GetEpochDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadEpochDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.EpochDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) ConvergenceHistory(ctx context.Context, req ConvergenceHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "convergence history")
	if err != nil {
		return nil, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetConvergenceHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadConvergenceHistory(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("convergence history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool, action string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", fmt.Errorf("%s requires run id or latest", action)
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensureInit(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Float64 returns a pointer to v for the optional RunRequest fields.
func Float64(v float64) *float64 { return &v }

func applyRunDefaults(req *RunRequest) error {
	req.Dataset = strings.ToLower(strings.TrimSpace(req.Dataset))
	if req.DataCSVPath != "" {
		req.Dataset = csvDatasetName
	}
	if req.Dataset == "" {
		req.Dataset = defaultDataset
	}
	if req.Normalize == "" {
		req.Normalize = dataset.NormalizeNone
	}
	if req.Samples <= 0 {
		req.Samples = defaultSamples
	}
	if req.Dim <= 0 {
		req.Dim = defaultDim
	}
	if req.Nodes <= 0 {
		req.Nodes = defaultNodes
	}
	if req.Epochs <= 0 {
		req.Epochs = defaultEpochs
	}
	if req.BatchSize <= 0 {
		req.BatchSize = som.DefaultBatchSize
	}
	if req.Significance <= 0 {
		req.Significance = som.DefaultSignificance
	}
	if req.LearningRate <= 0 {
		req.LearningRate = som.DefaultLearningRate
	}
	if req.NeighborRadius <= 0 {
		req.NeighborRadius = som.DefaultNeighborRadius
	}
	if req.MinLearningRate == nil {
		req.MinLearningRate = Float64(som.DefaultMinLearningRate)
	}
	if req.MinNeighborRadius == nil {
		req.MinNeighborRadius = Float64(som.DefaultMinRadius)
	}
	if req.WeightScale <= 0 {
		req.WeightScale = som.DefaultWeightScale
	}
	if req.CoordinateRange <= 0 {
		req.CoordinateRange = som.DefaultCoordinateRange
	}
	if req.Metric == "" {
		req.Metric = metric.DefaultName
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}
	if *req.MinLearningRate < 0 || *req.MinLearningRate > req.LearningRate {
		return fmt.Errorf("min learning rate %v must be in [0, %v]", *req.MinLearningRate, req.LearningRate)
	}
	if *req.MinNeighborRadius < 0 || *req.MinNeighborRadius > req.NeighborRadius {
		return fmt.Errorf("min neighbor radius %v must be in [0, %v]", *req.MinNeighborRadius, req.NeighborRadius)
	}
	return nil
}

func loadRunData(req RunRequest) (*mat.Dense, error) {
	if req.DataCSVPath != "" {
		return dataset.LoadCSV(req.DataCSVPath)
	}
	return dataset.Generate(req.Dataset, rand.New(rand.NewSource(req.Seed)), req.Samples, req.Dim)
}

func toModelDiagnostics(epochs []som.EpochDiagnostics) []model.EpochDiagnostics {
	out := make([]model.EpochDiagnostics, 0, len(epochs))
	for _, e := range epochs {
		out = append(out, model.EpochDiagnostics{
			Epoch:            e.Epoch,
			Convergence:      e.Convergence,
			LearningRate:     e.LearningRate,
			NeighborRadius:   e.NeighborRadius,
			MeanBMUDistance:  e.MeanBMUDistance,
			MeanNeighbors:    e.MeanNeighbors,
			CoordinateSpread: e.CoordinateSpread,
		})
	}
	return out
}
