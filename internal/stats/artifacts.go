package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"

	"orrery/internal/dataset"
	"orrery/internal/model"
)

const (
	runIndexFile           = "run_index.json"
	configFile             = "config.json"
	convergenceHistoryFile = "convergence_history.json"
	epochDiagnosticsFile   = "epoch_diagnostics.json"
	coordinatesFile        = "coordinates.csv"
	framesDir              = "frames"
)

type RunConfig struct {
	RunID             string  `json:"run_id"`
	Dataset           string  `json:"dataset"`
	DataCSVPath       string  `json:"data_csv_path,omitempty"`
	Normalize         string  `json:"normalize"`
	Samples           int     `json:"samples"`
	Dim               int     `json:"dim"`
	Nodes             int     `json:"nodes"`
	Epochs            int     `json:"epochs"`
	BatchSize         int     `json:"batch_size"`
	ReferenceSize     int     `json:"reference_size"`
	Significance      float64 `json:"significance"`
	LearningRate      float64 `json:"learning_rate"`
	NeighborRadius    float64 `json:"neighbor_radius"`
	MinLearningRate   float64 `json:"min_learning_rate"`
	MinNeighborRadius float64 `json:"min_neighbor_radius"`
	WeightScale       float64 `json:"weight_scale"`
	CoordinateRange   float64 `json:"coordinate_range"`
	Metric            string  `json:"metric"`
	Workers           int     `json:"workers"`
	Seed              int64   `json:"seed"`
	SaveFrames        bool    `json:"save_frames"`
}

type RunArtifacts struct {
	Config             RunConfig                `json:"config"`
	ConvergenceHistory []float64                `json:"convergence_history"`
	EpochDiagnostics   []model.EpochDiagnostics `json:"epoch_diagnostics"`
	FinalConvergence   float64                  `json:"final_convergence"`
	// FinalCoordinates is written as CSV when set.
	FinalCoordinates mat.Matrix `json:"-"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Dataset          string  `json:"dataset"`
	Samples          int     `json:"samples"`
	Nodes            int     `json:"nodes"`
	Dim              int     `json:"dim"`
	Epochs           int     `json:"epochs"`
	Seed             int64   `json:"seed"`
	FinalConvergence float64 `json:"final_convergence"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// RunDir returns the artifact directory of runID under baseDir.
func RunDir(baseDir, runID string) string {
	return filepath.Join(baseDir, runID)
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := RunDir(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, convergenceHistoryFile), map[string]any{
		"convergence_history": artifacts.ConvergenceHistory,
		"final_convergence":   artifacts.FinalConvergence,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, epochDiagnosticsFile), artifacts.EpochDiagnostics); err != nil {
		return "", err
	}
	if artifacts.FinalCoordinates != nil {
		if err := dataset.WriteCSV(filepath.Join(runDir, coordinatesFile), artifacts.FinalCoordinates); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(RunDir(baseDir, runID), configFile), &cfg)
	return cfg, ok, err
}

func ReadEpochDiagnostics(baseDir, runID string) ([]model.EpochDiagnostics, bool, error) {
	var diagnostics []model.EpochDiagnostics
	ok, err := readJSON(filepath.Join(RunDir(baseDir, runID), epochDiagnosticsFile), &diagnostics)
	return diagnostics, ok, err
}

func ReadConvergenceHistory(baseDir, runID string) ([]float64, bool, error) {
	var payload struct {
		ConvergenceHistory []float64 `json:"convergence_history"`
	}
	ok, err := readJSON(filepath.Join(RunDir(baseDir, runID), convergenceHistoryFile), &payload)
	return payload.ConvergenceHistory, ok, err
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns entries newest first; entries sharing a timestamp keep
// later-appended entries first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	var entries []RunIndexEntry
	ok, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []RunIndexEntry{}, nil
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run's artifact files, frames included, into
// outDir/<runID>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := RunDir(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, convergenceHistoryFile, epochDiagnosticsFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	if err := copyIfExists(filepath.Join(src, coordinatesFile), filepath.Join(dst, coordinatesFile)); err != nil {
		return "", err
	}

	frames, err := filepath.Glob(filepath.Join(src, framesDir, "*.csv"))
	if err != nil {
		return "", err
	}
	if len(frames) > 0 {
		if err := os.MkdirAll(filepath.Join(dst, framesDir), 0o755); err != nil {
			return "", err
		}
		for _, frame := range frames {
			if err := copyFile(frame, filepath.Join(dst, framesDir, filepath.Base(frame))); err != nil {
				return "", err
			}
		}
	}

	return dst, nil
}

func copyIfExists(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return copyFile(src, dst)
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
