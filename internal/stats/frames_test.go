package stats

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"orrery/internal/dataset"
	"orrery/internal/som"
)

func TestFrameRecorderWritesEpochFrames(t *testing.T) {
	runDir := t.TempDir()
	recorder, err := NewFrameRecorder(runDir)
	require.NoError(t, err)

	for epoch := 1; epoch <= 2; epoch++ {
		snapshot := som.EpochSnapshot{
			Diagnostics: som.EpochDiagnostics{Epoch: epoch},
			Coordinates: mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, float64(epoch)}),
		}
		require.NoError(t, recorder.ObserveEpoch(context.Background(), snapshot))
	}
	require.Equal(t, 2, recorder.Frames())

	path := filepath.Join(runDir, "frames", "epoch_0002.csv")
	require.Equal(t, path, FramePath(filepath.Join(runDir, "frames"), 2))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	frame, err := dataset.ReadCSV(f)
	require.NoError(t, err)
	rows, cols := frame.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 3, cols)
	require.Equal(t, 2.0, frame.At(1, 2))
}

func TestFrameRecorderDuringTraining(t *testing.T) {
	runDir := t.TempDir()
	recorder, err := NewFrameRecorder(runDir)
	require.NoError(t, err)

	m, err := som.NewMap(som.DefaultConfig(4, 2))
	require.NoError(t, err)
	data := mat.NewDense(6, 2, []float64{0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5})
	cfg := som.DefaultTrainConfig(3)
	cfg.Observers = []som.EpochObserver{recorder}

	_, err = m.Train(context.Background(), data, cfg)
	require.NoError(t, err)

	frames, err := filepath.Glob(filepath.Join(runDir, "frames", "*.csv"))
	require.NoError(t, err)
	require.Len(t, frames, 3)
}
