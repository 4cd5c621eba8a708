package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"orrery/internal/dataset"
	"orrery/internal/som"
)

// FrameRecorder writes each epoch's node coordinates to
// <runDir>/frames/epoch_NNNN.csv for offline rendering.
type FrameRecorder struct {
	dir    string
	frames int
}

func NewFrameRecorder(runDir string) (*FrameRecorder, error) {
	dir := filepath.Join(runDir, framesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	return &FrameRecorder{dir: dir}, nil
}

func (r *FrameRecorder) ObserveEpoch(_ context.Context, snapshot som.EpochSnapshot) error {
	path := FramePath(r.dir, snapshot.Diagnostics.Epoch)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.EncodeCSV(f, snapshot.Coordinates, "c"); err != nil {
		_ = f.Close()
		return fmt.Errorf("write frame %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	r.frames++
	return nil
}

// Frames reports how many frames have been written.
func (r *FrameRecorder) Frames() int { return r.frames }

func FramePath(dir string, epoch int) string {
	return filepath.Join(dir, fmt.Sprintf("epoch_%04d.csv", epoch))
}
