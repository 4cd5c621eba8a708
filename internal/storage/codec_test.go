package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"orrery/internal/model"
)

func sampleRun(id, createdAt string) model.RunRecord {
	return model.RunRecord{
		VersionedRecord:     CurrentVersion(),
		ID:                  id,
		CreatedAtUTC:        createdAt,
		Dataset:             "blobs",
		Samples:             200,
		Nodes:               32,
		Dim:                 3,
		Epochs:              10,
		BatchSize:           16,
		ReferenceSize:       100,
		Metric:              "squared_euclidean",
		Seed:                7,
		InitialLearningRate: 0.5,
		InitialRadius:       2,
		FinalConvergence:    2.0 / 3.0,
		FinalLearningRate:   0.1667,
		FinalRadius:         0.6667,
	}
}

func TestRunCodecRoundTrip(t *testing.T) {
	input := sampleRun("r1", "2026-01-02T03:04:05Z")

	encoded, err := EncodeRun(input)
	require.NoError(t, err)
	decoded, err := DecodeRun(encoded)
	require.NoError(t, err)
	require.Equal(t, input, decoded)
}

func TestDecodeRunVersionMismatch(t *testing.T) {
	run := sampleRun("r1", "2026-01-02T03:04:05Z")
	run.CodecVersion++

	encoded, err := EncodeRun(run)
	require.NoError(t, err)
	_, err = DecodeRun(encoded)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDecodeRunRejectsGarbage(t *testing.T) {
	_, err := DecodeRun([]byte("{not json"))
	require.Error(t, err)
}

func TestEpochDiagnosticsCodecRoundTrip(t *testing.T) {
	input := []model.EpochDiagnostics{
		{Epoch: 1, Convergence: 0, LearningRate: 0.5, NeighborRadius: 2, MeanBMUDistance: 4.5, MeanNeighbors: 3.2, CoordinateSpread: 5},
		{Epoch: 2, Convergence: 1.0 / 3.0, LearningRate: 1.0 / 3.0, NeighborRadius: 4.0 / 3.0, MeanBMUDistance: 1.25, MeanNeighbors: 2.1, CoordinateSpread: 3.5},
	}
	encoded, err := EncodeEpochDiagnostics(input)
	require.NoError(t, err)
	decoded, err := DecodeEpochDiagnostics(encoded)
	require.NoError(t, err)
	require.Equal(t, input, decoded)
}

func TestConvergenceHistoryCodecRoundTrip(t *testing.T) {
	input := []float64{0, 1.0 / 3.0, 2.0 / 3.0, 1}
	encoded, err := EncodeConvergenceHistory(input)
	require.NoError(t, err)
	decoded, err := DecodeConvergenceHistory(encoded)
	require.NoError(t, err)
	require.Equal(t, input, decoded)
}
