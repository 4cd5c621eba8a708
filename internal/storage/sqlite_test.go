//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"orrery/internal/model"
)

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "orrery.db")

	store := NewSQLiteStore(dbPath)
	require.NoError(t, store.Init(ctx))
	t.Cleanup(func() {
		_ = store.Close()
	})

	require.NoError(t, store.SaveRun(ctx, sampleRun("r1", "2026-01-01T00:00:00Z")))
	updated := sampleRun("r1", "2026-01-01T00:00:00Z")
	updated.FinalConvergence = 1
	require.NoError(t, store.SaveRun(ctx, updated))
	require.NoError(t, store.SaveRun(ctx, sampleRun("r2", "2026-01-03T00:00:00Z")))

	run, ok, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1.0, run.FinalConvergence)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "r2", runs[0].ID)
}

func TestSQLiteStoreDiagnosticsPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "orrery.db")

	store := NewSQLiteStore(dbPath)
	require.NoError(t, store.Init(ctx))
	diagnostics := []model.EpochDiagnostics{{Epoch: 1, Convergence: 0.25, LearningRate: 0.375}}
	require.NoError(t, store.SaveEpochDiagnostics(ctx, "r1", diagnostics))
	require.NoError(t, store.SaveConvergenceHistory(ctx, "r1", []float64{0.25}))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(dbPath)
	require.NoError(t, reopened.Init(ctx))
	t.Cleanup(func() {
		_ = reopened.Close()
	})

	loaded, ok, err := reopened.GetEpochDiagnostics(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, diagnostics, loaded)

	history, ok, err := reopened.GetConvergenceHistory(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float64{0.25}, history)

	require.NoError(t, reopened.Reset(ctx))
	_, ok, err = reopened.GetEpochDiagnostics(ctx, "r1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "orrery.db"))
	require.Error(t, store.SaveRun(context.Background(), sampleRun("r1", "")))
	require.Error(t, NewSQLiteStore("").Init(context.Background()))
}
