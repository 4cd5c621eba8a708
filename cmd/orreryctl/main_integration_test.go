//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCommandSQLitePersistsDiagnostics(t *testing.T) {
	workdir := chdirTemp(t)
	dbPath := filepath.Join(workdir, "orrery.db")

	_, err := captureStdout(t, func() error {
		return run(context.Background(), []string{
			"run",
			"--store", "sqlite",
			"--db-path", dbPath,
			"--run-id", "sqlite-run",
			"--samples", "30",
			"--nodes", "5",
			"--epochs", "2",
		})
	})
	require.NoError(t, err)
	require.FileExists(t, dbPath)

	// Remove artifacts so diagnostics must come from the database.
	require.NoError(t, os.Remove(filepath.Join("runs", "sqlite-run", "epoch_diagnostics.json")))

	out, err := captureStdout(t, func() error {
		return run(context.Background(), []string{"diagnostics", "--store", "sqlite", "--db-path", dbPath, "--run-id", "sqlite-run"})
	})
	require.NoError(t, err)
	require.NotEmpty(t, out)
	require.NotEqual(t, "no diagnostics\n", out)
}
