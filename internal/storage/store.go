package storage

import (
	"context"

	"orrery/internal/model"
)

// Store persists run metadata and per-epoch diagnostics.
type Store interface {
	Init(ctx context.Context) error
	Reset(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveEpochDiagnostics(ctx context.Context, runID string, diagnostics []model.EpochDiagnostics) error
	GetEpochDiagnostics(ctx context.Context, runID string) ([]model.EpochDiagnostics, bool, error)
	SaveConvergenceHistory(ctx context.Context, runID string, history []float64) error
	GetConvergenceHistory(ctx context.Context, runID string) ([]float64, bool, error)
}
