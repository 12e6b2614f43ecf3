package storage

import (
	"context"

	"learning/internal/record"
)

// Store persists trained models, training runs, and per-run error histories.
type Store interface {
	Init(ctx context.Context) error
	SaveModel(ctx context.Context, snapshot record.ModelSnapshot) error
	GetModel(ctx context.Context, id string) (record.ModelSnapshot, bool, error)
	SaveRun(ctx context.Context, run record.TrainingRun) error
	GetRun(ctx context.Context, id string) (record.TrainingRun, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]record.TrainingRun, error)
	SaveErrorHistory(ctx context.Context, runID string, history []float64) error
	GetErrorHistory(ctx context.Context, runID string) ([]float64, bool, error)
}
