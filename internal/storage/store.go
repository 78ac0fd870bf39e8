package storage

import (
	"context"

	"neurax/internal/model"
)

// Store defines persistence operations for runs and their step and edge
// records.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	AppendSteps(ctx context.Context, runID string, steps []model.StepRecord) error
	GetSteps(ctx context.Context, runID string) ([]model.StepRecord, bool, error)
	SaveEdges(ctx context.Context, runID string, edges []model.EdgeRecord) error
	GetEdges(ctx context.Context, runID string) ([]model.EdgeRecord, bool, error)
}
