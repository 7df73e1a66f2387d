package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sells-group/intel-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status          model.RunStatus `json:"status,omitempty"`
	OrganizationKey string          `json:"organization_key,omitempty"`
	Limit           int             `json:"limit,omitempty"`
	Offset          int             `json:"offset,omitempty"`
}

// Store is the local run-history log. The State Bridge remains the system of
// record for cross-call stage data; this store only exists so operators can
// inspect what the pipeline did.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, orgKey, mode string) (*model.IntelRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	SetRunRequestID(ctx context.Context, runID, requestID string) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.IntelRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.IntelRun, error)

	// Stages
	CreateStage(ctx context.Context, runID string, stage model.StageID) (*model.RunStage, error)
	CompleteStage(ctx context.Context, stageID string, status model.StageStatus) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool the Postgres store uses; pgxmock
// implements it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
