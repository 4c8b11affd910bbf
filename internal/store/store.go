// Package store persists batch runs and per-item outcomes.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mailsentry/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source string          `json:"source,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// ItemFilter specifies criteria for listing the items of a run.
type ItemFilter struct {
	Status model.ItemStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for batch runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.BatchSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Items
	RecordItem(ctx context.Context, item *model.ItemResult) error
	ListItems(ctx context.Context, runID string, filter ItemFilter) ([]model.ItemResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultLimit = 100

func limitOr(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}
