package abstractions

import (
	"context"
	"log/slog"
	"time"

	"github.com/gametester/runctl/pkg/api"
)

type QueryResults[T any] struct {
	Items       []T
	TotalStored int
}

// RunStore keeps the history of runs that reached a terminal state. The
// controller never reads from it while polling, it is only used to list runs
// across restarts.
type RunStore interface {
	WithLogger(logger *slog.Logger) RunStore
	WithContext(ctx context.Context) RunStore

	// This is used to identify the storage implementation in the logs and error messages
	GetDatasourceName() string

	Ping(timeout time.Duration) error

	SaveRun(run *api.RunSnapshot) error
	GetRun(runID string) (*api.RunSnapshot, error)
	GetRuns(limit int, offset int, stateFilter string) (*QueryResults[api.RunSnapshot], error)
	DeleteRun(runID string) error

	// Close the storage connection
	Close() error
}
