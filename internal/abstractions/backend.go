package abstractions

import (
	"context"

	"github.com/gametester/runctl/pkg/api"
)

// Backend is the testgen backend as seen by the run controller. It groups the
// submission, status and report services. Implementations are the HTTP client
// (remote) and the in-process simulator (local); nothing else in the code
// should depend on how the backend is reached.
//
// Errors returned must be *serviceerrors.ServiceError values so that the
// controller can tell transport failures from backend error payloads.
type Backend interface {
	Name() string

	// Submission service
	Plan(ctx context.Context, req *api.PlanRequest) (*api.PlanResponse, error)
	Rank(ctx context.Context) (*api.RankResponse, error)
	Execute(ctx context.Context) (*api.ExecuteResponse, error)

	// Status service
	GetStatus(ctx context.Context, runID string) (*api.StatusResponse, error)

	// Report service
	GetReport(ctx context.Context, runID string) (*api.RunReport, error)
}

// InsightsBackend is the peripheral feedback and metrics surface. It never
// shares state with the run controller.
type InsightsBackend interface {
	SubmitFeedback(ctx context.Context, useRAG bool, req *api.FeedbackRequest) (*api.FeedbackResponse, error)
	GetRAGDocument(ctx context.Context, endpoint string) (map[string]any, error)
	Retrain(ctx context.Context) (*api.RetrainResponse, error)
	ListRuns(ctx context.Context) (*api.RunRecordList, error)
}

// TestgenBackend is a backend serving both surfaces, which is what the
// runtimes package builds.
type TestgenBackend interface {
	Backend
	InsightsBackend
}
