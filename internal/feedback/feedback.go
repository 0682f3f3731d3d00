package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/gametester/runctl/internal/abstractions"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
	"github.com/gametester/runctl/pkg/testgenclient"
)

// Service groups the feedback and insight calls. It holds no run state and
// never talks to the run controller.
type Service struct {
	backend  abstractions.InsightsBackend
	validate *validator.Validate
	logger   *slog.Logger
	useRAG   bool
}

// NewService returns a service that sends feedback to the RAG endpoint.
func NewService(logger *slog.Logger, backend abstractions.InsightsBackend, validate *validator.Validate) (*Service, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for the feedback service")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend is required for the feedback service")
	}
	if validate == nil {
		return nil, fmt.Errorf("validator is required for the feedback service")
	}
	return &Service{
		backend:  backend,
		validate: validate,
		logger:   logger,
		useRAG:   true,
	}, nil
}

// WithRAG returns a copy that selects the feedback endpoint variant.
func (s *Service) WithRAG(useRAG bool) *Service {
	c := *s
	c.useRAG = useRAG
	return &c
}

// SubmitFeedback validates the rating locally and sends it. An invalid
// rating issues no request.
func (s *Service) SubmitFeedback(ctx context.Context, req api.FeedbackRequest) (*api.FeedbackResponse, error) {
	req.RunID = strings.TrimSpace(req.RunID)
	req.TestcaseID = strings.TrimSpace(req.TestcaseID)
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, validationError(err)
	}
	resp, err := s.backend.SubmitFeedback(ctx, s.useRAG, &req)
	if err != nil {
		s.logger.Info("Feedback submission failed", "run_id", req.RunID, "testcase_id", req.TestcaseID, "error", err.Error())
		return nil, err
	}
	s.logger.Info("Feedback submitted", "run_id", req.RunID, "testcase_id", req.TestcaseID, "score", req.Score, "use_rag", s.useRAG)
	return resp, nil
}

// Metrics fetches the three RAG documents concurrently. The first failure
// cancels the other requests and is returned.
func (s *Service) Metrics(ctx context.Context) (*api.MetricsBundle, error) {
	bundle := &api.MetricsBundle{}
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(endpoint string, dest *map[string]any) {
		g.Go(func() error {
			doc, err := s.backend.GetRAGDocument(gctx, endpoint)
			if err != nil {
				return err
			}
			*dest = doc
			return nil
		})
	}
	fetch(testgenclient.EndpointRAGMetrics, &bundle.Metrics)
	fetch(testgenclient.EndpointRAGStats, &bundle.Stats)
	fetch(testgenclient.EndpointRAGLearningInsights, &bundle.LearningInsights)
	if err := g.Wait(); err != nil {
		s.logger.Info("Metrics fetch failed", "error", err.Error())
		return nil, err
	}
	return bundle, nil
}

// Retrain asks the backend to retrain its ranking model and returns the
// backend message.
func (s *Service) Retrain(ctx context.Context) (string, error) {
	resp, err := s.backend.Retrain(ctx)
	if err != nil {
		return "", err
	}
	s.logger.Info("Retrain requested", "status", resp.Status, "training_samples", resp.TrainingSamples)
	return resp.Message, nil
}

// ListRuns returns the runs known to the backend.
func (s *Service) ListRuns(ctx context.Context) (*api.RunRecordList, error) {
	return s.backend.ListRuns(ctx)
}

// Query evaluates a JSONPath expression (for example $.stats.total_cases)
// against the bundle.
func Query(bundle *api.MetricsBundle, expr string) (any, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, serviceerrors.NewServiceError(messages.FieldRequired, "Field", "query")
	}
	raw, err := json.Marshal(bundle)
	if err != nil {
		return nil, serviceerrors.Wrap(err, messages.InternalServerError, "Error", err.Error())
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, serviceerrors.Wrap(err, messages.InternalServerError, "Error", err.Error())
	}
	value, err := jsonpath.Get(expr, doc)
	if err != nil {
		return nil, serviceerrors.Wrap(err, messages.FieldInvalid, "Field", "query", "Error", err.Error())
	}
	return value, nil
}

func validationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return serviceerrors.Wrap(err, messages.RequestValidationFailed, "Type", "feedback", "Error", err.Error())
	}
	fe := validationErrors[0]
	if fe.Tag() == "required" {
		return serviceerrors.Wrap(err, messages.FieldRequired, "Field", fe.Field())
	}
	return serviceerrors.Wrap(err, messages.FieldInvalid, "Field", fe.Field(), "Error", fmt.Sprintf("failed on the '%s' rule", fe.Tag()))
}
