package handlers

import (
	"net/http"

	"github.com/gametester/runctl/internal/constants"
	"github.com/gametester/runctl/internal/executioncontext"
	"github.com/gametester/runctl/internal/feedback"
	"github.com/gametester/runctl/internal/http_wrappers"
	"github.com/gametester/runctl/internal/serialization"
	"github.com/gametester/runctl/pkg/api"
)

type QueryResponse struct {
	Query string `json:"query"`
	Value any    `json:"value"`
}

type RetrainResponse struct {
	Message string `json:"message"`
}

// HandleSubmitFeedback handles POST /api/v1/feedback. The use_rag query
// parameter selects the backend endpoint and defaults to true.
func (h *Handlers) HandleSubmitFeedback(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	useRAG, err := getBoolQuery(r, constants.QUERY_PARAMETER_USE_RAG, true)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	bodyBytes, err := r.BodyAsBytes()
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	req := api.FeedbackRequest{}
	if err := serialization.Unmarshal(h.validate, ctx, bodyBytes, &req, "feedback"); err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	resp, err := h.feedback.WithRAG(useRAG).SubmitFeedback(ctx.Ctx, req)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(resp, http.StatusOK)
}

// HandleGetInsights handles GET /api/v1/insights. With a query parameter
// only the value selected by the JSONPath expression is returned.
func (h *Handlers) HandleGetInsights(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	bundle, err := h.feedback.Metrics(ctx.Ctx)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	expr := getQueryValue(r, constants.QUERY_PARAMETER_QUERY)
	if expr == "" {
		w.WriteJSON(bundle, http.StatusOK)
		return
	}
	value, err := feedback.Query(bundle, expr)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(QueryResponse{Query: expr, Value: value}, http.StatusOK)
}

// HandleRetrain handles POST /api/v1/retrain
func (h *Handlers) HandleRetrain(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	msg, err := h.feedback.Retrain(ctx.Ctx)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(RetrainResponse{Message: msg}, http.StatusOK)
}

// HandleListBackendRuns handles GET /api/v1/backend/runs
func (h *Handlers) HandleListBackendRuns(ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper, w http_wrappers.ResponseWrapper) {
	list, err := h.feedback.ListRuns(ctx.Ctx)
	if err != nil {
		w.Error(err, ctx.RequestID)
		return
	}
	w.WriteJSON(list, http.StatusOK)
}
