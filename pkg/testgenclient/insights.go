package testgenclient

import (
	"context"
	"net/http"

	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
)

// Feedback API

// SubmitFeedback sends a feedback score for one test case. The RAG backend
// and the baseline backend use different endpoints.
func (c *Client) SubmitFeedback(ctx context.Context, useRAG bool, req *api.FeedbackRequest) (*api.FeedbackResponse, error) {
	if req == nil {
		return nil, serviceerrors.NewServiceError(messages.FieldRequired, "Field", "feedback")
	}
	endpoint := endpointFeedback
	if useRAG {
		endpoint = endpointRAGFeedback
	}
	return call[api.FeedbackResponse](ctx, c, http.MethodPost, endpoint, req)
}

// GetRAGDocument fetches one of the RAG metrics endpoints as a generic document
func (c *Client) GetRAGDocument(ctx context.Context, endpoint string) (map[string]any, error) {
	doc, err := call[map[string]any](ctx, c, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return *doc, nil
}

// Retrain triggers a retraining of the RAG knowledge base
func (c *Client) Retrain(ctx context.Context) (*api.RetrainResponse, error) {
	return call[api.RetrainResponse](ctx, c, http.MethodPost, endpointRAGRetrain, nil)
}
