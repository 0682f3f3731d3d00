package testgenclient

import (
	"context"
	"net/http"

	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
)

// Submission API

// Plan asks the backend to generate test case candidates
func (c *Client) Plan(ctx context.Context, req *api.PlanRequest) (*api.PlanResponse, error) {
	if req == nil {
		return nil, serviceerrors.NewServiceError(messages.FieldRequired, "Field", "plan")
	}
	return call[api.PlanResponse](ctx, c, http.MethodPost, endpointPlan, req)
}

// Rank asks the backend to select the best candidates of the last plan
func (c *Client) Rank(ctx context.Context) (*api.RankResponse, error) {
	return call[api.RankResponse](ctx, c, http.MethodPost, endpointRank, nil)
}

// Execute starts the execution of the ranked test cases. The run id may be
// empty, the caller decides how to handle that.
func (c *Client) Execute(ctx context.Context) (*api.ExecuteResponse, error) {
	return call[api.ExecuteResponse](ctx, c, http.MethodPost, endpointExecute, nil)
}

// Status API

// GetStatus returns the status of a run. A payload carrying a status is
// returned as-is even when it also carries an error, a payload that only
// carries an error is a service error.
func (c *Client) GetStatus(ctx context.Context, runID string) (*api.StatusResponse, error) {
	if err := requireRunID(runID); err != nil {
		return nil, err
	}
	endpoint := runEndpoint(endpointStatusBase, runID)
	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	payload, ok := parseEnvelope(respBody)
	if ok && !payload.hasStatus && payload.errorMessage != "" {
		return nil, serviceerrors.NewServiceError(messages.BackendError, "Error", payload.errorMessage)
	}
	return unmarshalResponse[api.StatusResponse](http.MethodGet, endpoint, respBody)
}

// Report API

// GetReport returns the final report of a run. A run that is not completed
// yet is reported as a service error carrying the backend message.
func (c *Client) GetReport(ctx context.Context, runID string) (*api.RunReport, error) {
	if err := requireRunID(runID); err != nil {
		return nil, err
	}
	endpoint := runEndpoint(endpointReportBase, runID)
	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if payload, ok := parseEnvelope(respBody); ok {
		if payload.errorMessage != "" {
			return nil, serviceerrors.NewServiceError(messages.BackendError, "Error", payload.errorMessage)
		}
		if payload.hasStatus && !payload.hasRunID {
			msg := payload.message
			if msg == "" {
				msg = payload.status
			}
			return nil, serviceerrors.NewServiceError(messages.ReportNotReady, "RunId", runID, "Message", msg)
		}
	}
	if err := validateReport(respBody); err != nil {
		c.logger.Info("Backend report does not match the schema", "run_id", runID, "error", err.Error())
		return nil, serviceerrors.Wrap(err, messages.BackendResponseInvalid, "Method", http.MethodGet, "Endpoint", endpoint, "Error", err.Error())
	}
	return unmarshalResponse[api.RunReport](http.MethodGet, endpoint, respBody)
}

// ListRuns returns the runs known to the backend
func (c *Client) ListRuns(ctx context.Context) (*api.RunRecordList, error) {
	return call[api.RunRecordList](ctx, c, http.MethodGet, endpointRuns, nil)
}
