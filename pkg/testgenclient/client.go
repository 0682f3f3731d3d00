package testgenclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
)

// API endpoint constants
const (
	endpointPlan    = "/plan"
	endpointRank    = "/rank"
	endpointExecute = "/execute"
	endpointRuns    = "/runs"

	// Run endpoints, the run id is appended
	endpointStatusBase = "/status/"
	endpointReportBase = "/report/"

	// Feedback endpoints
	endpointFeedback    = "/feedback"
	endpointRAGFeedback = "/rag/feedback"
	endpointRAGRetrain  = "/rag/retrain"

	// RAG metrics endpoints, displayed as-is
	EndpointRAGMetrics          = "/rag/metrics"
	EndpointRAGStats            = "/rag/stats"
	EndpointRAGLearningInsights = "/rag/learning-insights"

	// RequestIDHeader carries the request id so that backend logs can be correlated
	RequestIDHeader = "X-Global-Transaction-Id"
)

// Client represents a testgen backend API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
	logger     *slog.Logger
}

// NewClient creates a new testgen backend client
func NewClient(baseURL string) *Client {
	// Ensure baseURL doesn't end with a slash
	baseURL = strings.TrimRight(baseURL, "/")

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.New(slog.DiscardHandler),
	}
}

func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	if c == nil {
		return nil
	}
	return &Client{
		baseURL:    c.baseURL,
		httpClient: httpClient,
		authToken:  c.authToken,
		logger:     c.logger,
	}
}

// WithTimeout returns a client whose requests are bounded by timeout. The
// transport is shared with the original client.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if c == nil {
		return nil
	}
	httpClient := *c.httpClient
	httpClient.Timeout = timeout
	return c.WithHTTPClient(&httpClient)
}

func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if c == nil {
		return nil
	}
	return &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		authToken:  c.authToken,
		logger:     logger,
	}
}

func (c *Client) WithToken(authToken string) *Client {
	if c == nil {
		return nil
	}
	return &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		authToken:  authToken,
		logger:     c.logger,
	}
}

func (c *Client) Name() string {
	return "remote"
}

func (c *Client) GetLogger() *slog.Logger {
	return c.logger
}

func (c *Client) GetBaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request to the backend and returns the body of
// a 2xx response. Backend error payloads are detected by the callers because
// the backend reports most errors with a 200 status.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	requestID := uuid.New().String()
	logger := c.logger.With("method", method, "endpoint", endpoint, "request_id", requestID)
	logger.Debug("Backend request started")

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			logger.Info("Backend request errored", "stage", "failed to marshal request body", "error", err.Error())
			return nil, serviceerrors.Wrap(err, messages.InternalServerError, "Error", err.Error())
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		logger.Info("Backend request errored", "stage", "failed to create request", "error", err.Error())
		return nil, serviceerrors.Wrap(err, messages.BackendRequestFailed, "Method", method, "Endpoint", endpoint, "Error", err.Error())
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if c.authToken != "" {
		if strings.HasPrefix(c.authToken, "Bearer ") || strings.HasPrefix(c.authToken, "Basic ") {
			req.Header.Set("Authorization", c.authToken)
		} else {
			req.Header.Set("Authorization", "Bearer "+c.authToken)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Info("Backend request errored", "stage", "failed to execute request", "error", err.Error())
		return nil, serviceerrors.Wrap(err, messages.BackendRequestFailed, "Method", method, "Endpoint", endpoint, "Error", err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Info("Backend request errored", "stage", "failed to read response body", "error", err.Error())
		return nil, serviceerrors.Wrap(err, messages.BackendResponseInvalid, "Method", method, "Endpoint", endpoint, "Error", err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode:   resp.StatusCode,
			ResponseBody: string(respBody),
		}
		if payload, ok := parseEnvelope(respBody); ok && payload.errorMessage != "" {
			apiErr.Message = payload.errorMessage
			logger.Info("Backend request failed", "status", resp.StatusCode, "message", apiErr.Message)
			return nil, serviceerrors.Wrap(apiErr, messages.BackendError, "Error", apiErr.Message)
		}
		logger.Info("Backend request failed", "status", resp.StatusCode, "response", apiErr.ResponseBody)
		return nil, serviceerrors.Wrap(apiErr, messages.BackendRequestFailed, "Method", method, "Endpoint", endpoint, "Error", apiErr.Error())
	}

	logger.Debug("Backend request successful", "status", resp.StatusCode, "response", string(respBody))
	return respBody, nil
}

// unmarshalResponse unmarshals JSON response body into a struct of type T
func unmarshalResponse[T any](method, endpoint string, respBody []byte) (*T, error) {
	var response T
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, serviceerrors.Wrap(err, messages.BackendResponseInvalid, "Method", method, "Endpoint", endpoint, "Error", err.Error())
	}
	return &response, nil
}

// call performs the request and turns a backend error payload into a
// service error before decoding the response.
func call[T any](ctx context.Context, c *Client, method, endpoint string, body any) (*T, error) {
	respBody, err := c.doRequest(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if err := checkErrorPayload(respBody); err != nil {
		c.logger.Info("Backend returned an error payload", "method", method, "endpoint", endpoint, "error", err.Error())
		return nil, err
	}
	return unmarshalResponse[T](method, endpoint, respBody)
}

func runEndpoint(base string, runID string) string {
	return base + urlPathEscape(runID)
}

func requireRunID(runID string) error {
	if strings.TrimSpace(runID) == "" {
		return serviceerrors.NewServiceError(messages.FieldRequired, "Field", "run_id")
	}
	return nil
}
