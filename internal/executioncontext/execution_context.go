package executioncontext

import (
	"context"
	"log/slog"
	"time"
)

// ExecutionContext carries the request scoped values of a local API call. The
// logger is already enriched with the request fields.
type ExecutionContext struct {
	Ctx       context.Context
	RequestID string
	Logger    *slog.Logger
	Method    string
	URI       string
	BaseURL   string
	StartedAt time.Time
}

func NewExecutionContext(
	ctx context.Context,
	requestID string,
	logger *slog.Logger,
	method string,
	uri string,
	baseURL string,
) *ExecutionContext {
	return &ExecutionContext{
		Ctx:       ctx,
		RequestID: requestID,
		Logger:    logger,
		Method:    method,
		URI:       uri,
		BaseURL:   baseURL,
		StartedAt: time.Now(),
	}
}

// WithContext returns a copy bound to ctx
func (e *ExecutionContext) WithContext(ctx context.Context) *ExecutionContext {
	c := *e
	c.Ctx = ctx
	return &c
}
