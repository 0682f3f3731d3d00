package server

import (
	"net/http"

	"github.com/gametester/runctl/internal/executioncontext"
)

// newExecutionContext creates the request scoped context handed to the
// handlers. The logger carries the request fields and the base URL is used
// to build links in responses.
func (s *Server) newExecutionContext(r *http.Request) *executioncontext.ExecutionContext {
	requestID, enhancedLogger := s.loggerWithRequest(r)

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	baseURL := scheme + "://" + r.Host

	return executioncontext.NewExecutionContext(
		r.Context(),
		requestID,
		enhancedLogger,
		r.Method,
		r.URL.Path,
		baseURL,
	)
}
