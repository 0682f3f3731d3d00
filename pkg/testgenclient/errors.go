package testgenclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Jeffail/gabs/v2"

	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
)

// APIError represents a non-2xx response from the backend
type APIError struct {
	StatusCode   int
	ResponseBody string
	Message      string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, e.ResponseBody)
}

// IsNotFoundError returns true if the backend answered 404.
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// envelope holds the fields the backend uses to signal errors and progress
// regardless of the endpoint.
type envelope struct {
	errorMessage string
	status       string
	message      string
	hasStatus    bool
	hasRunID     bool
}

func parseEnvelope(body []byte) (*envelope, bool) {
	container, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, false
	}
	e := &envelope{}
	if v, ok := container.Path("error").Data().(string); ok {
		e.errorMessage = v
	} else if container.Exists("error") && container.Path("error").Data() != nil {
		e.errorMessage = container.Path("error").String()
	}
	if v, ok := container.Path("status").Data().(string); ok {
		e.status = v
		e.hasStatus = true
	}
	if v, ok := container.Path("message").Data().(string); ok {
		e.message = v
	}
	e.hasRunID = container.Exists("run_id")
	return e, true
}

// checkErrorPayload returns a service error if the body is an error payload.
func checkErrorPayload(body []byte) error {
	payload, ok := parseEnvelope(body)
	if !ok {
		// not JSON, the decoder reports it
		return nil
	}
	if payload.errorMessage != "" {
		return serviceerrors.NewServiceError(messages.BackendError, "Error", payload.errorMessage)
	}
	return nil
}

func urlPathEscape(s string) string {
	return url.PathEscape(s)
}
