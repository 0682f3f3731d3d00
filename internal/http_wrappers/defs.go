package http_wrappers

import "github.com/gametester/runctl/internal/messages"

// RequestWrapper is what the run handlers read from a request of the local
// API.
type RequestWrapper interface {
	Method() string
	URI() string
	Header(key string) string
	Query(key string) []string
	BodyAsBytes() ([]byte, error)
	// RunID is the trimmed run_id path parameter, empty when the route has none
	RunID() string
}

// ResponseWrapper writes the JSON answers and error payloads of the local API
type ResponseWrapper interface {
	Error(err error, requestId string)
	ErrorWithMessageCode(requestId string, messageCode *messages.MessageCode, messageParams ...any)
	SetHeader(key string, value string)
	WriteJSON(v any, code int)
	// WriteDocument answers 200 with a static document such as the API description
	WriteDocument(contentType string, body []byte)
}
