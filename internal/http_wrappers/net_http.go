package http_wrappers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gametester/runctl/internal/constants"
	"github.com/gametester/runctl/internal/executioncontext"
	"github.com/gametester/runctl/internal/logging"
	"github.com/gametester/runctl/internal/messages"
	"github.com/gametester/runctl/internal/serviceerrors"
	"github.com/gametester/runctl/pkg/api"
)

// maxBodyBytes bounds the request bodies of the local API
const maxBodyBytes = 1 << 20

// ReqWrapper adapts a net/http request
type ReqWrapper struct {
	*http.Request
}

func NewRequestWrapper(r *http.Request) *ReqWrapper {
	return &ReqWrapper{Request: r}
}

func (r *ReqWrapper) Method() string {
	return r.Request.Method
}

func (r *ReqWrapper) URI() string {
	return r.Request.URL.RequestURI()
}

func (r *ReqWrapper) Header(key string) string {
	return r.Request.Header.Get(key)
}

func (r *ReqWrapper) Query(key string) []string {
	return r.Request.URL.Query()[key]
}

func (r *ReqWrapper) BodyAsBytes() ([]byte, error) {
	if r.Request.Body == nil {
		return nil, nil
	}
	defer r.Request.Body.Close()
	return io.ReadAll(io.LimitReader(r.Request.Body, maxBodyBytes))
}

func (r *ReqWrapper) RunID() string {
	return strings.TrimSpace(r.Request.PathValue(constants.PATH_PARAMETER_RUN_ID))
}

// RespWrapper adapts a net/http response writer. Every response is logged
// with the request fields of the execution context.
type RespWrapper struct {
	w   http.ResponseWriter
	ctx *executioncontext.ExecutionContext
}

func NewRespWrapper(w http.ResponseWriter, ctx *executioncontext.ExecutionContext) *RespWrapper {
	return &RespWrapper{w: w, ctx: ctx}
}

func (r *RespWrapper) SetHeader(key string, value string) {
	r.w.Header().Set(key, value)
}

func (r *RespWrapper) WriteDocument(contentType string, body []byte) {
	r.SetHeader("Content-Type", contentType)
	r.w.WriteHeader(http.StatusOK)
	_, _ = r.w.Write(body)
	logging.LogRequestSuccess(r.ctx, http.StatusOK, nil)
}

func (r *RespWrapper) WriteJSON(v any, code int) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		r.ErrorWithMessageCode(r.ctx.RequestID, messages.InternalServerError, "Error", err.Error())
		return
	}
	r.SetHeader("Content-Type", "application/json")
	r.w.WriteHeader(code)
	_, _ = r.w.Write(jsonBytes)
	logging.LogRequestSuccess(r.ctx, code, nil)
}

func (r *RespWrapper) Error(err error, requestId string) {
	code := StatusCodeForError(err)
	var messageCode string
	var se *serviceerrors.ServiceError
	if errors.As(err, &se) {
		messageCode = string(se.Kind())
	} else if serviceerrors.IsStorageNotFound(err) {
		messageCode = string(messages.KindNotFound)
	} else {
		messageCode = string(messages.KindInternal)
	}
	r.writeError(api.Error{MessageCode: messageCode, Message: err.Error(), Trace: requestId}, code)
}

func (r *RespWrapper) ErrorWithMessageCode(requestId string, messageCode *messages.MessageCode, messageParams ...any) {
	code := statusCodeForKind(messageCode.GetKind())
	if messageCode == messages.MethodNotAllowed {
		code = http.StatusMethodNotAllowed
	}
	r.writeError(api.Error{
		MessageCode: string(messageCode.GetKind()),
		Message:     messages.GetErrorMessage(messageCode, messageParams...),
		Trace:       requestId,
	}, code)
}

func (r *RespWrapper) writeError(body api.Error, code int) {
	header := r.w.Header()
	header.Del("Content-Length")
	header.Set("Content-Type", "application/json")
	header.Set("X-Content-Type-Options", "nosniff")
	r.w.WriteHeader(code)
	_ = json.NewEncoder(r.w).Encode(body)
	logging.LogRequestFailed(r.ctx, code, body.Message)
}

// StatusCodeForError maps the kind of err to the HTTP status of the local API
func StatusCodeForError(err error) int {
	var storageErr *serviceerrors.StorageError
	if errors.As(err, &storageErr) {
		return storageErr.Code
	}
	var se *serviceerrors.ServiceError
	if errors.As(err, &se) {
		switch se.MessageCode() {
		case messages.RunStillActive, messages.RunAlreadyFinished:
			return http.StatusConflict
		case messages.ControllerClosed:
			return http.StatusServiceUnavailable
		}
		return statusCodeForKind(se.Kind())
	}
	return http.StatusInternalServerError
}

func statusCodeForKind(kind messages.Kind) int {
	switch kind {
	case messages.KindValidation:
		return http.StatusBadRequest
	case messages.KindNotFound:
		return http.StatusNotFound
	case messages.KindService, messages.KindTransport, messages.KindParse:
		return http.StatusBadGateway
	case messages.KindTimeout:
		return http.StatusGatewayTimeout
	case messages.KindCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
