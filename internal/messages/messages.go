package messages

import (
	"fmt"
	"strings"
)

// Kind classifies a message so that callers can decide how to react to it
// without parsing the text.
type Kind string

const (
	KindValidation Kind = "validation"
	KindTransport  Kind = "transport"
	KindParse      Kind = "parse"
	KindService    Kind = "service"
	KindTimeout    Kind = "timeout"
	KindNotFound   Kind = "not_found"
	KindCancelled  Kind = "cancelled"
	KindInternal   Kind = "internal"
)

// This package provides all the messages that should be reported to the user.
// Note that we add a comment with the message parameters so that it is possible
// to see the parameters in the IDE when creating an error message.
var (
	// Local validation errors, no request is sent to the backend

	// FieldRequired The field '{{.Field}}' is required.
	FieldRequired = createMessage(
		KindValidation,
		"The field '{{.Field}}' is required.",
	)

	// FieldInvalid The field '{{.Field}}' is not valid: '{{.Error}}'.
	FieldInvalid = createMessage(
		KindValidation,
		"The field '{{.Field}}' is not valid: '{{.Error}}'.",
	)

	// RequestValidationFailed The {{.Type}} request is not valid: '{{.Error}}'.
	RequestValidationFailed = createMessage(
		KindValidation,
		"The {{.Type}} request is not valid: '{{.Error}}'.",
	)

	// Backend errors

	// BackendRequestFailed The request {{.Method}} {{.Endpoint}} failed: '{{.Error}}'.
	BackendRequestFailed = createMessage(
		KindTransport,
		"The request {{.Method}} {{.Endpoint}} failed: '{{.Error}}'.",
	)

	// BackendResponseInvalid The response of {{.Method}} {{.Endpoint}} could not be read: '{{.Error}}'.
	BackendResponseInvalid = createMessage(
		KindParse,
		"The response of {{.Method}} {{.Endpoint}} could not be read: '{{.Error}}'.",
	)

	// BackendError {{.Error}}
	BackendError = createMessage(
		KindService,
		"{{.Error}}",
	)

	// RunIDMissing The execution was accepted but no run id was returned.
	RunIDMissing = createMessage(
		KindService,
		"The execution was accepted but no run id was returned.",
	)

	// ReportNotReady The report for run {{.RunId}} is not available: '{{.Message}}'.
	ReportNotReady = createMessage(
		KindService,
		"The report for run {{.RunId}} is not available: '{{.Message}}'.",
	)

	// Run lifecycle

	// RunNotFound The run {{.RunId}} is not tracked.
	RunNotFound = createMessage(
		KindNotFound,
		"The run {{.RunId}} is not tracked.",
	)

	// RunFailed Run {{.RunId}} failed: {{.Error}}
	RunFailed = createMessage(
		KindService,
		"Run {{.RunId}} failed: {{.Error}}",
	)

	// PollingTimedOut Stopped polling run {{.RunId}} after {{.Attempts}} attempts, the run may still be in progress.
	PollingTimedOut = createMessage(
		KindTimeout,
		"Stopped polling run {{.RunId}} after {{.Attempts}} attempts, the run may still be in progress.",
	)

	// PollingCancelled Stopped polling run {{.RunId}}.
	PollingCancelled = createMessage(
		KindCancelled,
		"Stopped polling run {{.RunId}}.",
	)

	// RunStillActive The run {{.RunId}} is still being polled.
	RunStillActive = createMessage(
		KindValidation,
		"The run {{.RunId}} is still being polled.",
	)

	// RunAlreadyFinished The run {{.RunId}} already finished and cannot be polled again.
	RunAlreadyFinished = createMessage(
		KindService,
		"The run {{.RunId}} already finished and cannot be polled again.",
	)

	// ControllerClosed The run controller is shut down.
	ControllerClosed = createMessage(
		KindInternal,
		"The run controller is shut down.",
	)

	// Configuration related errors

	// ConfigurationFailed The startup failed: '{{.Error}}'.
	ConfigurationFailed = createMessage(
		KindInternal,
		"The startup failed: '{{.Error}}'.",
	)

	// Local API errors

	// MissingPathParameter The path parameter '{{.ParameterName}}' is required.
	MissingPathParameter = createMessage(
		KindValidation,
		"The path parameter '{{.ParameterName}}' is required.",
	)

	// MethodNotAllowed The HTTP method {{.Method}} is not allowed for the API {{.Api}}.
	MethodNotAllowed = createMessage(
		KindValidation,
		"The HTTP method {{.Method}} is not allowed for the API {{.Api}}.",
	)

	// JSONUnmarshalFailed The JSON unmarshalling failed for the {{.Type}}: '{{.Error}}'.
	JSONUnmarshalFailed = createMessage(
		KindValidation,
		"The JSON unmarshalling failed for the {{.Type}}: '{{.Error}}'.",
	)

	// Storage related errors

	// DatabaseOperationFailed The request for the {{.Type}} resource {{.ResourceId}} failed: '{{.Error}}'.
	DatabaseOperationFailed = createMessage(
		KindInternal,
		"The request for the {{.Type}} resource {{.ResourceId}} failed: '{{.Error}}'.",
	)

	// InternalServerError An internal error occurred: '{{.Error}}'.
	InternalServerError = createMessage(
		KindInternal,
		"An internal error occurred: '{{.Error}}'.",
	)

	// UnknownError An unknown error occurred: '{{.Error}}'. This is a fallback error if the error is not a service error.
	UnknownError = createMessage(
		KindInternal,
		"An unknown error occurred: {{.Error}}.",
	)
)

// Status line texts. These are not errors, they are the progress messages
// shown while a run moves through its lifecycle.
const (
	StatusPlanning          = "Generating test plan..."
	StatusRanking           = "Planned {{.Count}} test cases, ranking..."
	StatusExecuting         = "Selected {{.Selected}} test cases, starting execution..."
	StatusSubmitted         = "Run {{.RunId}} started, waiting before the first status check..."
	StatusPolling           = "Run {{.RunId}} is {{.Status}} (check {{.Attempts}})..."
	StatusPollingProgress   = "Run {{.RunId}} is {{.Status}}, {{.Progress}}% done (check {{.Attempts}})..."
	StatusPollError         = "Status check {{.Attempts}} for run {{.RunId}} failed: {{.Error}}"
	StatusCompleted         = "Run {{.RunId}} completed, the report is ready."
	StatusReportFetched     = "Report for run {{.RunId}}: {{.Passed}}/{{.Total}} passed, {{.Failed}} failed."
	StatusSubmissionFailure = "Submission failed: {{.Error}}"
)

type MessageCode struct {
	kind Kind
	one  string
}

func (m *MessageCode) GetKind() Kind {
	return m.kind
}

func (m *MessageCode) GetMessage() string {
	return m.one
}

func createMessage(kind Kind, one string) *MessageCode {
	return &MessageCode{
		kind,
		one,
	}
}

// GetErrorMessage renders the message of the message code with the given
// name/value parameter pairs.
func GetErrorMessage(messageCode *MessageCode, messageParams ...any) string {
	return Render(messageCode.GetMessage(), messageParams...)
}

// Render replaces the {{.Name}} placeholders of the template with the given
// name/value parameter pairs.
func Render(template string, messageParams ...any) string {
	msg := template
	for i := 0; i < len(messageParams); i += 2 {
		param := messageParams[i]
		var paramValue any
		if i+1 < len(messageParams) {
			paramValue = messageParams[i+1]
		} else {
			paramValue = "NOT_DEFINED" // this is a placeholder for a missing parameter value - if you see this value then the code needs to be fixed
		}
		msg = strings.ReplaceAll(msg, fmt.Sprintf("{{.%v}}", param), fmt.Sprintf("%v", paramValue))
	}
	return msg
}
