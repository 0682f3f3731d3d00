package abstractions

import "github.com/gametester/runctl/internal/messages"

// ServiceError is an interface that represents an error in the controller.
// Error() can be used to log the error, Kind() tells the caller how to react
// to it, MessageCode() and MessageParams() can be used to render the error
// for the user. The rendering is done at the top level (CLI or local API).
type ServiceError interface {
	Error() string                      // This allows this to be used with the error interface
	Kind() messages.Kind                // The class of failure (validation, transport, service, timeout)
	MessageCode() *messages.MessageCode // The message code to return to the caller
	MessageParams() []any               // The parameters to the message code
	ShouldRollback() bool               // Whether the transaction should be rolled back due to this error
}
