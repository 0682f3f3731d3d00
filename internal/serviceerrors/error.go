package serviceerrors

import (
	"errors"

	"github.com/gametester/runctl/internal/messages"
)

type ServiceError struct {
	messageCode   *messages.MessageCode
	messageParams []any
	cause         error
	rollback      bool
}

func (e *ServiceError) Error() string {
	return messages.GetErrorMessage(e.messageCode, e.messageParams...)
}

func (e *ServiceError) Unwrap() error {
	return e.cause
}

func (e *ServiceError) MessageCode() *messages.MessageCode {
	return e.messageCode
}

func (e *ServiceError) MessageParams() []any {
	return e.messageParams
}

func (e *ServiceError) Kind() messages.Kind {
	return e.messageCode.GetKind()
}

func (e *ServiceError) ShouldRollback() bool {
	return e.rollback
}

func NewServiceError(messageCode *messages.MessageCode, messageParams ...any) *ServiceError {
	return &ServiceError{
		messageCode:   messageCode,
		messageParams: messageParams,
		rollback:      false, // the default is to commit the transaction
	}
}

// Wrap keeps err as the cause of the new service error so that errors.Is and
// errors.As still see it.
func Wrap(err error, messageCode *messages.MessageCode, messageParams ...any) *ServiceError {
	return &ServiceError{
		messageCode:   messageCode,
		messageParams: messageParams,
		cause:         err,
	}
}

func (e *ServiceError) WithRollback() *ServiceError {
	return &ServiceError{
		messageCode:   e.messageCode,
		messageParams: e.messageParams,
		cause:         e.cause,
		rollback:      true,
	}
}

func WithRollback(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.WithRollback()
	}
	return &ServiceError{
		messageCode:   messages.InternalServerError,
		messageParams: []any{"Error", err.Error()},
		cause:         err,
		rollback:      true,
	}
}

// KindOf returns the kind of the first service error in the chain of err, or
// KindInternal if there is none. A nil error has no kind.
func KindOf(err error) messages.Kind {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind()
	}
	return messages.KindInternal
}

func IsKind(err error, kind messages.Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
