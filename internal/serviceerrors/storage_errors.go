package serviceerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// StorageError represents an error in run history operations
type StorageError struct {
	Message string
	Code    int
	cause   error
}

func (e *StorageError) Error() string {
	return e.Message
}

func (e *StorageError) Unwrap() error {
	return e.cause
}

func NewStorageErrorWithError(err error, format string, a ...any) *StorageError {
	msg := fmt.Sprintf(format, a...)
	e := fmt.Errorf("%s: %w", msg, err)
	return &StorageError{Message: e.Error(), Code: http.StatusInternalServerError, cause: err}
}

func NewStorageError(format string, a ...any) *StorageError {
	return &StorageError{Message: fmt.Sprintf(format, a...), Code: http.StatusInternalServerError}
}

func NewStorageErrorWithCode(code int, format string, a ...any) *StorageError {
	return &StorageError{Message: fmt.Sprintf(format, a...), Code: code}
}

func IsStorageNotFound(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
