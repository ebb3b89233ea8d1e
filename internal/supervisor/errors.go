package supervisor

import (
	"errors"
	"fmt"
)

// Error is a supervisor failure surfaced to callers.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeConfigError   = "CONFIG_ERROR"
	ErrCodeInvalidParams = "INVALID_PARAMS"
	ErrCodeVolumeFailed  = "VOLUME_FAILED"
)

// NewError creates a new supervisor error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
