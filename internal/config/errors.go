package config

import "fmt"

// ErrCodeConfigError marks an invalid or unreadable configuration.
const ErrCodeConfigError = "CONFIG_ERROR"

// Error is a configuration failure. It is fatal at startup.
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

func configError(message string, cause error) *Error {
	return &Error{Code: ErrCodeConfigError, Message: message, Cause: cause}
}
