package reporting

import (
	"errors"
	"fmt"
)

// ErrorType classifies a reporting failure.
type ErrorType string

// Reporting error types.
const (
	ErrAccessDenied                    ErrorType = "ACCESS_DENIED"
	ErrIncorrectRequest                ErrorType = "INCORRECT_REQUEST"
	ErrLaunchNotFound                  ErrorType = "LAUNCH_NOT_FOUND"
	ErrTestItemNotFound                ErrorType = "TEST_ITEM_NOT_FOUND"
	ErrUserNotFound                    ErrorType = "USER_NOT_FOUND"
	ErrStartItemNotAllowed             ErrorType = "START_ITEM_NOT_ALLOWED"
	ErrChildStartTimeEarlierThanParent ErrorType = "CHILD_START_TIME_EARLIER_THAN_PARENT"
	ErrFinishLaunchNotAllowed          ErrorType = "FINISH_LAUNCH_NOT_ALLOWED"
	ErrFinishTimeEarlierThanStartTime  ErrorType = "FINISH_TIME_EARLIER_THAN_START_TIME"
)

// ErrIntegrity marks a consistency fault between producer-time and
// consumer-time state, e.g. a launch that vanished after the producer saw it.
var ErrIntegrity = errors.New("reporting integrity violation")

// Error is a reporting failure with a machine-readable type.
type Error struct {
	Type    ErrorType
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Type)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewError builds a typed reporting error with a formatted message.
func NewError(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// TypeOf returns the reporting error type carried by err, if any.
func TypeOf(err error) (ErrorType, bool) {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Type, true
	}

	return "", false
}

// IsType reports whether err carries the given reporting error type.
func IsType(err error, t ErrorType) bool {
	got, ok := TypeOf(err)

	return ok && got == t
}

// Integrity wraps a description of a consistency fault with ErrIntegrity.
func Integrity(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...))
}
