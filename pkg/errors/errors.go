package errors

import (
	goErrors "errors"
	"fmt"
)

// New returns an error with the given message.
// It's a drop-in replacement for the standard library's errors.New, so that
// files don't have to import both error packages.
func New(msg string) error {
	return goErrors.New(msg)
}

// ContextError wraps an error with a short description of the operation that
// failed. The chain of contexts reads like a call path when printed.
type ContextError struct {
	Context string
	Err     error
}

// WithContext annotates err with context. It returns nil if err is nil so
// that callers can wrap unconditionally.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return ContextError{Context: context, Err: err}
}

func (ce ContextError) Error() string {
	return fmt.Sprintf("%s: %s", ce.Context, ce.Err)
}

// Unwrap makes ContextError compatible with the standard errors.Is/As
// helpers.
func (ce ContextError) Unwrap() error {
	return ce.Err
}

// RootCause returns the innermost error in a chain of ContextErrors. It's
// used to make decisions based on typed errors that have been wrapped on the
// way up.
func RootCause(err error) error {
	for {
		ce, ok := err.(ContextError)
		if !ok {
			return err
		}
		err = ce.Err
	}
}

// FriendlyError is an error whose message is meant to be shown to users
// directly, without the "context: context: cause" chain formatting.
type FriendlyError struct {
	Message string
}

// NewFriendlyError creates a FriendlyError according to the format specifier.
func NewFriendlyError(format string, args ...interface{}) FriendlyError {
	return FriendlyError{Message: fmt.Sprintf(format, args...)}
}

func (err FriendlyError) Error() string {
	return err.Message
}

func (err FriendlyError) FriendlyMessage() string {
	return err.Message
}

// friendlier is implemented by errors that have a user-facing message in
// addition to their Error() string.
type friendlier interface {
	FriendlyMessage() string
}

// GetPrintableMessage returns the message that should be shown to the user
// for the given error.
func GetPrintableMessage(err error) string {
	if friendly, ok := RootCause(err).(friendlier); ok {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
