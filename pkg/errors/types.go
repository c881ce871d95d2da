package errors

import (
	"fmt"
)

// ErrTooManyFailures aborts a mirror run after the transfer failure budget
// has been spent.
var ErrTooManyFailures = New("too many transfer failures")

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// CycleError represents a malformed remote tree in which a container is
// reported as its own ancestor. Recursing into it would never terminate.
type CycleError struct {
	NodeID string
	Path   string
}

func (err CycleError) Error() string {
	return fmt.Sprintf("remote tree cycle: container %s repeats at %q",
		err.NodeID, err.Path)
}
