package errors

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// IOError describes a failed source or sink operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// ErrorCategory implements Categorizer.
// Interrupted, busy and timed-out operations are transient.
func (e *IOError) ErrorCategory() Category {
	if isTemporary(e.Err) {
		return CategoryTransient
	}
	return CategoryUser
}

func isTemporary(err error) bool {
	switch {
	case errors.Is(err, syscall.EINTR),
		errors.Is(err, syscall.EAGAIN),
		errors.Is(err, syscall.EBUSY),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, os.ErrDeadlineExceeded):
		return true
	}
	return false
}

// TimeoutError indicates a collaborator did not answer within its bounded wait.
type TimeoutError struct {
	Operation string
	Duration  string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}

// ErrorCategory implements Categorizer.
func (e *TimeoutError) ErrorCategory() Category {
	return CategoryTransient
}
