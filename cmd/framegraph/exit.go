package main

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/framegraph/pkg/framegraph"
	fgerrors "github.com/randalmurphal/framegraph/pkg/framegraph/errors"
)

const (
	exitSuccess   = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 3
	exitInvariant = 4
)

// ExitError is an error that carries a specific process exit code.
// Commands return it from RunE to signal the exit code to main.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// runExitCode maps a run error to an exit code by category.
func runExitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, framegraph.ErrCancelled):
		return exitCancelled
	}
	switch fgerrors.Categorize(err) {
	case fgerrors.CategoryCancelled:
		return exitCancelled
	case fgerrors.CategoryInvariant:
		return exitInvariant
	default:
		return exitFailure
	}
}
