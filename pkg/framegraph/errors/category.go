// Package errors provides error categorization and retry for framegraph.
//
// The package separates failures by who has to act on them:
//   - Categorization: user-actionable vs engine invariant vs cancellation
//   - Retry: transient collaborator I/O failures with exponential backoff
//
// The engine itself never retries; Retry is for source and sink
// collaborators (for example re-opening a flaky frame file).
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category represents who should act on an error.
type Category int

const (
	// CategoryUser indicates the caller can fix the problem.
	// Examples: malformed graph, misaligned input streams, bad frame data.
	CategoryUser Category = iota

	// CategoryInvariant indicates an engine bug such as a planning defect.
	// These should be rare and are worth reporting upstream.
	CategoryInvariant

	// CategoryCancelled indicates the run was stopped by its caller.
	CategoryCancelled

	// CategoryTransient indicates retry will likely help.
	// Examples: interrupted reads, busy devices, I/O timeouts.
	CategoryTransient
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryUser:
		return "user"
	case CategoryInvariant:
		return "invariant"
	case CategoryCancelled:
		return "cancelled"
	case CategoryTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Categorizer is implemented by typed errors that know their own category.
type Categorizer interface {
	ErrorCategory() Category
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates who should act on this error.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// ErrorCategory implements Categorizer.
func (e *CategorizedError) ErrorCategory() Category {
	return e.Category
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// User creates a user-actionable error.
func User(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryUser, context)
}

// Invariant creates an engine invariant error.
func Invariant(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryInvariant, context)
}

// Categorize determines who should act on an error.
// The outermost categorized error wins, so wrapping an error with
// Transient overrides whatever category it carried before.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUser
	}

	var cat Categorizer
	if errors.As(err, &cat) {
		return cat.ErrorCategory()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryCancelled
	}

	// Unknown errors come from node behaviors or collaborators; treat them
	// as problems with the caller's data.
	return CategoryUser
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsInvariant reports whether the error indicates an engine bug.
func IsInvariant(err error) bool {
	return Categorize(err) == CategoryInvariant
}

// IsCancelled reports whether the error stems from cancellation.
func IsCancelled(err error) bool {
	return Categorize(err) == CategoryCancelled
}
