package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound          = errors.New("resource not found")
	ErrParagraphNotFound = fmt.Errorf("%w: paragraph output", ErrNotFound)
	ErrIndexNotFound     = fmt.Errorf("%w: index", ErrNotFound)

	// The log pattern backend answered 404; reported verbatim and never retried.
	ErrAgentNotFound = errors.New("analysis agent not found")

	// Precondition errors
	ErrMissingContext     = errors.New("missing analysis context")
	ErrInvalidWindow      = errors.New("invalid time window")
	ErrNoComparableFields = errors.New("no comparable fields")

	// I/O errors
	ErrFetchFailed = errors.New("fetch failed")

	// A newer analysis of the same paragraph started before this one finished
	ErrSuperseded = errors.New("analysis superseded by a newer run")
)

// NewMissingContextError names the piece of context that is not yet available
func NewMissingContextError(what string) error {
	return fmt.Errorf("%w: %s is required", ErrMissingContext, what)
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// NewFetchError wraps a backend failure for one sampling window
func NewFetchError(window string, err error) error {
	return fmt.Errorf("%w for %s window: %w", ErrFetchFailed, window, err)
}

// IsNotFoundError reports whether err is any kind of not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPreconditionError reports whether the run was refused before doing any I/O
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrMissingContext) ||
		errors.Is(err, ErrInvalidWindow)
}
