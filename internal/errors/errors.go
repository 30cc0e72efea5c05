package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for different categories
var (
	// ErrMalformedInput - request record could not be decoded (allow, transport level)
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidInput - payload present but missing a field a handler needs
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - state record or transcript missing (start from empty)
	ErrNotFound = errors.New("not found")

	// ErrNotRepository - working directory is not under version control
	ErrNotRepository = errors.New("not a repository")

	// ErrCollaborator - an external collaborator (git, transcript store) failed
	ErrCollaborator = errors.New("collaborator failure")

	// ErrStateIO - state store read/write failed (reads degrade to empty, writes are best effort)
	ErrStateIO = errors.New("state io")

	// ErrHandlerFault - handler returned an error or panicked (treated as no opinion)
	ErrHandlerFault = errors.New("handler fault")

	// ErrInternal - anything else
	ErrInternal = errors.New("internal error")
)

// Category returns the taxonomy name for an error, used as a log attribute.
func Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrMalformedInput):
		return "ErrMalformedInput"
	case errors.Is(err, ErrInvalidInput):
		return "ErrInvalidInput"
	case errors.Is(err, ErrNotFound):
		return "ErrNotFound"
	case errors.Is(err, ErrNotRepository):
		return "ErrNotRepository"
	case errors.Is(err, ErrCollaborator):
		return "ErrCollaborator"
	case errors.Is(err, ErrStateIO):
		return "ErrStateIO"
	case errors.Is(err, ErrHandlerFault):
		return "ErrHandlerFault"
	case errors.Is(err, ErrInternal):
		return "ErrInternal"
	default:
		return "Unknown"
	}
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, err)
}

// WrapWithCategory wraps an error with a specific category while keeping the cause
func WrapWithCategory(err error, message string, category error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w: %w", message, category, err)
}

// IsCategory checks if error belongs to specific category
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// NotFound wraps error as not found
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// MalformedInput wraps error as malformed input
func MalformedInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrMalformedInput)
}

// Collaborator wraps error as a collaborator failure
func Collaborator(message string) error {
	return fmt.Errorf("%s: %w", message, ErrCollaborator)
}

// Internal wraps error as internal
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}
