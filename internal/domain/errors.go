package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by repositories. Handlers branch on these with
// errors.Is/errors.As instead of matching driver message strings.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// ReferencedError rejects a delete while dependent rows still exist.
// Message carries the product-facing text including the reference count.
type ReferencedError struct {
	Resource string
	Count    int
	Message  string
}

func (e *ReferencedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s is referenced by %d row(s)", e.Resource, e.Count)
}

// ValidationError carries one or more field-level messages for a 400 response.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	return fmt.Sprintf("%d validation errors", len(e.Messages))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError builds a ValidationError from messages.
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}
