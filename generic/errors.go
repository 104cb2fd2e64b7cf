/*
errors.go - Centralized error taxonomy for the state engine

PURPOSE:
  Errors are grouped by condition, not by feature. Feature packages define
  their own sentinels and wrap one of the categories below, so the call
  boundary can map any error with errors.Is without knowing the feature.

ERROR CATEGORIES:
  ErrAlreadyExists  - second registration/creation for the same identity
  ErrNotFound       - no record for the identity in the relevant store
  ErrNotAuthorized  - restricted action refused (not registered / not admin)
  ErrInvalidIndex   - out-of-range position in an ordered per-identity list
  ErrUnavailable    - the record a computation needs is not there
  ErrInvalidInput   - input rejected before touching any store

USAGE:
  var ErrAlreadyRegistered = generic.NewError(generic.ErrAlreadyExists, "User already registered.")

  if errors.Is(err, generic.ErrAlreadyExists) {
      // 409
  }

SEE ALSO:
  - api/handlers.go: maps categories to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyExists is returned when a record is created twice for one identity.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when an identity has no record in a store.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized is returned when a restricted action is refused.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidIndex is returned for an out-of-range list position.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrUnavailable is returned when the record a computation depends on is absent.
	ErrUnavailable = errors.New("unavailable")

	// ErrInvalidInput is returned when input is rejected before any store is touched.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry a stable user-facing message
// =============================================================================

// Error is a feature error with a stable, human-readable message.
// It unwraps to its category so callers can classify it with errors.Is.
type Error struct {
	Category error
	Message  string
}

// NewError creates a feature error belonging to category.
func NewError(category error, message string) *Error {
	return &Error{Category: category, Message: message}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Category }

// InvalidInputError describes a rejected input field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true if the error reports a duplicate creation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable)
}

// IsNotAuthorized returns true if the error is a refused restricted action.
func IsNotAuthorized(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidIndex) ||
		errors.Is(err, ErrInvalidInput)
}

// Message returns the user-facing message carried by err, or err.Error().
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}
