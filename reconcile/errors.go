/*
errors.go - Error taxonomy for the reconciliation core

CATEGORIES:
  NotFound   - shipment item, receive or diff missing; diff already resolved
  Validation - bad input, unknown strategy, delete with pending diffs
  Conflict   - duplicate receive of a sku, storage-level uniqueness races
               (event sequence, ref key)

Callers match with errors.Is on the sentinels or errors.As on the structured
types. The HTTP layer maps them to 404 / 400 / 409.
*/
package reconcile

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")

	// ErrDuplicateEventSeq is returned by stores when the unique index on
	// (logistic_num, event_seq) rejects an insert.
	ErrDuplicateEventSeq = errors.New("duplicate event sequence")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError names the missing entity and its key.
type NotFoundError struct {
	Entity string
	Key    string
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s: %s", e.Entity, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError carries the offending field so the caller can render a
// message next to it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type ConflictError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Key, e.Reason)
}

func (e *ConflictError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConflict, e.Err}
	}
	return []error{ErrConflict}
}

// =============================================================================
// HELPERS
// =============================================================================

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }

func notFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
