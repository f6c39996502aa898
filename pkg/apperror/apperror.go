// Package apperror defines the recoverable error taxonomy shared by the
// domain services. All four kinds are expected failures surfaced to the
// caller; transport errors pass through untyped.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports a malformed or missing required field, caught
// before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for a single field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a referenced entity that is absent or belongs to a
// different clinic. Cross-clinic lookups are deliberately indistinguishable
// from missing rows.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError for the named entity.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InsufficientStockError reports a decrease that would drive stock negative.
// It is a hard stop, never a clamp.
type InsufficientStockError struct {
	MedicationID string
	Available    int
	Requested    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for medication %s: have %d, need %d",
		e.MedicationID, e.Available, e.Requested)
}

// InvalidStateError reports an action disallowed by an entity's derived
// status (e.g. administering against a cancelled prescription).
type InvalidStateError struct {
	Entity string
	State  string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s: %s is %s", e.Action, e.Entity, e.State)
}

// HTTPStatus maps a typed error to its HTTP status code. Unrecognised errors
// map to 500; the handler layer owns user messaging.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
		is *InsufficientStockError
		st *InvalidStateError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &is):
		return http.StatusConflict
	case errors.As(err, &st):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
