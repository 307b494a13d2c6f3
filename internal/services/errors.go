package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors of the consultation engine. Handlers map these onto HTTP
// statuses; none of them are retryable.
var (
	ErrNotFound               = errors.New("resource not found")
	ErrDoctorUnavailable      = errors.New("doctor not found, not a doctor, or inactive")
	ErrSlotConflict           = errors.New("requested time conflicts with an existing consultation")
	ErrAccessDenied           = errors.New("actor is not authorized for this consultation")
	ErrInvalidStateTransition = errors.New("consultation status does not permit this action")
)

// ValidationError reports malformed or out-of-range input. Fields enumerates
// the failing fields with a reason each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, reason := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, reason))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// newValidationError builds a ValidationError, or returns nil when no field
// failed.
func newValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
