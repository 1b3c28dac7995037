package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the caller is not authenticated or a
	// credential is invalid, expired, or already used.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrForbidden is returned when the authenticated principal may not act on a resource.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when the request clashes with current state.
	ErrConflict = errors.New("application: conflict")
	// ErrInvalidCredentials is the single failure reported for any login
	// mismatch, so callers cannot tell which part was wrong.
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
)

// Conflict codes surfaced to API clients.
const (
	CodeBookingConflict  = "BOOKING_CONFLICT"
	CodeRoomInactive     = "ROOM_INACTIVE"
	CodeBookingCancelled = "BOOKING_CANCELLED"
	CodeEmailTaken       = "EMAIL_TAKEN"
)

// ConflictError carries a machine-readable reason for a conflict.
type ConflictError struct {
	Code    string
	Message string
}

func newConflict(code, message string) *ConflictError {
	return &ConflictError{Code: code, Message: message}
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	return c.Message
}

// Is reports ErrConflict as the target for errors.Is.
func (c *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// HasField reports whether field has a recorded issue.
func (v *ValidationError) HasField(field string) bool {
	if v == nil {
		return false
	}
	_, ok := v.FieldErrors[field]
	return ok
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}
