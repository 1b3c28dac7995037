package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	if base.HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	base.add("first", "value")
	base.add("first", "ignored")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected first message to be kept, got %q", got)
	}

	base.merge(&ValidationError{FieldErrors: map[string]string{"second": "another"}})
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 || !base.HasErrors() {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestConflictErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("create: %w", newConflict(CodeBookingConflict, "taken"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict error to match ErrConflict")
	}

	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.Code != CodeBookingConflict {
		t.Fatalf("expected conflict code to be recoverable, got %#v", cErr)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict must not match other sentinels")
	}
}

func TestInvalidCredentialsIsUnauthorized(t *testing.T) {
	t.Parallel()

	if !errors.Is(ErrInvalidCredentials, ErrUnauthorized) {
		t.Fatalf("expected invalid credentials to be an unauthorized error")
	}
}
