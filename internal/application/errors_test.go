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

	withFields := &ValidationError{FieldErrors: map[string]string{"name": "name is required"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected generic message, got %q", got)
	}
}

func TestValidationError_AddAndHasErrors(t *testing.T) {
	t.Parallel()

	v := &ValidationError{}
	if v.HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	v.add("close_at", "close date must be after open date")
	if !v.HasErrors() {
		t.Fatalf("expected HasErrors to report true after add")
	}
	if got := v.FieldErrors["close_at"]; got != "close date must be after open date" {
		t.Fatalf("expected add to populate map, got %q", got)
	}
}

func TestProviderErrorWrapsOnce(t *testing.T) {
	t.Parallel()

	if providerError("create", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}

	cause := errors.New("timeout")
	err := providerError("create", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable, got %v", err)
	}
	if again := providerError("update", err); again != err {
		t.Fatalf("expected an existing provider error to be returned unchanged")
	}
	if got := err.Error(); got != "meeting provider create: timeout" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrPermissionDenied, "permission_denied"},
		{fmt.Errorf("wrap: %w", ErrGroupAccessDenied), "group_access_denied"},
		{ErrNotFound, "not_found"},
		{ErrAlreadyOrganiser, "already_organiser"},
		{ErrAlreadyOrganiserElsewhere, "already_organiser_elsewhere"},
		{ErrMeetingAlreadyCreated, "precondition"},
		{ErrOrganiserMissing, "precondition"},
		{ErrNotConfigured, "configuration"},
		{ErrIdentityNotLinked, "configuration"},
		{ErrInvalidToken, "invalid_token"},
		{&ProviderError{Op: "create", Err: errors.New("x")}, "provider"},
		{errors.Join(&ProviderError{Op: "update", Err: errors.New("x")}), "provider"},
		{&ValidationError{}, "validation"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
