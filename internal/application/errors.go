package application

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the actor lacks a required capability.
	ErrPermissionDenied = errors.New("application: permission denied")
	// ErrGroupAccessDenied is returned when the actor cannot access the target group.
	ErrGroupAccessDenied = errors.New("application: group access denied")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyOrganiser is returned when the meeting already has an organiser.
	ErrAlreadyOrganiser = errors.New("application: organiser already set")
	// ErrAlreadyOrganiserElsewhere is returned when the actor organises another group of the activity.
	ErrAlreadyOrganiserElsewhere = errors.New("application: already organiser of another group")
	// ErrMeetingAlreadyCreated is returned when creating a remote meeting twice.
	ErrMeetingAlreadyCreated = errors.New("application: online meeting already created")
	// ErrOrganiserMissing is returned when creating a remote meeting without an organiser.
	ErrOrganiserMissing = errors.New("application: organiser not set")
	// ErrMeetingNotCreated is returned when an operation needs a remote meeting that does not exist yet.
	ErrMeetingNotCreated = errors.New("application: online meeting not created")
	// ErrNotConfigured is returned when the meeting provider integration is not configured.
	ErrNotConfigured = errors.New("application: meeting provider not configured")
	// ErrIdentityNotLinked is returned when a user has no remote identity.
	ErrIdentityNotLinked = errors.New("application: user not linked to remote identity")
	// ErrInvalidToken is returned when a web service token cannot be verified.
	ErrInvalidToken = errors.New("application: invalid token")
)

// ProviderError wraps failures reported by the meeting provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("meeting provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return err
	}
	return &ProviderError{Op: op, Err: err}
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

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
