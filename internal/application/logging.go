package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/teammeeting/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContextOr(ctx, base)

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrGroupAccessDenied):
		return "group_access_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyOrganiser):
		return "already_organiser"
	case errors.Is(err, ErrAlreadyOrganiserElsewhere):
		return "already_organiser_elsewhere"
	case errors.Is(err, ErrMeetingAlreadyCreated), errors.Is(err, ErrOrganiserMissing), errors.Is(err, ErrMeetingNotCreated):
		return "precondition"
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrIdentityNotLinked):
		return "configuration"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	}

	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return "provider"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
