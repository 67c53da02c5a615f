package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/teammeeting/internal/persistence"
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgSerializationFail   = "40001"
)

// ErrorMapper maps driver errors to persistence errors.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError translates err. Unknown errors are returned unchanged.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.ConstraintName)
		case pgForeignKeyViolation, pgCheckViolation, pgNotNullViolation:
			return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, pgErr.Message)
		}
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"),
		strings.Contains(msg, "CHECK constraint failed"),
		strings.Contains(msg, "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}

// RetryConfig configures retry behaviour for transient failures.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the retry policy used by Open.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper retries functions failing with lock or serialization errors.
type RetryHelper struct {
	config RetryConfig
	mapper *ErrorMapper
}

// NewRetryHelper creates a new retry helper.
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{config: config, mapper: NewErrorMapper()}
}

// WithRetry runs fn until it succeeds, fails permanently or retries run out.
// The returned error is already mapped.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
				if delay > rh.config.MaxDelay {
					delay = rh.config.MaxDelay
				}
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return rh.mapper.MapError(err)
		}
		lastErr = err
	}

	return fmt.Errorf("operation failed after %d retries: %w", rh.config.MaxRetries, rh.mapper.MapError(lastErr))
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFail
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
