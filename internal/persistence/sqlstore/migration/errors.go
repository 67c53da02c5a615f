package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationFailed indicates that a migration execution failed.
	ErrMigrationFailed = errors.New("migration execution failed")
	// ErrInvalidMigrationFile indicates a malformed migration file.
	ErrInvalidMigrationFile = errors.New("invalid migration file format")
	// ErrDuplicateVersion indicates that two files share a version.
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrVersionConflict indicates an applied version with no matching file.
	ErrVersionConflict = errors.New("migration version conflict")
	// ErrChecksumMismatch indicates that an applied file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// MigrationError wraps a failure with the migration it belongs to.
type MigrationError struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.FilePath, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration error (%s): %s: %v", e.FilePath, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// NewMigrationError builds a MigrationError.
func NewMigrationError(version, filePath, operation string, err error) *MigrationError {
	return &MigrationError{Version: version, FilePath: filePath, Operation: operation, Err: err}
}

// DatabaseError reports a failing statement.
type DatabaseError struct {
	Version   string
	Statement string
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error in migration %s during %s: %v", e.Version, e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// NewDatabaseError builds a DatabaseError.
func NewDatabaseError(version, statement, operation string, err error) *DatabaseError {
	return &DatabaseError{Version: version, Statement: statement, Operation: operation, Err: err}
}
