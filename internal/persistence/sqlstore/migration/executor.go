package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLExecutor applies migrations through sqlx so placeholders follow the driver.
type SQLExecutor struct {
	db *sqlx.DB
}

// NewSQLExecutor returns an executor bound to db.
func NewSQLExecutor(db *sqlx.DB) *SQLExecutor {
	return &SQLExecutor{db: db}
}

// InitializeVersionTable creates schema_migrations when missing.
func (e *SQLExecutor) InitializeVersionTable(ctx context.Context) error {
	const stmt = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at BIGINT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms BIGINT NOT NULL DEFAULT 0
		)`
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return NewDatabaseError("", stmt, "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of migration in one transaction.
func (e *SQLExecutor) ExecuteMigration(ctx context.Context, migration Migration) (err error) {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return NewMigrationError(migration.Version, migration.FilePath, "parse SQL",
			fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewDatabaseError(migration.Version, "", "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range statements {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			return NewDatabaseError(migration.Version, stmt, fmt.Sprintf("execute statement %d", i+1), execErr)
		}
	}

	if err = tx.Commit(); err != nil {
		return NewDatabaseError(migration.Version, "", "commit transaction", err)
	}
	return nil
}

// RecordMigration stores a successful run.
func (e *SQLExecutor) RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error {
	stmt := e.db.Rebind(`
		INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms)
		VALUES (?, ?, ?, ?)`)
	_, err := e.db.ExecContext(ctx, stmt,
		migration.Version,
		time.Now().UTC().Unix(),
		migration.Checksum,
		executionTime.Milliseconds(),
	)
	if err != nil {
		return NewDatabaseError(migration.Version, stmt, "record migration", err)
	}
	return nil
}

type appliedRow struct {
	Version         string `db:"version"`
	AppliedAt       int64  `db:"applied_at"`
	Checksum        string `db:"checksum"`
	ExecutionTimeMs int64  `db:"execution_time_ms"`
}

// GetAppliedVersions lists applied migrations ordered by version.
func (e *SQLExecutor) GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	const query = `
		SELECT version, applied_at, checksum, execution_time_ms
		FROM schema_migrations
		ORDER BY version ASC`
	var rows []appliedRow
	if err := e.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, NewDatabaseError("", query, "get applied versions", err)
	}

	applied := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		applied = append(applied, AppliedMigration{
			Version:       row.Version,
			AppliedAt:     time.Unix(row.AppliedAt, 0).UTC(),
			ExecutionTime: time.Duration(row.ExecutionTimeMs) * time.Millisecond,
			Checksum:      row.Checksum,
		})
	}
	return applied, nil
}
