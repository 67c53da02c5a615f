package migration

import (
	"context"
	"time"
)

// Migration is a versioned SQL script read from the migration filesystem.
type Migration struct {
	Version     string // e.g. "001"
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarises the migration state of a database.
type Status struct {
	CurrentVersion    string
	PendingCount      int
	AppliedMigrations []AppliedMigration
	PendingMigrations []Migration
}

// Scanner reads migrations from a filesystem.
type Scanner interface {
	ScanMigrations(dir string) ([]Migration, error)
	ValidateFileName(name string) error
}

// Executor applies migrations and tracks them in schema_migrations.
type Executor interface {
	InitializeVersionTable(ctx context.Context) error
	ExecuteMigration(ctx context.Context, migration Migration) error
	RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error
	GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error)
}
