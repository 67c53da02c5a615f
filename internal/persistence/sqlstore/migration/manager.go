package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	scanner  Scanner
	executor Executor
	dir      string
	logger   *slog.Logger
}

// NewManager wires a scanner and executor. A nil logger falls back to slog.Default.
func NewManager(scanner Scanner, executor Executor, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
}

// RunMigrations applies every pending migration.
func (m *Manager) RunMigrations(ctx context.Context) error {
	start := time.Now()

	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date")
		return nil
	}

	for i, migration := range pending {
		migrationStart := time.Now()
		m.logger.InfoContext(ctx, "applying migration",
			"version", migration.Version,
			"description", migration.Description,
			"position", fmt.Sprintf("%d/%d", i+1, len(pending)),
		)

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		elapsed := time.Since(migrationStart)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, "record migration", err)
		}
		m.logger.InfoContext(ctx, "migration applied", "version", migration.Version, "elapsed", elapsed)
	}

	m.logger.InfoContext(ctx, "migrations complete", "count", len(pending), "elapsed", time.Since(start))
	return nil
}

// PendingMigrations returns the migrations not yet recorded in schema_migrations.
func (m *Manager) PendingMigrations(ctx context.Context) ([]Migration, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status.PendingMigrations, nil
}

// Status compares the migration files against schema_migrations.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	files := make(map[string]Migration, len(available))
	for _, migration := range available {
		files[migration.Version] = migration
	}

	appliedSet := make(map[string]bool, len(applied))
	status := &Status{AppliedMigrations: applied}
	for _, a := range applied {
		file, ok := files[a.Version]
		if !ok {
			return nil, fmt.Errorf("%w: version %s applied but no file found", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != file.Checksum {
			return nil, NewMigrationError(a.Version, file.FilePath, "verify checksum", ErrChecksumMismatch)
		}
		appliedSet[a.Version] = true
		status.CurrentVersion = a.Version
	}

	for _, migration := range available {
		if !appliedSet[migration.Version] {
			status.PendingMigrations = append(status.PendingMigrations, migration)
		}
	}
	status.PendingCount = len(status.PendingMigrations)
	return status, nil
}
