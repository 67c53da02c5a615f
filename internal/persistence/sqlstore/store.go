// Package sqlstore implements the persistence repositories on SQLite
// (modernc.org/sqlite) or PostgreSQL (pgx) through sqlx.
package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/example/teammeeting/internal/persistence/sqlstore/migration"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Storage is the SQL backed implementation of every persistence repository.
type Storage struct {
	db     *sqlx.DB
	driver string
	mapper *ErrorMapper
	retry  *RetryHelper
	logger *slog.Logger
}

// Open connects to the database named by driver and dsn.
func Open(driver, dsn string) (*Storage, error) {
	driverName, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// modernc serialises writers; a single connection also keeps
		// :memory: databases shared across queries.
		db.SetMaxOpenConns(1)
	}

	return &Storage{
		db:     db,
		driver: driver,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		logger: slog.Default(),
	}, nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite", nil
	case DriverPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// WithLogger sets the logger used for migrations and retries.
func (s *Storage) WithLogger(logger *slog.Logger) *Storage {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// DB exposes the underlying handle.
func (s *Storage) DB() *sqlx.DB {
	return s.db
}

// Driver reports the configured driver name.
func (s *Storage) Driver() string {
	return s.driver
}

// Ping verifies the connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewFSScanner(migrationFiles),
		migration.NewSQLExecutor(s.db),
		"migrations",
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// TransactionFunc runs inside a transaction.
type TransactionFunc func(tx *sqlx.Tx) error

// WithTransaction runs fn in a transaction, rolling back when fn fails or panics.
func (s *Storage) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", s.mapper.MapError(err))
	}
	return nil
}

func (s *Storage) rebind(query string) string {
	return s.db.Rebind(query)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
