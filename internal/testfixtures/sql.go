package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/teammeeting/internal/persistence/sqlstore"
)

// SQLHarness is a migrated SQLite store in a temporary directory.
type SQLHarness struct {
	Store *sqlstore.Storage
}

// NewSQLHarness opens, migrates and seeds a store with DefaultSeed. The
// store is closed when the test ends.
func NewSQLHarness(tb testing.TB) *SQLHarness {
	tb.Helper()
	return NewSQLHarnessWithSeed(tb, DefaultSeed())
}

// NewSQLHarnessWithSeed is NewSQLHarness with a custom seed.
func NewSQLHarnessWithSeed(tb testing.TB, seed sqlstore.Seed) *SQLHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "teammeeting.db")
	store, err := sqlstore.Open(sqlstore.DriverSQLite, "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	if err := store.LoadSeed(ctx, seed); err != nil {
		tb.Fatalf("failed to seed storage: %v", err)
	}
	return &SQLHarness{Store: store}
}

// CreateActivity inserts an activity fixture directly into the store.
func (h *SQLHarness) CreateActivity(tb testing.TB, fixture ActivityFixture) {
	tb.Helper()
	if err := h.Store.CreateActivity(context.Background(), fixture.Persistence()); err != nil {
		tb.Fatalf("failed to create activity %s: %v", fixture.ID, err)
	}
}
