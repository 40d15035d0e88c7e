// Package testdb opens throwaway in-memory databases for tests.
package testdb

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"

	"churchsite/internal/database"
)

// New returns a migrated, private in-memory sqlite database that is closed
// when the test ends.
func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open("file::memory:"), logger.Silent)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.Gorm.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
