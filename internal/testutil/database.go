package testutil

import (
	"testing"

	"libstor/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()
	return NewTestDatabaseWithBatch(t, database.DefaultBatchSize)
}

// NewTestDatabaseWithBatch is NewTestDatabase with a custom commit batch size.
func NewTestDatabaseWithBatch(t *testing.T, batchSize int) *database.SQLiteDatabase {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB, batchSize)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
