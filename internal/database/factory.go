package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"libstor/internal/config"
	"libstor/internal/database/migrations"
)

// libraryNamespace seeds the per-root database names.
var libraryNamespace = uuid.MustParse("6f1c8a52-3d2e-4b7a-9c41-0e5d7b2f8a93")

// PathForRoot returns where the store of the library at root lives:
// <data_dir>/<uuid v5 of root>.db.
func PathForRoot(dataDir, root string) string {
	return filepath.Join(dataDir, uuid.NewSHA1(libraryNamespace, []byte(root)).String()+".db")
}

// NewDatabaseFromConfig opens the store for the library rooted at root and
// brings its schema up to date. An explicit path overrides the derived one.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, batchSize int, root, path string) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if path == "" {
			if cfg.DataDir == "" {
				return nil, fmt.Errorf("data_dir required for sqlite database")
			}
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("creating data_dir: %w", err)
			}
			path = PathForRoot(cfg.DataDir, root)
		}
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path, batchSize)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db.db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}
	return db, nil
}
