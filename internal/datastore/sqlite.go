package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
)

// SQLiteStore implements DataStore for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open creates the database file if needed, connects and migrates.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Database.SQLite.Path
	if path == "" {
		return errors.Newf("sqlite path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dbError(err, "create_database_directory", "path", dir)
		}
	}

	gormLogger := NewGormLogger(store.log, store.Settings.Database.SlowQueryThreshold, store.metrics)
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return dbError(err, "open_sqlite", "path", path)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open_sqlite", "path", path)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	store.DB = db
	store.log.Info("database opened",
		logger.String("dialect", "sqlite"),
		logger.String("path", path))
	return performAutoMigration(db, store.log, "sqlite")
}

// Close closes the connection.
func (store *SQLiteStore) Close() error {
	return store.closeDB()
}

// Dialect names the backend.
func (store *SQLiteStore) Dialect() string {
	return "sqlite"
}
