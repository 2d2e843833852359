// Package repo is the persistence layer: the key/value gateway over SQLite
// (GORM) or Redis, notification intents and idempotency records.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

// sqlitePragmas run on every open. WAL lets the dispatcher write intents
// while handlers read snapshots.
var sqlitePragmas = []string{
	"journal_mode=WAL",
	"synchronous=NORMAL",
	"foreign_keys=ON",
	"busy_timeout=5000",
}

const sqliteMaxConns = 10

// isFileDSN reports whether path names a file on disk rather than a
// "file:" URI or an in-memory database.
func isFileDSN(path string) bool {
	return path != ":memory:" && !strings.HasPrefix(path, "file:")
}

// OpenSQLite opens or creates the database at path, applies sqlitePragmas,
// sizes the pool and installs OpenTelemetry tracing. The parent directory
// must already exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if isFileDSN(path) {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, fmt.Errorf("sqlite dir: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	for _, p := range sqlitePragmas {
		if err := db.Exec("PRAGMA " + p).Error; err != nil {
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(sqliteMaxConns)
	sqlDB.SetMaxIdleConns(sqliteMaxConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// AutoMigrate creates or updates the service's tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.KVRecord{},
		&domain.NotificationIntent{},
		&domain.Idempotency{},
	)
}
