package domain

import (
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory SQLite database for one test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestIdempotency_UniquePerUserScopeKey(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&Idempotency{}))

	assert.Equal(t, "idempotency", Idempotency{}.TableName())
	assert.True(t, db.Migrator().HasIndex(&Idempotency{}, "ux_user_scope_key"))

	now := time.Date(2023, 11, 10, 12, 0, 0, 0, time.UTC)
	const scope = "POST /api/v1/processes/:id/deadlines#915000001"
	row := func(id, user, scope, rid string) *Idempotency {
		return &Idempotency{ID: id, UserID: user, Scope: scope, Key: "add-1", ResourceID: rid,
			Status: 201, CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	}

	require.NoError(t, db.Create(row("i1", "owner-1", scope, "dl-1")).Error)

	var got Idempotency
	require.NoError(t, db.First(&got, "id = ?", "i1").Error)
	assert.Equal(t, "dl-1", got.ResourceID)
	assert.Equal(t, 201, got.Status)

	assert.Error(t, db.Create(row("i2", "owner-1", scope, "dl-2")).Error, "same user, scope and key")
	assert.NoError(t, db.Create(row("i3", "owner-2", scope, "dl-3")).Error, "other user")
	assert.NoError(t, db.Create(row("i4", "owner-1", "POST /api/v1/processes/:id/deadlines#915000002", "dl-4")).Error, "other process")
}
