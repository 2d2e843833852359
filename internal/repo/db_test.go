package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "trademark.db")
	db, err := OpenSQLite(bad)
	require.Error(t, err)
	assert.Nil(t, db)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsFileDSN(t *testing.T) {
	assert.True(t, isFileDSN("data/trademark.db"))
	assert.False(t, isFileDSN(":memory:"))
	assert.False(t, isFileDSN("file:x?mode=memory&cache=shared"))
}

func TestOpenSQLite_PragmasPoolAndSchema(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "trademark.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragma := func(name string) string {
		var v string
		require.NoError(t, db.Raw("PRAGMA "+name).Row().Scan(&v), name)
		return v
	}
	assert.Equal(t, "wal", pragma("journal_mode"))
	assert.Equal(t, "1", pragma("synchronous"), "NORMAL")
	assert.Equal(t, "1", pragma("foreign_keys"))
	assert.Equal(t, "5000", pragma("busy_timeout"))
	assert.Equal(t, sqliteMaxConns, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, AutoMigrate(db))
	for _, tbl := range []any{&domain.KVRecord{}, &domain.NotificationIntent{}, &domain.Idempotency{}} {
		assert.True(t, db.Migrator().HasTable(tbl), "%T", tbl)
	}

	kv := NewGormKV(db)
	ctx := context.Background()
	require.NoError(t, Save(ctx, kv, UserKey("owner-1", KeyTheme), domain.ThemeDark))
	var theme domain.Theme
	found, err := Load(ctx, kv, UserKey("owner-1", KeyTheme), &theme)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.ThemeDark, theme)
}
