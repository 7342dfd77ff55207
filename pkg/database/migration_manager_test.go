package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestMigrationManager(t *testing.T) {
	t.Run("NilDatabase", func(t *testing.T) {
		_, err := NewMigrationManager(nil, nil)
		assert.Error(t, err)
	})

	t.Run("EmptyDatabase", func(t *testing.T) {
		mm, err := NewMigrationManager(openTestDB(t), nil)
		require.NoError(t, err)

		version, err := mm.GetCurrentVersion()
		require.NoError(t, err)
		assert.Equal(t, 0, version)
		assert.Equal(t, 2, mm.GetLatestVersion())
	})

	t.Run("MigrateCreatesTables", func(t *testing.T) {
		db := openTestDB(t)
		mm, err := NewMigrationManager(db, nil)
		require.NoError(t, err)

		require.NoError(t, mm.Migrate())

		for _, table := range []string{"stations", "user_profiles", "guilds", "guild_user_stats"} {
			assert.True(t, tableExists(t, db, table), table)
		}

		history, err := mm.GetMigrationHistory()
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "create_stations", history[0].Name)
		assert.Equal(t, "create_profiles_and_guilds", history[1].Name)
		assert.NotEmpty(t, history[0].Checksum)
		assert.False(t, history[0].AppliedAt.IsZero())

		// Idempotent
		require.NoError(t, mm.Migrate())
		version, err := mm.GetCurrentVersion()
		require.NoError(t, err)
		assert.Equal(t, 2, version)
	})

	t.Run("Rollback", func(t *testing.T) {
		db := openTestDB(t)
		mm, err := NewMigrationManager(db, nil)
		require.NoError(t, err)
		require.NoError(t, mm.Migrate())

		require.NoError(t, mm.Rollback())
		version, err := mm.GetCurrentVersion()
		require.NoError(t, err)
		assert.Equal(t, 1, version)
		assert.False(t, tableExists(t, db, "user_profiles"))
		assert.True(t, tableExists(t, db, "stations"))

		require.NoError(t, mm.Rollback())
		assert.False(t, tableExists(t, db, "stations"))

		assert.ErrorIs(t, mm.Rollback(), ErrCannotRollback)

		// Re-applying after a full rollback works
		require.NoError(t, mm.Migrate())
		assert.True(t, tableExists(t, db, "guild_user_stats"))
	})

	t.Run("ChecksumMismatch", func(t *testing.T) {
		db := openTestDB(t)
		mm, err := NewMigrationManager(db, nil)
		require.NoError(t, err)
		require.NoError(t, mm.Migrate())

		_, err = db.Exec("UPDATE schema_migrations SET checksum = 'tampered' WHERE version = 1")
		require.NoError(t, err)

		assert.ErrorIs(t, mm.Migrate(), ErrChecksumMismatch)
	})
}

func TestCalculateChecksum(t *testing.T) {
	assert.Equal(t, calculateChecksum("SELECT 1"), calculateChecksum("SELECT 1"))
	assert.NotEqual(t, calculateChecksum("SELECT 1"), calculateChecksum("SELECT 2"))
	assert.Len(t, calculateChecksum(""), 32)
}
