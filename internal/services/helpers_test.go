package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latoulicious/lofi-bot/pkg/database"
)

func newTestDB(t *testing.T) database.DatabaseManager {
	t.Helper()

	cfg := database.DefaultDatabaseConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "lofi.db")

	db, err := database.NewDatabaseManager(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, db.Connect())
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestProfileService(t *testing.T) *ProfileService {
	t.Helper()
	db := newTestDB(t)
	return NewProfileService(db.Profiles(), db.Guilds(), db.GuildStats(), nil)
}
