package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) DatabaseManager {
	t.Helper()

	config := DefaultDatabaseConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	dm, err := NewDatabaseManager(config, nil)
	require.NoError(t, err)
	require.NoError(t, dm.Connect())
	t.Cleanup(func() { dm.Close() })
	return dm
}

func TestNewDatabaseManager(t *testing.T) {
	tests := []struct {
		name        string
		config      *DatabaseConfig
		expectError bool
	}{
		{
			name:        "nil config uses defaults",
			config:      nil,
			expectError: false,
		},
		{
			name:        "valid config",
			config:      DefaultDatabaseConfig(),
			expectError: false,
		},
		{
			name: "invalid config - empty database path",
			config: &DatabaseConfig{
				DatabasePath: "",
			},
			expectError: true,
		},
		{
			name: "invalid config - zero max connections",
			config: &DatabaseConfig{
				DatabasePath:   "test.db",
				MaxConnections: 0,
			},
			expectError: true,
		},
		{
			name: "invalid config - unknown synchronous mode",
			config: &DatabaseConfig{
				DatabasePath:      "test.db",
				MaxConnections:    1,
				ConnectionTimeout: time.Second,
				SynchronousMode:   "SOMETIMES",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm, err := NewDatabaseManager(tt.config, nil)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, dm)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, dm)
			}
		})
	}
}

func TestDatabaseManager_ConnectAndClose(t *testing.T) {
	config := DefaultDatabaseConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	dm, err := NewDatabaseManager(config, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, dm.Ping(context.Background()), ErrDatabaseNotConnected)

	require.NoError(t, dm.Connect())
	assert.NoError(t, dm.Ping(context.Background()))

	// Connecting twice is a no-op
	assert.NoError(t, dm.Connect())

	version, err := dm.GetSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	assert.NotNil(t, dm.Stations())
	assert.NotNil(t, dm.Profiles())
	assert.NotNil(t, dm.Guilds())
	assert.NotNil(t, dm.GuildStats())

	require.NoError(t, dm.Close())
	assert.ErrorIs(t, dm.Ping(context.Background()), ErrDatabaseNotConnected)
	assert.NoError(t, dm.Close())
}

func TestDatabaseManager_Backup(t *testing.T) {
	dm := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, dm.Stations().Create(ctx, &Station{Name: "Chill", URL: "https://example.com/chill"}))

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, dm.Backup(backupPath))

	info, err := os.Stat(backupPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	restored, err := NewDatabaseManager(&DatabaseConfig{
		DatabasePath:      backupPath,
		MaxConnections:    1,
		ConnectionTimeout: time.Second,
		SynchronousMode:   "NORMAL",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, restored.Connect())
	defer restored.Close()

	station, err := restored.Stations().FindByName(ctx, "chill")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/chill", station.URL)
}

func TestDatabaseManager_BackupNotConnected(t *testing.T) {
	dm, err := NewDatabaseManager(nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, dm.Backup(filepath.Join(t.TempDir(), "x.db")), ErrDatabaseNotConnected)
}

func TestBuildConnectionString(t *testing.T) {
	dm := &databaseManager{config: &DatabaseConfig{
		DatabasePath:    "lofi.db",
		SynchronousMode: "FULL",
		CacheSize:       -2000,
		WALMode:         true,
		BusyTimeout:     2 * time.Second,
	}}

	dsn := dm.buildConnectionString()
	assert.Contains(t, dsn, "lofi.db?")
	assert.Contains(t, dsn, "_synchronous=FULL")
	assert.Contains(t, dsn, "_cache_size=-2000")
	assert.Contains(t, dsn, "_journal_mode=WAL")
	assert.Contains(t, dsn, "_busy_timeout=2000")
	assert.Contains(t, dsn, "_foreign_keys=1")
}
