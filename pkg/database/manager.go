package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

// databaseManager implements the DatabaseManager interface
type databaseManager struct {
	config           *DatabaseConfig
	logger           logging.Logger
	db               *sql.DB
	migrationManager MigrationManager

	stations   StationRepository
	profiles   UserProfileRepository
	guilds     GuildRepository
	guildStats GuildUserStatsRepository

	connected bool
	mutex     sync.RWMutex
}

// NewDatabaseManager creates a new database manager. Connect must be called
// before any repository is used.
func NewDatabaseManager(config *DatabaseConfig, logger logging.Logger) (DatabaseManager, error) {
	if config == nil {
		config = DefaultDatabaseConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	if logger == nil {
		logger = logging.NullLogger()
	}

	return &databaseManager{
		config: config,
		logger: logger.With(logging.String("component", "database")),
	}, nil
}

// Connect opens the database, builds the repositories and applies pending
// migrations.
func (dm *databaseManager) Connect() error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if dm.connected {
		return nil
	}

	db, err := sql.Open("sqlite3", dm.buildConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(dm.config.MaxConnections)
	db.SetMaxIdleConns(max(dm.config.MaxConnections/2, 1))
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), dm.config.ConnectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager, err := NewMigrationManager(db, dm.logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migration manager: %w", err)
	}

	if err := migrationManager.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	dm.db = db
	dm.migrationManager = migrationManager
	dm.stations = NewStationRepository(db)
	dm.profiles = NewUserProfileRepository(db)
	dm.guilds = NewGuildRepository(db)
	dm.guildStats = NewGuildUserStatsRepository(db)
	dm.connected = true

	dm.logger.Info("Database connected", logging.String("path", dm.config.DatabasePath))
	return nil
}

// Close closes the database connection
func (dm *databaseManager) Close() error {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if !dm.connected {
		return nil
	}

	if err := dm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	dm.connected = false
	dm.logger.Info("Database closed")
	return nil
}

// Ping tests the database connection
func (dm *databaseManager) Ping(ctx context.Context) error {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	if !dm.connected || dm.db == nil {
		return ErrDatabaseNotConnected
	}

	return dm.db.PingContext(ctx)
}

func (dm *databaseManager) Stations() StationRepository {
	return dm.stations
}

func (dm *databaseManager) Profiles() UserProfileRepository {
	return dm.profiles
}

func (dm *databaseManager) Guilds() GuildRepository {
	return dm.guilds
}

func (dm *databaseManager) GuildStats() GuildUserStatsRepository {
	return dm.guildStats
}

// Migrate runs database migrations
func (dm *databaseManager) Migrate() error {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	if dm.migrationManager == nil {
		return ErrDatabaseNotConnected
	}
	return dm.migrationManager.Migrate()
}

// GetSchemaVersion returns the current schema version
func (dm *databaseManager) GetSchemaVersion() (int, error) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	if dm.migrationManager == nil {
		return 0, ErrDatabaseNotConnected
	}
	return dm.migrationManager.GetCurrentVersion()
}

// Backup writes a consistent copy of the database to path.
func (dm *databaseManager) Backup(path string) error {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	if !dm.connected {
		return ErrDatabaseNotConnected
	}

	if _, err := dm.db.Exec("VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	dm.logger.Info("Database backup created", logging.String("path", path))
	return nil
}

// buildConnectionString builds the go-sqlite3 DSN with pragmas
func (dm *databaseManager) buildConnectionString() string {
	params := []string{
		fmt.Sprintf("_synchronous=%s", dm.config.SynchronousMode),
		fmt.Sprintf("_cache_size=%d", dm.config.CacheSize),
		"_foreign_keys=1",
	}

	if dm.config.WALMode {
		params = append(params, "_journal_mode=WAL")
	}

	if dm.config.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", dm.config.BusyTimeout.Milliseconds()))
	}

	return dm.config.DatabasePath + "?" + strings.Join(params, "&")
}
