package database

import (
	"crypto/md5"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

// migrationManager implements the MigrationManager interface
type migrationManager struct {
	db         *sql.DB
	logger     logging.Logger
	migrations map[int]*migrationScript
}

// migrationScript represents a single database migration
type migrationScript struct {
	Version     int
	Name        string
	Description string
	UpSQL       string
	DownSQL     string
	Checksum    string
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB, logger logging.Logger) (MigrationManager, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	if logger == nil {
		logger = logging.NullLogger()
	}

	mm := &migrationManager{
		db:         db,
		logger:     logger,
		migrations: make(map[int]*migrationScript),
	}

	if err := mm.initializeMigrationTable(); err != nil {
		return nil, fmt.Errorf("failed to initialize migration table: %w", err)
	}

	mm.loadMigrations()

	return mm, nil
}

// initializeMigrationTable creates the migration tracking table
func (mm *migrationManager) initializeMigrationTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		checksum TEXT NOT NULL,
		applied_at DATETIME NOT NULL
	)
	`

	if _, err := mm.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	return nil
}

// loadMigrations loads all migration scripts
func (mm *migrationManager) loadMigrations() {
	mm.migrations[1] = &migrationScript{
		Version:     1,
		Name:        "create_stations",
		Description: "Create radio stations table",
		UpSQL: `
			CREATE TABLE IF NOT EXISTS stations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE COLLATE NOCASE,
				url TEXT NOT NULL,
				description TEXT,
				is_default INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX IF NOT EXISTS idx_stations_default ON stations(is_default);
		`,
		DownSQL: `
			DROP INDEX IF EXISTS idx_stations_default;
			DROP TABLE IF EXISTS stations;
		`,
	}

	mm.migrations[2] = &migrationScript{
		Version:     2,
		Name:        "create_profiles_and_guilds",
		Description: "Add user profiles, guilds and per-guild listening stats",
		UpSQL: `
			CREATE TABLE IF NOT EXISTS user_profiles (
				user_id TEXT PRIMARY KEY,
				username TEXT,
				display_name TEXT,
				avatar_url TEXT,
				total_minutes_listened INTEGER NOT NULL DEFAULT 0,
				current_level INTEGER NOT NULL DEFAULT 1,
				total_xp INTEGER NOT NULL DEFAULT 0,
				last_active DATETIME,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS guilds (
				guild_id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				icon_url TEXT,
				member_count INTEGER NOT NULL DEFAULT 0,
				owner_id TEXT,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS guild_user_stats (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				guild_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				nickname TEXT,
				minutes_listened INTEGER NOT NULL DEFAULT 0,
				xp INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(guild_id, user_id)
			);

			CREATE INDEX IF NOT EXISTS idx_user_profiles_xp ON user_profiles(total_xp DESC);
			CREATE INDEX IF NOT EXISTS idx_guild_user_stats_guild_xp ON guild_user_stats(guild_id, xp DESC);
		`,
		DownSQL: `
			DROP INDEX IF EXISTS idx_guild_user_stats_guild_xp;
			DROP INDEX IF EXISTS idx_user_profiles_xp;

			DROP TABLE IF EXISTS guild_user_stats;
			DROP TABLE IF EXISTS guilds;
			DROP TABLE IF EXISTS user_profiles;
		`,
	}

	for _, migration := range mm.migrations {
		migration.Checksum = calculateChecksum(migration.UpSQL)
	}
}

// GetCurrentVersion returns the current schema version
func (mm *migrationManager) GetCurrentVersion() (int, error) {
	var version int
	err := mm.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	return version, nil
}

// GetLatestVersion returns the latest available migration version
func (mm *migrationManager) GetLatestVersion() int {
	maxVersion := 0
	for version := range mm.migrations {
		if version > maxVersion {
			maxVersion = version
		}
	}
	return maxVersion
}

// Migrate verifies applied migrations and runs all pending ones in order.
func (mm *migrationManager) Migrate() error {
	if err := mm.validateApplied(); err != nil {
		return err
	}

	currentVersion, err := mm.GetCurrentVersion()
	if err != nil {
		return err
	}

	latestVersion := mm.GetLatestVersion()
	if currentVersion >= latestVersion {
		mm.logger.Debug("Database schema is up to date", logging.Int("version", currentVersion))
		return nil
	}

	mm.logger.Info("Migrating database schema",
		logging.Int("from", currentVersion),
		logging.Int("to", latestVersion))

	var pending []int
	for version := range mm.migrations {
		if version > currentVersion {
			pending = append(pending, version)
		}
	}
	sort.Ints(pending)

	for _, version := range pending {
		if err := mm.runMigration(version, true); err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, version, err)
		}
		mm.logger.Info("Applied migration",
			logging.Int("version", version),
			logging.String("name", mm.migrations[version].Name))
	}

	return nil
}

// Rollback rolls back the last migration
func (mm *migrationManager) Rollback() error {
	currentVersion, err := mm.GetCurrentVersion()
	if err != nil {
		return err
	}

	if currentVersion == 0 {
		return fmt.Errorf("%w: no migrations applied", ErrCannotRollback)
	}

	if err := mm.runMigration(currentVersion, false); err != nil {
		return fmt.Errorf("failed to rollback migration %d: %w", currentVersion, err)
	}

	mm.logger.Info("Rolled back migration",
		logging.Int("version", currentVersion),
		logging.String("name", mm.migrations[currentVersion].Name))
	return nil
}

// GetMigrationHistory returns the migration history
func (mm *migrationManager) GetMigrationHistory() ([]*Migration, error) {
	rows, err := mm.db.Query(`
		SELECT version, name, COALESCE(description, ''), checksum, applied_at
		FROM schema_migrations
		ORDER BY version
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}
	defer rows.Close()

	var migrations []*Migration
	for rows.Next() {
		migration := &Migration{}
		err := rows.Scan(
			&migration.Version,
			&migration.Name,
			&migration.Description,
			&migration.Checksum,
			&migration.AppliedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}

		migrations = append(migrations, migration)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}

	return migrations, nil
}

// validateApplied rejects a database whose applied migrations were
// recorded with different SQL than this build ships.
func (mm *migrationManager) validateApplied() error {
	history, err := mm.GetMigrationHistory()
	if err != nil {
		return err
	}

	for _, applied := range history {
		migration, ok := mm.migrations[applied.Version]
		if !ok {
			continue
		}
		if migration.Checksum != applied.Checksum {
			return fmt.Errorf("%w: version %d (%s)", ErrChecksumMismatch, applied.Version, applied.Name)
		}
	}
	return nil
}

// runMigration runs a single migration up or down
func (mm *migrationManager) runMigration(version int, up bool) error {
	migration, exists := mm.migrations[version]
	if !exists {
		return fmt.Errorf("%w: %d", ErrMigrationNotFound, version)
	}

	tx, err := mm.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	script := migration.DownSQL
	if up {
		script = migration.UpSQL
	}

	if _, err := tx.Exec(script); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if up {
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO schema_migrations (version, name, description, checksum, applied_at)
			VALUES (?, ?, ?, ?, ?)
		`, version, migration.Name, migration.Description, migration.Checksum, time.Now().UTC())
	} else {
		_, err = tx.Exec("DELETE FROM schema_migrations WHERE version = ?", version)
	}

	if err != nil {
		return fmt.Errorf("failed to update migration tracking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// calculateChecksum calculates MD5 checksum of migration SQL
func calculateChecksum(sql string) string {
	hash := md5.Sum([]byte(sql))
	return fmt.Sprintf("%x", hash)
}
