package database

import (
	"context"
)

// DatabaseManager defines the interface for the database manager
type DatabaseManager interface {
	// Connection management
	Connect() error
	Close() error
	Ping(ctx context.Context) error

	// Repository access
	Stations() StationRepository
	Profiles() UserProfileRepository
	Guilds() GuildRepository
	GuildStats() GuildUserStatsRepository

	// Migration management
	Migrate() error
	GetSchemaVersion() (int, error)

	Backup(path string) error
}

// StationRepository persists radio stations.
type StationRepository interface {
	FindAll(ctx context.Context) ([]*Station, error)
	FindByID(ctx context.Context, id int64) (*Station, error)
	// FindByName matches case-insensitively.
	FindByName(ctx context.Context, name string) (*Station, error)
	FindDefault(ctx context.Context) (*Station, error)
	Create(ctx context.Context, station *Station) error
	Delete(ctx context.Context, id int64) (bool, error)
	// SetDefault makes id the only default station.
	SetDefault(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
}

// UserProfileRepository persists global user profiles.
type UserProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*UserProfile, error)
	Create(ctx context.Context, profile *UserProfile) error
	UpdateDiscordInfo(ctx context.Context, userID, username, displayName, avatarURL string) error
	AddXPAndMinutes(ctx context.Context, userID string, xp, minutes int) (*UserProfile, error)
	SetLevel(ctx context.Context, userID string, level int) error
	FindTopGlobal(ctx context.Context, limit int) ([]*UserProfile, error)
}

// GuildRepository persists guild metadata.
type GuildRepository interface {
	FindByGuildID(ctx context.Context, guildID string) (*Guild, error)
	FindAll(ctx context.Context) ([]*Guild, error)
	Upsert(ctx context.Context, guild *Guild) error
}

// GuildUserStatsRepository persists per-guild listening stats.
type GuildUserStatsRepository interface {
	FindByGuildAndUser(ctx context.Context, guildID, userID string) (*GuildUserStats, error)
	// AddXPAndMinutes creates the row on first use. A non-empty nickname
	// replaces the stored one.
	AddXPAndMinutes(ctx context.Context, guildID, userID, nickname string, xp, minutes int) (*GuildUserStats, error)
	FindTopByGuild(ctx context.Context, guildID string, limit int) ([]*GuildUserStats, error)
}

// MigrationManager defines the interface for database migrations
type MigrationManager interface {
	GetCurrentVersion() (int, error)
	GetLatestVersion() int
	Migrate() error
	Rollback() error
	GetMigrationHistory() ([]*Migration, error)
}
