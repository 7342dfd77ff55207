package database

import (
	"time"
)

// DatabaseConfig holds configuration for the database manager
type DatabaseConfig struct {
	DatabasePath      string        `json:"database_path"`
	MaxConnections    int           `json:"max_connections"`
	ConnectionTimeout time.Duration `json:"connection_timeout"`
	BusyTimeout       time.Duration `json:"busy_timeout"`

	WALMode         bool   `json:"wal_mode"`
	SynchronousMode string `json:"synchronous_mode"`
	CacheSize       int    `json:"cache_size"`
}

// DefaultDatabaseConfig returns a configuration with sensible defaults
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		DatabasePath:      "lofi.db",
		MaxConnections:    10,
		ConnectionTimeout: 30 * time.Second,
		BusyTimeout:       5 * time.Second,

		WALMode:         true,
		SynchronousMode: "NORMAL",
		CacheSize:       -64000, // 64MB
	}
}

// Validate validates the database configuration
func (c *DatabaseConfig) Validate() error {
	if c.DatabasePath == "" {
		return ErrInvalidDatabasePath
	}
	if c.MaxConnections <= 0 {
		return ErrInvalidMaxConnections
	}
	if c.ConnectionTimeout <= 0 {
		return ErrInvalidConnectionTimeout
	}
	if c.SynchronousMode != "OFF" && c.SynchronousMode != "NORMAL" && c.SynchronousMode != "FULL" {
		return ErrInvalidSynchronousMode
	}
	return nil
}

// Migration is an applied schema migration.
type Migration struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Checksum    string    `json:"checksum"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Station is a playable radio station.
type Station struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserProfile is the global listening profile of a user.
type UserProfile struct {
	UserID               string     `json:"userId"`
	Username             string     `json:"username,omitempty"`
	DisplayName          string     `json:"displayName,omitempty"`
	AvatarURL            string     `json:"avatarUrl,omitempty"`
	TotalMinutesListened int        `json:"totalMinutesListened"`
	CurrentLevel         int        `json:"currentLevel"`
	TotalXP              int        `json:"totalXp"`
	LastActive           *time.Time `json:"lastActive,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// Guild is a server the bot has seen activity in.
type Guild struct {
	GuildID     string    `json:"guildId"`
	Name        string    `json:"name"`
	IconURL     string    `json:"iconUrl,omitempty"`
	MemberCount int       `json:"memberCount"`
	OwnerID     string    `json:"ownerId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GuildUserStats is a user's listening stats within one guild.
type GuildUserStats struct {
	ID              int64     `json:"id"`
	GuildID         string    `json:"guildId"`
	UserID          string    `json:"userId"`
	Nickname        string    `json:"nickname,omitempty"`
	MinutesListened int       `json:"minutesListened"`
	XP              int       `json:"xp"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
