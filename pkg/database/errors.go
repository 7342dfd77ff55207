package database

import "errors"

// Database configuration errors
var (
	ErrInvalidDatabasePath      = errors.New("invalid database path")
	ErrInvalidMaxConnections    = errors.New("invalid max connections")
	ErrInvalidConnectionTimeout = errors.New("invalid connection timeout")
	ErrInvalidSynchronousMode   = errors.New("invalid synchronous mode")
)

// Database operation errors
var (
	ErrDatabaseNotConnected = errors.New("database not connected")
	ErrMigrationFailed      = errors.New("migration failed")
	ErrChecksumMismatch     = errors.New("migration checksum mismatch")
	ErrBackupFailed         = errors.New("backup failed")
)

// Repository errors
var (
	ErrStationNotFound    = errors.New("station not found")
	ErrStationExists      = errors.New("station with this name already exists")
	ErrProfileNotFound    = errors.New("user profile not found")
	ErrGuildNotFound      = errors.New("guild not found")
	ErrGuildStatsNotFound = errors.New("guild user stats not found")
)

// Migration errors
var (
	ErrMigrationNotFound = errors.New("migration not found")
	ErrCannotRollback    = errors.New("cannot rollback migration")
)
