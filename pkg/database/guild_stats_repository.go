package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const guildStatsColumns = "id, guild_id, user_id, COALESCE(nickname, ''), minutes_listened, xp, created_at, updated_at"

// guildUserStatsRepository implements GuildUserStatsRepository
type guildUserStatsRepository struct {
	db *sql.DB
}

// NewGuildUserStatsRepository creates a guild stats repository backed by db
func NewGuildUserStatsRepository(db *sql.DB) GuildUserStatsRepository {
	return &guildUserStatsRepository{db: db}
}

func scanGuildStats(row rowScanner) (*GuildUserStats, error) {
	s := &GuildUserStats{}
	err := row.Scan(&s.ID, &s.GuildID, &s.UserID, &s.Nickname, &s.MinutesListened, &s.XP, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *guildUserStatsRepository) FindByGuildAndUser(ctx context.Context, guildID, userID string) (*GuildUserStats, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+guildStatsColumns+" FROM guild_user_stats WHERE guild_id = ? AND user_id = ?", guildID, userID)
	s, err := scanGuildStats(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGuildStatsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query guild stats: %w", err)
	}
	return s, nil
}

func (r *guildUserStatsRepository) AddXPAndMinutes(ctx context.Context, guildID, userID, nickname string, xp, minutes int) (*GuildUserStats, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guild_user_stats (guild_id, user_id, nickname, minutes_listened, xp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			nickname = COALESCE(excluded.nickname, guild_user_stats.nickname),
			minutes_listened = guild_user_stats.minutes_listened + excluded.minutes_listened,
			xp = guild_user_stats.xp + excluded.xp,
			updated_at = CURRENT_TIMESTAMP
	`, guildID, userID, nullString(nickname), minutes, xp)
	if err != nil {
		return nil, fmt.Errorf("failed to update guild stats: %w", err)
	}
	return r.FindByGuildAndUser(ctx, guildID, userID)
}

// FindTopByGuild returns the guild's listeners ordered by XP, highest first.
func (r *guildUserStatsRepository) FindTopByGuild(ctx context.Context, guildID string, limit int) ([]*GuildUserStats, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+guildStatsColumns+" FROM guild_user_stats WHERE guild_id = ? ORDER BY xp DESC, user_id LIMIT ?",
		guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query guild leaderboard: %w", err)
	}
	defer rows.Close()

	stats := []*GuildUserStats{}
	for rows.Next() {
		s, err := scanGuildStats(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guild stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
