package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const guildColumns = "guild_id, name, COALESCE(icon_url, ''), member_count, COALESCE(owner_id, ''), created_at, updated_at"

// guildRepository implements GuildRepository
type guildRepository struct {
	db *sql.DB
}

// NewGuildRepository creates a guild repository backed by db
func NewGuildRepository(db *sql.DB) GuildRepository {
	return &guildRepository{db: db}
}

func scanGuild(row rowScanner) (*Guild, error) {
	g := &Guild{}
	if err := row.Scan(&g.GuildID, &g.Name, &g.IconURL, &g.MemberCount, &g.OwnerID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *guildRepository) FindByGuildID(ctx context.Context, guildID string) (*Guild, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+guildColumns+" FROM guilds WHERE guild_id = ?", guildID)
	g, err := scanGuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGuildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query guild: %w", err)
	}
	return g, nil
}

func (r *guildRepository) FindAll(ctx context.Context) ([]*Guild, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+guildColumns+" FROM guilds ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query guilds: %w", err)
	}
	defer rows.Close()

	guilds := []*Guild{}
	for rows.Next() {
		g, err := scanGuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guild: %w", err)
		}
		guilds = append(guilds, g)
	}
	return guilds, rows.Err()
}

func (r *guildRepository) Upsert(ctx context.Context, guild *Guild) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guilds (guild_id, name, icon_url, member_count, owner_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			name = excluded.name,
			icon_url = excluded.icon_url,
			member_count = excluded.member_count,
			owner_id = excluded.owner_id,
			updated_at = CURRENT_TIMESTAMP
	`, guild.GuildID, guild.Name, nullString(guild.IconURL), guild.MemberCount, nullString(guild.OwnerID))
	if err != nil {
		return fmt.Errorf("failed to upsert guild: %w", err)
	}
	return nil
}
