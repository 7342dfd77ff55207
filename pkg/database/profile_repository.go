package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const profileColumns = `user_id, COALESCE(username, ''), COALESCE(display_name, ''), COALESCE(avatar_url, ''),
	total_minutes_listened, current_level, total_xp, last_active, created_at, updated_at`

// userProfileRepository implements UserProfileRepository
type userProfileRepository struct {
	db *sql.DB
}

// NewUserProfileRepository creates a profile repository backed by db
func NewUserProfileRepository(db *sql.DB) UserProfileRepository {
	return &userProfileRepository{db: db}
}

func scanProfile(row rowScanner) (*UserProfile, error) {
	p := &UserProfile{}
	var lastActive sql.NullTime
	err := row.Scan(
		&p.UserID,
		&p.Username,
		&p.DisplayName,
		&p.AvatarURL,
		&p.TotalMinutesListened,
		&p.CurrentLevel,
		&p.TotalXP,
		&lastActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastActive.Valid {
		t := lastActive.Time
		p.LastActive = &t
	}
	return p, nil
}

func (r *userProfileRepository) FindByUserID(ctx context.Context, userID string) (*UserProfile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM user_profiles WHERE user_id = ?", userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

// Create inserts a new profile at level 1 with no XP.
func (r *userProfileRepository) Create(ctx context.Context, profile *UserProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, username, display_name, avatar_url, current_level)
		VALUES (?, ?, ?, ?, 1)
	`, profile.UserID, nullString(profile.Username), nullString(profile.DisplayName), nullString(profile.AvatarURL))
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	created, err := r.FindByUserID(ctx, profile.UserID)
	if err != nil {
		return err
	}
	*profile = *created
	return nil
}

// UpdateDiscordInfo refreshes the cached Discord identity. Empty values
// leave the stored ones unchanged.
func (r *userProfileRepository) UpdateDiscordInfo(ctx context.Context, userID, username, displayName, avatarURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_profiles SET
			username = COALESCE(NULLIF(?, ''), username),
			display_name = COALESCE(NULLIF(?, ''), display_name),
			avatar_url = COALESCE(NULLIF(?, ''), avatar_url),
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, username, displayName, avatarURL, userID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return requireAffected(res, ErrProfileNotFound)
}

func (r *userProfileRepository) AddXPAndMinutes(ctx context.Context, userID string, xp, minutes int) (*UserProfile, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_profiles SET
			total_xp = total_xp + ?,
			total_minutes_listened = total_minutes_listened + ?,
			last_active = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, xp, minutes, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to add xp: %w", err)
	}
	if err := requireAffected(res, ErrProfileNotFound); err != nil {
		return nil, err
	}
	return r.FindByUserID(ctx, userID)
}

func (r *userProfileRepository) SetLevel(ctx context.Context, userID string, level int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE user_profiles SET current_level = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?",
		level, userID)
	if err != nil {
		return fmt.Errorf("failed to set level: %w", err)
	}
	return requireAffected(res, ErrProfileNotFound)
}

// FindTopGlobal returns profiles ordered by total XP, highest first.
func (r *userProfileRepository) FindTopGlobal(ctx context.Context, limit int) ([]*UserProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM user_profiles ORDER BY total_xp DESC, user_id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	profiles := []*UserProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
