package services

import (
	"context"
	"errors"
	"math"

	"github.com/latoulicious/lofi-bot/pkg/database"
	"github.com/latoulicious/lofi-bot/pkg/logging"
)

const (
	XPPerMinute = 10
	MaxLevel    = 100
)

// DiscordUser is the identity cached on a profile.
type DiscordUser struct {
	UserID      string
	Username    string
	DisplayName string
	AvatarURL   string
}

// DiscordGuild is the guild metadata cached alongside stats.
type DiscordGuild struct {
	GuildID     string
	Name        string
	IconURL     string
	MemberCount int
	OwnerID     string
}

// LevelInfo describes progress through the current level.
type LevelInfo struct {
	Level          int     `json:"level"`
	CurrentXP      int     `json:"currentXp"`
	XPForNextLevel int     `json:"xpForNextLevel"`
	Progress       float64 `json:"progress"`
}

// XPResult is the outcome of an XP grant.
type XPResult struct {
	Profile   *database.UserProfile
	LeveledUp bool
	NewLevel  int
}

// xpCeiling bounds curve values so sums of two never overflow.
const xpCeiling = math.MaxInt / 2

// XPForLevel is the XP needed to go from level to level+1.
func XPForLevel(level int) int {
	v := math.Floor(100 * math.Pow(1.5, float64(level-1)))
	if v >= xpCeiling {
		return xpCeiling
	}
	return int(v)
}

// TotalXPForLevel is the total XP at which level is reached.
func TotalXPForLevel(level int) int {
	total := 0
	for i := 1; i < level; i++ {
		total = addXP(total, XPForLevel(i))
	}
	return total
}

// CalculateLevel walks the XP curve. Levels stop at MaxLevel.
func CalculateLevel(totalXP int) int {
	required := 0
	for level := 1; level < MaxLevel; level++ {
		required = addXP(required, XPForLevel(level))
		if totalXP < required {
			return level
		}
	}
	return MaxLevel
}

func addXP(a, b int) int {
	if a > xpCeiling-b {
		return xpCeiling
	}
	return a + b
}

func GetLevelInfo(totalXP int) LevelInfo {
	level := CalculateLevel(totalXP)
	next := XPForLevel(level)
	current := totalXP - TotalXPForLevel(level)

	return LevelInfo{
		Level:          level,
		CurrentXP:      current,
		XPForNextLevel: next,
		Progress:       math.Min(1, float64(current)/float64(next)),
	}
}

// ProfileService tracks listening XP globally and per guild.
type ProfileService struct {
	profiles   database.UserProfileRepository
	guilds     database.GuildRepository
	guildStats database.GuildUserStatsRepository
	logger     logging.Logger
}

func NewProfileService(
	profiles database.UserProfileRepository,
	guilds database.GuildRepository,
	guildStats database.GuildUserStatsRepository,
	logger logging.Logger,
) *ProfileService {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &ProfileService{
		profiles:   profiles,
		guilds:     guilds,
		guildStats: guildStats,
		logger:     logger.With(logging.String("component", "profile")),
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*database.UserProfile, error) {
	return s.profiles.FindByUserID(ctx, userID)
}

// GetOrCreateProfile returns the user's profile, creating it on first use
// and refreshing the cached Discord identity otherwise.
func (s *ProfileService) GetOrCreateProfile(ctx context.Context, user DiscordUser) (*database.UserProfile, error) {
	profile, err := s.profiles.FindByUserID(ctx, user.UserID)
	if errors.Is(err, database.ErrProfileNotFound) {
		profile = &database.UserProfile{
			UserID:      user.UserID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			AvatarURL:   user.AvatarURL,
		}
		if err := s.profiles.Create(ctx, profile); err != nil {
			return nil, err
		}
		s.logger.Debug("Created profile", logging.String("user_id", user.UserID))
		return profile, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.profiles.UpdateDiscordInfo(ctx, user.UserID, user.Username, user.DisplayName, user.AvatarURL); err != nil {
		return nil, err
	}
	return s.profiles.FindByUserID(ctx, user.UserID)
}

// AddXPAndMinutes credits minutes of listening to the user. A nil guild
// only updates the global profile.
func (s *ProfileService) AddXPAndMinutes(ctx context.Context, user DiscordUser, guild *DiscordGuild, nickname string, minutes int) (*XPResult, error) {
	xp := minutes * XPPerMinute

	profile, err := s.GetOrCreateProfile(ctx, user)
	if err != nil {
		return nil, err
	}
	previousLevel := profile.CurrentLevel

	profile, err = s.profiles.AddXPAndMinutes(ctx, user.UserID, xp, minutes)
	if err != nil {
		return nil, err
	}

	newLevel := CalculateLevel(profile.TotalXP)
	leveledUp := newLevel > previousLevel
	if newLevel != profile.CurrentLevel {
		if err := s.profiles.SetLevel(ctx, user.UserID, newLevel); err != nil {
			return nil, err
		}
		profile.CurrentLevel = newLevel
	}

	if guild != nil && guild.GuildID != "" {
		err := s.guilds.Upsert(ctx, &database.Guild{
			GuildID:     guild.GuildID,
			Name:        guild.Name,
			IconURL:     guild.IconURL,
			MemberCount: guild.MemberCount,
			OwnerID:     guild.OwnerID,
		})
		if err != nil {
			return nil, err
		}

		if _, err := s.guildStats.AddXPAndMinutes(ctx, guild.GuildID, user.UserID, nickname, xp, minutes); err != nil {
			return nil, err
		}
	}

	if leveledUp {
		s.logger.Info("User leveled up",
			logging.String("user_id", user.UserID),
			logging.Int("level", newLevel))
	}

	return &XPResult{Profile: profile, LeveledUp: leveledUp, NewLevel: newLevel}, nil
}

func (s *ProfileService) GuildStats(ctx context.Context, guildID, userID string) (*database.GuildUserStats, error) {
	return s.guildStats.FindByGuildAndUser(ctx, guildID, userID)
}

func (s *ProfileService) TopGlobal(ctx context.Context, limit int) ([]*database.UserProfile, error) {
	return s.profiles.FindTopGlobal(ctx, limit)
}

func (s *ProfileService) TopByGuild(ctx context.Context, guildID string, limit int) ([]*database.GuildUserStats, error) {
	return s.guildStats.FindTopByGuild(ctx, guildID, limit)
}

// GlobalRank returns the user's 1-based position among the top `within`
// profiles, or 0 when outside it.
func (s *ProfileService) GlobalRank(ctx context.Context, userID string, within int) (int, error) {
	top, err := s.profiles.FindTopGlobal(ctx, within)
	if err != nil {
		return 0, err
	}
	for i, p := range top {
		if p.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}

// GuildRank is GlobalRank within one guild.
func (s *ProfileService) GuildRank(ctx context.Context, guildID, userID string, within int) (int, error) {
	top, err := s.guildStats.FindTopByGuild(ctx, guildID, within)
	if err != nil {
		return 0, err
	}
	for i, st := range top {
		if st.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *ProfileService) Guilds(ctx context.Context) ([]*database.Guild, error) {
	return s.guilds.FindAll(ctx)
}
