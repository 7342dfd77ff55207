package services

import (
	"context"
	"errors"

	"github.com/latoulicious/lofi-bot/pkg/common"
	"github.com/latoulicious/lofi-bot/pkg/logging"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

type SessionLister interface {
	Sessions() []pipeline.Snapshot
}

type ListenerSource interface {
	Listeners(guildID, channelID string) []common.Listener
}

// GuildDirectory looks up guild metadata for stats rows.
type GuildDirectory interface {
	GuildInfo(guildID string) (*DiscordGuild, bool)
}

// LevelUpFunc is called for every listener who levels up while listening.
type LevelUpFunc func(guildID string, listener common.Listener, level int)

// ListeningRewarder grants a minute of XP to every human sitting in a
// channel where a stream is currently playing.
type ListeningRewarder struct {
	sessions  SessionLister
	listeners ListenerSource
	guilds    GuildDirectory
	profiles  *ProfileService
	onLevelUp LevelUpFunc
	logger    logging.Logger
}

func NewListeningRewarder(
	sessions SessionLister,
	listeners ListenerSource,
	guilds GuildDirectory,
	profiles *ProfileService,
	onLevelUp LevelUpFunc,
	logger logging.Logger,
) *ListeningRewarder {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &ListeningRewarder{
		sessions:  sessions,
		listeners: listeners,
		guilds:    guilds,
		profiles:  profiles,
		onLevelUp: onLevelUp,
		logger:    logger.With(logging.String("component", "listening")),
	}
}

// Reward runs one round and returns how many listeners were credited.
// It keeps going past individual failures and reports them joined.
func (r *ListeningRewarder) Reward(ctx context.Context) (int, error) {
	var errs []error
	rewarded := 0

	for _, snap := range r.sessions.Sessions() {
		if !snap.Playing || snap.State != pipeline.StatePlaying {
			continue
		}

		guild, ok := r.guilds.GuildInfo(snap.GuildID)
		if !ok {
			guild = &DiscordGuild{GuildID: snap.GuildID, Name: snap.GuildID}
		}

		for _, l := range r.listeners.Listeners(snap.GuildID, snap.ChannelID) {
			user := DiscordUser{
				UserID:      l.UserID,
				Username:    l.Username,
				DisplayName: l.DisplayName,
				AvatarURL:   l.AvatarURL,
			}

			res, err := r.profiles.AddXPAndMinutes(ctx, user, guild, l.DisplayName, 1)
			if err != nil {
				errs = append(errs, err)
				r.logger.Warn("Failed to credit listener",
					logging.String("guild_id", snap.GuildID),
					logging.String("user_id", l.UserID),
					logging.Error(err))
				continue
			}
			rewarded++

			if res.LeveledUp && r.onLevelUp != nil {
				r.onLevelUp(snap.GuildID, l, res.NewLevel)
			}
		}
	}

	if rewarded > 0 {
		r.logger.Debug("Credited listening time", logging.Int("listeners", rewarded))
	}
	return rewarded, errors.Join(errs...)
}
