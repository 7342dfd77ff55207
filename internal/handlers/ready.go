package handlers

import (
	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

type PresenceRefresher interface {
	Refresh() error
}

// ReadyHandler logs the login and sets the initial presence.
func ReadyHandler(presence PresenceRefresher, logger logging.Logger) func(*discordgo.Session, *discordgo.Ready) {
	return func(s *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			logger.Info("Logged in",
				logging.String("user", r.User.Username),
				logging.String("user_id", r.User.ID),
				logging.Int("guilds", len(r.Guilds)))
		}
		if err := presence.Refresh(); err != nil {
			logger.Warn("Failed to set presence", logging.Error(err))
		}
	}
}
