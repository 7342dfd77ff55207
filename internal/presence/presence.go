package presence

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

// StatusUpdater is the part of a discordgo session that sets presence.
type StatusUpdater interface {
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
}

type SessionCounter interface {
	Count() int
}

// GuildCounter reports how many guilds the bot is in.
type GuildCounter func() int

// PresenceManager keeps the bot's presence in line with its streams.
type PresenceManager struct {
	updater  StatusUpdater
	sessions SessionCounter
	guilds   GuildCounter
	logger   logging.Logger

	mutex   sync.Mutex
	current string
}

// NewPresenceManager creates a new presence manager
func NewPresenceManager(updater StatusUpdater, sessions SessionCounter, guilds GuildCounter, logger logging.Logger) *PresenceManager {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &PresenceManager{
		updater:  updater,
		sessions: sessions,
		guilds:   guilds,
		logger:   logger.With(logging.String("component", "presence")),
	}
}

// StateGuildCounter counts guilds in the discordgo state cache.
func StateGuildCounter(state *discordgo.State) GuildCounter {
	return func() int {
		state.RLock()
		defer state.RUnlock()
		return len(state.Guilds)
	}
}

// Activity returns the activity the bot should show right now.
func (pm *PresenceManager) Activity() *discordgo.Activity {
	if n := pm.sessions.Count(); n > 0 {
		name := "1 radio stream"
		if n > 1 {
			name = fmt.Sprintf("%d radio streams", n)
		}
		return &discordgo.Activity{Name: name, Type: discordgo.ActivityTypeListening}
	}

	guilds := 0
	if pm.guilds != nil {
		guilds = pm.guilds()
	}
	return &discordgo.Activity{
		Name: fmt.Sprintf("lofi in %d servers", guilds),
		Type: discordgo.ActivityTypeListening,
	}
}

// Refresh pushes the current activity unless it is already shown.
func (pm *PresenceManager) Refresh() error {
	activity := pm.Activity()

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if activity.Name == pm.current {
		return nil
	}

	err := pm.updater.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status:     string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{activity},
	})
	if err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}

	pm.current = activity.Name
	pm.logger.Debug("Presence updated", logging.String("activity", activity.Name))
	return nil
}

// Current returns the last activity pushed to Discord.
func (pm *PresenceManager) Current() string {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	return pm.current
}
