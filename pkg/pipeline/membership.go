package pipeline

import "github.com/latoulicious/lofi-bot/pkg/logging"

// OnVoiceMembershipChanged is fed every voice state change the bot sees. When
// a member leaves the channel a session is bound to and no humans remain
// there, the session is cleaned up. The count comes from the Roster, which
// reads already-known state.
func (m *Manager) OnVoiceMembershipChanged(before, after VoiceMembership) {
	guildID := before.GuildID
	if guildID == "" {
		guildID = after.GuildID
	}
	if guildID == "" {
		return
	}

	s, ok := m.store.get(guildID)
	if !ok {
		return
	}
	if before.ChannelID != s.channelID || after.ChannelID == s.channelID {
		return
	}

	humans := m.deps.Roster.HumansInChannel(guildID, s.channelID)
	if humans > 0 {
		return
	}

	m.logger.Info("Voice channel is empty, leaving",
		logging.String("guild_id", guildID),
		logging.String("channel_id", s.channelID),
		logging.String("last_member", before.UserID),
	)
	m.cleanup(guildID, "empty_channel")
}
