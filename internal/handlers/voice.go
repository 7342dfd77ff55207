package handlers

import (
	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

type MembershipObserver interface {
	OnVoiceMembershipChanged(before, after pipeline.VoiceMembership)
}

// VoiceStateHandler forwards voice state changes to the session manager.
// The discordgo state cache has already applied the update when it runs.
func VoiceStateHandler(observer MembershipObserver) func(*discordgo.Session, *discordgo.VoiceStateUpdate) {
	return func(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
		if vsu == nil || vsu.VoiceState == nil {
			return
		}
		before, after := MembershipChange(vsu)
		observer.OnVoiceMembershipChanged(before, after)
	}
}

// MembershipChange converts a voice state update. A missing previous
// state becomes an empty membership in the same guild.
func MembershipChange(vsu *discordgo.VoiceStateUpdate) (before, after pipeline.VoiceMembership) {
	bot := vsu.Member != nil && vsu.Member.User != nil && vsu.Member.User.Bot

	after = pipeline.VoiceMembership{
		GuildID:   vsu.GuildID,
		ChannelID: vsu.ChannelID,
		UserID:    vsu.UserID,
		Bot:       bot,
	}
	before = pipeline.VoiceMembership{
		GuildID: vsu.GuildID,
		UserID:  vsu.UserID,
		Bot:     bot,
	}
	if vsu.BeforeUpdate != nil {
		before.ChannelID = vsu.BeforeUpdate.ChannelID
	}
	return before, after
}
