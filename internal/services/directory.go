package services

import (
	"github.com/bwmarrin/discordgo"
)

// StateGuildDirectory reads guild metadata from the discordgo state cache.
type StateGuildDirectory struct {
	state *discordgo.State
}

func NewStateGuildDirectory(state *discordgo.State) *StateGuildDirectory {
	return &StateGuildDirectory{state: state}
}

func (d *StateGuildDirectory) GuildInfo(guildID string) (*DiscordGuild, bool) {
	guild, err := d.state.Guild(guildID)
	if err != nil {
		return nil, false
	}
	return GuildFromDiscord(guild), true
}

// GuildFromDiscord converts a discordgo guild into stats metadata.
func GuildFromDiscord(g *discordgo.Guild) *DiscordGuild {
	return &DiscordGuild{
		GuildID:     g.ID,
		Name:        g.Name,
		IconURL:     g.IconURL(""),
		MemberCount: g.MemberCount,
		OwnerID:     g.OwnerID,
	}
}

// UserFromDiscord converts a discordgo user into profile identity.
func UserFromDiscord(u *discordgo.User) DiscordUser {
	display := u.GlobalName
	if display == "" {
		display = u.Username
	}
	return DiscordUser{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: display,
		AvatarURL:   u.AvatarURL(""),
	}
}
