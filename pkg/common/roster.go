package common

import (
	"github.com/bwmarrin/discordgo"
)

// Listener is a human member sitting in a voice channel.
type Listener struct {
	UserID      string
	Username    string
	DisplayName string
	AvatarURL   string
}

// StateRoster answers voice membership questions from the discordgo state
// cache without touching the network.
type StateRoster struct {
	state *discordgo.State
}

// NewStateRoster creates a new StateRoster
func NewStateRoster(state *discordgo.State) *StateRoster {
	return &StateRoster{state: state}
}

// HumansInChannel counts non-bot members in the channel.
func (r *StateRoster) HumansInChannel(guildID, channelID string) int {
	return len(r.Listeners(guildID, channelID))
}

// Listeners returns the non-bot members in the channel. Members missing
// from the cache are counted as humans.
func (r *StateRoster) Listeners(guildID, channelID string) []Listener {
	states := r.voiceStates(guildID, func(vs *discordgo.VoiceState) bool {
		return vs.ChannelID == channelID
	})

	selfID := ""
	if r.state.User != nil {
		selfID = r.state.User.ID
	}

	listeners := make([]Listener, 0, len(states))
	for _, vs := range states {
		if vs.UserID == selfID {
			continue
		}

		member := vs.Member
		if member == nil {
			member, _ = r.state.Member(guildID, vs.UserID)
		}
		if member != nil && member.User != nil && member.User.Bot {
			continue
		}

		listeners = append(listeners, listenerFromMember(vs.UserID, member))
	}
	return listeners
}

// UserVoiceChannel returns the voice channel the user sits in.
func (r *StateRoster) UserVoiceChannel(guildID, userID string) (string, bool) {
	states := r.voiceStates(guildID, func(vs *discordgo.VoiceState) bool {
		return vs.UserID == userID
	})
	if len(states) == 0 || states[0].ChannelID == "" {
		return "", false
	}
	return states[0].ChannelID, true
}

func (r *StateRoster) voiceStates(guildID string, keep func(*discordgo.VoiceState) bool) []*discordgo.VoiceState {
	guild, err := r.state.Guild(guildID)
	if err != nil {
		return nil
	}

	r.state.RLock()
	defer r.state.RUnlock()

	var out []*discordgo.VoiceState
	for _, vs := range guild.VoiceStates {
		if keep(vs) {
			out = append(out, vs)
		}
	}
	return out
}

func listenerFromMember(userID string, member *discordgo.Member) Listener {
	l := Listener{UserID: userID}
	if member == nil || member.User == nil {
		return l
	}

	l.Username = member.User.Username
	l.DisplayName = member.User.GlobalName
	if member.Nick != "" {
		l.DisplayName = member.Nick
	}
	if l.DisplayName == "" {
		l.DisplayName = member.User.Username
	}
	l.AvatarURL = member.User.AvatarURL("")
	return l
}
