package services

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latoulicious/lofi-bot/pkg/common"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

type fakeSessions []pipeline.Snapshot

func (f fakeSessions) Sessions() []pipeline.Snapshot { return f }

type fakeListeners map[string][]common.Listener

func (f fakeListeners) Listeners(guildID, channelID string) []common.Listener {
	return f[guildID+"/"+channelID]
}

type fakeDirectory map[string]*DiscordGuild

func (f fakeDirectory) GuildInfo(guildID string) (*DiscordGuild, bool) {
	g, ok := f[guildID]
	return g, ok
}

func TestListeningRewarder_Reward(t *testing.T) {
	ctx := context.Background()
	profiles := newTestProfileService(t)

	sessions := fakeSessions{
		{GuildID: "g1", ChannelID: "c1", State: pipeline.StatePlaying, Playing: true},
		{GuildID: "g2", ChannelID: "c2", State: pipeline.StateReconnecting, Playing: true},
		{GuildID: "g3", ChannelID: "c3", State: pipeline.StateStopped},
		{GuildID: "g4", ChannelID: "c4", State: pipeline.StatePlaying, Playing: true},
	}
	listeners := fakeListeners{
		"g1/c1": {{UserID: "u1", Username: "alice", DisplayName: "Ally"}, {UserID: "u2", Username: "bob"}},
		"g2/c2": {{UserID: "u3"}},
		"g3/c3": {{UserID: "u4"}},
		"g4/c4": {{UserID: "u1", Username: "alice"}},
	}
	directory := fakeDirectory{"g1": {GuildID: "g1", Name: "Study Hall"}}

	var levelUps []string
	rewarder := NewListeningRewarder(sessions, listeners, directory, profiles,
		func(guildID string, l common.Listener, level int) {
			levelUps = append(levelUps, guildID+":"+l.UserID)
		}, nil)

	n, err := rewarder.Reward(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	u1, err := profiles.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, u1.TotalMinutesListened)
	assert.Equal(t, 2*XPPerMinute, u1.TotalXP)

	_, err = profiles.GetProfile(ctx, "u3")
	assert.Error(t, err, "reconnecting sessions earn nothing")

	stats, err := profiles.GuildStats(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ally", stats.Nickname)

	guilds, err := profiles.Guilds(ctx)
	require.NoError(t, err)
	require.Len(t, guilds, 2)

	// u1 earns two minutes a round and crosses 100 XP in g4 on round five
	for i := 0; i < 8; i++ {
		_, err := rewarder.Reward(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"g4:u1"}, levelUps)
}

func TestStateGuildDirectory(t *testing.T) {
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(&discordgo.Guild{ID: "g1", Name: "Study Hall", MemberCount: 12, OwnerID: "o1"}))

	dir := NewStateGuildDirectory(state)

	g, ok := dir.GuildInfo("g1")
	require.True(t, ok)
	assert.Equal(t, "Study Hall", g.Name)
	assert.Equal(t, 12, g.MemberCount)
	assert.Equal(t, "o1", g.OwnerID)

	_, ok = dir.GuildInfo("missing")
	assert.False(t, ok)
}

func TestUserFromDiscord(t *testing.T) {
	u := UserFromDiscord(&discordgo.User{ID: "u1", Username: "alice"})
	assert.Equal(t, "alice", u.DisplayName)

	u = UserFromDiscord(&discordgo.User{ID: "u1", Username: "alice", GlobalName: "Alice"})
	assert.Equal(t, "Alice", u.DisplayName)
	assert.NotEmpty(t, u.AvatarURL)
}
