package commands

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latoulicious/lofi-bot/internal/services"
	"github.com/latoulicious/lofi-bot/pkg/database"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

type fakeAudio struct {
	mu        sync.Mutex
	sessions  map[string]string
	joinErr   error
	racer     string
	startErr  error
	started   map[string]string
	cleanedUp []string
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{sessions: map[string]string{}, started: map[string]string{}}
}

func (f *fakeAudio) HasSession(guildID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[guildID]
	return ok
}

func (f *fakeAudio) Join(_ context.Context, guildID, channelID string) (pipeline.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		// racer commits its own session while this join is failing.
		if f.racer != "" {
			f.sessions[guildID] = f.racer
		}
		return pipeline.Snapshot{}, f.joinErr
	}
	f.sessions[guildID] = channelID
	return pipeline.Snapshot{GuildID: guildID, ChannelID: channelID}, nil
}

func (f *fakeAudio) StartStream(guildID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started[guildID] = url
	return nil
}

func (f *fakeAudio) Cleanup(guildID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, guildID)
	f.cleanedUp = append(f.cleanedUp, guildID)
}

type fakeVoice map[string]string

func (f fakeVoice) UserVoiceChannel(guildID, userID string) (string, bool) {
	ch, ok := f[guildID+"/"+userID]
	return ch, ok
}

type fakeHealth struct{ status services.HealthStatus }

func (f fakeHealth) Status(context.Context) services.HealthStatus { return f.status }

type harness struct {
	registry *Registry
	audio    *fakeAudio
	voice    fakeVoice
	stations *services.StationService
	profiles *services.ProfileService
	changed  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := database.DefaultDatabaseConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "lofi.db")
	db, err := database.NewDatabaseManager(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, db.Connect())
	t.Cleanup(func() { db.Close() })

	h := &harness{
		audio:    newFakeAudio(),
		voice:    fakeVoice{"g1/u1": "vc1"},
		stations: services.NewStationService(db.Stations(), nil),
		profiles: services.NewProfileService(db.Profiles(), db.Guilds(), db.GuildStats(), nil),
	}
	require.NoError(t, h.stations.Seed(context.Background()))

	h.registry = NewRegistry(Dependencies{
		Audio:           h.audio,
		Voice:           h.voice,
		Stations:        h.stations,
		Profiles:        h.profiles,
		Health:          fakeHealth{status: services.HealthStatus{Status: "healthy"}},
		SessionsChanged: func() { h.changed++ },
	})
	return h
}

func (h *harness) run(t *testing.T, name string, args ...string) Result {
	t.Helper()
	cmd, ok := h.registry.Lookup(name)
	require.True(t, ok, name)
	return cmd.Run(context.Background(), &Request{
		GuildID:   "g1",
		GuildName: "Study Hall",
		ChannelID: "text1",
		User:      services.DiscordUser{UserID: "u1", Username: "alice", DisplayName: "Alice"},
		Args:      args,
	})
}

func TestRegistry_Lookup(t *testing.T) {
	h := newHarness(t)

	for _, name := range []string{"play", "P", "stop", "leave", "stations", "addstation", "removestation",
		"setdefault", "health", "profile", "rank", "globalrank", "help", "h"} {
		_, ok := h.registry.Lookup(name)
		assert.True(t, ok, name)
	}

	_, ok := h.registry.Lookup("skip")
	assert.False(t, ok)

	all := h.registry.All()
	assert.Len(t, all, 11)
	assert.Equal(t, "addstation", all[0].Name)

	for _, name := range []string{"addstation", "removestation", "setdefault"} {
		cmd, _ := h.registry.Lookup(name)
		assert.True(t, cmd.AdminOnly, name)
	}
}

func TestPlay_DefaultStation(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, "play")
	assert.True(t, res.Success)
	assert.Equal(t, "Now playing **Lofi Girl**!", res.Message)
	assert.Equal(t, "vc1", h.audio.sessions["g1"])
	assert.Equal(t, "https://play.streamafrica.net/lofiradio", h.audio.started["g1"])
	assert.Equal(t, 1, h.changed)
}

func TestPlay_NamedStation(t *testing.T) {
	h := newHarness(t)
	_, err := h.stations.Add(context.Background(), "Rainy Jazz", "https://example.com/jazz", "")
	require.NoError(t, err)

	res := h.run(t, "play", "rainy", "jazz")
	assert.True(t, res.Success)
	assert.Equal(t, "https://example.com/jazz", h.audio.started["g1"])
}

func TestPlay_Refusals(t *testing.T) {
	t.Run("not in voice", func(t *testing.T) {
		h := newHarness(t)
		delete(h.voice, "g1/u1")

		res := h.run(t, "play")
		assert.False(t, res.Success)
		assert.Equal(t, h.registry.View().NotInVoiceChannel(), res.Message)
	})

	t.Run("already playing", func(t *testing.T) {
		h := newHarness(t)
		h.audio.sessions["g1"] = "vc1"

		res := h.run(t, "play")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "Already playing!")
		assert.Empty(t, h.audio.started)
	})

	t.Run("unknown station", func(t *testing.T) {
		h := newHarness(t)

		res := h.run(t, "play", "metal")
		assert.False(t, res.Success)
		assert.Equal(t, "Station \"metal\" not found. Use `!stations` to see available stations.", res.Message)
		assert.False(t, h.audio.HasSession("g1"))
	})
}

func TestPlay_Failures(t *testing.T) {
	t.Run("join fails", func(t *testing.T) {
		h := newHarness(t)
		h.audio.joinErr = pipeline.ErrConnectionTimeout

		res := h.run(t, "play")
		assert.False(t, res.Success)
		assert.Equal(t, h.registry.View().FailedToJoin(), res.Message)
		assert.Empty(t, h.audio.cleanedUp)
		assert.Zero(t, h.changed)
	})

	t.Run("join fails while another caller commits", func(t *testing.T) {
		h := newHarness(t)
		h.audio.joinErr = pipeline.ErrConnectionTimeout
		h.audio.racer = "api-channel"

		res := h.run(t, "play")
		assert.False(t, res.Success)
		assert.Empty(t, h.audio.cleanedUp)
		assert.True(t, h.audio.HasSession("g1"))
	})

	t.Run("lost join race", func(t *testing.T) {
		h := newHarness(t)
		h.audio.joinErr = pipeline.ErrSessionExists

		res := h.run(t, "play")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "Already playing!")
		assert.Empty(t, h.audio.cleanedUp)
	})

	t.Run("start fails", func(t *testing.T) {
		h := newHarness(t)
		h.audio.startErr = errors.New("gone")

		res := h.run(t, "play")
		assert.False(t, res.Success)
		assert.Equal(t, []string{"g1"}, h.audio.cleanedUp)
		assert.False(t, h.audio.HasSession("g1"))
	})
}

func TestStop(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, "stop")
	assert.False(t, res.Success)
	assert.Equal(t, "Not currently playing anything!", res.Message)

	h.run(t, "play")
	res = h.run(t, "stop")
	assert.True(t, res.Success)
	assert.Equal(t, "Stopped playing and left the voice channel.", res.Message)
	assert.False(t, h.audio.HasSession("g1"))
	assert.Equal(t, 2, h.changed)
}

func TestStationCommands(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, "addstation", "Jazz")
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid usage. Usage: `!addstation <name> <url> [description]`", res.Message)

	res = h.run(t, "addstation", "Jazz", "https://example.com/jazz", "smooth", "nights")
	assert.True(t, res.Success)
	assert.Equal(t, "Station **Jazz** added with ID `2`.", res.Message)

	res = h.run(t, "addstation", "jazz", "https://example.com/other")
	assert.False(t, res.Success)
	assert.Equal(t, "A station with the name \"jazz\" already exists.", res.Message)

	res = h.run(t, "addstation", "Bad", "notaurl")
	assert.False(t, res.Success)

	res = h.run(t, "stations")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "`1` **Lofi Girl** (default)")
	assert.Contains(t, res.Message, "`2` **Jazz** - smooth nights")

	res = h.run(t, "setdefault", "2")
	assert.True(t, res.Success)
	assert.Equal(t, "**Jazz** is now the default station.", res.Message)

	res = h.run(t, "setdefault", "99")
	assert.False(t, res.Success)
	assert.Equal(t, "Station with ID `99` not found.", res.Message)

	res = h.run(t, "removestation", "abc")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Invalid usage")

	res = h.run(t, "removestation", "1")
	assert.True(t, res.Success)
	assert.Equal(t, "Station with ID `1` has been removed.", res.Message)

	res = h.run(t, "removestation", "1")
	assert.False(t, res.Success)
	assert.Equal(t, "Station with ID `1` not found.", res.Message)
}

func TestProfileCommands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.run(t, "profile")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "haven't started your lofi journey")

	res = h.run(t, "rank")
	assert.Contains(t, res.Message, "No one has earned XP in this server yet!")

	res = h.run(t, "globalrank")
	assert.Contains(t, res.Message, "No one has earned XP yet!")

	guild := &services.DiscordGuild{GuildID: "g1", Name: "Study Hall"}
	_, err := h.profiles.AddXPAndMinutes(ctx, services.DiscordUser{UserID: "u1", DisplayName: "Alice"}, guild, "", 30)
	require.NoError(t, err)
	_, err = h.profiles.AddXPAndMinutes(ctx, services.DiscordUser{UserID: "12345678"}, guild, "", 1)
	require.NoError(t, err)

	res = h.run(t, "profile")
	assert.Contains(t, res.Message, "🎧 **Lofi Profile: Alice**")
	assert.Contains(t, res.Message, "⏱️ Total Time: 30m")
	assert.Contains(t, res.Message, "✨ Total XP: 300")
	assert.Contains(t, res.Message, "🏆 Server Rank: #1")
	assert.Contains(t, res.Message, "🌍 Global Rank: #1")

	res = h.run(t, "rank")
	assert.Contains(t, res.Message, "🏆 **Lofi Leaderboard - Study Hall**")
	assert.Contains(t, res.Message, "👑 **Alice** - Level 3 (30m)")
	assert.Contains(t, res.Message, "🥈 **User 5678** - Level 1 (1m)")

	res = h.run(t, "globalrank")
	assert.Contains(t, res.Message, "🌍 **Global Lofi Leaderboard**")
	assert.Contains(t, res.Message, "You're in the top 10! 🎉")
}

func TestHealthAndHelp(t *testing.T) {
	h := newHarness(t)

	res := h.run(t, "health")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "**Bot Status: HEALTHY**")

	res = h.run(t, "help")
	assert.True(t, res.Success)
	require.NotNil(t, res.Embed)
	require.Len(t, res.Embed.Fields, 3)
	assert.Contains(t, res.Embed.Fields[0].Value, "`!play [station name or id]`")
	assert.Contains(t, res.Embed.Fields[1].Value, "`!addstation <name> <url> [description]`")
	assert.NotContains(t, res.Embed.Fields[0].Value, "addstation")
}
