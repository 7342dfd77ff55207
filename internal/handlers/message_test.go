package handlers

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/latoulicious/lofi-bot/internal/commands"
	"github.com/latoulicious/lofi-bot/internal/services"
	"github.com/latoulicious/lofi-bot/pkg/database"
)

func newTestProfiles(t *testing.T) *services.ProfileService {
	t.Helper()

	cfg := database.DefaultDatabaseConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "lofi.db")
	db, err := database.NewDatabaseManager(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, db.Connect())
	t.Cleanup(func() { db.Close() })

	return services.NewProfileService(db.Profiles(), db.Guilds(), db.GuildStats(), nil)
}

func newTestHandler(t *testing.T, profiles *services.ProfileService, cfg MessageHandlerConfig) (*MessageHandler, *[]string) {
	t.Helper()

	var ran []string
	registry := commands.NewRegistry(commands.Dependencies{})
	registry.Register(&commands.Command{
		Name:    "ping",
		Aliases: []string{"pi"},
		Run: func(_ context.Context, req *commands.Request) commands.Result {
			ran = append(ran, "ping:"+req.GuildName+":"+strings.Join(req.Args, ","))
			return commands.Result{Success: true, Message: "pong"}
		},
	})
	registry.Register(&commands.Command{
		Name: "nope",
		Run: func(context.Context, *commands.Request) commands.Result {
			ran = append(ran, "nope")
			return commands.Result{Message: "no"}
		},
	})
	registry.Register(&commands.Command{
		Name:      "secret",
		AdminOnly: true,
		Run: func(context.Context, *commands.Request) commands.Result {
			ran = append(ran, "secret")
			return commands.Result{Success: true, Message: "ok"}
		},
	})
	registry.Register(&commands.Command{
		Name: "boom",
		Run: func(context.Context, *commands.Request) commands.Result {
			panic("kaboom")
		},
	})

	return NewMessageHandler(registry, profiles, cfg, nil), &ran
}

func incoming(content string) Incoming {
	return Incoming{
		GuildID:   "g1",
		Guild:     &services.DiscordGuild{GuildID: "g1", Name: "Study Hall"},
		ChannelID: "c1",
		MessageID: "m1",
		Author:    services.DiscordUser{UserID: "u1", Username: "alice"},
		Mention:   "<@u1>",
		Content:   content,
	}
}

func TestRoute_Dispatch(t *testing.T) {
	h, ran := newTestHandler(t, nil, MessageHandlerConfig{})

	replies := h.Route(context.Background(), incoming("  !PING lofi girl "))
	require.Len(t, replies, 1)
	assert.Equal(t, Reply{ChannelID: "c1", ReplyTo: "m1", Content: "pong"}, replies[0])
	assert.Equal(t, []string{"ping:Study Hall:lofi,girl"}, *ran)

	replies = h.Route(context.Background(), incoming("!pi"))
	require.Len(t, replies, 1)
	assert.Len(t, *ran, 2)
}

func TestRoute_Ignored(t *testing.T) {
	h, ran := newTestHandler(t, nil, MessageHandlerConfig{})

	for _, content := range []string{"ping", "hello !ping", "!", "!   ", "!skip"} {
		assert.Nil(t, h.Route(context.Background(), incoming(content)), content)
	}
	assert.Empty(t, *ran)
}

func TestRoute_CustomPrefix(t *testing.T) {
	h, ran := newTestHandler(t, nil, MessageHandlerConfig{Prefix: "lofi "})

	assert.Nil(t, h.Route(context.Background(), incoming("!ping")))
	require.Len(t, h.Route(context.Background(), incoming("lofi ping")), 1)
	assert.Len(t, *ran, 1)
}

func TestRoute_AdminOnly(t *testing.T) {
	h, ran := newTestHandler(t, nil, MessageHandlerConfig{})

	replies := h.Route(context.Background(), incoming("!secret"))
	require.Len(t, replies, 1)
	assert.Equal(t, "You don't have permission to use this command.", replies[0].Content)
	assert.Empty(t, *ran)

	in := incoming("!secret")
	in.IsAdmin = true
	replies = h.Route(context.Background(), in)
	require.Len(t, replies, 1)
	assert.Equal(t, "ok", replies[0].Content)
	assert.Equal(t, []string{"secret"}, *ran)
}

func TestRoute_RateLimit(t *testing.T) {
	h, ran := newTestHandler(t, nil, MessageHandlerConfig{RatePerUser: rate.Every(1 << 62), Burst: 2})

	assert.Len(t, h.Route(context.Background(), incoming("!ping")), 1)
	assert.Len(t, h.Route(context.Background(), incoming("!ping")), 1)
	assert.Nil(t, h.Route(context.Background(), incoming("!ping")))
	assert.Len(t, *ran, 2)

	other := incoming("!ping")
	other.Author.UserID = "u2"
	assert.Len(t, h.Route(context.Background(), other), 1, "limits are per user")
}

func TestRoute_PanicRecovered(t *testing.T) {
	h, _ := newTestHandler(t, nil, MessageHandlerConfig{})

	var replies []Reply
	require.NotPanics(t, func() {
		replies = h.Route(context.Background(), incoming("!boom"))
	})
	require.Len(t, replies, 1)
	assert.Equal(t, "An unexpected error occurred. Please try again.", replies[0].Content)
}

func TestRoute_InteractionXP(t *testing.T) {
	profiles := newTestProfiles(t)
	h, _ := newTestHandler(t, profiles, MessageHandlerConfig{})
	ctx := context.Background()

	user := services.DiscordUser{UserID: "u1", Username: "alice"}
	guild := &services.DiscordGuild{GuildID: "g1", Name: "Study Hall"}
	_, err := profiles.AddXPAndMinutes(ctx, user, guild, "", 9)
	require.NoError(t, err)

	// Failed commands earn nothing.
	replies := h.Route(ctx, incoming("!nope"))
	require.Len(t, replies, 1)
	profile, err := profiles.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 90, profile.TotalXP)

	replies = h.Route(ctx, incoming("!ping"))
	require.Len(t, replies, 2)
	assert.Equal(t, "pong", replies[0].Content)
	assert.Equal(t, "c1", replies[1].ChannelID)
	assert.Empty(t, replies[1].ReplyTo)
	assert.Contains(t, replies[1].Content, "<@u1> reached **Level 2**")

	stats, err := profiles.GuildStats(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.MinutesListened)
	assert.Equal(t, 100, stats.XP)
}

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name        string
		permissions int64
		roles       []string
		adminRole   string
		expected    bool
	}{
		{"administrator permission", discordgo.PermissionAdministrator, nil, "", true},
		{"admin role", 0, []string{"r1", "admin"}, "admin", true},
		{"missing role", 0, []string{"r1"}, "admin", false},
		{"no admin role configured", 0, []string{""}, "", false},
		{"other permissions", discordgo.PermissionManageMessages, nil, "admin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsAdmin(tt.permissions, tt.roles, tt.adminRole))
		})
	}
}
