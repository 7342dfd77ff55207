package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(map[string]string{"DISCORD_TOKEN": "token"})
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, "lofi.db", cfg.DatabasePath)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
	assert.Equal(t, 30*time.Second, cfg.VoiceJoinTimeout)
	assert.Equal(t, 5*time.Second, cfg.VoiceDisconnectGrace)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, 96000, cfg.StreamBitrate)
	assert.True(t, cfg.APIEnabled)
	assert.Equal(t, 3000, cfg.APIPort)
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, "@every 1m", cfg.XPSchedule)
	assert.Equal(t, "@every 5m", cfg.PresenceSchedule)
	assert.Empty(t, cfg.BackupSchedule)
	assert.Equal(t, "backups", cfg.BackupDir)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"DISCORD_TOKEN":                 "token",
		"ADMIN_ROLE_ID":                 "42",
		"COMMAND_PREFIX":                "?",
		"STREAM_RECONNECT_DELAY":        "250ms",
		"STREAM_MAX_RECONNECT_ATTEMPTS": "2",
		"VOICE_DISCONNECT_GRACE":        "0s",
		"API_ENABLED":                   "false",
		"API_PORT":                      "8080",
		"LOG_FORMAT":                    "json",
	})
	require.NoError(t, err)

	assert.Equal(t, "42", cfg.AdminRoleID)
	assert.Equal(t, "?", cfg.CommandPrefix)
	assert.False(t, cfg.APIEnabled)
	assert.Equal(t, 8080, cfg.APIPort)

	p := cfg.Pipeline()
	assert.Equal(t, 2, p.Recovery.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, p.Recovery.Delay)
	assert.Equal(t, time.Duration(0), p.Voice.DisconnectGrace)
	assert.Equal(t, pipeline.DefaultConfig().Opus.SampleRate, p.Opus.SampleRate)

	l := cfg.Logging()
	assert.Equal(t, "json", l.Format)
	assert.Equal(t, "info", l.Level)

	assert.Equal(t, "lofi.db", cfg.Database().DatabasePath)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		err  error
	}{
		{"missing token", map[string]string{}, ErrDiscordTokenNotSet},
		{"bad duration", map[string]string{"DISCORD_TOKEN": "t", "STREAM_RECONNECT_DELAY": "soon"}, ErrInvalidConfig},
		{"bad port", map[string]string{"DISCORD_TOKEN": "t", "API_PORT": "70000"}, ErrInvalidConfig},
		{"bad log format", map[string]string{"DISCORD_TOKEN": "t", "LOG_FORMAT": "xml"}, ErrInvalidConfig},
		{"negative attempts", map[string]string{"DISCORD_TOKEN": "t", "STREAM_MAX_RECONNECT_ATTEMPTS": "-1"}, pipeline.ErrInvalidConfig},
		{"bitrate too high", map[string]string{"DISCORD_TOKEN": "t", "STREAM_BITRATE": "999999"}, pipeline.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.env)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
