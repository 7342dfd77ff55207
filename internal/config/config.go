package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/latoulicious/lofi-bot/pkg/database"
	"github.com/latoulicious/lofi-bot/pkg/logging"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

var (
	ErrDiscordTokenNotSet = errors.New("DISCORD_TOKEN is not set")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

type Config struct {
	DiscordToken  string `env:"DISCORD_TOKEN"`
	AdminRoleID   string `env:"ADMIN_ROLE_ID"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"!"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"lofi.db"`

	ReconnectDelay       time.Duration `env:"STREAM_RECONNECT_DELAY" envDefault:"5s"`
	MaxReconnectAttempts int           `env:"STREAM_MAX_RECONNECT_ATTEMPTS" envDefault:"5"`
	VoiceJoinTimeout     time.Duration `env:"VOICE_JOIN_TIMEOUT" envDefault:"30s"`
	VoiceDisconnectGrace time.Duration `env:"VOICE_DISCONNECT_GRACE" envDefault:"5s"`
	FFmpegPath           string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	StreamBitrate        int           `env:"STREAM_BITRATE" envDefault:"96000"`

	APIEnabled bool   `env:"API_ENABLED" envDefault:"true"`
	APIPort    int    `env:"API_PORT" envDefault:"3000"`
	APIKey     string `env:"API_KEY"`

	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"console"`
	LogOutput        string `env:"LOG_OUTPUT" envDefault:"stdout"`
	LogRotateSizeMB  int    `env:"LOG_ROTATE_SIZE_MB" envDefault:"50"`
	LogRotateCount   int    `env:"LOG_ROTATE_COUNT" envDefault:"5"`
	XPSchedule       string `env:"XP_SCHEDULE" envDefault:"@every 1m"`
	PresenceSchedule string `env:"PRESENCE_SCHEDULE" envDefault:"@every 5m"`
	// BackupSchedule is empty when backups are disabled.
	BackupSchedule string `env:"BACKUP_SCHEDULE"`
	BackupDir      string `env:"BACKUP_DIR" envDefault:"backups"`
}

// LoadConfig reads .env if present, then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse(nil)
}

// Parse builds a Config from environment. A nil environment means the
// process environment.
func Parse(environment map[string]string) (*Config, error) {
	cfg := &Config{}

	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return ErrDiscordTokenNotSet
	}
	if c.CommandPrefix == "" {
		return fmt.Errorf("%w: COMMAND_PREFIX must not be empty", ErrInvalidConfig)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("%w: API_PORT %d out of range", ErrInvalidConfig, c.APIPort)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be json or console", ErrInvalidConfig)
	}
	if err := c.Pipeline().Validate(); err != nil {
		return err
	}
	return nil
}

// Pipeline maps the stream settings onto the session manager config.
func (c *Config) Pipeline() *pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Recovery.MaxAttempts = c.MaxReconnectAttempts
	cfg.Recovery.Delay = c.ReconnectDelay
	cfg.Voice.JoinTimeout = c.VoiceJoinTimeout
	cfg.Voice.DisconnectGrace = c.VoiceDisconnectGrace
	cfg.FFmpeg.BinaryPath = c.FFmpegPath
	cfg.Opus.Bitrate = c.StreamBitrate
	return cfg
}

func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:        c.LogLevel,
		Format:       c.LogFormat,
		Output:       c.LogOutput,
		RotateSizeMB: c.LogRotateSizeMB,
		RotateCount:  c.LogRotateCount,
	}
}

func (c *Config) Database() *database.DatabaseConfig {
	cfg := database.DefaultDatabaseConfig()
	cfg.DatabasePath = c.DatabasePath
	return cfg
}
