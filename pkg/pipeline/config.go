package pipeline

import (
	"fmt"
	"time"
)

// Config holds the tunables of the session manager and its audio adapters.
type Config struct {
	Recovery RecoveryConfig `json:"recovery"`
	Voice    VoiceConfig    `json:"voice"`
	FFmpeg   FFmpegConfig   `json:"ffmpeg"`
	Opus     OpusConfig     `json:"opus"`
}

// RecoveryConfig controls stream restarts after a failure.
type RecoveryConfig struct {
	MaxAttempts int           `json:"max_attempts"`
	Delay       time.Duration `json:"delay"`
}

// VoiceConfig controls voice connection handling.
type VoiceConfig struct {
	JoinTimeout     time.Duration `json:"join_timeout"`
	DisconnectGrace time.Duration `json:"disconnect_grace"`
}

// FFmpegConfig contains configuration for FFmpeg processing
type FFmpegConfig struct {
	BinaryPath string   `json:"binary_path"`
	InputArgs  []string `json:"input_args"`
	LogLevel   string   `json:"log_level"`
}

// OpusConfig contains configuration for Opus encoding
type OpusConfig struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	FrameSize  int `json:"frame_size"`
	Bitrate    int `json:"bitrate"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Recovery: RecoveryConfig{
			MaxAttempts: 5,
			Delay:       5 * time.Second,
		},
		Voice: VoiceConfig{
			JoinTimeout:     30 * time.Second,
			DisconnectGrace: 5 * time.Second,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			InputArgs: []string{
				"-reconnect", "1",
				"-reconnect_streamed", "1",
				"-reconnect_delay_max", "5",
				"-analyzeduration", "0",
			},
			LogLevel: "error",
		},
		Opus: OpusConfig{
			SampleRate: 48000,
			Channels:   2,
			FrameSize:  960,
			Bitrate:    96000,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Recovery.MaxAttempts < 0 {
		return fmt.Errorf("%w: recovery max attempts cannot be negative", ErrInvalidConfig)
	}
	if c.Recovery.Delay < 0 {
		return fmt.Errorf("%w: recovery delay cannot be negative", ErrInvalidConfig)
	}
	if c.Voice.JoinTimeout <= 0 {
		return fmt.Errorf("%w: voice join timeout must be positive", ErrInvalidConfig)
	}
	if c.Voice.DisconnectGrace < 0 {
		return fmt.Errorf("%w: disconnect grace cannot be negative", ErrInvalidConfig)
	}
	if c.FFmpeg.BinaryPath == "" {
		return fmt.Errorf("%w: ffmpeg binary path cannot be empty", ErrInvalidConfig)
	}

	switch c.Opus.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return fmt.Errorf("%w: unsupported opus sample rate %d", ErrInvalidConfig, c.Opus.SampleRate)
	}
	if c.Opus.Channels != 1 && c.Opus.Channels != 2 {
		return fmt.Errorf("%w: opus channels must be 1 or 2", ErrInvalidConfig)
	}
	if c.Opus.FrameSize <= 0 {
		return fmt.Errorf("%w: opus frame size must be positive", ErrInvalidConfig)
	}
	if c.Opus.Bitrate < 6000 || c.Opus.Bitrate > 510000 {
		return fmt.Errorf("%w: opus bitrate must be between 6000 and 510000", ErrInvalidConfig)
	}
	return nil
}
