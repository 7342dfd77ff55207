package services

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// DiscordProbe reports gateway health.
type DiscordProbe interface {
	Connected() bool
	Latency() time.Duration
	GuildCount() int
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type SessionCounter interface {
	Count() int
}

type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Uptime    int64          `json:"uptime"`
	Discord   DiscordHealth  `json:"discord"`
	Database  DatabaseHealth `json:"database"`
	Audio     AudioHealth    `json:"audio"`
}

type DiscordHealth struct {
	Connected bool  `json:"connected"`
	Ping      int64 `json:"ping"`
	Guilds    int   `json:"guilds"`
}

type DatabaseHealth struct {
	Connected bool `json:"connected"`
}

type AudioHealth struct {
	ActiveConnections int `json:"activeConnections"`
}

func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// HealthService aggregates the health of the bot's dependencies.
type HealthService struct {
	discord  DiscordProbe
	database Pinger
	audio    SessionCounter
	started  time.Time
	timeout  time.Duration
	now      func() time.Time
}

func NewHealthService(discord DiscordProbe, database Pinger, audio SessionCounter) *HealthService {
	return &HealthService{
		discord:  discord,
		database: database,
		audio:    audio,
		started:  time.Now(),
		timeout:  2 * time.Second,
		now:      time.Now,
	}
}

// Status is healthy when Discord is connected and the database answers.
func (h *HealthService) Status(ctx context.Context) HealthStatus {
	now := h.now()

	dbCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	dbConnected := h.database.Ping(dbCtx) == nil

	discordConnected := h.discord.Connected()

	status := "unhealthy"
	if discordConnected && dbConnected {
		status = "healthy"
	}

	return HealthStatus{
		Status:    status,
		Timestamp: now.UTC(),
		Uptime:    int64(now.Sub(h.started) / time.Second),
		Discord: DiscordHealth{
			Connected: discordConnected,
			Ping:      h.discord.Latency().Milliseconds(),
			Guilds:    h.discord.GuildCount(),
		},
		Database: DatabaseHealth{Connected: dbConnected},
		Audio:    AudioHealth{ActiveConnections: h.audio.Count()},
	}
}

// SessionProbe adapts a discordgo session to DiscordProbe.
type SessionProbe struct {
	session *discordgo.Session
}

func NewSessionProbe(s *discordgo.Session) *SessionProbe {
	return &SessionProbe{session: s}
}

func (p *SessionProbe) Connected() bool {
	p.session.RLock()
	defer p.session.RUnlock()
	return p.session.DataReady
}

func (p *SessionProbe) Latency() time.Duration {
	return p.session.HeartbeatLatency()
}

func (p *SessionProbe) GuildCount() int {
	if p.session.State == nil {
		return 0
	}
	p.session.State.RLock()
	defer p.session.State.RUnlock()
	return len(p.session.State.Guilds)
}
