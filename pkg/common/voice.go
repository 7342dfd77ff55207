package common

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/lofi-bot/pkg/logging"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

const defaultPollInterval = 100 * time.Millisecond

// DiscordGateway opens discordgo voice connections for the session manager.
type DiscordGateway struct {
	session      *discordgo.Session
	logger       logging.Logger
	pollInterval time.Duration

	mu    sync.Mutex
	conns map[string]*VoiceConnection
}

// NewDiscordGateway creates a gateway and registers its voice state handler
// on s.
func NewDiscordGateway(s *discordgo.Session, logger logging.Logger) *DiscordGateway {
	g := &DiscordGateway{
		session:      s,
		logger:       logger.With(logging.String("component", "voice")),
		pollInterval: defaultPollInterval,
		conns:        make(map[string]*VoiceConnection),
	}
	s.AddHandler(g.onVoiceStateUpdate)
	return g
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// Join joins the channel deafened and waits until the connection is ready.
// On failure the partial connection is released. ctx bounds the whole join,
// but ChannelVoiceJoin returns a timeout of its own after 10s, so a deadline
// longer than that only matters while the gateway itself is slow to answer.
func (g *DiscordGateway) Join(ctx context.Context, guildID, channelID string) (pipeline.Connection, error) {
	results := make(chan joinResult, 1)
	go func() {
		vc, err := g.session.ChannelVoiceJoin(guildID, channelID, false, true)
		results <- joinResult{vc: vc, err: err}
	}()

	var vc *discordgo.VoiceConnection
	select {
	case <-ctx.Done():
		go func() {
			if r := <-results; r.vc != nil {
				r.vc.Disconnect()
			}
		}()
		return nil, ctx.Err()
	case r := <-results:
		if r.err != nil {
			if r.vc != nil {
				r.vc.Disconnect()
			}
			return nil, classifyJoinError(channelID, r.err)
		}
		vc = r.vc
	}

	if err := waitForVoiceReady(ctx, vc, g.pollInterval); err != nil {
		vc.Disconnect()
		return nil, err
	}

	conn := newVoiceConnection(vc, g.logger.With(logging.String("guild_id", guildID)))
	conn.onDestroy = func() { g.forget(guildID, conn) }

	g.mu.Lock()
	g.conns[guildID] = conn
	g.mu.Unlock()

	go conn.watch(g.pollInterval * 5)

	g.logger.Info("Voice connection ready", logging.String("guild_id", guildID), logging.String("channel_id", channelID))
	return conn, nil
}

// classifyJoinError maps a ChannelVoiceJoin failure onto the pipeline
// errors. discordgo gives up on the voice handshake after its own 10s wait
// and only says so in the message text.
func classifyJoinError(channelID string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return fmt.Errorf("%w: %v", pipeline.ErrConnectionTimeout, err)
	}
	return fmt.Errorf("failed to join voice channel %s: %w", channelID, err)
}

func (g *DiscordGateway) forget(guildID string, conn *VoiceConnection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conns[guildID] == conn {
		delete(g.conns, guildID)
	}
}

// onVoiceStateUpdate reports the bot being disconnected from voice by
// someone else as a destroyed connection.
func (g *DiscordGateway) onVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.VoiceState == nil || s.State == nil || s.State.User == nil {
		return
	}
	if vsu.UserID != s.State.User.ID || vsu.ChannelID != "" {
		return
	}

	g.mu.Lock()
	conn := g.conns[vsu.GuildID]
	g.mu.Unlock()

	if conn != nil {
		g.logger.Warn("Bot was disconnected from voice", logging.String("guild_id", vsu.GuildID))
		conn.emit(pipeline.ConnectionDestroyed)
	}
}

func waitForVoiceReady(ctx context.Context, vc *discordgo.VoiceConnection, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if voiceReady(vc) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func voiceReady(vc *discordgo.VoiceConnection) bool {
	vc.RLock()
	defer vc.RUnlock()
	return vc.Ready
}

// frameSink is implemented by players that can write into a voice
// connection.
type frameSink interface {
	Attach(sink chan<- []byte, speaking func(bool) error)
}

// VoiceConnection adapts a discordgo voice connection.
type VoiceConnection struct {
	vc        *discordgo.VoiceConnection
	logger    logging.Logger
	events    chan pipeline.ConnectionEvent
	closed    chan struct{}
	once      sync.Once
	onDestroy func()
}

func newVoiceConnection(vc *discordgo.VoiceConnection, logger logging.Logger) *VoiceConnection {
	return &VoiceConnection{
		vc:     vc,
		logger: logger,
		events: make(chan pipeline.ConnectionEvent, 8),
		closed: make(chan struct{}),
	}
}

func (c *VoiceConnection) Events() <-chan pipeline.ConnectionEvent {
	return c.events
}

func (c *VoiceConnection) Subscribe(p pipeline.Player) {
	sink, ok := p.(frameSink)
	if !ok {
		c.logger.Warn("Player cannot be attached to voice connection")
		return
	}
	sink.Attach(c.vc.OpusSend, c.vc.Speaking)
}

func (c *VoiceConnection) Destroy() {
	c.once.Do(func() {
		close(c.closed)
		if c.onDestroy != nil {
			c.onDestroy()
		}
		if err := c.vc.Disconnect(); err != nil {
			c.logger.Warn("Failed to disconnect from voice", logging.Error(err))
		}
		c.emit(pipeline.ConnectionDestroyed)
	})
}

// watch turns flips of the discordgo ready flag into connection events.
func (c *VoiceConnection) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ready := true
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
		}

		now := voiceReady(c.vc)
		switch {
		case ready && !now:
			c.emit(pipeline.ConnectionDisconnected)
		case !ready && now:
			c.emit(pipeline.ConnectionReady)
		}
		ready = now
	}
}

func (c *VoiceConnection) emit(status pipeline.ConnectionStatus) {
	select {
	case c.events <- pipeline.ConnectionEvent{Status: status}:
	default:
		c.logger.Warn("Connection event dropped", logging.String("status", status.String()))
	}
}
