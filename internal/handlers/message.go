package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/latoulicious/lofi-bot/internal/commands"
	"github.com/latoulicious/lofi-bot/internal/services"
	"github.com/latoulicious/lofi-bot/pkg/logging"
)

const commandTimeout = 45 * time.Second

// Incoming is the part of a guild message the router acts on.
type Incoming struct {
	GuildID   string
	Guild     *services.DiscordGuild
	ChannelID string
	MessageID string
	Author    services.DiscordUser
	Nickname  string
	Mention   string
	IsAdmin   bool
	Content   string
}

// Reply is a message the router wants sent. ReplyTo is empty for plain
// channel messages.
type Reply struct {
	ChannelID string
	ReplyTo   string
	Content   string
	Embed     *discordgo.MessageEmbed
}

// MessageHandler routes prefix commands to the command registry.
type MessageHandler struct {
	registry    *commands.Registry
	profiles    *services.ProfileService
	prefix      string
	adminRoleID string
	limiter     *userLimiter
	logger      logging.Logger
}

type MessageHandlerConfig struct {
	Prefix      string
	AdminRoleID string
	// RatePerUser and Burst bound how fast one user may issue commands.
	RatePerUser rate.Limit
	Burst       int
}

func NewMessageHandler(registry *commands.Registry, profiles *services.ProfileService, cfg MessageHandlerConfig, logger logging.Logger) *MessageHandler {
	if logger == nil {
		logger = logging.NullLogger()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.RatePerUser == 0 {
		cfg.RatePerUser = rate.Every(2 * time.Second)
	}
	if cfg.Burst == 0 {
		cfg.Burst = 3
	}

	return &MessageHandler{
		registry:    registry,
		profiles:    profiles,
		prefix:      cfg.Prefix,
		adminRoleID: cfg.AdminRoleID,
		limiter:     newUserLimiter(cfg.RatePerUser, cfg.Burst),
		logger:      logger.With(logging.String("component", "command")),
	}
}

// Handle is registered with discordgo for MessageCreate events. Messages
// from bots and direct messages are ignored.
func (h *MessageHandler) Handle(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if !strings.HasPrefix(strings.TrimSpace(m.Content), h.prefix) {
		return
	}

	in := Incoming{
		GuildID:   m.GuildID,
		Guild:     &services.DiscordGuild{GuildID: m.GuildID},
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Author:    services.UserFromDiscord(m.Author),
		Mention:   m.Author.Mention(),
		Content:   m.Content,
	}
	if guild, err := s.State.Guild(m.GuildID); err == nil {
		in.Guild = services.GuildFromDiscord(guild)
	}
	if m.Member != nil {
		in.Nickname = m.Member.Nick
	}
	in.IsAdmin = h.isAdmin(s, m)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	for _, reply := range h.Route(ctx, in) {
		send(s, reply, h.logger)
	}
}

// Route runs the command in a message and returns the replies to send.
func (h *MessageHandler) Route(ctx context.Context, in Incoming) []Reply {
	content := strings.TrimSpace(in.Content)
	if !strings.HasPrefix(content, h.prefix) {
		return nil
	}

	parts := strings.Fields(strings.TrimPrefix(content, h.prefix))
	if len(parts) == 0 {
		return nil
	}
	name, args := strings.ToLower(parts[0]), parts[1:]

	cmd, found := h.registry.Lookup(name)
	if !found {
		return nil
	}

	reply := func(msg string) Reply {
		return Reply{ChannelID: in.ChannelID, ReplyTo: in.MessageID, Content: msg}
	}

	if !h.limiter.Allow(in.Author.UserID) {
		h.logger.Debug("Command rate limited", logging.String("user_id", in.Author.UserID), logging.String("command", name))
		return nil
	}

	if cmd.AdminOnly && !in.IsAdmin {
		return []Reply{reply(h.registry.View().PermissionDenied())}
	}

	guildName := ""
	if in.Guild != nil {
		guildName = in.Guild.Name
	}

	result, err := h.execute(ctx, cmd, &commands.Request{
		GuildID:   in.GuildID,
		GuildName: guildName,
		ChannelID: in.ChannelID,
		User:      in.Author,
		Args:      args,
	})
	if err != nil {
		h.logger.Error("Error executing command", logging.String("command", name), logging.Error(err))
		return []Reply{reply(h.registry.View().UnexpectedError())}
	}

	out := reply(result.Message)
	out.Embed = result.Embed
	replies := []Reply{out}

	if result.Success && h.profiles != nil {
		if levelUp, ok := h.rewardInteraction(ctx, in); ok {
			replies = append(replies, Reply{ChannelID: in.ChannelID, Content: levelUp})
		}
	}
	return replies
}

func (h *MessageHandler) execute(ctx context.Context, cmd *commands.Command, req *commands.Request) (result commands.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %s panicked: %v", cmd.Name, r)
		}
	}()
	return cmd.Run(ctx, req), nil
}

// rewardInteraction grants a minute of XP for a successful command and
// returns the level-up notice, if any.
func (h *MessageHandler) rewardInteraction(ctx context.Context, in Incoming) (string, bool) {
	res, err := h.profiles.AddXPAndMinutes(ctx, in.Author, in.Guild, in.Nickname, 1)
	if err != nil {
		h.logger.Error("Failed to add XP",
			logging.String("user_id", in.Author.UserID),
			logging.String("guild_id", in.GuildID),
			logging.Error(err))
		return "", false
	}
	if !res.LeveledUp {
		return "", false
	}

	mention := in.Mention
	if mention == "" {
		mention = "<@" + in.Author.UserID + ">"
	}
	return h.registry.View().LevelUp(mention, res.NewLevel), true
}

func (h *MessageHandler) isAdmin(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	var roles []string
	if m.Member != nil {
		roles = m.Member.Roles
	}

	perms, err := s.State.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		perms = 0
	}
	return IsAdmin(perms, roles, h.adminRoleID)
}

// IsAdmin reports whether a member may run admin commands: the
// Administrator permission or the configured admin role.
func IsAdmin(permissions int64, roles []string, adminRoleID string) bool {
	if permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return adminRoleID != "" && slices.Contains(roles, adminRoleID)
}

func send(s *discordgo.Session, r Reply, logger logging.Logger) {
	msg := &discordgo.MessageSend{Content: r.Content}
	if r.Embed != nil {
		msg.Embeds = []*discordgo.MessageEmbed{r.Embed}
	}
	if r.ReplyTo != "" {
		msg.Reference = &discordgo.MessageReference{MessageID: r.ReplyTo, ChannelID: r.ChannelID}
	}

	if _, err := s.ChannelMessageSendComplex(r.ChannelID, msg); err != nil {
		logger.Warn("Failed to send message", logging.String("channel_id", r.ChannelID), logging.Error(err))
	}
}

// userLimiter keeps one token bucket per user.
type userLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newUserLimiter(limit rate.Limit, burst int) *userLimiter {
	return &userLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (l *userLimiter) Allow(userID string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
