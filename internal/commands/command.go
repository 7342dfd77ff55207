package commands

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/lofi-bot/internal/services"
	"github.com/latoulicious/lofi-bot/pkg/logging"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

// AudioController is the part of the session manager commands drive.
type AudioController interface {
	HasSession(guildID string) bool
	Join(ctx context.Context, guildID, channelID string) (pipeline.Snapshot, error)
	StartStream(guildID, url string) error
	Cleanup(guildID string)
}

// VoiceLocator finds the voice channel a user sits in.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (string, bool)
}

type HealthReporter interface {
	Status(ctx context.Context) services.HealthStatus
}

// Request is a parsed command invocation.
type Request struct {
	GuildID   string
	GuildName string
	ChannelID string
	User      services.DiscordUser
	Args      []string
}

// Result is what a command replies with. Success decides whether the
// invocation earns XP.
type Result struct {
	Success bool
	Message string
	Embed   *discordgo.MessageEmbed
}

func ok(msg string) Result   { return Result{Success: true, Message: msg} }
func fail(msg string) Result { return Result{Success: false, Message: msg} }

// Command is a prefix command.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	AdminOnly   bool
	Run         func(ctx context.Context, req *Request) Result
}

// Dependencies are the services commands act on.
type Dependencies struct {
	Audio    AudioController
	Voice    VoiceLocator
	Stations *services.StationService
	Profiles *services.ProfileService
	Health   HealthReporter
	// SessionsChanged is called after a command starts or stops a stream.
	SessionsChanged func()
	Prefix          string
	Logger          logging.Logger
}

// Registry holds the registered commands by name and alias.
type Registry struct {
	deps     Dependencies
	view     *View
	logger   logging.Logger
	byName   map[string]*Command
	commands []*Command
}

// NewRegistry builds the registry with every bot command.
func NewRegistry(deps Dependencies) *Registry {
	if deps.Logger == nil {
		deps.Logger = logging.NullLogger()
	}
	if deps.Prefix == "" {
		deps.Prefix = "!"
	}
	if deps.SessionsChanged == nil {
		deps.SessionsChanged = func() {}
	}

	r := &Registry{
		deps:   deps,
		view:   NewView(deps.Prefix),
		logger: deps.Logger.With(logging.String("component", "command")),
		byName: make(map[string]*Command),
	}

	r.Register(r.playCommand())
	r.Register(r.stopCommand())
	r.Register(r.stationsCommand())
	r.Register(r.addStationCommand())
	r.Register(r.removeStationCommand())
	r.Register(r.setDefaultCommand())
	r.Register(r.healthCommand())
	r.Register(r.profileCommand())
	r.Register(r.rankCommand())
	r.Register(r.globalRankCommand())
	r.Register(r.helpCommand())

	return r
}

// Register adds cmd under its name and aliases, replacing earlier ones.
func (r *Registry) Register(cmd *Command) {
	r.commands = append(r.commands, cmd)
	r.byName[strings.ToLower(cmd.Name)] = cmd
	for _, alias := range cmd.Aliases {
		r.byName[strings.ToLower(alias)] = cmd
	}
}

func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.byName[strings.ToLower(name)]
	return cmd, ok
}

// All returns the commands sorted by name.
func (r *Registry) All() []*Command {
	out := make([]*Command, len(r.commands))
	copy(out, r.commands)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) View() *View {
	return r.view
}
