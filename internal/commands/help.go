package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

func (r *Registry) healthCommand() *Command {
	return &Command{
		Name:        "health",
		Description: "Show bot health",
		Usage:       r.deps.Prefix + "health",
		Run: func(ctx context.Context, req *Request) Result {
			return ok(r.view.HealthStatus(r.deps.Health.Status(ctx)))
		},
	}
}

func (r *Registry) helpCommand() *Command {
	return &Command{
		Name:        "help",
		Aliases:     []string{"h"},
		Description: "Show this help message",
		Usage:       r.deps.Prefix + "help",
		Run: func(ctx context.Context, req *Request) Result {
			return Result{Success: true, Embed: r.helpEmbed()}
		},
	}
}

// helpEmbed lists every command, admin ones in their own section.
func (r *Registry) helpEmbed() *discordgo.MessageEmbed {
	var general, admin []string
	for _, cmd := range r.All() {
		line := fmt.Sprintf("• `%s` - %s", cmd.Usage, cmd.Description)
		if cmd.AdminOnly {
			admin = append(admin, line)
		} else {
			general = append(general, line)
		}
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "🎵 Radio Commands",
			Value:  strings.Join(general, "\n"),
			Inline: false,
		},
	}
	if len(admin) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "🛠️ Admin Commands",
			Value:  strings.Join(admin, "\n"),
			Inline: false,
		})
	}
	fields = append(fields, &discordgo.MessageEmbedField{
		Name: "💡 Tips",
		Value: strings.Join([]string{
			"• Join a voice channel **before** using " + fmt.Sprintf("`%splay`", r.deps.Prefix),
			"• Every command and every minute of listening earns XP",
			"• The bot leaves on its own when everyone else has left",
		}, "\n"),
		Inline: false,
	})

	return &discordgo.MessageEmbed{
		Title:       "Lofi Radio",
		Description: "Here are all the available commands for the bot:",
		Color:       0x9b59b6,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Lofi Radio | beats to relax/study to",
		},
		Fields: fields,
	}
}
