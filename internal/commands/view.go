package commands

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/latoulicious/lofi-bot/internal/services"
	"github.com/latoulicious/lofi-bot/pkg/database"
)

// View renders every user-facing bot message.
type View struct {
	prefix string
}

func NewView(prefix string) *View {
	return &View{prefix: prefix}
}

func (v *View) cmd(name string) string {
	return "`" + v.prefix + name + "`"
}

func (v *View) NotInVoiceChannel() string {
	return "You need to be in a voice channel to use this command!"
}

func (v *View) AlreadyPlaying() string {
	return fmt.Sprintf("Already playing! Use %s first to switch stations.", v.cmd("stop"))
}

func (v *View) NowPlaying(stationName string) string {
	return fmt.Sprintf("Now playing **%s**!", stationName)
}

func (v *View) FailedToJoin() string {
	return "Failed to join voice channel. Please try again."
}

func (v *View) NotPlaying() string {
	return "Not currently playing anything!"
}

func (v *View) Stopped() string {
	return "Stopped playing and left the voice channel."
}

// StationNotFound reports a failed lookup. An empty query means no default
// station is configured.
func (v *View) StationNotFound(query string) string {
	if query != "" {
		return fmt.Sprintf("Station \"%s\" not found. Use %s to see available stations.", query, v.cmd("stations"))
	}
	return fmt.Sprintf("No default station configured. Use %s to see available stations.", v.cmd("stations"))
}

func (v *View) StationList(stations []*database.Station) string {
	if len(stations) == 0 {
		return "No stations available."
	}

	lines := []string{"**Available Stations:**"}
	for _, s := range stations {
		marker := ""
		if s.IsDefault {
			marker = " (default)"
		}
		desc := ""
		if s.Description != "" {
			desc = " - " + s.Description
		}
		lines = append(lines, fmt.Sprintf("`%d` **%s**%s%s", s.ID, s.Name, marker, desc))
	}
	lines = append(lines, "", fmt.Sprintf("Use `%splay <name>` or `%splay <id>` to play a station.", v.prefix, v.prefix))
	return strings.Join(lines, "\n")
}

func (v *View) StationAdded(s *database.Station) string {
	return fmt.Sprintf("Station **%s** added with ID `%d`.", s.Name, s.ID)
}

func (v *View) StationRemoved(id int64) string {
	return fmt.Sprintf("Station with ID `%d` has been removed.", id)
}

func (v *View) StationNotFoundByID(id int64) string {
	return fmt.Sprintf("Station with ID `%d` not found.", id)
}

func (v *View) StationSetDefault(s *database.Station) string {
	return fmt.Sprintf("**%s** is now the default station.", s.Name)
}

func (v *View) StationAlreadyExists(name string) string {
	return fmt.Sprintf("A station with the name \"%s\" already exists.", name)
}

func (v *View) InvalidUsage(usage string) string {
	return fmt.Sprintf("Invalid usage. Usage: `%s`", usage)
}

func (v *View) PermissionDenied() string {
	return "You don't have permission to use this command."
}

func (v *View) UnexpectedError() string {
	return "An unexpected error occurred. Please try again."
}

func (v *View) HealthStatus(status services.HealthStatus) string {
	emoji := "❌"
	if status.Healthy() {
		emoji = "✅"
	}

	lines := []string{
		fmt.Sprintf("%s **Bot Status: %s**", emoji, strings.ToUpper(status.Status)),
		"",
		fmt.Sprintf("⏱️ Uptime: %s", FormatUptime(status.Uptime)),
		fmt.Sprintf("📡 Discord: %s (%dms)", connectedText(status.Discord.Connected), status.Discord.Ping),
		fmt.Sprintf("🏠 Guilds: %d", status.Discord.Guilds),
		fmt.Sprintf("🔊 Active Streams: %d", status.Audio.ActiveConnections),
		fmt.Sprintf("🗄️ Database: %s", connectedText(status.Database.Connected)),
	}
	return strings.Join(lines, "\n")
}

func connectedText(connected bool) string {
	if connected {
		return "Connected"
	}
	return "Disconnected"
}

// FormatUptime renders seconds as "1d 2h 3m 4s", omitting leading zero
// units.
func FormatUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	days := int64(d / (24 * time.Hour))
	hours := int64(d/time.Hour) % 24
	minutes := int64(d/time.Minute) % 60
	secs := seconds % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", secs))
	return strings.Join(parts, " ")
}

// FormatMinutes renders listening time as "2h 5m" or "5m".
func FormatMinutes(minutes int) string {
	if h := minutes / 60; h > 0 {
		return fmt.Sprintf("%dh %dm", h, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// LevelTitle is the rank name shown for a level.
type LevelTitle struct {
	Name  string
	Emoji string
}

func TitleForLevel(level int) LevelTitle {
	switch {
	case level >= 50:
		return LevelTitle{"Lofi Legend", "👑"}
	case level >= 25:
		return LevelTitle{"Lofi Addict", "🎹"}
	case level >= 10:
		return LevelTitle{"Dedicated Listener", "🎼"}
	case level >= 5:
		return LevelTitle{"Regular", "🎵"}
	default:
		return LevelTitle{"Newcomer", "🎧"}
	}
}

func (v *View) LevelTitleFormatted(level int) string {
	t := TitleForLevel(level)
	return fmt.Sprintf("%s **%s**", t.Emoji, t.Name)
}

// ProgressBar draws progress in [0,1] with length cells.
func ProgressBar(progress float64, length int) string {
	progress = math.Max(0, math.Min(1, progress))
	filled := int(math.Round(progress * float64(length)))
	return strings.Repeat("█", filled) + strings.Repeat("░", length-filled)
}

// MedalFor returns the leaderboard marker for a 0-based rank.
func MedalFor(rank int) string {
	switch rank {
	case 0:
		return "👑"
	case 1:
		return "🥈"
	case 2:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", rank+1)
	}
}

func badgeForLevel(level int) string {
	switch level {
	case 1:
		return "First Steps"
	case 5:
		return "Getting Started"
	case 10:
		return "Dedicated"
	case 25:
		return "Committed"
	case 50:
		return "Legendary"
	}
	return ""
}

func (v *View) LevelUp(mention string, level int) string {
	msg := fmt.Sprintf("🎉 **Level Up!** %s reached **Level %d**!", mention, level)
	switch level {
	case 5, 10, 25, 50:
		t := TitleForLevel(level)
		msg += fmt.Sprintf("\n%s \"%s\" title unlocked!", t.Emoji, t.Name)
	}
	if badge := badgeForLevel(level); badge != "" {
		msg += fmt.Sprintf("\n🏅 \"%s\" badge earned!", badge)
	}
	return msg
}

func (v *View) NoProfile() string {
	return fmt.Sprintf("You haven't started your lofi journey yet! Use `%splay` to start listening and earn XP.", v.prefix)
}

func (v *View) Profile(name string, profile *database.UserProfile, guildRank, globalRank int) string {
	info := services.GetLevelInfo(profile.TotalXP)

	lines := []string{
		fmt.Sprintf("🎧 **Lofi Profile: %s**", name),
		"",
		v.LevelTitleFormatted(profile.CurrentLevel),
		fmt.Sprintf("📊 Level %d %s (%d / %d XP)", profile.CurrentLevel, ProgressBar(info.Progress, 10), info.CurrentXP, info.XPForNextLevel),
		fmt.Sprintf("⏱️ Total Time: %s", FormatMinutes(profile.TotalMinutesListened)),
		fmt.Sprintf("✨ Total XP: %s", groupThousands(profile.TotalXP)),
	}
	if guildRank > 0 {
		lines = append(lines, fmt.Sprintf("🏆 Server Rank: #%d", guildRank))
	}
	if globalRank > 0 {
		lines = append(lines, fmt.Sprintf("🌍 Global Rank: #%d", globalRank))
	}
	lines = append(lines, "", "Keep listening to level up! 🎵")
	return strings.Join(lines, "\n")
}

// LeaderboardEntry is one rendered leaderboard row.
type LeaderboardEntry struct {
	Name    string
	Level   int
	Minutes int
}

func (v *View) GuildLeaderboard(guildName string, entries []LeaderboardEntry, userRank int) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No one has earned XP in this server yet! Use `%splay` to start listening.", v.prefix)
	}

	lines := []string{fmt.Sprintf("🏆 **Lofi Leaderboard - %s**", guildName), ""}
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%s **%s** - Level %d (%s)", MedalFor(i), e.Name, e.Level, FormatMinutes(e.Minutes)))
	}
	if userRank > len(entries) {
		lines = append(lines, "", fmt.Sprintf("Your rank: #%d", userRank))
	}
	return strings.Join(lines, "\n")
}

func (v *View) GlobalLeaderboard(entries []LeaderboardEntry, userRank int) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No one has earned XP yet! Use `%splay` to start listening.", v.prefix)
	}

	lines := []string{"🌍 **Global Lofi Leaderboard**", ""}
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%s **%s** %s - Level %d (%s)",
			MedalFor(i), e.Name, TitleForLevel(e.Level).Emoji, e.Level, FormatMinutes(e.Minutes)))
	}
	if userRank > 0 {
		lines = append(lines, "")
		if userRank > len(entries) {
			lines = append(lines, fmt.Sprintf("Your global rank: #%d", userRank))
		} else {
			lines = append(lines, "You're in the top 10! 🎉")
		}
	}
	return strings.Join(lines, "\n")
}

func groupThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
