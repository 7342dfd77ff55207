package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/latoulicious/lofi-bot/pkg/database"
	"github.com/latoulicious/lofi-bot/pkg/logging"
)

const (
	leaderboardSize = 10
	rankWindow      = 100
)

func (r *Registry) profileCommand() *Command {
	return &Command{
		Name:        "profile",
		Description: "View your lofi profile",
		Usage:       r.deps.Prefix + "profile",
		Run: func(ctx context.Context, req *Request) Result {
			profile, err := r.deps.Profiles.GetProfile(ctx, req.User.UserID)
			if errors.Is(err, database.ErrProfileNotFound) {
				return ok(r.view.NoProfile())
			}
			if err != nil {
				r.logger.Error("Failed to load profile", logging.String("user_id", req.User.UserID), logging.Error(err))
				return fail(r.view.UnexpectedError())
			}

			guildRank, err := r.deps.Profiles.GuildRank(ctx, req.GuildID, req.User.UserID, rankWindow)
			if err != nil {
				r.logger.Warn("Failed to compute guild rank", logging.Error(err))
			}
			globalRank, err := r.deps.Profiles.GlobalRank(ctx, req.User.UserID, rankWindow)
			if err != nil {
				r.logger.Warn("Failed to compute global rank", logging.Error(err))
			}

			name := firstNonEmpty(profile.DisplayName, profile.Username, req.User.DisplayName)
			return ok(r.view.Profile(name, profile, guildRank, globalRank))
		},
	}
}

func (r *Registry) rankCommand() *Command {
	return &Command{
		Name:        "rank",
		Description: "View server leaderboard",
		Usage:       r.deps.Prefix + "rank",
		Run: func(ctx context.Context, req *Request) Result {
			top, err := r.deps.Profiles.TopByGuild(ctx, req.GuildID, leaderboardSize)
			if err != nil {
				r.logger.Error("Failed to load guild leaderboard", logging.String("guild_id", req.GuildID), logging.Error(err))
				return fail(r.view.UnexpectedError())
			}

			entries := make([]LeaderboardEntry, 0, len(top))
			for _, st := range top {
				level := 1
				name := st.Nickname
				if profile, err := r.deps.Profiles.GetProfile(ctx, st.UserID); err == nil {
					level = profile.CurrentLevel
					name = firstNonEmpty(name, profile.DisplayName, profile.Username)
				}
				entries = append(entries, LeaderboardEntry{
					Name:    firstNonEmpty(name, anonymousName(st.UserID)),
					Level:   level,
					Minutes: st.MinutesListened,
				})
			}

			userRank, _ := r.deps.Profiles.GuildRank(ctx, req.GuildID, req.User.UserID, rankWindow)
			guildName := firstNonEmpty(req.GuildName, "Server")
			return ok(r.view.GuildLeaderboard(guildName, entries, userRank))
		},
	}
}

func (r *Registry) globalRankCommand() *Command {
	return &Command{
		Name:        "globalrank",
		Description: "View global leaderboard",
		Usage:       r.deps.Prefix + "globalrank",
		Run: func(ctx context.Context, req *Request) Result {
			top, err := r.deps.Profiles.TopGlobal(ctx, leaderboardSize)
			if err != nil {
				r.logger.Error("Failed to load global leaderboard", logging.Error(err))
				return fail(r.view.UnexpectedError())
			}

			entries := make([]LeaderboardEntry, 0, len(top))
			for _, p := range top {
				entries = append(entries, LeaderboardEntry{
					Name:    firstNonEmpty(p.DisplayName, p.Username, anonymousName(p.UserID)),
					Level:   p.CurrentLevel,
					Minutes: p.TotalMinutesListened,
				})
			}

			userRank, _ := r.deps.Profiles.GlobalRank(ctx, req.User.UserID, rankWindow)
			return ok(r.view.GlobalLeaderboard(entries, userRank))
		},
	}
}

func anonymousName(userID string) string {
	if len(userID) > 4 {
		userID = userID[len(userID)-4:]
	}
	return fmt.Sprintf("User %s", userID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
