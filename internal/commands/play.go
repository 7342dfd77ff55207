package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/latoulicious/lofi-bot/pkg/database"
	"github.com/latoulicious/lofi-bot/pkg/logging"
	"github.com/latoulicious/lofi-bot/pkg/pipeline"
)

func (r *Registry) playCommand() *Command {
	return &Command{
		Name:        "play",
		Aliases:     []string{"p"},
		Description: "Play a radio station in your voice channel",
		Usage:       r.deps.Prefix + "play [station name or id]",
		Run:         r.play,
	}
}

func (r *Registry) play(ctx context.Context, req *Request) Result {
	channelID, inVoice := r.deps.Voice.UserVoiceChannel(req.GuildID, req.User.UserID)
	if !inVoice {
		return fail(r.view.NotInVoiceChannel())
	}

	if r.deps.Audio.HasSession(req.GuildID) {
		return fail(r.view.AlreadyPlaying())
	}

	query := strings.Join(req.Args, " ")
	station, err := r.deps.Stations.Resolve(ctx, query)
	if errors.Is(err, database.ErrStationNotFound) {
		return fail(r.view.StationNotFound(query))
	}
	if err != nil {
		r.logger.Error("Failed to resolve station", logging.String("query", query), logging.Error(err))
		return fail(r.view.UnexpectedError())
	}

	logger := r.logger.With(
		logging.String("command", "play"),
		logging.String("guild_id", req.GuildID),
		logging.Int64("station_id", station.ID))

	// A failed Join registers nothing, so any session under this guild
	// belongs to someone else and is left alone.
	if _, err := r.deps.Audio.Join(ctx, req.GuildID, channelID); err != nil {
		if errors.Is(err, pipeline.ErrSessionExists) {
			return fail(r.view.AlreadyPlaying())
		}
		logger.Error("Failed to play station", logging.Error(err))
		return fail(r.view.FailedToJoin())
	}

	if err := r.deps.Audio.StartStream(req.GuildID, station.URL); err != nil {
		logger.Error("Failed to play station", logging.Error(err))
		r.deps.Audio.Cleanup(req.GuildID)
		return fail(r.view.FailedToJoin())
	}

	r.deps.SessionsChanged()
	logger.Info("Now playing", logging.String("station", station.Name))
	return ok(r.view.NowPlaying(station.Name))
}

func (r *Registry) stopCommand() *Command {
	return &Command{
		Name:        "stop",
		Aliases:     []string{"leave"},
		Description: "Stop playing and leave the voice channel",
		Usage:       r.deps.Prefix + "stop",
		Run: func(ctx context.Context, req *Request) Result {
			if !r.deps.Audio.HasSession(req.GuildID) {
				return fail(r.view.NotPlaying())
			}

			r.deps.Audio.Cleanup(req.GuildID)
			r.deps.SessionsChanged()
			return ok(r.view.Stopped())
		},
	}
}
