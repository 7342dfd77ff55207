package commands

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/latoulicious/lofi-bot/internal/services"
	"github.com/latoulicious/lofi-bot/pkg/database"
	"github.com/latoulicious/lofi-bot/pkg/logging"
)

func (r *Registry) stationsCommand() *Command {
	return &Command{
		Name:        "stations",
		Description: "List available radio stations",
		Usage:       r.deps.Prefix + "stations",
		Run: func(ctx context.Context, req *Request) Result {
			stations, err := r.deps.Stations.All(ctx)
			if err != nil {
				r.logger.Error("Failed to list stations", logging.Error(err))
				return fail(r.view.UnexpectedError())
			}
			return ok(r.view.StationList(stations))
		},
	}
}

func (r *Registry) addStationCommand() *Command {
	cmd := &Command{
		Name:        "addstation",
		Description: "Add a new radio station",
		Usage:       r.deps.Prefix + "addstation <name> <url> [description]",
		AdminOnly:   true,
	}
	cmd.Run = func(ctx context.Context, req *Request) Result {
		if len(req.Args) < 2 {
			return fail(r.view.InvalidUsage(cmd.Usage))
		}

		name, url := req.Args[0], req.Args[1]
		description := strings.Join(req.Args[2:], " ")

		station, err := r.deps.Stations.Add(ctx, name, url, description)
		switch {
		case errors.Is(err, database.ErrStationExists):
			return fail(r.view.StationAlreadyExists(name))
		case errors.Is(err, services.ErrInvalidStationURL):
			return fail(r.view.InvalidUsage(cmd.Usage))
		case err != nil:
			r.logger.Error("Failed to add station",
				logging.String("command", "addstation"),
				logging.String("name", name),
				logging.Error(err))
			return fail("Failed to add station. Please try again.")
		}
		return ok(r.view.StationAdded(station))
	}
	return cmd
}

func (r *Registry) removeStationCommand() *Command {
	cmd := &Command{
		Name:        "removestation",
		Description: "Remove a radio station",
		Usage:       r.deps.Prefix + "removestation <id>",
		AdminOnly:   true,
	}
	cmd.Run = func(ctx context.Context, req *Request) Result {
		id, valid := parseStationID(req.Args)
		if !valid {
			return fail(r.view.InvalidUsage(cmd.Usage))
		}

		removed, err := r.deps.Stations.Remove(ctx, id)
		if err != nil {
			r.logger.Error("Failed to remove station",
				logging.String("command", "removestation"),
				logging.Int64("station_id", id),
				logging.Error(err))
			return fail("Failed to remove station. Please try again.")
		}
		if !removed {
			return fail(r.view.StationNotFoundByID(id))
		}
		return ok(r.view.StationRemoved(id))
	}
	return cmd
}

func (r *Registry) setDefaultCommand() *Command {
	cmd := &Command{
		Name:        "setdefault",
		Description: "Set the station played by a bare play",
		Usage:       r.deps.Prefix + "setdefault <id>",
		AdminOnly:   true,
	}
	cmd.Run = func(ctx context.Context, req *Request) Result {
		id, valid := parseStationID(req.Args)
		if !valid {
			return fail(r.view.InvalidUsage(cmd.Usage))
		}

		station, err := r.deps.Stations.SetDefault(ctx, id)
		if errors.Is(err, database.ErrStationNotFound) {
			return fail(r.view.StationNotFoundByID(id))
		}
		if err != nil {
			r.logger.Error("Failed to set default station", logging.Int64("station_id", id), logging.Error(err))
			return fail(r.view.UnexpectedError())
		}
		return ok(r.view.StationSetDefault(station))
	}
	return cmd
}

func parseStationID(args []string) (int64, bool) {
	if len(args) < 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
