package pipeline

import (
	"context"
	"io"
)

// Gateway opens voice connections. Join returns once the connection is ready
// or ctx is done.
type Gateway interface {
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Connection is a live voice connection for one guild.
type Connection interface {
	// Events delivers status transitions. The channel is never closed.
	Events() <-chan ConnectionEvent
	// Subscribe routes the player's audio into this connection.
	Subscribe(p Player)
	// Destroy leaves the channel and releases the connection. Safe to call
	// more than once.
	Destroy()
}

// Player plays one Resource at a time.
type Player interface {
	// Play replaces whatever is playing with res.
	Play(res Resource)
	Stop()
	// Events delivers status transitions. The channel is never closed.
	Events() <-chan PlayerEvent
}

// PlayerFactory creates a player for a new session.
type PlayerFactory interface {
	NewPlayer() Player
}

// Resource is a playable audio source producing encoded frames.
type Resource interface {
	// ReadFrame returns the next frame, or io.EOF once the source ends.
	ReadFrame() ([]byte, error)
}

// ResourceFactory wraps a process output stream into a Resource.
type ResourceFactory interface {
	NewResource(r io.Reader) (Resource, error)
}

// Process is a running transcoding process.
type Process interface {
	Stdout() io.Reader
	// Kill terminates the process. Safe to call more than once.
	Kill() error
}

// PipelineFactory spawns one transcoding process per call. The caller owns
// the returned process and must Kill it.
type PipelineFactory interface {
	CreatePipeline(ctx context.Context, sourceURL string) (Process, error)
}

// Roster answers membership questions from already-known state.
type Roster interface {
	HumansInChannel(guildID, channelID string) int
}

// Dependencies groups the platform collaborators of a Manager.
type Dependencies struct {
	Gateway   Gateway
	Players   PlayerFactory
	Resources ResourceFactory
	Pipelines PipelineFactory
	Roster    Roster
}

func (d Dependencies) validate() error {
	switch {
	case d.Gateway == nil:
		return errMissingDependency("gateway")
	case d.Players == nil:
		return errMissingDependency("player factory")
	case d.Resources == nil:
		return errMissingDependency("resource factory")
	case d.Pipelines == nil:
		return errMissingDependency("pipeline factory")
	case d.Roster == nil:
		return errMissingDependency("roster")
	}
	return nil
}
