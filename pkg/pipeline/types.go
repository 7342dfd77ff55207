package pipeline

import "time"

// SessionState is the named state of a guild audio session.
type SessionState int

const (
	StateIdle SessionState = iota
	StatePlaying
	StateReconnecting
	StateStopped
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionStatus is reported by a voice Connection.
type ConnectionStatus int

const (
	ConnectionReady ConnectionStatus = iota
	ConnectionSignalling
	ConnectionConnecting
	ConnectionDisconnected
	ConnectionDestroyed
)

func (s ConnectionStatus) String() string {
	switch s {
	case ConnectionReady:
		return "ready"
	case ConnectionSignalling:
		return "signalling"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// ConnectionEvent is a status transition of a voice connection.
type ConnectionEvent struct {
	Status ConnectionStatus
	Err    error
}

// PlayerStatus is reported by a Player.
type PlayerStatus int

const (
	PlayerIdle PlayerStatus = iota
	PlayerPlaying
	PlayerError
)

func (s PlayerStatus) String() string {
	switch s {
	case PlayerIdle:
		return "idle"
	case PlayerPlaying:
		return "playing"
	case PlayerError:
		return "error"
	default:
		return "unknown"
	}
}

// PlayerEvent is a status transition of a player. Resource identifies the
// resource the event belongs to.
type PlayerEvent struct {
	Status   PlayerStatus
	Resource Resource
	Err      error
}

// VoiceMembership describes one side of a member's voice state change. An
// empty ChannelID means the member is not in any voice channel.
type VoiceMembership struct {
	GuildID   string
	ChannelID string
	UserID    string
	Bot       bool
}

// Snapshot is a read-only copy of a session, safe to hand to callers.
type Snapshot struct {
	GuildID           string       `json:"guild_id"`
	ChannelID         string       `json:"channel_id"`
	State             SessionState `json:"-"`
	StateName         string       `json:"state"`
	Playing           bool         `json:"playing"`
	ReconnectAttempts int          `json:"reconnect_attempts"`
	StreamURL         string       `json:"stream_url,omitempty"`
	HasProcess        bool         `json:"has_process"`
	JoinedAt          time.Time    `json:"joined_at"`
	StreamStartedAt   *time.Time   `json:"stream_started_at,omitempty"`
}
