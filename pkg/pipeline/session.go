package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

// Session is the audio session of one guild. Its fields are written only by
// the session's event loop; the mutex lets other goroutines take snapshots.
type Session struct {
	guildID   string
	channelID string
	conn      Connection
	player    Player
	logger    logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	inbox chan interface{}
	done  chan struct{}

	mu                sync.RWMutex
	state             SessionState
	playing           bool
	reconnectAttempts int
	streamURL         string
	process           Process
	resource          Resource
	joinedAt          time.Time
	streamStartedAt   time.Time

	// loop-owned
	reconnectSeq     uint64
	reconnectTimer   *time.Timer
	graceSeq         uint64
	graceTimer       *time.Timer
	awaitingRecovery bool
}

type startCmd struct {
	url   string
	fresh bool
	done  chan struct{}
}

type stopCmd struct {
	done chan struct{}
}

type teardownCmd struct {
	reason string
	done   chan struct{}
}

type reconnectDue struct {
	seq uint64
}

type graceExpired struct {
	seq uint64
}

func newSession(guildID, channelID string, conn Connection, player Player, logger logging.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		guildID:   guildID,
		channelID: channelID,
		conn:      conn,
		player:    player,
		logger:    logger.With(logging.String("guild_id", guildID), logging.String("channel_id", channelID)),
		ctx:       ctx,
		cancel:    cancel,
		inbox:     make(chan interface{}, 16),
		done:      make(chan struct{}),
		state:     StateIdle,
		joinedAt:  time.Now(),
	}
}

// post delivers msg to the event loop. It reports false once the loop has
// exited.
func (s *Session) post(msg interface{}) bool {
	select {
	case s.inbox <- msg:
		return true
	case <-s.done:
		return false
	}
}

// call posts a command and waits for the loop to finish it.
func (s *Session) call(msg interface{}, reply chan struct{}) bool {
	if !s.post(msg) {
		return false
	}
	select {
	case <-reply:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		GuildID:           s.guildID,
		ChannelID:         s.channelID,
		State:             s.state,
		StateName:         s.state.String(),
		Playing:           s.playing,
		ReconnectAttempts: s.reconnectAttempts,
		StreamURL:         s.streamURL,
		HasProcess:        s.process != nil,
		JoinedAt:          s.joinedAt,
	}
	if !s.streamStartedAt.IsZero() {
		started := s.streamStartedAt
		snap.StreamStartedAt = &started
	}
	return snap
}

// detachProcess clears the process and resource and returns the process for
// the caller to kill outside the lock.
func (s *Session) detachProcess() Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	proc := s.process
	s.process = nil
	s.resource = nil
	return proc
}

func (s *Session) cancelReconnect() {
	s.reconnectSeq++
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

func (s *Session) cancelGrace() {
	s.graceSeq++
	s.awaitingRecovery = false
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

func (s *Session) killProcess(proc Process) {
	if proc == nil {
		return
	}
	if err := proc.Kill(); err != nil {
		s.logger.Warn("Failed to kill stream process", logging.Error(err))
	}
}
