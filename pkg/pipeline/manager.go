package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

// Manager owns the audio sessions of every guild the bot serves.
type Manager struct {
	cfg     *Config
	store   *Store
	deps    Dependencies
	logger  logging.Logger
	metrics *Metrics
}

// NewManager creates a manager over store. A nil config, logger or metrics
// falls back to defaults.
func NewManager(cfg *Config, store *Store, deps Dependencies, logger logging.Logger, metrics *Metrics) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = NewStore()
	}
	if logger == nil {
		logger = logging.NullLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Manager{
		cfg:     cfg,
		store:   store,
		deps:    deps,
		logger:  logger.With(logging.String("component", "audio")),
		metrics: metrics,
	}, nil
}

// HasSession reports whether guildID has a registered session.
func (m *Manager) HasSession(guildID string) bool {
	_, ok := m.store.get(guildID)
	return ok
}

// GetSession returns a snapshot of the guild's session.
func (m *Manager) GetSession(guildID string) (Snapshot, bool) {
	s, ok := m.store.get(guildID)
	if !ok {
		return Snapshot{}, false
	}
	return s.snapshot(), true
}

// Sessions returns snapshots of all registered sessions.
func (m *Manager) Sessions() []Snapshot {
	sessions := m.store.all()
	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.snapshot())
	}
	return out
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	return m.store.Len()
}

// Join connects to a voice channel and registers a session for the guild.
// Nothing is registered when the connection cannot be made ready within the
// join timeout.
func (m *Manager) Join(ctx context.Context, guildID, channelID string) (Snapshot, error) {
	if !m.store.reserve(guildID) {
		return Snapshot{}, ErrSessionExists
	}
	committed := false
	defer func() {
		if !committed {
			m.store.release(guildID)
		}
	}()

	logger := m.logger.With(logging.String("guild_id", guildID), logging.String("channel_id", channelID))
	logger.Info("Joining voice channel")

	started := time.Now()
	joinCtx, cancel := context.WithTimeout(ctx, m.cfg.Voice.JoinTimeout)
	defer cancel()

	conn, err := m.deps.Gateway.Join(joinCtx, guildID, channelID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrConnectionTimeout) {
			m.metrics.Joins.WithLabelValues("timeout").Inc()
			logger.Error("Voice connection timed out", logging.Duration("timeout", m.cfg.Voice.JoinTimeout))
			return Snapshot{}, fmt.Errorf("%w: guild %s: %v", ErrConnectionTimeout, guildID, err)
		}
		m.metrics.Joins.WithLabelValues("error").Inc()
		logger.Error("Failed to join voice channel", logging.Error(err))
		return Snapshot{}, fmt.Errorf("%w: guild %s: %v", ErrConnectionError, guildID, err)
	}

	player := m.deps.Players.NewPlayer()
	conn.Subscribe(player)

	s := newSession(guildID, channelID, conn, player, m.logger)
	m.store.commit(s)
	committed = true

	m.metrics.Joins.WithLabelValues("ok").Inc()
	m.metrics.JoinDuration.Observe(time.Since(started).Seconds())
	m.metrics.ActiveSessions.Inc()

	go m.run(s)

	logger.Info("Joined voice channel", logging.Duration("took", time.Since(started)))
	return s.snapshot(), nil
}

// StartStream plays url in the guild's session, replacing any running
// stream. Failures to start are handled by the session's reconnection
// policy and are not returned.
func (m *Manager) StartStream(guildID, url string) error {
	s, ok := m.store.get(guildID)
	if !ok {
		return ErrNoSession
	}
	done := make(chan struct{})
	if !s.call(startCmd{url: url, fresh: true, done: done}, done) {
		return ErrNoSession
	}
	return nil
}

// StopStream stops playback but keeps the session and its connection.
func (m *Manager) StopStream(guildID string) {
	s, ok := m.store.get(guildID)
	if !ok {
		return
	}
	done := make(chan struct{})
	s.call(stopCmd{done: done}, done)
}

// Cleanup removes the guild's session and releases its connection and
// process. It is idempotent and safe to call concurrently.
func (m *Manager) Cleanup(guildID string) {
	m.cleanup(guildID, "requested")
}

// CleanupAll tears down every session.
func (m *Manager) CleanupAll() {
	sessions := m.store.all()
	if len(sessions) == 0 {
		return
	}
	m.logger.Info("Cleaning up all audio sessions", logging.Int("count", len(sessions)))

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(guildID string) {
			defer wg.Done()
			m.cleanup(guildID, "shutdown")
		}(s.guildID)
	}
	wg.Wait()
}

func (m *Manager) cleanup(guildID, reason string) {
	s, ok := m.store.get(guildID)
	if !ok {
		return
	}
	if !m.store.remove(s) {
		return
	}
	m.metrics.ActiveSessions.Dec()
	// Aborts a start blocked in CreatePipeline so the loop can take the
	// teardown command.
	s.cancel()

	done := make(chan struct{})
	s.call(teardownCmd{reason: reason, done: done}, done)
}
