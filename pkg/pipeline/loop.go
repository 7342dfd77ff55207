package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/latoulicious/lofi-bot/pkg/logging"
)

// run is the session's event loop. It exits after teardown.
func (m *Manager) run(s *Session) {
	defer close(s.done)

	for {
		select {
		case msg := <-s.inbox:
			if m.handleMessage(s, msg) {
				return
			}
		case ev := <-s.conn.Events():
			if m.handleConnectionEvent(s, ev) {
				return
			}
		case ev := <-s.player.Events():
			m.handlePlayerEvent(s, ev)
		}
	}
}

func (m *Manager) handleMessage(s *Session, msg interface{}) bool {
	switch msg := msg.(type) {
	case startCmd:
		m.startStream(s, msg.url, msg.fresh)
		close(msg.done)
	case stopCmd:
		m.stopStream(s)
		close(msg.done)
	case teardownCmd:
		m.teardown(s, msg.reason)
		close(msg.done)
		return true
	case reconnectDue:
		if msg.seq != s.reconnectSeq || !s.playing {
			s.logger.Debug("Reconnection abandoned, stream no longer wanted")
			return false
		}
		m.metrics.Reconnects.Inc()
		s.logger.Info("Reconnecting stream", logging.String("url", s.streamURL), logging.Int("attempt", s.reconnectAttempts))
		m.startStream(s, s.streamURL, false)
	case graceExpired:
		if msg.seq != s.graceSeq || !s.awaitingRecovery {
			return false
		}
		s.logger.Warn("Voice connection did not recover", logging.Duration("grace", m.cfg.Voice.DisconnectGrace))
		return m.closeFromLoop(s, "disconnected")
	}
	return false
}

func (m *Manager) startStream(s *Session, url string, fresh bool) {
	s.cancelReconnect()

	s.mu.Lock()
	if fresh {
		s.reconnectAttempts = 0
	}
	s.playing = true
	s.streamURL = url
	old := s.process
	s.process = nil
	s.resource = nil
	s.mu.Unlock()
	s.killProcess(old)

	proc, err := m.deps.Pipelines.CreatePipeline(s.ctx, url)
	if s.ctx.Err() != nil {
		// Cleanup is under way; the teardown command follows.
		if err == nil {
			s.killProcess(proc)
		}
		return
	}
	if err != nil {
		m.streamFailed(s, fmt.Errorf("%w: %w", ErrStreamStartFailure, err), "pipeline")
		return
	}

	res, err := m.deps.Resources.NewResource(proc.Stdout())
	if err != nil {
		s.killProcess(proc)
		m.streamFailed(s, fmt.Errorf("%w: %w", ErrStreamStartFailure, err), "resource")
		return
	}

	s.mu.Lock()
	s.process = proc
	s.resource = res
	s.reconnectAttempts = 0
	s.state = StatePlaying
	s.streamStartedAt = time.Now()
	s.mu.Unlock()

	s.player.Play(res)
	m.metrics.StreamStarts.Inc()
	s.logger.Info("Stream started", logging.String("url", url))
}

func (m *Manager) stopStream(s *Session) {
	s.cancelReconnect()

	s.mu.Lock()
	s.playing = false
	s.state = StateStopped
	s.mu.Unlock()

	s.killProcess(s.detachProcess())
	s.player.Stop()
	s.logger.Info("Stream stopped")
}

// streamFailed either schedules a restart of the current URL or, once the
// attempt ceiling is reached, stops the session.
func (m *Manager) streamFailed(s *Session, cause error, reason string) {
	m.metrics.StreamFailures.WithLabelValues(reason).Inc()
	proc := s.detachProcess()

	s.mu.Lock()
	if s.reconnectAttempts >= m.cfg.Recovery.MaxAttempts {
		s.playing = false
		s.state = StateStopped
		attempts := s.reconnectAttempts
		s.mu.Unlock()

		s.killProcess(proc)
		s.player.Stop()
		m.metrics.ReconnectExhausted.Inc()
		s.logger.Error("Giving up on stream",
			logging.Error(fmt.Errorf("%w: %w", ErrReconnectExhausted, cause)),
			logging.Int("attempts", attempts),
		)
		return
	}
	s.reconnectAttempts++
	attempt := s.reconnectAttempts
	s.state = StateReconnecting
	s.mu.Unlock()

	s.killProcess(proc)
	s.logger.Warn("Stream failed, scheduling reconnect",
		logging.Error(cause),
		logging.Int("attempt", attempt),
		logging.Int("max_attempts", m.cfg.Recovery.MaxAttempts),
		logging.Duration("delay", m.cfg.Recovery.Delay),
	)

	s.cancelReconnect()
	seq := s.reconnectSeq
	s.reconnectTimer = time.AfterFunc(m.cfg.Recovery.Delay, func() {
		s.post(reconnectDue{seq: seq})
	})
}

func (m *Manager) handlePlayerEvent(s *Session, ev PlayerEvent) {
	if ev.Resource == nil || ev.Resource != s.resource {
		s.logger.Debug("Dropping event from replaced resource", logging.String("status", ev.Status.String()))
		return
	}

	switch ev.Status {
	case PlayerPlaying:
		s.logger.Debug("Player is playing")
	case PlayerIdle:
		if !s.playing {
			return
		}
		s.logger.Warn("Stream ended unexpectedly")
		m.streamFailed(s, io.EOF, "idle")
	case PlayerError:
		if !s.playing {
			return
		}
		s.logger.Error("Player error", logging.Error(ev.Err))
		m.streamFailed(s, ev.Err, "player")
	}
}

func (m *Manager) handleConnectionEvent(s *Session, ev ConnectionEvent) bool {
	switch ev.Status {
	case ConnectionDisconnected:
		if s.awaitingRecovery {
			return false
		}
		s.logger.Warn("Voice connection lost, waiting for recovery", logging.Duration("grace", m.cfg.Voice.DisconnectGrace))
		s.cancelGrace()
		s.awaitingRecovery = true
		seq := s.graceSeq
		s.graceTimer = time.AfterFunc(m.cfg.Voice.DisconnectGrace, func() {
			s.post(graceExpired{seq: seq})
		})
	case ConnectionSignalling, ConnectionConnecting, ConnectionReady:
		if s.awaitingRecovery {
			s.logger.Info("Voice connection recovering", logging.String("status", ev.Status.String()))
			s.cancelGrace()
		}
	case ConnectionDestroyed:
		return m.closeFromLoop(s, "destroyed")
	}
	return false
}

// closeFromLoop tears the session down from inside its own loop. When the
// registry entry is already gone an external Cleanup owns the teardown and
// its command is still on the way, so the loop keeps running.
func (m *Manager) closeFromLoop(s *Session, reason string) bool {
	if !m.store.remove(s) {
		return false
	}
	m.metrics.ActiveSessions.Dec()
	m.teardown(s, reason)
	return true
}

func (m *Manager) teardown(s *Session, reason string) {
	s.logger.Info("Cleaning up audio session", logging.String("reason", reason))

	s.cancelReconnect()
	s.cancelGrace()
	s.cancel()

	s.mu.Lock()
	s.playing = false
	s.state = StateClosed
	s.mu.Unlock()

	s.killProcess(s.detachProcess())
	s.player.Stop()
	s.conn.Destroy()

	m.metrics.Cleanups.WithLabelValues(reason).Inc()
}
