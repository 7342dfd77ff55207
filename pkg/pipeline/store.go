package pipeline

import (
	"sort"
	"sync"
)

// Store is the registry of guild sessions. It is handed to NewManager so
// the owner decides its lifetime; only the Manager mutates it.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	pending  map[string]struct{}
}

// NewStore returns an empty registry.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		pending:  make(map[string]struct{}),
	}
}

func (s *Store) get(guildID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[guildID]
	return sess, ok
}

// reserve marks a join in flight. It fails when the guild already has a
// session or another join.
func (s *Store) reserve(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[guildID]; ok {
		return false
	}
	if _, ok := s.pending[guildID]; ok {
		return false
	}
	s.pending[guildID] = struct{}{}
	return true
}

func (s *Store) release(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, guildID)
}

// commit turns a reservation into a registered session.
func (s *Store) commit(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, sess.guildID)
	s.sessions[sess.guildID] = sess
}

// remove deletes the entry only if it still refers to sess.
func (s *Store) remove(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[sess.guildID]
	if !ok || cur != sess {
		return false
	}
	delete(s.sessions, sess.guildID)
	return true
}

// Len returns the number of registered sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// all returns the registered sessions ordered by guild ID.
func (s *Store) all() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].guildID < out[j].guildID })
	return out
}
