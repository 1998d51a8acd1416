// Package memory provides an in-memory conversation store for multi-turn
// interactions. It backs deployments without a configured database; for
// durable history use the postgres repository.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/okrdocs/docqa/internal/repository"
)

// session holds the turn log for one session.
type session struct {
	turns     []*repository.Turn
	createdAt time.Time
	updatedAt time.Time
}

// Store provides in-memory, TTL-evicting conversation storage. It is safe
// for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	maxTurns int           // Max turns kept per session
	ttl      time.Duration // Time-to-live after last activity
}

// NewStore creates a new conversation memory store.
func NewStore(maxTurns int, ttl time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		maxTurns: maxTurns,
		ttl:      ttl,
	}

	// Start cleanup goroutine
	go s.cleanupLoop()

	return s
}

// DefaultStore creates a store with sensible defaults.
// - Max 10 turns per session
// - 1 hour TTL (session expires after 1 hour of inactivity)
func DefaultStore() *Store {
	return NewStore(10, 1*time.Hour)
}

// Append adds a turn to the session log.
func (s *Store) Append(_ context.Context, turn *repository.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[turn.SessionID]
	if !exists {
		sess = &session{createdAt: time.Now()}
		s.sessions[turn.SessionID] = sess
	}

	copied := *turn
	sess.turns = append(sess.turns, &copied)
	sess.updatedAt = time.Now()

	// Trim old turns if exceeding max (keep recent ones)
	if len(sess.turns) > s.maxTurns {
		sess.turns = sess.turns[len(sess.turns)-s.maxTurns:]
	}

	return nil
}

// History returns the most recent limit turns in chronological order.
func (s *Store) History(_ context.Context, sessionID string, limit int) ([]*repository.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return nil, nil
	}

	turns := sess.turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	// Return copies to avoid races with later appends
	out := make([]*repository.Turn, len(turns))
	for i, t := range turns {
		copied := *t
		out[i] = &copied
	}
	return out, nil
}

// ClearSession removes a session log from memory.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// cleanupLoop periodically removes expired sessions.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, sess := range s.sessions {
		if now.Sub(sess.updatedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

// Ensure Store implements ConversationRepository.
var _ repository.ConversationRepository = (*Store)(nil)
