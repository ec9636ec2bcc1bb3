package service

import (
	"sync"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/llm"

	"github.com/google/uuid"
)

// Session holds one conversation. Callers hold Lock for the whole turn, so
// concurrent requests on the same session are serialized.
type Session struct {
	ID string

	mu       sync.Mutex
	history  []llm.Message
	lastUsed time.Time
}

func (s *Session) Lock() {
	s.mu.Lock()
}

func (s *Session) Unlock() {
	s.mu.Unlock()
}

// History returns a copy; call with the session locked
func (s *Session) History() []llm.Message {
	return append([]llm.Message(nil), s.history...)
}

// Append records messages and keeps only the newest limit entries; call with the session locked
func (s *Session) Append(limit int, messages ...llm.Message) {
	s.history = append(s.history, messages...)
	if limit > 0 && len(s.history) > limit {
		s.history = append([]llm.Message(nil), s.history[len(s.history)-limit:]...)
	}
}

// SessionStore maps session ids to sessions with atomic get-or-create
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	clock    func() time.Time
}

func NewSessionStore(clock func() time.Time) *SessionStore {
	if clock == nil {
		clock = time.Now
	}
	return &SessionStore{sessions: make(map[string]*Session), clock: clock}
}

// GetOrCreate returns the session for id, creating it if needed. A blank id gets a new uuid.
func (store *SessionStore) GetOrCreate(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	session, ok := store.sessions[id]
	if !ok {
		session = &Session{ID: id}
		store.sessions[id] = session
	}
	session.lastUsed = store.clock()
	return session
}

func (store *SessionStore) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.sessions)
}

// Evict drops sessions idle for longer than maxIdle and returns how many were removed
func (store *SessionStore) Evict(maxIdle time.Duration) int {
	cutoff := store.clock().Add(-maxIdle)

	store.mu.Lock()
	defer store.mu.Unlock()

	removed := 0
	for id, session := range store.sessions {
		if session.lastUsed.Before(cutoff) {
			delete(store.sessions, id)
			removed++
		}
	}
	return removed
}
