package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the open sessions by peer id.
type Registry struct {
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
}

// NewRegistry ...
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// AddSession adds session, replacing and returning any session already
// registered under the same id.
func (r *Registry) AddSession(session *Session) (replaced *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced = r.sessions[session.ID()]
	r.sessions[session.ID()] = session
	return replaced
}

// GetSession ...
func (r *Registry) GetSession(id uuid.UUID) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// RemoveSession removes session if it is still the one registered under its id.
func (r *Registry) RemoveSession(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[session.ID()] == session {
		delete(r.sessions, session.ID())
	}
}

// GetSessions ...
func (r *Registry) GetSessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// Len ...
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
