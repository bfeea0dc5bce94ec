package terminal

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager maps session ids to sessions. Sessions never share state.
type Manager struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions share deps.
func NewManager(deps Deps) *Manager {
	deps.withDefaults()
	return &Manager{deps: deps, sessions: make(map[string]*Session)}
}

// Create opens a new session with a random id.
func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.deps)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	if m.deps.Metrics != nil {
		m.deps.Metrics.Sessions.Set(float64(n))
	}
	m.deps.Logger.Info("session opened", "session", s.ID())
	return s
}

// Get returns the session with the given id, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Close removes a session. It reports whether the session existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if ok {
		if m.deps.Metrics != nil {
			m.deps.Metrics.Sessions.Set(float64(n))
		}
		m.deps.Logger.Info("session closed", "session", id)
	}
	return ok
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupIdle removes sessions unused for longer than idle and returns how
// many were removed. Work in progress on those sessions is discarded.
func (m *Manager) CleanupIdle(idle time.Duration) int {
	cutoff := m.deps.Now().Add(-idle)

	m.mu.Lock()
	removed := 0
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if removed > 0 {
		if m.deps.Metrics != nil {
			m.deps.Metrics.Sessions.Set(float64(n))
		}
		m.deps.Logger.Info("idle sessions removed", "count", removed)
	}
	return removed
}
