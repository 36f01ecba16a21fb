// Package session keeps the in-memory registries of authenticated sessions
// and temporary URLs. Both are plain maps guarded by RW mutexes; periodic
// sweeps evict expired entries and hand the survivors to the backup layer.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genoweb/genoserve/internal/models"
)

// Manager owns all live sessions keyed by token.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	lifetime time.Duration
}

// NewManager creates a session manager with the given session lifetime.
func NewManager(lifetime time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]models.Session),
		lifetime: lifetime,
	}
}

// Create mints a new session with a fresh token and registers it.
func (m *Manager) Create(userID int64, login, name string, isDBToken bool) models.Session {
	s := models.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		UserLogin: login,
		UserName:  name,
		LoginTime: time.Now(),
		IsDBToken: isDBToken,
	}
	m.Add(s)
	return s
}

// Add registers an existing session, e.g. one restored from the backup.
func (m *Manager) Add(s models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
}

// Get returns the session for a token, or the empty sentinel when the token
// is unknown.
func (m *Manager) Get(token string) models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[token]
}

// Remove drops a session. Removing an unknown token is an error.
func (m *Manager) Remove(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return fmt.Errorf("session %s does not exist", token)
	}
	delete(m.sessions, token)
	return nil
}

// IsExpired reports whether the session's lifetime has elapsed.
func (m *Manager) IsExpired(s models.Session) bool {
	return time.Since(s.LoginTime) > m.lifetime
}

// IsValid reports whether a token belongs to a live, unexpired session.
func (m *Manager) IsValid(token string) bool {
	s := m.Get(token)
	return !s.IsEmpty() && !m.IsExpired(s)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// All returns a snapshot of every live session.
func (m *Manager) All() []models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// SweepExpired removes every expired session and returns the evicted
// entries together with the surviving ones.
func (m *Manager) SweepExpired() (evicted, survivors []models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, s := range m.sessions {
		if time.Since(s.LoginTime) > m.lifetime {
			evicted = append(evicted, s)
			delete(m.sessions, token)
			continue
		}
		survivors = append(survivors, s)
	}
	return evicted, survivors
}
