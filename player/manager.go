package player

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Session is one managed playback session: a Player plus registry bookkeeping.
type Session struct {
	Key       string
	Player    *Player
	StartedAt time.Time
}

// Manager tracks named playback sessions for hosts that drive several
// players at once. Removing a session closes its player.
type Manager struct {
	log      *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. If log is nil, slog.Default() is used.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:      log.With("component", "session-manager"),
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session under key with a fresh, unopened Player.
// Returns the session and true if created, or nil and false when the key is
// already taken.
func (m *Manager) Create(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[key]; ok {
		m.log.Warn("session already exists, rejecting duplicate", "key", key)
		return nil, false
	}

	s := &Session{
		Key:       key,
		Player:    New(m.log.With("session", key)),
		StartedAt: time.Now(),
	}

	m.sessions[key] = s
	m.log.Info("session created", "key", key)
	return s, true
}

// Get returns the session registered under key.
func (m *Manager) Get(key string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	return s, ok
}

// Remove unregisters the session and closes its player. Unknown keys are
// ignored. The close happens outside the lock: a player blocked in its
// frame callback must not stall other registry calls.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if ok {
		s.Player.Close()
		m.log.Info("session removed", "key", key)
	}
}

// List returns all registered sessions, ordered by key.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Key < sessions[j].Key })
	return sessions
}

// CloseAll removes every session, closing each player.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Player.Close()
	}
}
