// Package ssesession implements the SessionManager (spec §4.3): the
// concurrent session map a Category Server's SSE transport uses for
// admission control and idle eviction.
package ssesession

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ClientInfo is the caller metadata recorded when a session is created.
type ClientInfo struct {
	RemoteAddr string
	UserAgent  string
}

// Session is an immutable snapshot of one open GET /sse stream.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	Client       ClientInfo
}

type entry struct {
	mu   sync.Mutex
	sess Session
}

// Manager owns the concurrent session map, enforcing max_connections on
// admission and evicting on idle timeout (spec §4.3: "purely time-based;
// the cap produces admission failure, not LRU eviction").
type Manager struct {
	mu             sync.RWMutex
	sessions       map[string]*entry
	maxConnections int
	sessionTimeout time.Duration
}

// NewManager creates a Manager with the given admission cap and idle
// timeout.
func NewManager(maxConnections int, sessionTimeout time.Duration) *Manager {
	return &Manager{
		sessions:       make(map[string]*entry),
		maxConnections: maxConnections,
		sessionTimeout: sessionTimeout,
	}
}

// CreateSession allocates a new session for client, or returns (Session{},
// false) if the manager is already at max_connections.
func (m *Manager) CreateSession(client ClientInfo) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxConnections {
		return Session{}, false
	}

	now := time.Now()
	sess := Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastActivity: now,
		Client:       client,
	}
	m.sessions[sess.ID] = &entry{sess: sess}
	return sess, true
}

// GetSession returns a snapshot of the session with id, if live.
func (m *Manager) GetSession(id string) (Session, bool) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess, true
}

// TouchSession updates last_activity to now for id. No-op if id is unknown
// (the session may have just been evicted).
func (m *Manager) TouchSession(id string) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.sess.LastActivity = time.Now()
	e.mu.Unlock()
}

// RemoveSession deletes id unconditionally, used on client disconnect and
// by the cleanup loop.
func (m *Manager) RemoveSession(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle removes every session whose last activity is older than the
// configured session_timeout, returning how many were removed. Exposed
// directly so tests can drive eviction deterministically without sleeping
// through a full interval.
func (m *Manager) EvictIdle() int {
	cutoff := time.Now().Add(-m.sessionTimeout)
	var stale []string

	m.mu.RLock()
	for id, e := range m.sessions {
		e.mu.Lock()
		last := e.sess.LastActivity
		e.mu.Unlock()
		if last.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}
	m.mu.Lock()
	for _, id := range stale {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	return len(stale)
}

// StartCleanupTask spawns a background loop that calls EvictIdle every
// interval until ctx is canceled. Cancellation-safe: the goroutine exits
// cleanly on ctx.Done without leaking.
func (m *Manager) StartCleanupTask(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.EvictIdle(); n > 0 {
					log.Printf("[SessionManager] evicted %d idle session(s)", n)
				}
			}
		}
	}()
}
