package session

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"harvester/internal/core/platforms"
	"harvester/internal/logger"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is the per-job identity a scrape runs under: user agent, cookie
// state and activity accounting.
type Session struct {
	ID           string             `json:"id"`
	CreatedAt    time.Time          `json:"created_at"`
	UserAgent    string             `json:"user_agent"`
	Cookies      []string           `json:"cookies,omitempty"`
	LastActivity time.Time          `json:"last_activity"`
	RequestCount int                `json:"request_count"`
	Platform     platforms.Platform `json:"platform"`
	Active       bool               `json:"active"`
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Manager owns the session registry and the mutable identity pool.
type Manager struct {
	log *logger.Logger

	mu          sync.RWMutex
	sessions    map[string]*Session
	userAgents  []string
	rotateEvery int
	rng         *rand.Rand
	now         func() time.Time
}

func NewManager(rotateEvery int) *Manager {
	if rotateEvery <= 0 {
		rotateEvery = 50
	}
	return &Manager{
		log:         logger.New("SessionManager"),
		sessions:    make(map[string]*Session),
		userAgents:  append([]string(nil), defaultUserAgents...),
		rotateEvery: rotateEvery,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// Create allocates a session with a freshly drawn user agent.
func (m *Manager) Create(platform platforms.Platform) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{
		ID:           uuid.NewString(),
		CreatedAt:    m.now(),
		UserAgent:    m.userAgents[m.rng.Intn(len(m.userAgents))],
		LastActivity: m.now(),
		Platform:     platform,
		Active:       true,
	}
	m.sessions[s.ID] = s
	m.log.LogDebugf("created session %s for %s", s.ID, platform)
	return *s
}

func (m *Manager) Get(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *s, nil
}

// Touch accounts one request against the session. Every rotateEvery
// requests the user agent is swapped for a fresh one.
func (m *Manager) Touch(id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s.RequestCount++
	s.LastActivity = m.now()
	if s.RequestCount%m.rotateEvery == 0 {
		s.UserAgent = m.userAgents[m.rng.Intn(len(m.userAgents))]
		m.log.LogDebugf("rotated user agent for session %s after %d requests", id, s.RequestCount)
	}
	return *s, nil
}

func (m *Manager) AddCookies(id string, cookies []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Cookies = append(s.Cookies, cookies...)
	return nil
}

func (m *Manager) GetCookies(id string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]string(nil), s.Cookies...), nil
}

func (m *Manager) ClearCookies(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Cookies = nil
	return nil
}

func (m *Manager) Deactivate(id string) error { return m.setActive(id, false) }
func (m *Manager) Reactivate(id string) error { return m.setActive(id, true) }

func (m *Manager) setActive(id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Active = active
	return nil
}

// Sweep removes sessions older than maxAge regardless of activity and
// returns how many were dropped.
func (m *Manager) Sweep(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-maxAge)
	removed := 0
	for id, s := range m.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.log.LogInfof("swept %d expired sessions", removed)
	}
	return removed
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// AddUserAgent grows the identity pool.
func (m *Manager) AddUserAgent(ua string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userAgents = append(m.userAgents, ua)
}

// RemoveUserAgent shrinks the identity pool. The last entry cannot be
// removed; sessions always need something to rotate to.
func (m *Manager) RemoveUserAgent(ua string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.userAgents) <= 1 {
		return false
	}
	for i, existing := range m.userAgents {
		if existing == ua {
			m.userAgents = append(m.userAgents[:i], m.userAgents[i+1:]...)
			return true
		}
	}
	return false
}
