// Package session provides server-side session management: a cookie-based
// session manager, the session authentication strategy, the anti-forgery
// precondition middleware, and login/logout HTTP handlers.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/einlass-dev/einlass/pkg/observability"
)

// Defaults for the session manager.
const (
	DefaultCookieName = "sessionid"
	DefaultTTL        = 14 * 24 * time.Hour
)

// Session is a server-side session bound to a principal.
type Session struct {
	// ID is the random session identifier carried by the cookie.
	ID string

	// Subject is the authenticated principal's identifier.
	Subject string

	// CSRFToken is the anti-forgery token minted for this session.
	// State-mutating requests must echo it in the X-CSRF-Token header.
	CSRFToken string

	// ExpiresAt is when the session stops being honored.
	ExpiresAt time.Time
}

// Manager stores sessions in memory and reads/writes the session cookie.
// It is safe for concurrent use.
type Manager struct {
	cookieName string
	ttl        time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Empty cookieName or zero ttl fall
// back to the defaults.
func NewManager(cookieName string, ttl time.Duration) *Manager {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		cookieName: cookieName,
		ttl:        ttl,
		sessions:   make(map[string]*Session),
	}
}

// Create starts a new session for the given subject.
func (m *Manager) Create(subject string) *Session {
	s := &Session{
		ID:        randomToken(),
		Subject:   subject,
		CSRFToken: randomToken(),
		ExpiresAt: time.Now().Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	observability.SessionsActive.Inc()
	return s
}

// Get returns the session with the given ID, or nil if unknown or expired.
// Expired sessions are removed on access.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil
	}
	if time.Now().After(s.ExpiresAt) {
		m.Delete(id)
		return nil
	}

	cp := *s
	return &cp
}

// Delete removes the session with the given ID.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		observability.SessionsActive.Dec()
	}
}

// FromRequest returns the session referenced by the request's cookie, or
// nil if the cookie is absent, unknown, or expired.
func (m *Manager) FromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return m.Get(cookie.Value)
}

// SetCookie writes the session cookie on the response.
func (m *Manager) SetCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the response.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// randomToken returns a 128-bit random value as a hex string.
func randomToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
