package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jingjing529/ai-calendar-agent/internal/calendar"
)

// Cookie names.
const (
	CookieAccessToken      = "google_access_token"
	CookieOAuthState       = "google_oauth_state"
	CookieLastEventID      = "last_event_id"
	CookieLastEventSummary = "last_event_summary"
	CookieLastEventStart   = "last_event_start"
)

// StateMaxAge is how long a sign-in attempt stays valid.
const StateMaxAge = 10 * time.Minute

// DefaultTokenLifetime is used when the token response carries no expiry.
const DefaultTokenLifetime = time.Hour

var (
	// ErrNoSession is returned when the request carries no access token.
	ErrNoSession = errors.New("not authenticated")
	// ErrInvalidState is returned when the OAuth state does not match.
	ErrInvalidState = errors.New("invalid oauth state")
)

// Manager reads and writes the session cookies of the web client.
type Manager struct {
	codec  *Codec
	secure bool
	now    func() time.Time
}

// NewManager creates a Manager. secure marks cookies HTTPS-only.
func NewManager(codec *Codec, secure bool) *Manager {
	if codec == nil {
		codec = &Codec{}
	}
	return &Manager{codec: codec, secure: secure, now: time.Now}
}

func (m *Manager) set(w http.ResponseWriter, name, value string, maxAge time.Duration) error {
	encoded, err := m.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s cookie: %w", name, err)
	}
	c := &http.Cookie{
		Name:     name,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
	}
	http.SetCookie(w, c)
	return nil
}

func (m *Manager) get(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return ""
	}
	value, err := m.codec.Decode(c.Value)
	if err != nil {
		return ""
	}
	return value
}

func (m *Manager) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// NewState creates a sign-in state value and stores it in a short-lived cookie.
func (m *Manager) NewState(w http.ResponseWriter) (string, error) {
	state := uuid.NewString()
	if err := m.set(w, CookieOAuthState, state, StateMaxAge); err != nil {
		return "", err
	}
	return state, nil
}

// VerifyState checks the state returned by Google against the cookie and
// clears the cookie.
func (m *Manager) VerifyState(w http.ResponseWriter, r *http.Request, state string) error {
	expected := m.get(r, CookieOAuthState)
	m.clear(w, CookieOAuthState)
	if expected == "" || state == "" || expected != state {
		return ErrInvalidState
	}
	return nil
}

// SetAccessToken stores the access token until expiry.
func (m *Manager) SetAccessToken(w http.ResponseWriter, token string, expiry time.Time) error {
	lifetime := DefaultTokenLifetime
	if !expiry.IsZero() {
		lifetime = expiry.Sub(m.now())
		if lifetime < time.Second {
			lifetime = time.Second
		}
	}
	return m.set(w, CookieAccessToken, token, lifetime)
}

// AccessToken returns the stored access token or ErrNoSession.
func (m *Manager) AccessToken(r *http.Request) (string, error) {
	token := m.get(r, CookieAccessToken)
	if token == "" {
		return "", ErrNoSession
	}
	return token, nil
}

// SetLastEvent remembers the event the agent last helped with, for the
// browser session.
func (m *Manager) SetLastEvent(w http.ResponseWriter, ref *calendar.EventRef) error {
	if ref == nil {
		return nil
	}
	if err := m.set(w, CookieLastEventID, ref.ID, 0); err != nil {
		return err
	}
	if err := m.set(w, CookieLastEventSummary, ref.Summary, 0); err != nil {
		return err
	}
	return m.set(w, CookieLastEventStart, ref.Start, 0)
}

// LastEvent returns the remembered event, or nil.
func (m *Manager) LastEvent(r *http.Request) *calendar.EventRef {
	id := m.get(r, CookieLastEventID)
	if id == "" {
		return nil
	}
	return &calendar.EventRef{
		ID:      id,
		Summary: m.get(r, CookieLastEventSummary),
		Start:   m.get(r, CookieLastEventStart),
	}
}

// ClearLastEvent forgets the remembered event.
func (m *Manager) ClearLastEvent(w http.ResponseWriter) {
	m.clear(w, CookieLastEventID)
	m.clear(w, CookieLastEventSummary)
	m.clear(w, CookieLastEventStart)
}

// Clear removes every session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	m.clear(w, CookieAccessToken)
	m.clear(w, CookieOAuthState)
	m.ClearLastEvent(w)
}
