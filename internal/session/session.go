package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"steamgate/internal/oidc/models"
)

// Store holds pending authorization requests keyed by an opaque session ID for
// the duration of the redirect round trip to Steam.
type Store interface {
	Put(ctx context.Context, sessionID string, pending *models.PendingAuthRequest) error
	Get(ctx context.Context, sessionID string) (*models.PendingAuthRequest, error)
	Delete(ctx context.Context, sessionID string) error
}

// Manager issues and reads the session cookie that correlates the authorize
// request with the Steam callback. The cookie value is an opaque uuid; all
// request data lives server-side in the Store.
type Manager struct {
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewManager constructs a cookie manager. secure should be true whenever the
// public base URL is https.
func NewManager(cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Issue creates a fresh session ID and sets the cookie on the response.
func (m *Manager) Issue(w http.ResponseWriter) string {
	sessionID := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID
}

// Read returns the session ID carried by the request, if any.
func (m *Manager) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
