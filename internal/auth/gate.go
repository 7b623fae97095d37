package auth

import (
	"context"
	"log"
	"sync"
	"time"
)

// Identity is what cart code consults for the current user at the moment of
// each remote sync. Implementations must re-check validity on every call
// because a session can expire mid-cart-session.
type Identity interface {
	// CurrentUserID returns the verified user id, or "" when the session is
	// anonymous or has lapsed.
	CurrentUserID(ctx context.Context) string
}

// RefreshFunc exchanges the long-lived refresh credential for a fresh
// session; it is supplied by the auth collaborator (e.g. the backend's
// /auth/refresh endpoint).
type RefreshFunc func(ctx context.Context) (*Session, error)

// Gate tracks the active session on the storefront side. When the access
// credential has expired it attempts one transparent refresh; if that also
// fails the session reverts to anonymous and the cart continues local-only.
type Gate struct {
	refresh RefreshFunc

	mu      sync.Mutex
	session *Session
	now     func() time.Time
}

func NewGate(refresh RefreshFunc) *Gate {
	return &Gate{refresh: refresh, now: time.Now}
}

// SetSession installs the session established at login.
func (g *Gate) SetSession(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = s
}

// ClearSession drops the session, as on explicit logout.
func (g *Gate) ClearSession() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = nil
}

func (g *Gate) CurrentUserID(ctx context.Context) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session == nil {
		return ""
	}
	if !g.session.Expired(g.now()) {
		return g.session.UserID
	}

	if g.refresh == nil {
		g.session = nil
		return ""
	}

	fresh, err := g.refresh(ctx)
	if err != nil {
		log.Printf("session refresh failed, reverting to anonymous: %v", err)
		g.session = nil
		return ""
	}
	g.session = fresh
	return fresh.UserID
}
