// Package auth tracks the session the SDK holds with the application
// server: its token, its connection status, and the credentials a host may
// opt to persist for silent re-login.
package auth

import (
	"context"
	"sync"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/joshuarp/controller-sdk/event"
)

// Status is the connection authorization state surfaced to hosts.
type Status string

const (
	StatusNoAuthorization Status = "NoAuthorization"
	StatusAuthorized      Status = "Authorized"
	StatusUnauthorized    Status = "Unauthorized"
)

// EventUnauthorized fires on the emitter when the server rejects the
// session, so hosts can prompt for a fresh login.
const EventUnauthorized = "Unauthorized"

// InteractiveAuthorizer completes an out-of-band authorization flow when
// the server demands one mid-call. Implementations typically open a browser
// or web view at the challenge URL and return once the user finishes.
type InteractiveAuthorizer interface {
	Authorize(ctx context.Context, challenge string) error
}

// Session is the mutable authorization state shared by all calls. Safe for
// concurrent use.
type Session struct {
	mu      sync.RWMutex
	token   string
	status  Status
	emitter *event.Emitter
}

// NewSession creates a session in the NoAuthorization state.
func NewSession(emitter *event.Emitter) *Session {
	return &Session{status: StatusNoAuthorization, emitter: emitter}
}

// SetToken installs a bearer token and marks the session authorized.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.status = StatusAuthorized
	s.mu.Unlock()
}

// Token returns the current bearer token, empty when not authorized.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Status returns the current connection authorization state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// TokenExpired inspects the token's exp claim without verifying the
// signature; the server remains the authority on validity. A token that is
// not a JWT or carries no expiry is treated as unexpired.
func (s *Session) TokenExpired() bool {
	token := s.Token()
	if token == "" {
		return true
	}

	parser := jwtlib.NewParser()
	claims := jwtlib.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(nowFunc())
}

// MarkUnauthorized records a server-side session rejection and fires the
// Unauthorized event once per transition.
func (s *Session) MarkUnauthorized() {
	s.mu.Lock()
	already := s.status == StatusUnauthorized
	s.status = StatusUnauthorized
	s.token = ""
	emitter := s.emitter
	s.mu.Unlock()

	if !already && emitter != nil {
		emitter.Invoke([]string{EventUnauthorized})
	}
}

// Clear drops the token and returns the session to NoAuthorization.
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.status = StatusNoAuthorization
	s.mu.Unlock()
}
