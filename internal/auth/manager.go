package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/Umairyojo/NexMark/internal/logger"
)

const (
	// CallbackPath is where the provider sends the browser back
	CallbackPath = "/auth/callback"
	// ErrorPath renders sign-in failures
	ErrorPath = "/auth/error"
	// DefaultErrorMessage is shown when the error page gets no message
	DefaultErrorMessage = "Authentication failed. Please try again."
)

var (
	ErrMissingOrigin = errors.New("request origin is missing")
	ErrMissingCode   = errors.New("authorization code is missing")
	ErrInvalidState  = errors.New("unknown or expired sign-in state")
)

// Manager drives the sign-in round trip and owns the session codec.
type Manager struct {
	provider Provider
	sessions *SessionCodec
	states   *stateStore
	logger   logger.Logger
}

// NewManager creates a manager
func NewManager(provider Provider, sessions *SessionCodec, log logger.Logger) *Manager {
	return &Manager{
		provider: provider,
		sessions: sessions,
		states:   newStateStore(PendingTTL),
		logger:   log,
	}
}

// Sessions returns the session codec
func (m *Manager) Sessions() *SessionCodec {
	return m.sessions
}

// Begin starts a sign-in for a browser on origin and returns the
// provider URL to redirect to.
func (m *Manager) Begin(origin, next string) (string, error) {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return "", ErrMissingOrigin
	}

	redirectURL := origin + CallbackPath
	nonce := randomToken()
	state := m.states.put(pending{
		Nonce:       nonce,
		RedirectURL: redirectURL,
		Next:        SanitizeNext(next),
	})
	return m.provider.AuthCodeURL(state, nonce, redirectURL), nil
}

// Complete finishes a sign-in and returns the new session and the
// local path to continue to.
func (m *Manager) Complete(ctx context.Context, state, code string) (Session, string, error) {
	if code == "" {
		return Session{}, "", ErrMissingCode
	}
	p, ok := m.states.take(state)
	if !ok {
		return Session{}, "", ErrInvalidState
	}

	id, err := m.provider.Exchange(ctx, code, p.RedirectURL, p.Nonce)
	if err != nil {
		return Session{}, "", err
	}
	if id.Subject == "" {
		return Session{}, "", errors.New("identity has no subject")
	}

	m.logger.Info("user signed in", logger.String("user_id", id.Subject))
	return Session{UserID: id.Subject, Email: id.Email, Name: id.Name}, p.Next, nil
}

// Close releases the pending sign-in cache
func (m *Manager) Close() {
	m.states.close()
}

// SanitizeNext keeps only local absolute paths; anything else becomes "/".
func SanitizeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// ErrorURL returns the error page URL carrying message
func ErrorURL(message string) string {
	if message == "" {
		return ErrorPath
	}
	return ErrorPath + "?message=" + url.QueryEscape(message)
}
