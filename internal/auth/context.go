package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Session is the signed-in user of a request.
type Session struct {
	UserID    string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// DisplayName returns the first word of the profile name, falling back
// to the local part of the email.
func (s Session) DisplayName() string {
	if fields := strings.Fields(s.Name); len(fields) > 0 {
		return fields[0]
	}
	if local, _, ok := strings.Cut(s.Email, "@"); ok && local != "" {
		return local
	}
	return s.Email
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored in ctx, if any
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// LoadSession decodes the session cookie, when valid, into the request context.
// It never rejects a request.
func (m *Manager) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, err := m.sessions.FromRequest(r); err == nil {
			r = r.WithContext(WithSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession answers 401 when the request has no session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectAnonymous sends requests without a session to target.
func RedirectAnonymous(target string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
