package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the name of the session cookie
const SessionCookie = "nexmark_session"

// ErrNoSession is returned when a request carries no usable session
var ErrNoSession = errors.New("no session")

type sessionClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SessionCodec signs and verifies session cookies (HS256).
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionCodec creates a codec. secret must be at least 32 bytes.
func NewSessionCodec(secret []byte, ttl time.Duration, secure bool) (*SessionCodec, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	return &SessionCodec{secret: secret, ttl: ttl, secure: secure, now: time.Now}, nil
}

// Encode signs a session token for s. ExpiresAt is set from the codec TTL.
func (c *SessionCodec) Encode(s Session) (string, time.Time, error) {
	if s.UserID == "" {
		return "", time.Time{}, errors.New("session requires a user id")
	}
	now := c.now()
	exp := now.Add(c.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Email: s.Email,
		Name:  s.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, exp, nil
}

// Decode verifies a session token
func (c *SessionCodec) Decode(raw string) (Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("invalid session: %w", err)
	}
	if claims.Subject == "" {
		return Session{}, fmt.Errorf("invalid session: missing subject")
	}
	return Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// FromRequest decodes the session cookie of r
func (c *SessionCodec) FromRequest(r *http.Request) (Session, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return Session{}, ErrNoSession
	}
	return c.Decode(cookie.Value)
}

// SetCookie issues the session cookie for s
func (c *SessionCodec) SetCookie(w http.ResponseWriter, s Session) error {
	token, exp, err := c.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie expires the session cookie
func (c *SessionCodec) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
