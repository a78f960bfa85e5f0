package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Umairyojo/NexMark/internal/logger"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeProvider struct {
	identity Identity
	err      error
	gotCode  string
	gotNonce string
}

func (p *fakeProvider) AuthCodeURL(state, nonce, redirectURL string) string {
	v := url.Values{"state": {state}, "nonce": {nonce}, "redirect_uri": {redirectURL}}
	return "https://idp.example/authorize?" + v.Encode()
}

func (p *fakeProvider) Exchange(_ context.Context, code, _ string, nonce string) (Identity, error) {
	p.gotCode, p.gotNonce = code, nonce
	return p.identity, p.err
}

func newCodec(t *testing.T) *SessionCodec {
	t.Helper()
	c, err := NewSessionCodec(testSecret, time.Hour, true)
	require.NoError(t, err)
	return c
}

func TestSessionCodec(t *testing.T) {
	c := newCodec(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	token, exp, err := c.Encode(Session{UserID: "u1", Email: "ada@example.com", Name: "Ada Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	s, err := c.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "ada@example.com", s.Email)
	assert.Equal(t, "Ada Lovelace", s.Name)
	assert.True(t, s.ExpiresAt.Equal(exp))

	// expired
	now = now.Add(2 * time.Hour)
	_, err = c.Decode(token)
	assert.Error(t, err)
}

func TestSessionCodecRejects(t *testing.T) {
	c := newCodec(t)

	_, err := NewSessionCodec([]byte("short"), time.Hour, true)
	assert.Error(t, err)

	_, _, err = c.Encode(Session{})
	assert.Error(t, err)

	token, _, err := c.Encode(Session{UserID: "u1"})
	require.NoError(t, err)

	other, err := NewSessionCodec([]byte(strings.Repeat("x", 32)), time.Hour, true)
	require.NoError(t, err)
	_, err = other.Decode(token)
	assert.Error(t, err, "wrong secret")

	_, err = c.Decode("not-a-jwt")
	assert.Error(t, err)
}

func TestSessionCookie(t *testing.T) {
	c := newCodec(t)

	rec := httptest.NewRecorder()
	require.NoError(t, c.SetCookie(rec, Session{UserID: "u1"}))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	s, err := c.FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	_, err = c.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoSession)

	rec = httptest.NewRecorder()
	c.ClearCookie(rec)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestSanitizeNext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/dashboard", "/dashboard"},
		{"/dashboard?x=1", "/dashboard?x=1"},
		{"dashboard", "/"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeNext(tt.in), "next=%q", tt.in)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada", Session{Name: "Ada Lovelace", Email: "ada@example.com"}.DisplayName())
	assert.Equal(t, "ada", Session{Email: "ada@example.com"}.DisplayName())
	assert.Equal(t, "ada", Session{Name: "  ", Email: "ada@example.com"}.DisplayName())
}

func TestSignInRoundTrip(t *testing.T) {
	provider := &fakeProvider{identity: Identity{Subject: "sub-1", Email: "ada@example.com", Name: "Ada"}}
	m := NewManager(provider, newCodec(t), logger.New("error", false))
	defer m.Close()

	_, err := m.Begin("", "/")
	assert.ErrorIs(t, err, ErrMissingOrigin)

	authURL, err := m.Begin("https://nexmark.example/", "/dashboard")
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "https://nexmark.example/auth/callback", q.Get("redirect_uri"))

	s, next, err := m.Complete(context.Background(), q.Get("state"), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", s.UserID)
	assert.Equal(t, "/dashboard", next)
	assert.Equal(t, "code-1", provider.gotCode)
	assert.Equal(t, q.Get("nonce"), provider.gotNonce)

	// state is single use
	_, _, err = m.Complete(context.Background(), q.Get("state"), "code-1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCompleteFailures(t *testing.T) {
	provider := &fakeProvider{err: errors.New("denied")}
	m := NewManager(provider, newCodec(t), logger.New("error", false))
	defer m.Close()

	_, _, err := m.Complete(context.Background(), "whatever", "")
	assert.ErrorIs(t, err, ErrMissingCode)

	_, _, err = m.Complete(context.Background(), "unknown", "code")
	assert.ErrorIs(t, err, ErrInvalidState)

	authURL, err := m.Begin("https://nexmark.example", "/")
	require.NoError(t, err)
	u, _ := url.Parse(authURL)
	_, _, err = m.Complete(context.Background(), u.Query().Get("state"), "code")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	m := NewManager(&fakeProvider{}, newCodec(t), logger.New("error", false))
	defer m.Close()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := FromContext(r.Context())
		_, _ = w.Write([]byte(s.UserID))
	})

	protected := m.LoadSession(RedirectAnonymous("/?auth=required")(ok))
	api := m.LoadSession(RequireSession(ok))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?auth=required", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := m.Sessions().Encode(Session{UserID: "u1"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestErrorURL(t *testing.T) {
	assert.Equal(t, "/auth/error", ErrorURL(""))
	assert.Equal(t, "/auth/error?message=Google+sign-in+failed.", ErrorURL("Google sign-in failed."))
}
