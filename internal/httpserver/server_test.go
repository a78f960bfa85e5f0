package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/broadcast"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/httpserver/deps"
	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/store/sqlite"
	"github.com/Umairyojo/NexMark/internal/version"
	"github.com/Umairyojo/NexMark/internal/view"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeProvider struct {
	identity auth.Identity
}

func (p *fakeProvider) AuthCodeURL(state, nonce, redirectURL string) string {
	v := url.Values{"state": {state}, "nonce": {nonce}, "redirect_uri": {redirectURL}}
	return "https://idp.example/authorize?" + v.Encode()
}

func (p *fakeProvider) Exchange(context.Context, string, string, string) (auth.Identity, error) {
	return p.identity, nil
}

type testEnv struct {
	deps   deps.Deps
	router http.Handler
	codec  *auth.SessionCodec
	store  *sqlite.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.New("error", false)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "nexmark.db"), log)
	require.NoError(t, err)
	bus := broadcast.NewMemoryBus(0, log)

	codec, err := auth.NewSessionCodec(testSecret, time.Hour, false)
	require.NoError(t, err)
	provider := &fakeProvider{identity: auth.Identity{Subject: "user-1", Email: "ada@example.com", Name: "Ada Lovelace"}}
	manager := auth.NewManager(provider, codec, log)

	d := deps.Deps{
		Logger:           log,
		StartTime:        time.Now(),
		Build:            version.Info{Version: "test"},
		RateBurst:        100,
		RateRefillPerMin: 100,
		Backend:          "sqlite",
		Broadcast:        "memory",
		Data:             store,
		Bus:              bus,
		Auth:             manager,
		Views:            view.NewRegistry(),
		FeedRetryPause:   10 * time.Millisecond,
	}

	env := &testEnv{deps: d, router: NewRouter(d), codec: codec, store: store}
	t.Cleanup(func() {
		manager.Close()
		_ = bus.Close()
		_ = store.Close()
	})
	return env
}

func (e *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, _, err := e.codec.Encode(auth.Session{UserID: "user-1", Email: "ada@example.com", Name: "Ada Lovelace"})
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookie, Value: token}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signedRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.AddCookie(e.sessionCookie(t))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func TestDashboardRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?auth=required", rec.Header().Get("Location"))

	rec = env.do(env.signedRequest(t, http.MethodGet, "/dashboard", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ada's bookmarks")
}

func TestDashboardEscapesName(t *testing.T) {
	env := newTestEnv(t)

	token, _, err := env.codec.Encode(auth.Session{UserID: "user-2", Email: "ob@example.com", Name: "O'Brien <b>"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "O&#39;Brien's bookmarks")
}

func TestHomePage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/?auth=required", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please sign in")
	assert.Contains(t, rec.Body.String(), `action="/auth/signin"`)

	rec = env.do(env.signedRequest(t, http.MethodGet, "/", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome back, Ada")
	assert.NotContains(t, rec.Body.String(), "Please sign in")
}

func TestAPIRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/bookmarks"},
		{http.MethodGet, "/api/bookmarks/count"},
		{http.MethodPost, "/api/bookmarks"},
		{http.MethodDelete, "/api/bookmarks/abc"},
		{http.MethodGet, "/ws"},
	} {
		rec := env.do(httptest.NewRequest(tc.method, tc.target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.target)
	}
}

func TestBookmarksAPI(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(env.signedRequest(t, http.MethodPost, "/api/bookmarks", `{"title":"Go","url":"ftp://go.dev"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"invalid-url"`)

	rec = env.do(env.signedRequest(t, http.MethodPost, "/api/bookmarks", `{"title":"  ","url":"https://go.dev"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"invalid-input"`)

	rec = env.do(env.signedRequest(t, http.MethodPost, "/api/bookmarks", `{"title":"Go","url":"https://go.dev"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Status   domain.Status   `json:"status"`
		Bookmark domain.Bookmark `json:"bookmark"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.StatusCreated, created.Status)
	assert.NotEmpty(t, created.Bookmark.ID)
	assert.Equal(t, "user-1", created.Bookmark.UserID)

	rec = env.do(env.signedRequest(t, http.MethodGet, "/api/bookmarks", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Bookmarks []domain.Bookmark `json:"bookmarks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Bookmarks, 1)
	assert.Equal(t, created.Bookmark.ID, list.Bookmarks[0].ID)

	rec = env.do(env.signedRequest(t, http.MethodGet, "/api/bookmarks/count", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":1}`, rec.Body.String())

	rec = env.do(env.signedRequest(t, http.MethodDelete, "/api/bookmarks/"+created.Bookmark.ID, ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"deleted"`)

	n, err := env.store.Count(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestImportAPI(t *testing.T) {
	env := newTestEnv(t)

	body := `
- Developer:
    - Github:
        - href: https://github.com/
    - Gopher:
        - href: gopher://old.example
`
	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks/import", strings.NewReader(body))
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":1`)
	assert.Contains(t, rec.Body.String(), `"status":"invalid-url"`)

	req = httptest.NewRequest(http.MethodPost, "/api/bookmarks/import", strings.NewReader("not: [yaml"))
	req.AddCookie(env.sessionCookie(t))
	rec = env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignInFlow(t *testing.T) {
	env := newTestEnv(t)

	// no origin
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
	rec := env.do(req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, auth.ErrorURL("Request origin is missing."), rec.Header().Get("Location"))

	form := url.Values{"next": {"/dashboard"}}
	req = httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "http://nexmark.test")
	rec = env.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	authURL, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "idp.example", authURL.Host)
	assert.Equal(t, "http://nexmark.test/auth/callback", authURL.Query().Get("redirect_uri"))
	state := authURL.Query().Get("state")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=c1&state="+url.QueryEscape(state), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	// replayed state fails
	rec = env.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=c1&state="+url.QueryEscape(state), nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, auth.ErrorPath, rec.Header().Get("Location"))
}

func TestCallbackNextIsSanitized(t *testing.T) {
	env := newTestEnv(t)

	authURL, err := env.deps.Auth.Begin("http://nexmark.test", "/dashboard")
	require.NoError(t, err)
	u, err := url.Parse(authURL)
	require.NoError(t, err)

	target := "/auth/callback?code=c1&state=" + url.QueryEscape(u.Query().Get("state")) + "&next=" + url.QueryEscape("//evil.example")
	rec := env.do(httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestSignOutAndErrorPage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(env.signedRequest(t, http.MethodPost, "/auth/signout", ""))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), auth.SessionCookie+"=;")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/auth/error", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), auth.DefaultErrorMessage)

	rec = env.do(httptest.NewRequest(http.MethodGet, auth.ErrorURL("<b>nope</b>"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "&lt;b&gt;nope&lt;/b&gt;")
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
	assert.Contains(t, rec.Body.String(), `"backend":"sqlite"`)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true,"backend":"sqlite"}`, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/infra", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var infra struct {
		SyncMode   string `json:"sync_mode"`
		Components map[string]struct {
			OK    bool `json:"ok"`
			Views *int `json:"views"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infra))
	assert.Equal(t, "live", infra.SyncMode)
	assert.True(t, infra.Components["data_service"].OK)
	require.NotNil(t, infra.Components["live_views"].Views)
	assert.Equal(t, 0, *infra.Components["live_views"].Views)
}

func TestReloadWithoutHomepageSync(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/reload", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.deps.HomepageTrigger = make(chan struct{}, 1)
	router := NewRouter(env.deps)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLiveDashboard(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	header := http.Header{}
	header.Set("Cookie", env.sessionCookie(t).String())
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	_ = resp.Body.Close()

	readUntil := func(what string, ok func(view.State) bool) view.State {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		for {
			var st view.State
			require.NoError(t, conn.ReadJSON(&st), "waiting for %s", what)
			if ok(st) {
				return st
			}
		}
	}

	readUntil("initial state", func(st view.State) bool { return st.Status == domain.StatusIdle })
	require.Eventually(t, func() bool { return env.deps.Views.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "create", "title": "Go", "url": "ftp://go.dev"}))
	readUntil("invalid url", func(st view.State) bool { return st.Status == domain.StatusInvalidURL })

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "create", "title": "Go", "url": "https://go.dev"}))
	st := readUntil("created", func(st view.State) bool {
		return st.Status == domain.StatusCreated && len(st.Bookmarks) == 1 && st.Count >= 1
	})
	assert.Equal(t, "Bookmark added successfully.", st.StatusText)

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "delete", "id": st.Bookmarks[0].ID}))
	readUntil("deleted", func(st view.State) bool {
		return st.Status == domain.StatusDeleted && len(st.Bookmarks) == 0 && st.Count == 0
	})

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.deps.Views.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
