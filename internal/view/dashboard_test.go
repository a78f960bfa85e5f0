package view

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/broadcast"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/logger"
	"github.com/Umairyojo/NexMark/internal/store/sqlite"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newDeps(t *testing.T) (Deps, *sqlite.Store, *broadcast.MemoryBus) {
	t.Helper()
	log := logger.New("error", false)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "nexmark.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bus := broadcast.NewMemoryBus(16, log)
	t.Cleanup(func() { _ = bus.Close() })

	return Deps{Data: store, Bus: bus, Logger: log, FeedRetryPause: 10 * time.Millisecond}, store, bus
}

func mount(t *testing.T, deps Deps, userID string) *Dashboard {
	t.Helper()
	d, err := Mount(context.Background(), deps, auth.Session{UserID: userID})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func ids(bs []domain.Bookmark) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}

func TestMountLoadsInitialState(t *testing.T) {
	deps, store, _ := newDeps(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, domain.NewBookmark{UserID: "u1", Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, domain.NewBookmark{UserID: "u2", Title: "Other", URL: "https://other.example"})
	require.NoError(t, err)

	d := mount(t, deps, "u1")
	s := d.State()
	assert.Len(t, s.Bookmarks, 1)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, domain.StatusIdle, s.Status)
	assert.False(t, s.Submitting)

	_, err = Mount(ctx, deps, auth.Session{})
	assert.Error(t, err)
}

func TestSubmitInvalidURL(t *testing.T) {
	deps, store, _ := newDeps(t)
	d := mount(t, deps, "u1")

	status := d.Submit(context.Background(), "Test", "not-a-url")
	assert.Equal(t, domain.StatusInvalidURL, status)
	assert.Equal(t, domain.StatusInvalidURL, d.State().Status)
	assert.Empty(t, d.State().Bookmarks)

	count, err := store.Count(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestTwoTabsConverge(t *testing.T) {
	deps, _, bus := newDeps(t)
	a := mount(t, deps, "u1")
	b := mount(t, deps, "u1")
	other := mount(t, deps, "u2")

	assert.Equal(t, 4, bus.Members(broadcast.ChannelName("u1")))

	status := a.Submit(context.Background(), "Go", "https://go.dev")
	require.Equal(t, domain.StatusCreated, status)

	created := a.State().Bookmarks
	require.Len(t, created, 1, "inserted at the front immediately")

	for _, d := range []*Dashboard{a, b} {
		require.Eventually(t, func() bool {
			s := d.State()
			return len(s.Bookmarks) == 1 && s.Bookmarks[0].ID == created[0].ID && s.Count == 1
		}, waitFor, tick)
	}
	assertSettledCount(t, 1, a, b)

	status = b.Remove(context.Background(), created[0].ID)
	require.Equal(t, domain.StatusDeleted, status)

	for _, d := range []*Dashboard{a, b} {
		require.Eventually(t, func() bool {
			s := d.State()
			return len(s.Bookmarks) == 0 && s.Count == 0
		}, waitFor, tick)
	}

	assert.Empty(t, other.State().Bookmarks)
	assert.Equal(t, 0, other.State().Count)
}

// assertSettledCount waits for late feed events and broadcasts, then checks
// every dashboard still shows want.
func assertSettledCount(t *testing.T, want int, dashboards ...*Dashboard) {
	t.Helper()
	time.Sleep(100 * time.Millisecond)
	for i, d := range dashboards {
		assert.Equal(t, want, d.State().Count, "dashboard %d", i)
	}
}

func TestDeleteSettlesOnServerCount(t *testing.T) {
	deps, store, _ := newDeps(t)
	ctx := context.Background()

	var seeded []domain.Bookmark
	for _, u := range []string{"https://go.dev", "https://pkg.go.dev", "https://go.dev/blog"} {
		b, err := store.Insert(ctx, domain.NewBookmark{UserID: "u1", Title: "Go", URL: u})
		require.NoError(t, err)
		seeded = append(seeded, b)
	}

	a := mount(t, deps, "u1")
	b := mount(t, deps, "u1")
	require.Equal(t, 3, a.State().Count)

	require.Equal(t, domain.StatusDeleted, b.Remove(ctx, seeded[1].ID))

	server, err := store.Count(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, server)

	for _, d := range []*Dashboard{a, b} {
		require.Eventually(t, func() bool {
			s := d.State()
			return len(s.Bookmarks) == 2 && s.Count == 2
		}, waitFor, tick)
	}
	assertSettledCount(t, 2, a, b)
}

func TestCreateSettlesOnServerCount(t *testing.T) {
	deps, store, _ := newDeps(t)
	ctx := context.Background()
	_, err := store.Insert(ctx, domain.NewBookmark{UserID: "u1", Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)

	a := mount(t, deps, "u1")
	b := mount(t, deps, "u1")

	require.Equal(t, domain.StatusCreated, a.Submit(ctx, "Docs", "https://example.com"))
	require.Equal(t, domain.StatusCreated, b.Submit(ctx, "Blog", "https://example.com/blog"))

	for _, d := range []*Dashboard{a, b} {
		require.Eventually(t, func() bool { return d.State().Count == 3 }, waitFor, tick)
	}
	assertSettledCount(t, 3, a, b)
}

func TestManySubmitsNoDuplicates(t *testing.T) {
	deps, _, _ := newDeps(t)
	a := mount(t, deps, "u1")
	b := mount(t, deps, "u1")

	for i := 0; i < 10; i++ {
		require.Equal(t, domain.StatusCreated, a.Submit(context.Background(), "Go", "https://go.dev"))
	}

	require.Eventually(t, func() bool { return len(b.State().Bookmarks) == 10 }, waitFor, tick)

	// Let late feed events land, then check for duplicates
	time.Sleep(50 * time.Millisecond)
	for _, d := range []*Dashboard{a, b} {
		got := ids(d.State().Bookmarks)
		seen := map[string]bool{}
		for _, id := range got {
			assert.False(t, seen[id], "duplicate %s", id)
			seen[id] = true
		}
		assert.Len(t, got, 10)
		assert.True(t, domain.IsSortedNewestFirst(d.State().Bookmarks))
	}
}

func TestCloseReleasesResources(t *testing.T) {
	deps, _, bus := newDeps(t)
	d, err := Mount(context.Background(), deps, auth.Session{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 2, bus.Members(broadcast.ChannelName("u1")))

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, 0, bus.Members(broadcast.ChannelName("u1")))
}

func TestChangesCoalesce(t *testing.T) {
	deps, _, _ := newDeps(t)
	d := mount(t, deps, "u1")

	// drain anything from mount
	select {
	case <-d.Changes():
	default:
	}

	d.Submit(context.Background(), "", "")
	d.Submit(context.Background(), "", "")

	select {
	case <-d.Changes():
	case <-time.After(waitFor):
		t.Fatal("no change signal")
	}
	assert.LessOrEqual(t, len(d.Changes()), 1)
}

// blockingData holds Insert until released
type blockingData struct {
	*sqlite.Store
	entered chan struct{}
	release chan struct{}
}

func (b *blockingData) Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.Store.Insert(ctx, nb)
}

func TestSubmitWhileInFlightIsIgnored(t *testing.T) {
	deps, store, _ := newDeps(t)
	data := &blockingData{Store: store, entered: make(chan struct{}, 1), release: make(chan struct{})}
	deps.Data = data
	d := mount(t, deps, "u1")

	done := make(chan domain.Status, 1)
	go func() { done <- d.Submit(context.Background(), "Go", "https://go.dev") }()

	<-data.entered
	assert.True(t, d.State().Submitting)
	assert.Equal(t, domain.StatusIdle, d.Submit(context.Background(), "Again", "https://go.dev"))

	close(data.release)
	assert.Equal(t, domain.StatusCreated, <-done)
	assert.False(t, d.State().Submitting)

	count, err := store.Count(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// failingDelete rejects every delete
type failingDelete struct {
	*sqlite.Store
}

func (f *failingDelete) Delete(context.Context, string, string) error {
	return errors.New("service unavailable")
}

func TestRemoveFailureRollsBack(t *testing.T) {
	deps, store, _ := newDeps(t)
	b, err := store.Insert(context.Background(), domain.NewBookmark{UserID: "u1", Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)

	deps.Data = &failingDelete{Store: store}
	d := mount(t, deps, "u1")

	status := d.Remove(context.Background(), b.ID)
	assert.Equal(t, domain.StatusError, status)
	assert.Equal(t, []string{b.ID}, ids(d.State().Bookmarks))
	assert.Equal(t, "Request failed. Please try again.", d.State().StatusText)
}

func TestRegistry(t *testing.T) {
	deps, _, _ := newDeps(t)
	r := NewRegistry()

	a := mount(t, deps, "u1")
	b := mount(t, deps, "u1")
	c := mount(t, deps, "u2")

	forgetA := r.Track(a)
	forgetB := r.Track(b)
	forgetC := r.Track(c)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 2, r.Users())

	forgetA()
	forgetA()
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, r.Users())

	forgetB()
	forgetC()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.Users())
}
