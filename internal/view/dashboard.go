// Package view holds the live state of one open dashboard: the bookmark
// list and the count, each fed by the change feed and the cross-tab
// broadcast, plus the mutations issued from that dashboard.
package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Umairyojo/NexMark/internal/auth"
	"github.com/Umairyojo/NexMark/internal/broadcast"
	"github.com/Umairyojo/NexMark/internal/counter"
	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/feed"
	"github.com/Umairyojo/NexMark/internal/gateway"
	"github.com/Umairyojo/NexMark/internal/livelist"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// Deps are the shared services a dashboard is mounted on
type Deps struct {
	Data   dataservice.Service
	Bus    broadcast.Bus
	Logger logger.Logger

	// FeedRetryPause overrides feed.DefaultRetryPause when > 0
	FeedRetryPause time.Duration
}

// State is what a dashboard renders
type State struct {
	Bookmarks  []domain.Bookmark `json:"bookmarks"`
	Count      int               `json:"count"`
	Status     domain.Status     `json:"status"`
	StatusText string            `json:"statusText,omitempty"`
	Submitting bool              `json:"submitting"`
}

// Dashboard is one mounted view. Close must be called when the view goes away.
type Dashboard struct {
	session auth.Session
	logger  logger.Logger

	list    *livelist.List
	count   *counter.Aggregator
	gateway *gateway.Gateway

	listEndpoint  broadcast.Endpoint
	countEndpoint broadcast.Endpoint

	mu         sync.Mutex
	status     domain.Status
	submitting bool

	changes   chan struct{}
	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

// Mount loads the initial state and starts the live pumps. The pumps stop
// when ctx is done or Close is called.
func Mount(ctx context.Context, deps Deps, session auth.Session) (*Dashboard, error) {
	if session.UserID == "" {
		return nil, errors.New("mount requires a signed-in user")
	}
	userID := session.UserID
	log := deps.Logger.With(logger.String("user_id", userID))

	d := &Dashboard{
		session: session,
		logger:  log,
		status:  domain.StatusIdle,
		changes: make(chan struct{}, 1),
	}

	initial, err := deps.Data.List(ctx, userID)
	if err != nil {
		// The feed's first SUBSCRIBED refetches the list
		log.Warn("failed to load bookmarks, mounting empty", logger.Error(err))
		initial = nil
	}

	d.list = livelist.New(initial, d.signal)
	d.count = counter.New(deps.Data, userID, len(initial), deps.Logger, d.signal)

	channel := broadcast.ChannelName(userID)
	d.listEndpoint, err = deps.Bus.Join(ctx, channel)
	if err != nil {
		return nil, err
	}
	d.countEndpoint, err = deps.Bus.Join(ctx, channel)
	if err != nil {
		_ = d.listEndpoint.Close()
		return nil, err
	}

	d.gateway = gateway.New(deps.Data, d.list, d.listEndpoint, deps.Logger)

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	d.cancel = cancel
	d.group = group

	listFeed := feed.NewClient(deps.Data, userID, deps.Logger).WithRetryPause(deps.FeedRetryPause)
	countFeed := feed.NewClient(deps.Data, userID, deps.Logger).WithRetryPause(deps.FeedRetryPause)

	group.Go(func() error {
		return listFeed.Run(groupCtx, &feed.ListHandler{
			Repo:   deps.Data,
			List:   d.list,
			UserID: userID,
			Logger: deps.Logger,
		})
	})
	group.Go(func() error {
		return countFeed.Run(groupCtx, d.count)
	})
	group.Go(func() error {
		return broadcast.Listen(groupCtx, d.listEndpoint, d.applyToList)
	})
	group.Go(func() error {
		return broadcast.Listen(groupCtx, d.countEndpoint, d.count.Apply)
	})
	group.Go(func() error {
		return d.count.Run(groupCtx)
	})

	log.Debug("dashboard mounted", logger.Int("bookmarks", len(initial)))
	return d, nil
}

// Session returns the user the dashboard belongs to
func (d *Dashboard) Session() auth.Session {
	return d.session
}

// Submit creates a bookmark. A submit issued while another is in flight
// is ignored and returns the current status.
func (d *Dashboard) Submit(ctx context.Context, title, url string) domain.Status {
	d.mu.Lock()
	if d.submitting {
		status := d.status
		d.mu.Unlock()
		return status
	}
	d.submitting = true
	d.mu.Unlock()
	d.signal()

	_, err := d.gateway.Create(ctx, title, url, d.session.UserID)
	status := gateway.StatusOf(gateway.OpCreate, err)
	if status == domain.StatusError {
		d.logger.Warn("failed to create bookmark", logger.Error(err))
	}

	d.mu.Lock()
	d.submitting = false
	d.status = status
	d.mu.Unlock()
	d.signal()

	return status
}

// Remove deletes a bookmark optimistically
func (d *Dashboard) Remove(ctx context.Context, id string) domain.Status {
	err := d.gateway.Delete(ctx, id, d.session.UserID)
	status := gateway.StatusOf(gateway.OpDelete, err)
	if status == domain.StatusError {
		d.logger.Warn("failed to delete bookmark",
			logger.String("bookmark_id", id),
			logger.Error(err))
	}

	d.mu.Lock()
	d.status = status
	d.mu.Unlock()
	d.signal()

	return status
}

// State returns a copy of the current state
func (d *Dashboard) State() State {
	d.mu.Lock()
	status, submitting := d.status, d.submitting
	d.mu.Unlock()

	return State{
		Bookmarks:  d.list.Snapshot(),
		Count:      d.count.Value(),
		Status:     status,
		StatusText: status.Text(),
		Submitting: submitting,
	}
}

// Changes fires after state changes. Bursts coalesce into one signal.
func (d *Dashboard) Changes() <-chan struct{} {
	return d.changes
}

// Close stops the pumps, waits for them and leaves the broadcast channel.
func (d *Dashboard) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.cancel()
		err = d.group.Wait()

		if cerr := d.listEndpoint.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if cerr := d.countEndpoint.Close(); cerr != nil && err == nil {
			err = cerr
		}

		d.logger.Debug("dashboard closed")
	})
	return err
}

func (d *Dashboard) applyToList(msg domain.Message) {
	switch msg.Type {
	case domain.MessageUpsert:
		if msg.Bookmark != nil && msg.Bookmark.ID != "" {
			d.list.Upsert(*msg.Bookmark)
		}
	case domain.MessageDelete:
		if msg.BookmarkID != "" {
			d.list.Remove(msg.BookmarkID)
		}
	}
}

func (d *Dashboard) signal() {
	select {
	case d.changes <- struct{}{}:
	default:
	}
}
