// Package feed consumes the data service change feed for one user and
// dispatches status transitions and row changes to a Handler.
package feed

import (
	"context"
	"time"

	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// DefaultRetryPause is the wait before reopening a failed subscription
const DefaultRetryPause = time.Second

// Handler reacts to a user's change feed.
type Handler interface {
	// OnSubscribed runs on every SUBSCRIBED status, including resubscribes.
	OnSubscribed(ctx context.Context)
	// OnChange runs for every change event.
	OnChange(ctx context.Context, ev domain.ChangeEvent)
}

// Client is a change feed consumer scoped to one user.
type Client struct {
	feed       dataservice.Feed
	userID     string
	logger     logger.Logger
	retryPause time.Duration
}

// NewClient creates a client for userID's feed
func NewClient(feed dataservice.Feed, userID string, log logger.Logger) *Client {
	return &Client{
		feed:       feed,
		userID:     userID,
		logger:     log.With(logger.String("user_id", userID)),
		retryPause: DefaultRetryPause,
	}
}

// WithRetryPause overrides the pause between subscription attempts
func (c *Client) WithRetryPause(d time.Duration) *Client {
	if d > 0 {
		c.retryPause = d
	}
	return c
}

// Run subscribes and dispatches notifications to h until ctx is done.
// Subscription failures are logged and retried; they never end Run.
func (c *Client) Run(ctx context.Context, h Handler) error {
	for {
		if err := c.consume(ctx, h); err != nil {
			c.logger.Warn("change feed subscription failed", logger.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.retryPause):
		}
	}
}

// consume runs a single subscription until it ends or ctx is done
func (c *Client) consume(ctx context.Context, h Handler) error {
	sub, err := c.feed.Subscribe(ctx, c.userID)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Close(); err != nil {
			c.logger.Debug("failed to close change feed subscription", logger.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub.Notifications():
			if !ok || n.Status == dataservice.StatusClosed {
				return dataservice.ErrClosed
			}
			c.dispatch(ctx, h, n)
		}
	}
}

// dispatch handles everything but CLOSED, which ends the subscription in consume.
func (c *Client) dispatch(ctx context.Context, h Handler, n dataservice.Notification) {
	if n.Event != nil {
		h.OnChange(ctx, *n.Event)
		return
	}

	switch n.Status {
	case dataservice.StatusSubscribed:
		c.logger.Debug("change feed subscribed")
		h.OnSubscribed(ctx)
	case dataservice.StatusChannelError:
		c.logger.Warn("change feed channel error", logger.Error(n.Err))
	}
}
