// Package dataservice defines the contract of the managed backend that
// stores bookmarks, scopes them per user and pushes row changes.
//
// The rest of the application only talks to these interfaces; the
// concrete backends live under internal/store.
package dataservice

import (
	"context"
	"errors"

	"github.com/Umairyojo/NexMark/internal/domain"
)

// ErrClosed is returned by operations on a closed backend or subscription.
var ErrClosed = errors.New("dataservice: closed")

// Repository is the scoped query surface of the bookmarks collection.
type Repository interface {
	// List returns the user's bookmarks ordered by created_at descending.
	List(ctx context.Context, userID string) ([]domain.Bookmark, error)
	// Count returns the exact number of bookmarks owned by the user.
	Count(ctx context.Context, userID string) (int, error)
	// Insert creates a row and returns it with the server-assigned id and created_at.
	Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error)
	// Delete removes the row matching both id and userID.
	// A missing or foreign id is not an error.
	Delete(ctx context.Context, id, userID string) error
}

// Feed opens per-user change subscriptions.
type Feed interface {
	Subscribe(ctx context.Context, userID string) (Subscription, error)
}

// Service is a complete data service backend.
type Service interface {
	Repository
	Feed
	Ping(ctx context.Context) error
	Close() error
}

// SubscriptionStatus mirrors the status transitions of a realtime channel.
type SubscriptionStatus string

const (
	StatusSubscribed   SubscriptionStatus = "SUBSCRIBED"
	StatusChannelError SubscriptionStatus = "CHANNEL_ERROR"
	StatusClosed       SubscriptionStatus = "CLOSED"
)

// Notification is one item delivered by a Subscription: either a status
// transition or a change event (exactly one of the two is set).
type Notification struct {
	Status SubscriptionStatus
	Event  *domain.ChangeEvent
	Err    error
}

// Subscription is a live change stream scoped to one user.
type Subscription interface {
	// Notifications is closed once the subscription is closed.
	Notifications() <-chan Notification
	Close() error
}
