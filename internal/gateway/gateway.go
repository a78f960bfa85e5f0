// Package gateway performs user mutations against the data service and
// applies them locally and to the other tabs without waiting for the
// change feed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Umairyojo/NexMark/internal/broadcast"
	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/livelist"
	"github.com/Umairyojo/NexMark/internal/logger"
)

var (
	// ErrInvalidInput is returned when a required field is empty
	ErrInvalidInput = errors.New("title and url are required")
	// ErrInvalidURL is returned when the url is not an absolute http(s) URL
	ErrInvalidURL = errors.New("url must start with http:// or https://")
	// ErrNoUser is returned when no signed-in user is given
	ErrNoUser = errors.New("no signed-in user")
)

// Op names a mutation for status mapping
type Op int

const (
	OpCreate Op = iota
	OpDelete
)

// Store is the local list a gateway updates optimistically
type Store interface {
	livelist.Reconciler
	Snapshot() []domain.Bookmark
}

// Gateway is bound to one view's list and broadcast endpoint. Both may
// be nil, in which case only the data service is touched.
type Gateway struct {
	repo     dataservice.Repository
	store    Store
	endpoint broadcast.Endpoint
	policy   *bluemonday.Policy
	logger   logger.Logger
}

// New creates a gateway
func New(repo dataservice.Repository, store Store, endpoint broadcast.Endpoint, log logger.Logger) *Gateway {
	return &Gateway{
		repo:     repo,
		store:    store,
		endpoint: endpoint,
		policy:   bluemonday.StrictPolicy(),
		logger:   log,
	}
}

// Create validates and inserts a bookmark. On success the record is
// upserted locally and posted to the other tabs. Validation failures
// never reach the data service.
func (g *Gateway) Create(ctx context.Context, title, rawURL, userID string) (domain.Bookmark, error) {
	if userID == "" {
		return domain.Bookmark{}, ErrNoUser
	}

	title = g.cleanTitle(title)
	rawURL = strings.TrimSpace(rawURL)
	if title == "" || rawURL == "" {
		return domain.Bookmark{}, ErrInvalidInput
	}
	if !domain.IsValidHTTPURL(rawURL) {
		return domain.Bookmark{}, ErrInvalidURL
	}

	b, err := g.repo.Insert(ctx, domain.NewBookmark{UserID: userID, Title: title, URL: rawURL})
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to create bookmark: %w", err)
	}

	if g.store != nil {
		g.store.Upsert(b)
	}
	g.post(ctx, domain.UpsertMessage(b))

	g.logger.Debug("bookmark created",
		logger.String("user_id", userID),
		logger.String("bookmark_id", b.ID))
	return b, nil
}

// Delete removes a bookmark optimistically. If the data service rejects
// the delete, the list is restored to its state before the call.
func (g *Gateway) Delete(ctx context.Context, id, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}

	var snapshot []domain.Bookmark
	if g.store != nil {
		snapshot = g.store.Snapshot()
		g.store.Remove(id)
	}

	if err := g.repo.Delete(ctx, id, userID); err != nil {
		if g.store != nil {
			g.store.ReplaceAll(snapshot)
		}
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}

	g.post(ctx, domain.DeleteMessage(id))

	g.logger.Debug("bookmark deleted",
		logger.String("user_id", userID),
		logger.String("bookmark_id", id))
	return nil
}

// StatusOf maps the result of op to the bounded status set
func StatusOf(op Op, err error) domain.Status {
	switch {
	case err == nil && op == OpCreate:
		return domain.StatusCreated
	case err == nil:
		return domain.StatusDeleted
	case errors.Is(err, ErrInvalidInput):
		return domain.StatusInvalidInput
	case errors.Is(err, ErrInvalidURL):
		return domain.StatusInvalidURL
	default:
		return domain.StatusError
	}
}

// cleanTitle strips markup and surrounding whitespace; the result is plain text
func (g *Gateway) cleanTitle(title string) string {
	return strings.TrimSpace(html.UnescapeString(g.policy.Sanitize(title)))
}

// post is best effort: the change feed delivers the same change
func (g *Gateway) post(ctx context.Context, msg domain.Message) {
	if g.endpoint == nil {
		return
	}
	if err := g.endpoint.Post(ctx, msg); err != nil {
		g.logger.Warn("failed to post broadcast message",
			logger.String("type", string(msg.Type)),
			logger.Error(err))
	}
}
