// Package broadcast is the cross-tab fast path: every open dashboard of a
// user joins the same named channel, posts its own mutations there and
// applies the mutations posted by the others.
//
// Delivery is best effort. Anything lost here still arrives through the
// change feed.
package broadcast

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"

	"github.com/Umairyojo/NexMark/internal/domain"
)

// DefaultBuffer is the per-endpoint inbound queue length.
const DefaultBuffer = 32

// ErrClosed is returned when posting on a closed endpoint or joining a closed bus.
var ErrClosed = errors.New("broadcast: closed")

// ChannelName returns the per-user channel name. Distinct users never
// share a channel.
func ChannelName(userID string) string {
	return "bookmarks-sync-" + userID
}

// Bus opens endpoints on named channels.
type Bus interface {
	Join(ctx context.Context, name string) (Endpoint, error)
	Close() error
}

// Endpoint is one participant of a channel. Messages never include the
// endpoint's own posts.
type Endpoint interface {
	ID() string
	Name() string
	Post(ctx context.Context, msg domain.Message) error
	// Messages is closed when the endpoint is closed.
	Messages() <-chan domain.Message
	Close() error
}

// Listen applies every message received on ep until ctx is done or the
// endpoint is closed.
func Listen(ctx context.Context, ep Endpoint, apply func(domain.Message)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ep.Messages():
			if !ok {
				return nil
			}
			apply(msg)
		}
	}
}

func newEndpointID() string {
	return ulid.Make().String()
}
