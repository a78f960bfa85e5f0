// Package feedhub is an in-process change feed: per-user fan-out of
// change events to every open subscription. Backends without a native
// pub/sub (SQLite) publish through it.
package feedhub

import (
	"context"
	"sync"

	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// DefaultBuffer is the per-subscription queue length.
const DefaultBuffer = 64

// Hub fans change events out to subscribers of the same user.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	buffer int
	closed bool
	logger logger.Logger
}

// New creates a hub. A buffer <= 0 selects DefaultBuffer.
func New(buffer int, log logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*subscription]struct{}),
		buffer: buffer,
		logger: log,
	}
}

// Subscribe registers a subscription for userID. SUBSCRIBED is the
// first notification delivered.
func (h *Hub) Subscribe(_ context.Context, userID string) (dataservice.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, dataservice.ErrClosed
	}

	sub := &subscription{
		hub:    h,
		userID: userID,
		out:    make(chan dataservice.Notification, h.buffer+1),
	}
	sub.out <- dataservice.Notification{Status: dataservice.StatusSubscribed}

	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}

	return sub, nil
}

// Publish delivers ev to every subscription of userID. A subscriber whose
// queue is full misses the event.
func (h *Hub) Publish(userID string, ev domain.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[userID] {
		e := ev
		select {
		case sub.out <- dataservice.Notification{Event: &e}:
		default:
			h.logger.Warn("change feed subscriber lagging, event dropped",
				logger.String("user_id", userID),
				logger.String("event", string(ev.Type)))
		}
	}
}

// Subscribers returns the number of open subscriptions for userID
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Close ends every subscription, delivering CLOSED when the queue has room.
// Later Subscribe calls fail with ErrClosed.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for userID, set := range h.subs {
		for sub := range set {
			select {
			case sub.out <- dataservice.Notification{Status: dataservice.StatusClosed}:
			default:
			}
			sub.closeLocked()
		}
		delete(h.subs, userID)
	}
	return nil
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.userID)
		}
	}
	sub.closeLocked()
}

type subscription struct {
	hub    *Hub
	userID string
	out    chan dataservice.Notification
	closed bool // guarded by hub.mu
}

func (s *subscription) Notifications() <-chan dataservice.Notification {
	return s.out
}

func (s *subscription) Close() error {
	s.hub.remove(s)
	return nil
}

// closeLocked must be called with hub.mu held for writing
func (s *subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}
