// Package counter keeps the live bookmark count of one dashboard,
// independently of the bookmark list.
package counter

import (
	"context"
	"sync"

	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/feed"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// Aggregator tracks a count that is nudged by broadcast messages and
// corrected by authoritative queries. Every nudge is followed by a query
// that starts after it, so the count settles on the data service's value
// whichever of the feed event and the broadcast arrives first.
type Aggregator struct {
	mu       sync.Mutex
	value    int
	pending  chan struct{}
	repo     dataservice.Repository
	userID   string
	logger   logger.Logger
	observer func()
}

var _ feed.Handler = (*Aggregator)(nil)

// New creates an aggregator starting at initial. The observer, when
// non-nil, runs after every change of value.
func New(repo dataservice.Repository, userID string, initial int, log logger.Logger, observer func()) *Aggregator {
	if initial < 0 {
		initial = 0
	}
	return &Aggregator{
		value:    initial,
		pending:  make(chan struct{}, 1),
		repo:     repo,
		userID:   userID,
		logger:   log.With(logger.String("user_id", userID)),
		observer: observer,
	}
}

// Value returns the current count
func (a *Aggregator) Value() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}

// Set replaces the count, flooring at zero
func (a *Aggregator) Set(n int) {
	if n < 0 {
		n = 0
	}
	a.update(func(int) int { return n })
}

// Apply adjusts the count from a broadcast message: UPSERT adds one,
// DELETE removes one. It then schedules a refresh, which corrects both an
// UPSERT of an existing bookmark and a delta landing after the feed's refresh.
func (a *Aggregator) Apply(msg domain.Message) {
	switch msg.Type {
	case domain.MessageUpsert:
		a.update(func(v int) int { return v + 1 })
	case domain.MessageDelete:
		a.update(func(v int) int { return max(0, v-1) })
	default:
		return
	}
	a.schedule()
}

// Run performs scheduled refreshes until ctx is done. Requests arriving
// while a refresh is in flight coalesce into one more refresh.
func (a *Aggregator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.pending:
			a.Refresh(ctx)
		}
	}
}

func (a *Aggregator) schedule() {
	select {
	case a.pending <- struct{}{}:
	default:
	}
}

// Refresh replaces the count with the data service's. On failure the
// current value is kept.
func (a *Aggregator) Refresh(ctx context.Context) {
	n, err := a.repo.Count(ctx, a.userID)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("failed to refresh bookmark count", logger.Error(err))
		}
		return
	}
	a.Set(n)
}

// OnSubscribed refreshes the count after every (re)subscription
func (a *Aggregator) OnSubscribed(ctx context.Context) {
	a.Refresh(ctx)
}

// OnChange refreshes the count when the changed row belongs to the user
func (a *Aggregator) OnChange(ctx context.Context, ev domain.ChangeEvent) {
	if ev.OwnerID() != a.userID {
		return
	}
	a.Refresh(ctx)
}

func (a *Aggregator) update(fn func(int) int) {
	a.mu.Lock()
	prev := a.value
	a.value = fn(prev)
	changed := a.value != prev
	a.mu.Unlock()

	if changed && a.observer != nil {
		a.observer()
	}
}
