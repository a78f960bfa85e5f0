package feed

import (
	"context"

	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/livelist"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// ListHandler applies feed changes to a bookmark list and refetches the
// whole list on every (re)subscription.
type ListHandler struct {
	Repo   dataservice.Repository
	List   livelist.Reconciler
	UserID string
	Logger logger.Logger
}

var _ Handler = (*ListHandler)(nil)

// OnSubscribed replaces the list with the authoritative one. A failed
// fetch keeps the current list.
func (h *ListHandler) OnSubscribed(ctx context.Context) {
	bookmarks, err := h.Repo.List(ctx, h.UserID)
	if err != nil {
		if ctx.Err() == nil {
			h.Logger.Warn("failed to resync bookmark list",
				logger.String("user_id", h.UserID),
				logger.Error(err))
		}
		return
	}
	h.List.ReplaceAll(bookmarks)
}

// OnChange upserts inserted/updated rows and removes deleted ones
func (h *ListHandler) OnChange(_ context.Context, ev domain.ChangeEvent) {
	switch ev.Type {
	case domain.ChangeInsert, domain.ChangeUpdate:
		if ev.New != nil && ev.New.ID != "" {
			h.List.Upsert(*ev.New)
		}
	case domain.ChangeDelete:
		if ev.Old != nil && ev.Old.ID != "" {
			h.List.Remove(ev.Old.ID)
		}
	}
}
