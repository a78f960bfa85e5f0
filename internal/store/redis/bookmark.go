package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// List returns the user's bookmarks, newest first
func (s *Store) List(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	ids, err := s.client.ZRevRange(ctx, UserBookmarksKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}

	if len(ids) == 0 {
		return []domain.Bookmark{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookmarkKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	bookmarks := make([]domain.Bookmark, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a row: skip it
			s.logger.Debug("bookmark row missing",
				logger.String("bookmark_id", ids[i]))
			continue
		}

		var b domain.Bookmark
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			s.logger.Warn("failed to unmarshal bookmark",
				logger.String("bookmark_id", ids[i]),
				logger.Error(err))
			continue
		}
		if b.UserID != userID {
			continue
		}
		bookmarks = append(bookmarks, b)
	}

	domain.SortNewestFirst(bookmarks)
	return bookmarks, nil
}

// Count returns the exact number of bookmarks owned by userID
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	n, err := s.client.ZCard(ctx, UserBookmarksKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count bookmarks: %w", err)
	}
	return int(n), nil
}

// Insert stores a new bookmark and publishes an INSERT event
func (s *Store) Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	if nb.UserID == "" {
		return domain.Bookmark{}, errors.New("insert requires a user id")
	}

	b := domain.Bookmark{
		ID:        newID(),
		UserID:    nb.UserID,
		Title:     nb.Title,
		URL:       nb.URL,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	data, err := json.Marshal(b)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, BookmarkKey(b.ID), data, 0)
		pipe.ZAdd(ctx, UserBookmarksKey(b.UserID), redis.Z{Score: score(b.CreatedAt), Member: b.ID})
		return nil
	})
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to save bookmark: %w", err)
	}

	// The row is committed; a lost notification is repaired by the next resync
	if err := s.publish(ctx, b.UserID, domain.ChangeEvent{Type: domain.ChangeInsert, New: &b}); err != nil {
		s.logger.Warn("bookmark saved but change event not published",
			logger.String("bookmark_id", b.ID),
			logger.Error(err))
	}

	return b, nil
}

// Delete removes the bookmark only if it belongs to userID and publishes a DELETE event
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	old := domain.Bookmark{ID: id, UserID: userID}
	data, err := s.client.Get(ctx, BookmarkKey(id)).Bytes()
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &old); err != nil {
			return fmt.Errorf("failed to unmarshal bookmark: %w", err)
		}
	case !errors.Is(err, redis.Nil):
		return fmt.Errorf("failed to get bookmark: %w", err)
	}

	// Removing from the caller's own set proves ownership
	removed, err := s.client.ZRem(ctx, UserBookmarksKey(userID), id).Result()
	if err != nil {
		return fmt.Errorf("failed to remove bookmark from set: %w", err)
	}
	if removed == 0 {
		return nil
	}

	if err := s.client.Del(ctx, BookmarkKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}

	if err := s.publish(ctx, userID, domain.ChangeEvent{Type: domain.ChangeDelete, Old: &old}); err != nil {
		s.logger.Warn("bookmark deleted but change event not published",
			logger.String("bookmark_id", id),
			logger.Error(err))
	}

	return nil
}
