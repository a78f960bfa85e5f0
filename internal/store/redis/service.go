package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// Store is the Redis-backed data service: bookmark rows, per-user
// ordering and the pub/sub change feed.
type Store struct {
	client *redis.Client
	logger logger.Logger
	now    func() time.Time
}

var _ dataservice.Service = (*Store)(nil)

// NewStore creates a new Redis store
func NewStore(client *redis.Client, log logger.Logger) *Store {
	return &Store{
		client: client,
		logger: log,
		now:    time.Now,
	}
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

// publish pushes a change event on the owner's feed channel
func (s *Store) publish(ctx context.Context, userID string, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := s.client.Publish(ctx, ChangesChannel(userID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// newID returns a time-ordered bookmark ID
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// score converts created_at to the sorted-set score (microseconds fit a float64 exactly)
func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}
