package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Umairyojo/NexMark/internal/dataservice"
	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// receiveRetryPause throttles Receive after a failed read; go-redis
// reconnects and resubscribes on the next call.
const receiveRetryPause = time.Second

// Subscribe opens the user's change feed
func (s *Store) Subscribe(ctx context.Context, userID string) (dataservice.Subscription, error) {
	ps := s.client.Subscribe(ctx, ChangesChannel(userID))

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		pubsub: ps,
		out:    make(chan dataservice.Notification, 16),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: s.logger,
		userID: userID,
	}
	go sub.run(subCtx)

	return sub, nil
}

type subscription struct {
	pubsub *redis.PubSub
	out    chan dataservice.Notification
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	logger logger.Logger
	userID string
}

func (s *subscription) Notifications() <-chan dataservice.Notification {
	return s.out
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		// Closing the PubSub unblocks a pending Receive
		err = s.pubsub.Close()
		<-s.done
	})
	return err
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)

	for {
		msg, err := s.pubsub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.ErrClosed) {
				s.emit(ctx, dataservice.Notification{Status: dataservice.StatusClosed, Err: err})
				return
			}
			s.logger.Debug("change feed receive failed",
				logger.String("user_id", s.userID),
				logger.Error(err))
			if !s.emit(ctx, dataservice.Notification{Status: dataservice.StatusChannelError, Err: err}) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveRetryPause):
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" {
				if !s.emit(ctx, dataservice.Notification{Status: dataservice.StatusSubscribed}) {
					return
				}
			}
		case *redis.Message:
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				s.logger.Warn("dropping malformed change event",
					logger.String("channel", m.Channel),
					logger.Error(err))
				continue
			}
			if !routedToOwner(m.Channel, ev) {
				s.logger.Warn("dropping change event published on another user's channel",
					logger.String("channel", m.Channel),
					logger.String("owner_id", ev.OwnerID()))
				continue
			}
			if !s.emit(ctx, dataservice.Notification{Event: &ev}) {
				return
			}
		}
	}
}

// routedToOwner reports whether ev was published on its owner's channel.
// Events without a record carry no owner and pass.
func routedToOwner(channel string, ev domain.ChangeEvent) bool {
	userID, err := ExtractUserID(channel)
	if err != nil {
		return false
	}
	owner := ev.OwnerID()
	return owner == "" || owner == userID
}

func (s *subscription) emit(ctx context.Context, n dataservice.Notification) bool {
	select {
	case s.out <- n:
		return true
	case <-ctx.Done():
		return false
	}
}
