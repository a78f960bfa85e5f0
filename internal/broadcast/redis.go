package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// KeyPrefixBroadcast is the prefix of broadcast pub/sub channels
const KeyPrefixBroadcast = "nexmark:broadcast:"

// envelope is the wire format on Redis; Origin lets receivers drop their own posts.
type envelope struct {
	Origin  string         `json:"origin"`
	Message domain.Message `json:"message"`
}

// RedisBus relays channels through Redis pub/sub so that dashboards
// served by different instances reach each other.
type RedisBus struct {
	client *redis.Client
	buffer int
	logger logger.Logger
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus creates a bus on client. A buffer <= 0 selects DefaultBuffer.
func NewRedisBus(client *redis.Client, buffer int, log logger.Logger) *RedisBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &RedisBus{client: client, buffer: buffer, logger: log}
}

// Join subscribes a new endpoint and waits for the subscription to be confirmed
func (b *RedisBus) Join(ctx context.Context, name string) (Endpoint, error) {
	channel := KeyPrefixBroadcast + name
	ps := b.client.Subscribe(ctx, channel)

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to join broadcast channel: %w", err)
	}

	ep := &redisEndpoint{
		bus:     b,
		id:      newEndpointID(),
		name:    name,
		channel: channel,
		pubsub:  ps,
		out:     make(chan domain.Message, b.buffer),
		done:    make(chan struct{}),
	}
	go ep.run()
	return ep, nil
}

// Close is a no-op: the client is owned by the caller
func (b *RedisBus) Close() error {
	return nil
}

type redisEndpoint struct {
	bus     *RedisBus
	id      string
	name    string
	channel string
	pubsub  *redis.PubSub
	out     chan domain.Message
	done    chan struct{}
	once    sync.Once
}

func (e *redisEndpoint) ID() string   { return e.id }
func (e *redisEndpoint) Name() string { return e.name }

func (e *redisEndpoint) Post(ctx context.Context, msg domain.Message) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	payload, err := json.Marshal(envelope{Origin: e.id, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast message: %w", err)
	}
	if err := e.bus.client.Publish(ctx, e.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish broadcast message: %w", err)
	}
	return nil
}

func (e *redisEndpoint) Messages() <-chan domain.Message { return e.out }

func (e *redisEndpoint) Close() error {
	var err error
	e.once.Do(func() {
		close(e.done)
		err = e.pubsub.Close()
	})
	return err
}

func (e *redisEndpoint) run() {
	defer close(e.out)

	// Channel is closed by pubsub.Close
	for m := range e.pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
			e.bus.logger.Warn("dropping malformed broadcast message",
				logger.String("channel", e.name),
				logger.Error(err))
			continue
		}
		if env.Origin == e.id {
			continue
		}

		select {
		case e.out <- env.Message:
		case <-e.done:
			return
		default:
			e.bus.logger.Debug("broadcast endpoint lagging, message dropped",
				logger.String("channel", e.name),
				logger.String("endpoint", e.id))
		}
	}
}
