package broadcast

import (
	"context"
	"sync"

	"github.com/Umairyojo/NexMark/internal/domain"
	"github.com/Umairyojo/NexMark/internal/logger"
)

// MemoryBus connects endpoints living in the same process.
type MemoryBus struct {
	mu       sync.RWMutex
	channels map[string]map[*memoryEndpoint]struct{}
	buffer   int
	closed   bool
	logger   logger.Logger
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates an in-process bus. A buffer <= 0 selects DefaultBuffer.
func NewMemoryBus(buffer int, log logger.Logger) *MemoryBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &MemoryBus{
		channels: make(map[string]map[*memoryEndpoint]struct{}),
		buffer:   buffer,
		logger:   log,
	}
}

// Join opens an endpoint on the named channel
func (b *MemoryBus) Join(_ context.Context, name string) (Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	ep := &memoryEndpoint{
		bus:  b,
		id:   newEndpointID(),
		name: name,
		out:  make(chan domain.Message, b.buffer),
	}
	set, ok := b.channels[name]
	if !ok {
		set = make(map[*memoryEndpoint]struct{})
		b.channels[name] = set
	}
	set[ep] = struct{}{}
	return ep, nil
}

// Members returns the number of open endpoints on a channel
func (b *MemoryBus) Members(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[name])
}

// Close closes every endpoint
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for name, set := range b.channels {
		for ep := range set {
			ep.closeLocked()
		}
		delete(b.channels, name)
	}
	return nil
}

func (b *MemoryBus) deliver(from *memoryEndpoint, msg domain.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if from.closed {
		return ErrClosed
	}
	for ep := range b.channels[from.name] {
		if ep == from {
			continue
		}
		select {
		case ep.out <- msg:
		default:
			b.logger.Debug("broadcast endpoint lagging, message dropped",
				logger.String("channel", from.name),
				logger.String("endpoint", ep.id))
		}
	}
	return nil
}

func (b *MemoryBus) leave(ep *memoryEndpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.channels[ep.name]; ok {
		delete(set, ep)
		if len(set) == 0 {
			delete(b.channels, ep.name)
		}
	}
	ep.closeLocked()
}

type memoryEndpoint struct {
	bus    *MemoryBus
	id     string
	name   string
	out    chan domain.Message
	closed bool // guarded by bus.mu
}

func (e *memoryEndpoint) ID() string   { return e.id }
func (e *memoryEndpoint) Name() string { return e.name }

func (e *memoryEndpoint) Post(_ context.Context, msg domain.Message) error {
	return e.bus.deliver(e, msg)
}

func (e *memoryEndpoint) Messages() <-chan domain.Message { return e.out }

func (e *memoryEndpoint) Close() error {
	e.bus.leave(e)
	return nil
}

func (e *memoryEndpoint) closeLocked() {
	if e.closed {
		return
	}
	e.closed = true
	close(e.out)
}
