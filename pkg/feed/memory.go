package feed

import (
	"context"
	"log"
	"sync"

	"github.com/dyluth/postboard/internal/model"
)

// MemoryBus is an in-process Bus. Each subscriber owns a buffered channel;
// publishing never blocks and drops the event for a subscriber whose buffer
// is full.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[uint64]*memorySubscriber
	nextID uint64
	closed bool
}

type memorySubscriber struct {
	events chan *model.PostAdded
	errors chan error
	cancel context.CancelFunc
}

var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus returns an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uint64]*memorySubscriber)}
}

// PublishPostAdded delivers ev to every current subscriber.
func (b *MemoryBus) PublishPostAdded(ctx context.Context, ev model.PostAdded) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	for id, sub := range b.subs {
		event := ev
		select {
		case sub.events <- &event:
		default:
			log.Printf("[Feed] Dropping post_added event %d for slow subscriber %d", ev.ID, id)
		}
	}
	return nil
}

// SubscribePostAdded registers a new subscriber. The subscription ends when
// Close is called, ctx is cancelled, or the bus is closed.
func (b *MemoryBus) SubscribePostAdded(ctx context.Context) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	id := b.nextID
	b.nextID++
	sub := &memorySubscriber{
		events: make(chan *model.PostAdded, subscriberBuffer),
		errors: make(chan error, subscriberBuffer),
		cancel: cancel,
	}
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		<-subCtx.Done()
		b.remove(id)
	}()

	return &Subscription{
		events: sub.events,
		errors: sub.errors,
		cancel: cancel,
	}, nil
}

// remove unregisters a subscriber and closes its channels. Channels are only
// closed under the bus lock so a concurrent publish never sends on them.
func (b *MemoryBus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.events)
	close(sub.errors)
}

// Ping always succeeds for an open bus.
func (b *MemoryBus) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close ends every subscription. Implements io.Closer.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*memorySubscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
	return nil
}

// subscriberCount is used by tests to observe cleanup.
func (b *MemoryBus) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
