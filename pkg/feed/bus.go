package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/dyluth/postboard/internal/model"
)

// subscriberBuffer is the per-subscriber queue depth before events are dropped.
const subscriberBuffer = 10

// ErrClosed is returned by operations on a closed Bus.
var ErrClosed = errors.New("feed: bus closed")

// Bus publishes postAdded events and hands out subscriptions to them.
type Bus interface {
	PublishPostAdded(ctx context.Context, ev model.PostAdded) error
	SubscribePostAdded(ctx context.Context) (*Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}

// Subscription represents an active subscription to postAdded events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *model.PostAdded
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of postAdded events.
// The channel is closed when the subscription is closed or its context ends.
func (s *Subscription) Events() <-chan *model.PostAdded {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors, such as
// undecodable payloads. The subscription keeps running after an error.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
