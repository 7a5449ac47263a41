package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyluth/postboard/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisBus fans postAdded events out through Redis Pub/Sub.
// The bus is thread-safe and can be used concurrently from multiple goroutines.
type RedisBus struct {
	rdb       *redis.Client
	namespace string
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus creates a bus whose channel is namespaced with namespace.
// Returns an error if namespace is empty.
func NewRedisBus(redisOpts *redis.Options, namespace string) (*RedisBus, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	return &RedisBus{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

// Ping verifies Redis connectivity.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// PublishPostAdded publishes ev as JSON on the namespaced channel.
func (b *RedisBus) PublishPostAdded(ctx context.Context, ev model.PostAdded) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal post_added event: %w", err)
	}

	channel := PostAddedChannel(b.namespace)
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish post_added event: %w", err)
	}
	return nil
}

// SubscribePostAdded subscribes to the namespaced channel and waits for Redis
// to confirm the subscription before returning, so events published after
// this call returns are delivered.
//
// Events are delivered on a buffered channel. If the subscriber is too slow,
// events may be dropped by Redis Pub/Sub (at-most-once delivery).
func (b *RedisBus) SubscribePostAdded(ctx context.Context) (*Subscription, error) {
	channel := PostAddedChannel(b.namespace)
	pubsub := b.rdb.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	eventsChan := make(chan *model.PostAdded, subscriberBuffer)
	errorsChan := make(chan error, subscriberBuffer)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev model.PostAdded
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					// Skip the message, report it, keep going.
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal post_added event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
