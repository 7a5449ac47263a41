package feed

import (
	"context"
	"testing"
	"time"

	"github.com/dyluth/postboard/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) *model.PostAdded {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "events channel closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestMemoryBus_FanOut(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	first, err := bus.SubscribePostAdded(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := bus.SubscribePostAdded(ctx)
	require.NoError(t, err)
	defer second.Close()

	ev := model.PostAdded{ID: 12, Title: "T3", Content: "C3"}
	require.NoError(t, bus.PublishPostAdded(ctx, ev))

	assert.Equal(t, ev, *receive(t, first))
	assert.Equal(t, ev, *receive(t, second))
}

func TestMemoryBus_PreservesOrder(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	sub, err := bus.SubscribePostAdded(ctx)
	require.NoError(t, err)
	defer sub.Close()

	for i := int32(1); i <= 5; i++ {
		require.NoError(t, bus.PublishPostAdded(ctx, model.PostAdded{ID: i}))
	}
	for i := int32(1); i <= 5; i++ {
		assert.Equal(t, i, receive(t, sub).ID)
	}
}

func TestMemoryBus_DropsForSlowSubscriber(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	sub, err := bus.SubscribePostAdded(ctx)
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, bus.PublishPostAdded(ctx, model.PostAdded{ID: int32(i)}))
	}

	assert.Len(t, sub.Events(), subscriberBuffer)
}

func TestMemoryBus_CloseSubscription(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	sub, err := bus.SubscribePostAdded(ctx)
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "second close is a no-op")

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "events channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Close")
	}

	assert.Eventually(t, func() bool { return bus.subscriberCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.NoError(t, bus.PublishPostAdded(ctx, model.PostAdded{ID: 1}))
}

func TestMemoryBus_ContextCancelEndsSubscription(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := bus.SubscribePostAdded(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub, err := bus.SubscribePostAdded(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not ended by bus close")
	}

	assert.ErrorIs(t, bus.PublishPostAdded(ctx, model.PostAdded{}), ErrClosed)
	_, err = bus.SubscribePostAdded(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, bus.Ping(ctx), ErrClosed)
}
