package feed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/postboard/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestBus creates a RedisBus connected to a miniredis instance
func setupTestBus(t *testing.T) (*RedisBus, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	bus, err := NewRedisBus(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })

	return bus, mr
}

func TestNewRedisBus(t *testing.T) {
	t.Run("creates bus successfully", func(t *testing.T) {
		bus, _ := setupTestBus(t)
		assert.Equal(t, "test", bus.namespace)
		assert.NoError(t, bus.Ping(context.Background()))
	})

	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := NewRedisBus(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "namespace cannot be empty")
	})
}

func TestRedisBus_PublishSubscribe(t *testing.T) {
	bus, _ := setupTestBus(t)
	ctx := context.Background()

	sub, err := bus.SubscribePostAdded(ctx)
	require.NoError(t, err)
	defer sub.Close()

	ev := model.PostAdded{ID: 12, Title: "T3", Content: "C3"}
	require.NoError(t, bus.PublishPostAdded(ctx, ev))

	got := receive(t, sub)
	assert.Equal(t, ev, *got)
}

func TestRedisBus_NamespaceIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	a, err := NewRedisBus(&redis.Options{Addr: mr.Addr()}, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRedisBus(&redis.Options{Addr: mr.Addr()}, "b")
	require.NoError(t, err)
	defer b.Close()

	sub, err := b.SubscribePostAdded(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, a.PublishPostAdded(ctx, model.PostAdded{ID: 1}))
	require.NoError(t, b.PublishPostAdded(ctx, model.PostAdded{ID: 2}))

	assert.Equal(t, int32(2), receive(t, sub).ID)
}

func TestRedisBus_MalformedPayload(t *testing.T) {
	bus, mr := setupTestBus(t)
	ctx := context.Background()

	sub, err := bus.SubscribePostAdded(ctx)
	require.NoError(t, err)
	defer sub.Close()

	mr.Publish(PostAddedChannel("test"), "not json")

	select {
	case err := <-sub.Errors():
		assert.Contains(t, err.Error(), "failed to unmarshal post_added event")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error")
	}

	// The subscription keeps delivering after a bad message.
	require.NoError(t, bus.PublishPostAdded(ctx, model.PostAdded{ID: 7}))
	assert.Equal(t, int32(7), receive(t, sub).ID)
}

func TestRedisBus_CloseSubscription(t *testing.T) {
	bus, _ := setupTestBus(t)

	sub, err := bus.SubscribePostAdded(context.Background())
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestPostAddedChannel(t *testing.T) {
	assert.Equal(t, "postboard:prod:post_added_events", PostAddedChannel("prod"))
}

func TestOpen(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		bus, err := Open(DriverMemory, "", "")
		require.NoError(t, err)
		defer bus.Close()
		assert.IsType(t, &MemoryBus{}, bus)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		bus, err := Open(DriverRedis, "redis://"+mr.Addr(), "ns")
		require.NoError(t, err)
		defer bus.Close()
		assert.NoError(t, bus.Ping(context.Background()))
	})

	t.Run("redis with bad url", func(t *testing.T) {
		_, err := Open(DriverRedis, "::", "ns")
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open("kafka", "", "")
		assert.Error(t, err)
	})
}
