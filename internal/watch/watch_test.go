package watch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/source"
	"github.com/dyluth/postboard/internal/table"
	"github.com/dyluth/postboard/pkg/feed"
)

// syncBuffer is a bytes.Buffer safe for the writer goroutine and test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

type erroringFeed struct{}

func (erroringFeed) SubscribePostAdded(context.Context, func(model.PostAdded), func(error)) (source.Subscription, error) {
	return nil, errors.New("dial refused")
}

func TestStreamPosts(t *testing.T) {
	tests := []struct {
		name   string
		format table.OutputFormat
		want   string
	}{
		{"default", table.OutputFormatDefault, "📝 Post #3 added: T3 - C3\n"},
		{"jsonl", table.OutputFormatJSONL, `{"id":3,"title":"T3","content":"C3"}` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := feed.NewMemoryBus()
			defer bus.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var out syncBuffer
			done := make(chan error, 1)
			go func() { done <- StreamPosts(ctx, BusFeed{Bus: bus}, tt.format, &out) }()

			require.Eventually(t, func() bool {
				_ = bus.PublishPostAdded(ctx, model.PostAdded{ID: 3, Title: "T3", Content: "C3"})
				return out.String() != ""
			}, 2*time.Second, 20*time.Millisecond)

			cancel()
			require.NoError(t, <-done)
			assert.True(t, strings.HasPrefix(out.String(), tt.want))
		})
	}
}

func TestStreamPostsErrors(t *testing.T) {
	t.Run("unsupported format", func(t *testing.T) {
		err := StreamPosts(context.Background(), erroringFeed{}, table.OutputFormatJSON, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unsupported stream format")
	})

	t.Run("subscribe failure", func(t *testing.T) {
		err := StreamPosts(context.Background(), erroringFeed{}, table.OutputFormatDefault, &bytes.Buffer{})
		assert.ErrorContains(t, err, "dial refused")
	})

	t.Run("write failure ends the stream", func(t *testing.T) {
		bus := feed.NewMemoryBus()
		defer bus.Close()

		done := make(chan error, 1)
		go func() {
			done <- StreamPosts(context.Background(), BusFeed{Bus: bus}, table.OutputFormatDefault, failingWriter{})
		}()

		deadline := time.After(2 * time.Second)
		for {
			require.NoError(t, bus.PublishPostAdded(context.Background(), model.PostAdded{ID: 1}))
			select {
			case err := <-done:
				assert.ErrorContains(t, err, "broken pipe")
				return
			case <-time.After(20 * time.Millisecond):
			case <-deadline:
				t.Fatal("stream did not stop")
			}
		}
	})
}

func TestBusFeedOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	bus, err := feed.Open("redis", "redis://"+mr.Addr(), "watch-test")
	require.NoError(t, err)
	defer bus.Close()

	events := make(chan model.PostAdded, 1)
	errs := make(chan error, 1)
	sub, err := BusFeed{Bus: bus}.SubscribePostAdded(context.Background(),
		func(ev model.PostAdded) { events <- ev },
		func(err error) { errs <- err })
	require.NoError(t, err)

	require.NoError(t, bus.PublishPostAdded(context.Background(), model.PostAdded{ID: 5, Title: "T5"}))
	select {
	case ev := <-events:
		assert.Equal(t, model.PostAdded{ID: 5, Title: "T5"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	mr.Publish(feed.PostAddedChannel("watch-test"), "not json")
	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for decode error")
	}

	sub.Release()
	sub.Release()

	require.NoError(t, bus.PublishPostAdded(context.Background(), model.PostAdded{ID: 6}))
	select {
	case ev := <-events:
		t.Fatalf("event delivered after release: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
