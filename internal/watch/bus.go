package watch

import (
	"context"
	"sync"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/source"
	"github.com/dyluth/postboard/pkg/feed"
)

// BusFeed reads postAdded events straight from a feed.Bus, bypassing the
// Posts service websocket endpoint.
type BusFeed struct {
	Bus feed.Bus
}

// SubscribePostAdded subscribes to the bus and forwards events to onEvent on
// a single goroutine until the subscription is released or ctx ends.
func (f BusFeed) SubscribePostAdded(ctx context.Context, onEvent func(model.PostAdded), onError func(error)) (source.Subscription, error) {
	sub, err := f.Bus.SubscribePostAdded(ctx)
	if err != nil {
		return nil, err
	}

	bs := &busSubscription{sub: sub, done: make(chan struct{})}
	go func() {
		defer close(bs.done)
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				onEvent(*ev)
			case err, ok := <-sub.Errors():
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()
	return bs, nil
}

type busSubscription struct {
	sub  *feed.Subscription
	done chan struct{}
	once sync.Once
}

// Release closes the bus subscription and waits for the forwarding
// goroutine, so no callback runs after it returns.
func (s *busSubscription) Release() {
	s.once.Do(func() {
		s.sub.Close()
		<-s.done
	})
}
