package gqlclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/source"
	"github.com/dyluth/postboard/internal/transport/ws"
)

const postAddedSubscription = `subscription { postAdded { id title content } }`

// LiveFeed subscribes to postAdded on the Posts service websocket endpoint.
type LiveFeed struct {
	url string
}

// NewLiveFeed creates a LiveFeed for the endpoint at url (ws:// or wss://).
func NewLiveFeed(url string) *LiveFeed {
	return &LiveFeed{url: url}
}

// SubscribePostAdded opens a dedicated connection and starts the
// subscription. Releasing the subscription also closes the connection.
func (f *LiveFeed) SubscribePostAdded(ctx context.Context, onEvent func(model.PostAdded), onError func(error)) (source.Subscription, error) {
	client, err := ws.Dial(ctx, f.url)
	if err != nil {
		return nil, err
	}

	onNext := func(data json.RawMessage) {
		var payload struct {
			PostAdded model.PostAdded `json:"postAdded"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			if onError != nil {
				onError(fmt.Errorf("undecodable postAdded payload: %w", err))
			}
			return
		}
		onEvent(payload.PostAdded)
	}

	sub, err := client.Subscribe(ctx, postAddedSubscription, nil, onNext, onError)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &liveSubscription{sub: sub, client: client}, nil
}

type liveSubscription struct {
	sub    *ws.Subscription
	client *ws.Client
	once   sync.Once
}

func (s *liveSubscription) Release() {
	s.once.Do(func() {
		s.sub.Release()
		s.client.Close()
	})
}
