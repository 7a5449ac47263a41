// Package source defines the upstream contracts the table client consumes:
// two bulk reads and one live feed.
package source

import (
	"context"

	"github.com/dyluth/postboard/internal/model"
)

// UserSource performs a one-shot read of every user.
type UserSource interface {
	FetchUsers(ctx context.Context) ([]model.User, error)
}

// PostSource performs a one-shot read of every post.
type PostSource interface {
	FetchPosts(ctx context.Context) ([]model.Post, error)
}

// LiveFeed delivers postAdded events in arrival order until the returned
// Subscription is released. onError is a notification only.
type LiveFeed interface {
	SubscribePostAdded(ctx context.Context, onEvent func(model.PostAdded), onError func(error)) (Subscription, error)
}

// Subscription is a held live feed. Release must be safe to call more than once.
type Subscription interface {
	Release()
}
