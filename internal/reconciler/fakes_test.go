package reconciler

import (
	"context"
	"sync"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/source"
)

type fakeUsers struct {
	users []model.User
	err   error
	// before runs at the start of every fetch when set.
	before func(ctx context.Context)
}

func (f *fakeUsers) FetchUsers(ctx context.Context) ([]model.User, error) {
	if f.before != nil {
		f.before(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.users, nil
}

type fakePosts struct {
	posts  []model.Post
	err    error
	before func(ctx context.Context)
}

func (f *fakePosts) FetchPosts(ctx context.Context) ([]model.Post, error) {
	if f.before != nil {
		f.before(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.posts, nil
}

// fakeFeed records the callbacks handed to it so tests can push events.
type fakeFeed struct {
	mu         sync.Mutex
	onEvent    func(model.PostAdded)
	onError    func(error)
	subscribes int
	releases   int
	err        error
	// gate, when set, blocks SubscribePostAdded until it is closed;
	// entered is closed once a call is waiting on it.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeFeed) SubscribePostAdded(ctx context.Context, onEvent func(model.PostAdded), onError func(error)) (source.Subscription, error) {
	if f.gate != nil {
		close(f.entered)
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.subscribes++
	f.onEvent = onEvent
	f.onError = onError
	return &fakeSubscription{feed: f}, nil
}

func (f *fakeFeed) push(ev model.PostAdded) {
	f.mu.Lock()
	onEvent := f.onEvent
	f.mu.Unlock()
	onEvent(ev)
}

func (f *fakeFeed) fail(err error) {
	f.mu.Lock()
	onError := f.onError
	f.mu.Unlock()
	onError(err)
}

func (f *fakeFeed) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

func (f *fakeFeed) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

type fakeSubscription struct {
	feed *fakeFeed
	once sync.Once
}

func (s *fakeSubscription) Release() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		s.feed.releases++
		s.feed.mu.Unlock()
	})
}

func userID(id int32) *int32 {
	return &id
}

// annScenario is one known author with one authored and one orphaned post.
func annScenario() (*fakeUsers, *fakePosts) {
	users := &fakeUsers{users: []model.User{{ID: 1, Name: "Ann", Email: "ann@example.com"}}}
	posts := &fakePosts{posts: []model.Post{
		{ID: 1, Title: "T1", Content: "C1", UserID: userID(1)},
		{ID: 2, Title: "T2", Content: "C2", UserID: userID(2)},
	}}
	return users, posts
}
