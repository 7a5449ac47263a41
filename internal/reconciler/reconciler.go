// Package reconciler maintains the client-side view of posts joined with
// their authors: one bulk join at start, then live postAdded events appended
// in arrival order, with pagination and single-row expansion on top.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/source"
)

// DefaultPageSize is the page size of a new Reconciler.
const DefaultPageSize = 5

// PageSizeOptions are the page sizes offered to users.
var PageSizeOptions = []int{5, 10, 25}

var (
	// ErrDisposed is returned by operations attempted after Dispose.
	ErrDisposed = errors.New("reconciler: disposed")

	// ErrAlreadyInitialized is returned when Initialize is called again
	// after a successful run.
	ErrAlreadyInitialized = errors.New("reconciler: already initialized")
)

// InitError reports which bulk read failed during Initialize.
type InitError struct {
	Source string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Source, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Reconciler owns the joined record sequence and its presentation state.
// All mutations are serialized by mu; callers may use it from any goroutine.
type Reconciler struct {
	users source.UserSource
	posts source.PostSource
	feed  source.LiveFeed

	mu          sync.Mutex
	records     []model.JoinedRecord
	page        int
	pageSize    int
	expanded    *int32
	initialized bool
	sub         source.Subscription
	disposed    bool
	onChange    func()
}

// New creates a Reconciler reading from users and posts and following feed.
func New(users source.UserSource, posts source.PostSource, feed source.LiveFeed) *Reconciler {
	return &Reconciler{
		users:    users,
		posts:    posts,
		feed:     feed,
		records:  []model.JoinedRecord{},
		pageSize: DefaultPageSize,
	}
}

// OnChange registers fn to run after every state change. fn runs outside the
// lock and may call back into the Reconciler.
func (r *Reconciler) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Start subscribes to the live feed, then runs the bulk join. The
// subscription is held even when initialization fails, until Dispose.
func (r *Reconciler) Start(ctx context.Context) error {
	subErr := r.Subscribe(ctx)
	initErr := r.Initialize(ctx)
	return errors.Join(subErr, initErr)
}

// Subscribe acquires the live feed. Calling it again while subscribed is a
// no-op.
func (r *Reconciler) Subscribe(ctx context.Context) error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return ErrDisposed
	}
	if r.sub != nil {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	sub, err := r.feed.SubscribePostAdded(ctx, r.OnLiveEvent, r.onLiveError)
	if err != nil {
		log.Printf("[Reconciler] Failed to subscribe to postAdded: %v", err)
		return fmt.Errorf("failed to subscribe to postAdded: %w", err)
	}

	r.mu.Lock()
	if r.disposed || r.sub != nil {
		disposed := r.disposed
		r.mu.Unlock()
		sub.Release()
		if disposed {
			return ErrDisposed
		}
		return nil
	}
	r.sub = sub
	r.mu.Unlock()

	r.logEvent("subscribed", map[string]interface{}{})
	return nil
}

// Initialize reads users and posts concurrently and replaces the sequence
// with their join. On failure the sequence keeps its prior value and the
// error, an *InitError, is logged and returned. Events appended before a
// successful Initialize completes are replaced.
func (r *Reconciler) Initialize(ctx context.Context) error {
	ctx, span := otel.Tracer("postboard/reconciler").Start(ctx, "reconciler.Initialize")
	defer span.End()

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return ErrDisposed
	}
	if r.initialized {
		r.mu.Unlock()
		return ErrAlreadyInitialized
	}
	r.mu.Unlock()

	var (
		users []model.User
		posts []model.Post
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := r.users.FetchUsers(gctx)
		if err != nil {
			return &InitError{Source: "users", Err: err}
		}
		users = u
		return nil
	})
	g.Go(func() error {
		p, err := r.posts.FetchPosts(gctx)
		if err != nil {
			return &InitError{Source: "posts", Err: err}
		}
		posts = p
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("[Reconciler] Initialization failed: %v", err)
		return err
	}

	joined := Join(users, posts)

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return ErrDisposed
	}
	if r.initialized {
		r.mu.Unlock()
		return ErrAlreadyInitialized
	}
	r.records = joined
	r.initialized = true
	notify := r.onChange
	r.mu.Unlock()

	span.SetAttributes(
		attribute.Int("users", len(users)),
		attribute.Int("posts", len(posts)),
	)
	r.logEvent("initialized", map[string]interface{}{
		"users": len(users),
		"posts": len(posts),
	})

	if notify != nil {
		notify()
	}
	return nil
}

// OnLiveEvent appends ev as a record with an unknown author. Events are
// neither reordered nor deduplicated. Ignored after Dispose.
func (r *Reconciler) OnLiveEvent(ev model.PostAdded) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.records = append(r.records, liveRecord(ev))
	notify := r.onChange
	r.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// onLiveError logs a live feed failure. The feed is not re-established.
func (r *Reconciler) onLiveError(err error) {
	log.Printf("[Reconciler] postAdded subscription error: %v", err)
}

// Dispose releases the live subscription. No event changes the state once
// Dispose has returned. Safe to call multiple times.
func (r *Reconciler) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	sub := r.sub
	r.sub = nil
	r.mu.Unlock()

	if sub != nil {
		sub.Release()
	}
	r.logEvent("disposed", map[string]interface{}{})
}

// Initialized reports whether a bulk join has completed.
func (r *Reconciler) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// Subscribed reports whether the live feed is held.
func (r *Reconciler) Subscribed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sub != nil
}

// Disposed reports whether Dispose has been called.
func (r *Reconciler) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

func (r *Reconciler) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "reconciler"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Reconciler] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
