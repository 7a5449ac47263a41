// Package posts exposes the Posts service over GraphQL, including the
// postAdded subscription fed by a feed.Bus.
package posts

import (
	"context"
	"log"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/storage"
	"github.com/dyluth/postboard/pkg/feed"
)

// Schema is the Posts service GraphQL schema.
const Schema = `
schema {
	query: Query
	mutation: Mutation
	subscription: Subscription
}

type Post {
	id: Int!
	title: String!
	content: String!
	userId: Int
}

type Query {
	posts: [Post!]!
	post(id: Int!): Post
}

type Mutation {
	createPost(title: String!, content: String!, userId: Int): Post!
	updatePost(id: Int!, title: String, content: String): Post!
	deletePost(id: Int!): Post!
}

type Subscription {
	postAdded: Post!
}
`

// NewSchema parses Schema against a resolver backed by store and bus.
func NewSchema(store storage.PostStore, bus feed.Bus) *graphql.Schema {
	return graphql.MustParseSchema(Schema, &Resolver{store: store, bus: bus})
}

// Resolver is the root resolver for queries, mutations and subscriptions.
type Resolver struct {
	store storage.PostStore
	bus   feed.Bus
}

func (r *Resolver) Posts(ctx context.Context) ([]*postResolver, error) {
	posts, err := r.store.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*postResolver, len(posts))
	for i := range posts {
		out[i] = &postResolver{p: posts[i]}
	}
	return out, nil
}

// Post returns null for an unknown id rather than an error.
func (r *Resolver) Post(ctx context.Context, args struct{ ID int32 }) (*postResolver, error) {
	p, err := r.store.GetPost(ctx, args.ID)
	if storage.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &postResolver{p: *p}, nil
}

// CreatePost stores the post, then announces it on the bus. A failed publish
// is logged; the mutation still succeeds because the row is committed.
func (r *Resolver) CreatePost(ctx context.Context, args struct {
	Title   string
	Content string
	UserID  *int32
}) (*postResolver, error) {
	p, err := r.store.CreatePost(ctx, args.Title, args.Content, args.UserID)
	if err != nil {
		return nil, err
	}

	if err := r.bus.PublishPostAdded(ctx, model.PostAddedFrom(*p)); err != nil {
		log.Printf("[Posts] Failed to publish postAdded for post %d: %v", p.ID, err)
	}

	return &postResolver{p: *p}, nil
}

func (r *Resolver) UpdatePost(ctx context.Context, args struct {
	ID      int32
	Title   *string
	Content *string
}) (*postResolver, error) {
	p, err := r.store.UpdatePost(ctx, args.ID, model.PostPatch{Title: args.Title, Content: args.Content})
	if err != nil {
		return nil, err
	}
	return &postResolver{p: *p}, nil
}

func (r *Resolver) DeletePost(ctx context.Context, args struct{ ID int32 }) (*postResolver, error) {
	p, err := r.store.DeletePost(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	return &postResolver{p: *p}, nil
}

// PostAdded streams every post created after the subscription starts.
// Events carry no author, so userId resolves to null on this path.
func (r *Resolver) PostAdded(ctx context.Context) <-chan *postResolver {
	out := make(chan *postResolver)

	sub, err := r.bus.SubscribePostAdded(ctx)
	if err != nil {
		log.Printf("[Posts] Failed to subscribe to postAdded: %v", err)
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				post := model.Post{ID: ev.ID, Title: ev.Title, Content: ev.Content}
				select {
				case out <- &postResolver{p: post}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-sub.Errors():
				if !ok {
					return
				}
				log.Printf("[Posts] postAdded subscription error: %v", err)
			}
		}
	}()

	return out
}

type postResolver struct {
	p model.Post
}

func (r *postResolver) ID() int32       { return r.p.ID }
func (r *postResolver) Title() string   { return r.p.Title }
func (r *postResolver) Content() string { return r.p.Content }
func (r *postResolver) UserID() *int32  { return r.p.UserID }
