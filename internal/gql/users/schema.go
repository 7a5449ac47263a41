// Package users exposes the Users service over GraphQL. Every resolver is a
// direct pass-through to storage.UserStore.
package users

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/storage"
)

// Schema is the Users service GraphQL schema.
const Schema = `
schema {
	query: Query
	mutation: Mutation
}

type User {
	id: Int!
	name: String!
	email: String!
}

type Query {
	users: [User!]!
	user(id: Int!): User
}

type Mutation {
	createUser(name: String!, email: String!): User!
	updateUser(id: Int!, name: String, email: String): User!
	deleteUser(id: Int!): User!
}
`

// NewSchema parses Schema against a resolver backed by store.
func NewSchema(store storage.UserStore) *graphql.Schema {
	return graphql.MustParseSchema(Schema, &Resolver{store: store})
}

// Resolver is the root resolver for queries and mutations.
type Resolver struct {
	store storage.UserStore
}

func (r *Resolver) Users(ctx context.Context) ([]*userResolver, error) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*userResolver, len(users))
	for i := range users {
		out[i] = &userResolver{u: users[i]}
	}
	return out, nil
}

// User returns null for an unknown id rather than an error.
func (r *Resolver) User(ctx context.Context, args struct{ ID int32 }) (*userResolver, error) {
	u, err := r.store.GetUser(ctx, args.ID)
	if storage.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &userResolver{u: *u}, nil
}

func (r *Resolver) CreateUser(ctx context.Context, args struct {
	Name  string
	Email string
}) (*userResolver, error) {
	u, err := r.store.CreateUser(ctx, args.Name, args.Email)
	if err != nil {
		return nil, err
	}
	return &userResolver{u: *u}, nil
}

func (r *Resolver) UpdateUser(ctx context.Context, args struct {
	ID    int32
	Name  *string
	Email *string
}) (*userResolver, error) {
	u, err := r.store.UpdateUser(ctx, args.ID, model.UserPatch{Name: args.Name, Email: args.Email})
	if err != nil {
		return nil, err
	}
	return &userResolver{u: *u}, nil
}

func (r *Resolver) DeleteUser(ctx context.Context, args struct{ ID int32 }) (*userResolver, error) {
	u, err := r.store.DeleteUser(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	return &userResolver{u: *u}, nil
}

type userResolver struct {
	u model.User
}

func (r *userResolver) ID() int32     { return r.u.ID }
func (r *userResolver) Name() string  { return r.u.Name }
func (r *userResolver) Email() string { return r.u.Email }
