// Package storage defines the persistence contracts behind the Users and
// Posts services. Resolvers call these directly; there is no business layer.
package storage

import (
	"context"
	"errors"

	"github.com/dyluth/postboard/internal/model"
)

// ErrNotFound is returned when a record with the requested id does not exist.
var ErrNotFound = errors.New("record not found")

// UserStore is the CRUD surface of the Users service.
type UserStore interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id int32) (*model.User, error)
	CreateUser(ctx context.Context, name, email string) (*model.User, error)
	UpdateUser(ctx context.Context, id int32, patch model.UserPatch) (*model.User, error)
	DeleteUser(ctx context.Context, id int32) (*model.User, error)
}

// PostStore is the CRUD surface of the Posts service.
type PostStore interface {
	ListPosts(ctx context.Context) ([]model.Post, error)
	GetPost(ctx context.Context, id int32) (*model.Post, error)
	CreatePost(ctx context.Context, title, content string, userID *int32) (*model.Post, error)
	UpdatePost(ctx context.Context, id int32, patch model.PostPatch) (*model.Post, error)
	DeletePost(ctx context.Context, id int32) (*model.Post, error)
}

// Store is a relational backend holding both tables.
type Store interface {
	UserStore
	PostStore
	Ping(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
