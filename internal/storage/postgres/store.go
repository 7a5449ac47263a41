// Package postgres implements storage.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/dyluth/postboard/internal/storage/postgres")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS posts (
    id SERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    user_id INTEGER
);`

// Store is a Postgres-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// Open connects to dsn and creates the tables if they are missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap postgres schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping verifies the pool can reach the server.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.ListUsers")
	defer span.End()

	rows, err := s.pool.Query(ctx, "SELECT id, name, email FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.User, error) {
		var u model.User
		err := row.Scan(&u.ID, &u.Name, &u.Email)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id int32) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.GetUser")
	defer span.End()

	row := s.pool.QueryRow(ctx, "SELECT id, name, email FROM users WHERE id = $1", id)
	return scanUser(row, "get user", id)
}

func (s *Store) CreateUser(ctx context.Context, name, email string) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreateUser")
	defer span.End()

	var u model.User
	err := s.pool.QueryRow(ctx,
		"INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id, name, email",
		name, email,
	).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int32, patch model.UserPatch) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.UpdateUser")
	defer span.End()

	row := s.pool.QueryRow(ctx,
		`UPDATE users SET name = COALESCE($2, name), email = COALESCE($3, email)
		 WHERE id = $1 RETURNING id, name, email`,
		id, patch.Name, patch.Email,
	)
	return scanUser(row, "update user", id)
}

func (s *Store) DeleteUser(ctx context.Context, id int32) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "postgres.DeleteUser")
	defer span.End()

	row := s.pool.QueryRow(ctx, "DELETE FROM users WHERE id = $1 RETURNING id, name, email", id)
	return scanUser(row, "delete user", id)
}

func (s *Store) ListPosts(ctx context.Context) ([]model.Post, error) {
	ctx, span := tracer.Start(ctx, "postgres.ListPosts")
	defer span.End()

	rows, err := s.pool.Query(ctx, "SELECT id, title, content, user_id FROM posts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Post, error) {
		var p model.Post
		err := row.Scan(&p.ID, &p.Title, &p.Content, &p.UserID)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (s *Store) GetPost(ctx context.Context, id int32) (*model.Post, error) {
	ctx, span := tracer.Start(ctx, "postgres.GetPost")
	defer span.End()

	row := s.pool.QueryRow(ctx, "SELECT id, title, content, user_id FROM posts WHERE id = $1", id)
	return scanPost(row, "get post", id)
}

func (s *Store) CreatePost(ctx context.Context, title, content string, userID *int32) (*model.Post, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreatePost")
	defer span.End()

	row := s.pool.QueryRow(ctx,
		"INSERT INTO posts (title, content, user_id) VALUES ($1, $2, $3) RETURNING id, title, content, user_id",
		title, content, userID,
	)
	return scanPost(row, "create post", 0)
}

func (s *Store) UpdatePost(ctx context.Context, id int32, patch model.PostPatch) (*model.Post, error) {
	ctx, span := tracer.Start(ctx, "postgres.UpdatePost")
	defer span.End()

	row := s.pool.QueryRow(ctx,
		`UPDATE posts SET title = COALESCE($2, title), content = COALESCE($3, content)
		 WHERE id = $1 RETURNING id, title, content, user_id`,
		id, patch.Title, patch.Content,
	)
	return scanPost(row, "update post", id)
}

func (s *Store) DeletePost(ctx context.Context, id int32) (*model.Post, error) {
	ctx, span := tracer.Start(ctx, "postgres.DeletePost")
	defer span.End()

	row := s.pool.QueryRow(ctx, "DELETE FROM posts WHERE id = $1 RETURNING id, title, content, user_id", id)
	return scanPost(row, "delete post", id)
}

func scanUser(row pgx.Row, op string, id int32) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %d: %w", op, id, err)
	}
	return &u, nil
}

func scanPost(row pgx.Row, op string, id int32) (*model.Post, error) {
	var p model.Post
	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %d: %w", op, id, err)
	}
	return &p, nil
}
