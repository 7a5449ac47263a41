// Package sqlite implements storage.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var tracer = otel.Tracer("github.com/dyluth/postboard/internal/storage/sqlite")

// Store is a SQLite-backed storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: an in-memory database lives on a single connection, and
	// SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(ctx, db, migrationFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database. Implements io.Closer.
func (s *Store) Close() error {
	return s.db.Close()
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqlite."+name)
}

// ListUsers returns every user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	ctx, span := startSpan(ctx, "ListUsers")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser returns the user with id, or storage.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int32) (*model.User, error) {
	ctx, span := startSpan(ctx, "GetUser")
	defer span.End()
	return getUser(ctx, s.db, id)
}

// CreateUser inserts a user and returns it with its assigned id.
func (s *Store) CreateUser(ctx context.Context, name, email string) (*model.User, error) {
	ctx, span := startSpan(ctx, "CreateUser")
	defer span.End()

	res, err := s.db.ExecContext(ctx, "INSERT INTO users (name, email) VALUES (?, ?)", name, email)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &model.User{ID: int32(id), Name: name, Email: email}, nil
}

// UpdateUser applies patch to the user with id and returns the stored result.
func (s *Store) UpdateUser(ctx context.Context, id int32, patch model.UserPatch) (*model.User, error) {
	ctx, span := startSpan(ctx, "UpdateUser")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET name = COALESCE(?, name), email = COALESCE(?, email) WHERE id = ?",
		nullable(patch.Name), nullable(patch.Email), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	if err := requireAffected(res); err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}
	return getUser(ctx, s.db, id)
}

// DeleteUser removes the user with id and returns the removed row.
func (s *Store) DeleteUser(ctx context.Context, id int32) (*model.User, error) {
	ctx, span := startSpan(ctx, "DeleteUser")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("delete user %d: %w", id, err)
	}
	defer tx.Rollback()

	u, err := getUser(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete user %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete user %d: %w", id, err)
	}
	return u, nil
}

// ListPosts returns every post ordered by id.
func (s *Store) ListPosts(ctx context.Context) ([]model.Post, error) {
	ctx, span := startSpan(ctx, "ListPosts")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, "SELECT id, title, content, user_id FROM posts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// GetPost returns the post with id, or storage.ErrNotFound.
func (s *Store) GetPost(ctx context.Context, id int32) (*model.Post, error) {
	ctx, span := startSpan(ctx, "GetPost")
	defer span.End()
	return getPost(ctx, s.db, id)
}

// CreatePost inserts a post and returns it with its assigned id.
func (s *Store) CreatePost(ctx context.Context, title, content string, userID *int32) (*model.Post, error) {
	ctx, span := startSpan(ctx, "CreatePost")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO posts (title, content, user_id) VALUES (?, ?, ?)",
		title, content, nullable(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &model.Post{ID: int32(id), Title: title, Content: content, UserID: userID}, nil
}

// UpdatePost applies patch to the post with id and returns the stored result.
func (s *Store) UpdatePost(ctx context.Context, id int32, patch model.PostPatch) (*model.Post, error) {
	ctx, span := startSpan(ctx, "UpdatePost")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		"UPDATE posts SET title = COALESCE(?, title), content = COALESCE(?, content) WHERE id = ?",
		nullable(patch.Title), nullable(patch.Content), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update post %d: %w", id, err)
	}
	if err := requireAffected(res); err != nil {
		return nil, fmt.Errorf("update post %d: %w", id, err)
	}
	return getPost(ctx, s.db, id)
}

// DeletePost removes the post with id and returns the removed row.
func (s *Store) DeletePost(ctx context.Context, id int32) (*model.Post, error) {
	ctx, span := startSpan(ctx, "DeletePost")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("delete post %d: %w", id, err)
	}
	defer tx.Rollback()

	p, err := getPost(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete post %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete post %d: %w", id, err)
	}
	return p, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getUser(ctx context.Context, q queryer, id int32) (*model.User, error) {
	var u model.User
	err := q.QueryRowContext(ctx, "SELECT id, name, email FROM users WHERE id = ?", id).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

func getPost(ctx context.Context, q queryer, id int32) (*model.Post, error) {
	row := q.QueryRowContext(ctx, "SELECT id, title, content, user_id FROM posts WHERE id = ?", id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, nil
}

func scanPost(row scanner) (*model.Post, error) {
	var (
		p      model.Post
		userID sql.NullInt32
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &userID); err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.Int32
		p.UserID = &id
	}
	return &p, nil
}

// nullable turns a nil pointer into SQL NULL and dereferences anything else.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
