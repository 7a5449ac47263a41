//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a throwaway Postgres container and returns its DSN.
func setupPostgres(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postboard",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start Postgres container")
	t.Cleanup(func() {
		if err := pgC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Postgres container: %v", err)
		}
	})

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/postboard?sslmode=disable", host, port.Port())
}

func TestStore_CRUD(t *testing.T) {
	dsn := setupPostgres(t)
	ctx := context.Background()

	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(ctx))

	ann, err := store.CreateUser(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)

	author := ann.ID
	post, err := store.CreatePost(ctx, "T1", "C1", &author)
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, "T2", "C2", nil)
	require.NoError(t, err)

	posts, err := store.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, &author, posts[0].UserID)
	assert.Nil(t, posts[1].UserID)

	title := "T1 edited"
	updated, err := store.UpdatePost(ctx, post.ID, model.PostPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "T1 edited", updated.Title)
	assert.Equal(t, "C1", updated.Content)

	deleted, err := store.DeleteUser(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, ann, deleted)

	_, err = store.GetUser(ctx, ann.ID)
	assert.True(t, storage.IsNotFound(err))

	// Bootstrapping twice against the same database is harmless.
	again, err := Open(ctx, dsn)
	require.NoError(t, err)
	again.Close()
}
