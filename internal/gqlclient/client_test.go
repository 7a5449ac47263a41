package gqlclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/postboard/internal/gql/posts"
	"github.com/dyluth/postboard/internal/gql/users"
	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/server"
	"github.com/dyluth/postboard/internal/storage/sqlite"
	"github.com/dyluth/postboard/pkg/feed"
)

// setupServices starts Users and Posts services backed by in-memory stores
// and returns their /graphql URLs.
func setupServices(t *testing.T) (usersURL, postsURL string) {
	ctx := context.Background()

	userStore, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	postStore, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	bus := feed.NewMemoryBus()

	usersSrv := server.New("Users", users.NewSchema(userStore))
	postsSrv := server.New("Posts", posts.NewSchema(postStore, bus))
	usersTS := httptest.NewServer(usersSrv.Handler())
	postsTS := httptest.NewServer(postsSrv.Handler())

	t.Cleanup(func() {
		usersSrv.Shutdown(ctx)
		postsSrv.Shutdown(ctx)
		usersTS.Close()
		postsTS.Close()
		bus.Close()
		userStore.Close()
		postStore.Close()
	})
	return usersTS.URL + "/graphql", postsTS.URL + "/graphql"
}

func TestCreateAndFetch(t *testing.T) {
	usersURL, postsURL := setupServices(t)
	ctx := context.Background()
	usersClient := New(usersURL)
	postsClient := New(postsURL)

	ann, err := usersClient.CreateUser(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann", ann.Name)

	_, err = postsClient.CreatePost(ctx, "T1", "C1", &ann.ID)
	require.NoError(t, err)
	_, err = postsClient.CreatePost(ctx, "T2", "C2", nil)
	require.NoError(t, err)

	fetchedUsers, err := usersClient.FetchUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.User{*ann}, fetchedUsers)

	fetchedPosts, err := postsClient.FetchPosts(ctx)
	require.NoError(t, err)
	require.Len(t, fetchedPosts, 2)
	require.NotNil(t, fetchedPosts[0].UserID)
	assert.Equal(t, ann.ID, *fetchedPosts[0].UserID)
	assert.Nil(t, fetchedPosts[1].UserID)
}

func TestDoReportsGraphQLErrors(t *testing.T) {
	usersURL, _ := setupServices(t)

	err := New(usersURL).Do(context.Background(), `{ nope }`, nil, nil)

	var gqlErr *GraphQLError
	require.ErrorAs(t, err, &gqlErr)
	require.NotEmpty(t, gqlErr.Messages)
	assert.Contains(t, gqlErr.Error(), "nope")
}

func TestDoReportsResolverErrors(t *testing.T) {
	usersURL, _ := setupServices(t)

	err := New(usersURL).Do(context.Background(),
		`mutation($id: Int!) { deleteUser(id: $id) { id } }`,
		map[string]interface{}{"id": 42}, nil)

	var gqlErr *GraphQLError
	require.ErrorAs(t, err, &gqlErr)
	assert.Contains(t, gqlErr.Error(), "record not found")
}

func TestDoDecodesData(t *testing.T) {
	usersURL, _ := setupServices(t)
	ctx := context.Background()
	client := New(usersURL)

	_, err := client.CreateUser(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)

	var data struct {
		User model.User `json:"user"`
	}
	err = client.Do(ctx, `query($id: Int!) { user(id: $id) { id name email } }`,
		map[string]interface{}{"id": 1}, &data)
	require.NoError(t, err)
	assert.Equal(t, "Ann", data.User.Name)
}

func TestDoReportsHTTPFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := New(ts.URL).FetchUsers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ts.URL)

	var gqlErr *GraphQLError
	assert.False(t, errors.As(err, &gqlErr))
}

func TestDoUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url).FetchPosts(context.Background())
	require.Error(t, err)

	var gqlErr *GraphQLError
	assert.False(t, errors.As(err, &gqlErr))
}

func TestLiveFeed(t *testing.T) {
	_, postsURL := setupServices(t)
	ctx := context.Background()
	wsURL := "ws" + strings.TrimPrefix(postsURL, "http")

	events := make(chan model.PostAdded, 10)
	sub, err := NewLiveFeed(wsURL).SubscribePostAdded(ctx,
		func(ev model.PostAdded) { events <- ev },
		func(err error) { t.Errorf("unexpected error: %v", err) })
	require.NoError(t, err)
	defer sub.Release()

	postsClient := New(postsURL)
	deadline := time.After(3 * time.Second)
	for {
		_, err := postsClient.CreatePost(ctx, "T3", "C3", nil)
		require.NoError(t, err)

		select {
		case ev := <-events:
			assert.Equal(t, "T3", ev.Title)
			assert.Equal(t, "C3", ev.Content)
			assert.NotZero(t, ev.ID)

			sub.Release()
			sub.Release()
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("timeout waiting for postAdded")
		}
	}
}

func TestLiveFeedDialFailure(t *testing.T) {
	_, err := NewLiveFeed("ws://127.0.0.1:1/graphql").SubscribePostAdded(context.Background(),
		func(model.PostAdded) {}, func(error) {})
	assert.Error(t, err)
}
