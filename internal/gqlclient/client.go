// Package gqlclient talks to the Users and Posts services: queries and
// mutations over HTTP, the postAdded subscription over websockets.
package gqlclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/dyluth/postboard/internal/model"
)

// GraphQLError carries the messages of a response's errors array.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// Client executes GraphQL requests against one service endpoint.
type Client struct {
	url string
	gql *graphql.Client
}

// New creates a Client for the endpoint at url.
func New(url string) *Client {
	return &Client{
		url: url,
		gql: graphql.NewClient(url, &http.Client{Timeout: 10 * time.Second}),
	}
}

// Do runs query with vars and decodes the data object into out, which may
// be nil. A non-empty errors array is returned as *GraphQLError.
func (c *Client) Do(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	data, err := c.gql.ExecRaw(ctx, query, vars)
	if err != nil {
		return c.wrapError(err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}

// exec runs query and decodes the data object into the graphql-tagged out.
func (c *Client) exec(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	if err := c.gql.Exec(ctx, query, out, vars); err != nil {
		return c.wrapError(err)
	}
	return nil
}

// wrapError turns errors reported by the service into *GraphQLError. Failures
// to reach the service or to encode and decode the exchange stay request
// errors.
func (c *Client) wrapError(err error) error {
	var errs graphql.Errors
	if errors.As(err, &errs) && len(errs) > 0 && !isRequestError(errs) {
		gqlErr := &GraphQLError{}
		for _, e := range errs {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return gqlErr
	}
	return fmt.Errorf("request to %s failed: %w", c.url, err)
}

func isRequestError(errs graphql.Errors) bool {
	for _, e := range errs {
		switch e.Extensions["code"] {
		case graphql.ErrRequestError, graphql.ErrJsonEncode, graphql.ErrJsonDecode, graphql.ErrGraphQLDecode:
			return true
		}
	}
	return false
}

const (
	usersQuery      = `query { users { id name email } }`
	postsQuery      = `query { posts { id title content userId } }`
	createUserQuery = `mutation($name: String!, $email: String!) { createUser(name: $name, email: $email) { id name email } }`
	createPostQuery = `mutation($title: String!, $content: String!, $userId: Int) { createPost(title: $title, content: $content, userId: $userId) { id title content userId } }`
)

// FetchUsers reads every user.
func (c *Client) FetchUsers(ctx context.Context) ([]model.User, error) {
	var data struct {
		Users []model.User `graphql:"users"`
	}
	if err := c.exec(ctx, usersQuery, nil, &data); err != nil {
		return nil, err
	}
	return data.Users, nil
}

// FetchPosts reads every post, including its author id.
func (c *Client) FetchPosts(ctx context.Context) ([]model.Post, error) {
	var data struct {
		Posts []model.Post `graphql:"posts"`
	}
	if err := c.exec(ctx, postsQuery, nil, &data); err != nil {
		return nil, err
	}
	return data.Posts, nil
}

// CreateUser adds a user.
func (c *Client) CreateUser(ctx context.Context, name, email string) (*model.User, error) {
	var data struct {
		CreateUser model.User `graphql:"createUser"`
	}
	vars := map[string]interface{}{"name": name, "email": email}
	if err := c.exec(ctx, createUserQuery, vars, &data); err != nil {
		return nil, err
	}
	return &data.CreateUser, nil
}

func (c *Client) CreatePost(ctx context.Context, title, content string, userID *int32) (*model.Post, error) {
	var data struct {
		CreatePost model.Post `graphql:"createPost"`
	}
	vars := map[string]interface{}{"title": title, "content": content}
	if userID != nil {
		vars["userId"] = *userID
	}
	if err := c.exec(ctx, createPostQuery, vars, &data); err != nil {
		return nil, err
	}
	return &data.CreatePost, nil
}
