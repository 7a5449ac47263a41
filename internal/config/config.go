package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "postboard.yml"

// PageSizeOptions are the page sizes accepted for client.page_size.
var PageSizeOptions = []int{5, 10, 25}

// PostboardConfig represents the top-level postboard.yml configuration
type PostboardConfig struct {
	Version   string          `yaml:"version"`
	Users     ServiceConfig   `yaml:"users"`
	Posts     ServiceConfig   `yaml:"posts"`
	Feed      FeedConfig      `yaml:"feed"`
	Client    ClientConfig    `yaml:"client"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServiceConfig configures one GraphQL service
type ServiceConfig struct {
	Addr  string      `yaml:"addr"`
	Store StoreConfig `yaml:"store"`
}

// StoreConfig selects the relational backend of a service
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path for sqlite, connection URL for postgres
}

// FeedConfig selects how postAdded events fan out
type FeedConfig struct {
	Driver    string `yaml:"driver"` // "memory" or "redis"
	RedisURL  string `yaml:"redis_url,omitempty"`
	Namespace string `yaml:"namespace"`
}

// ClientConfig is used by the table, watch and seeding commands
type ClientConfig struct {
	UsersURL   string `yaml:"users_url"`
	PostsURL   string `yaml:"posts_url"`
	PostsWSURL string `yaml:"posts_ws_url"`
	PageSize   int    `yaml:"page_size"`
}

// TelemetryConfig enables OpenTelemetry tracing when an endpoint is set
type TelemetryConfig struct {
	OTelEndpoint string `yaml:"otel_endpoint,omitempty"`
}

// envOverrides lists the POSTBOARD_* variables. Unset variables leave the
// file value alone.
type envOverrides struct {
	UsersAddr        string `env:"POSTBOARD_USERS_ADDR"`
	UsersStoreDriver string `env:"POSTBOARD_USERS_STORE_DRIVER"`
	UsersStoreDSN    string `env:"POSTBOARD_USERS_STORE_DSN"`
	PostsAddr        string `env:"POSTBOARD_POSTS_ADDR"`
	PostsStoreDriver string `env:"POSTBOARD_POSTS_STORE_DRIVER"`
	PostsStoreDSN    string `env:"POSTBOARD_POSTS_STORE_DSN"`
	FeedDriver       string `env:"POSTBOARD_FEED_DRIVER"`
	FeedRedisURL     string `env:"POSTBOARD_FEED_REDIS_URL"`
	FeedNamespace    string `env:"POSTBOARD_FEED_NAMESPACE"`
	UsersURL         string `env:"POSTBOARD_USERS_URL"`
	PostsURL         string `env:"POSTBOARD_POSTS_URL"`
	PostsWSURL       string `env:"POSTBOARD_POSTS_WS_URL"`
	PageSize         int    `env:"POSTBOARD_PAGE_SIZE"`
	OTelEndpoint     string `env:"POSTBOARD_OTEL_ENDPOINT"`
}

// Default returns the configuration used when no file exists: both services
// on localhost with embedded sqlite stores and an in-process feed.
func Default() *PostboardConfig {
	return &PostboardConfig{
		Version: "1.0",
		Users: ServiceConfig{
			Addr:  ":4001",
			Store: StoreConfig{Driver: "sqlite", DSN: "users.db"},
		},
		Posts: ServiceConfig{
			Addr:  ":4002",
			Store: StoreConfig{Driver: "sqlite", DSN: "posts.db"},
		},
		Feed: FeedConfig{
			Driver:    "memory",
			Namespace: "default",
		},
		Client: ClientConfig{
			UsersURL:   "http://localhost:4001/graphql",
			PostsURL:   "http://localhost:4002/graphql",
			PostsWSURL: "ws://localhost:4002/graphql",
			PageSize:   5,
		},
	}
}

// Validate applies defaults to empty fields, then checks the configuration
func (c *PostboardConfig) Validate() error {
	def := Default()

	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := c.Users.validate("users", def.Users); err != nil {
		return err
	}
	if err := c.Posts.validate("posts", def.Posts); err != nil {
		return err
	}

	if c.Feed.Driver == "" {
		c.Feed.Driver = def.Feed.Driver
	}
	if c.Feed.Namespace == "" {
		c.Feed.Namespace = def.Feed.Namespace
	}
	switch c.Feed.Driver {
	case "memory":
	case "redis":
		if c.Feed.RedisURL == "" {
			return fmt.Errorf("feed: redis_url is required when driver is 'redis'")
		}
	default:
		return fmt.Errorf("feed: invalid driver: %s (must be 'memory' or 'redis')", c.Feed.Driver)
	}

	if c.Client.UsersURL == "" {
		c.Client.UsersURL = def.Client.UsersURL
	}
	if c.Client.PostsURL == "" {
		c.Client.PostsURL = def.Client.PostsURL
	}
	if c.Client.PostsWSURL == "" {
		c.Client.PostsWSURL = def.Client.PostsWSURL
	}
	if c.Client.PageSize == 0 {
		c.Client.PageSize = def.Client.PageSize
	}

	for name, raw := range map[string]string{
		"users_url":    c.Client.UsersURL,
		"posts_url":    c.Client.PostsURL,
		"posts_ws_url": c.Client.PostsWSURL,
	} {
		if err := checkURL(raw, name == "posts_ws_url"); err != nil {
			return fmt.Errorf("client: invalid %s: %w", name, err)
		}
	}

	if !slices.Contains(PageSizeOptions, c.Client.PageSize) {
		return fmt.Errorf("client: invalid page_size: %d (must be one of %v)", c.Client.PageSize, PageSizeOptions)
	}

	return nil
}

func (s *ServiceConfig) validate(name string, def ServiceConfig) error {
	if s.Addr == "" {
		s.Addr = def.Addr
	}
	if s.Store.Driver == "" {
		s.Store.Driver = def.Store.Driver
	}
	if s.Store.Driver != "sqlite" && s.Store.Driver != "postgres" {
		return fmt.Errorf("%s: invalid store driver: %s (must be 'sqlite' or 'postgres')", name, s.Store.Driver)
	}
	if s.Store.DSN == "" {
		if s.Store.Driver != def.Store.Driver {
			return fmt.Errorf("%s: store.dsn is required for driver '%s'", name, s.Store.Driver)
		}
		s.Store.DSN = def.Store.DSN
	}
	return nil
}

func checkURL(raw string, websocket bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	valid := u.Scheme == "http" || u.Scheme == "https"
	if websocket {
		valid = u.Scheme == "ws" || u.Scheme == "wss"
	}
	if !valid || u.Host == "" {
		return fmt.Errorf("unexpected URL %q", raw)
	}
	return nil
}

// applyEnv overlays POSTBOARD_* environment variables on c.
func (c *PostboardConfig) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Users.Addr, o.UsersAddr)
	set(&c.Users.Store.Driver, o.UsersStoreDriver)
	set(&c.Users.Store.DSN, o.UsersStoreDSN)
	set(&c.Posts.Addr, o.PostsAddr)
	set(&c.Posts.Store.Driver, o.PostsStoreDriver)
	set(&c.Posts.Store.DSN, o.PostsStoreDSN)
	set(&c.Feed.Driver, o.FeedDriver)
	set(&c.Feed.RedisURL, o.FeedRedisURL)
	set(&c.Feed.Namespace, o.FeedNamespace)
	set(&c.Client.UsersURL, o.UsersURL)
	set(&c.Client.PostsURL, o.PostsURL)
	set(&c.Client.PostsWSURL, o.PostsWSURL)
	set(&c.Telemetry.OTelEndpoint, o.OTelEndpoint)
	if o.PageSize != 0 {
		c.Client.PageSize = o.PageSize
	}
	return nil
}

// Load reads postboard.yml from path, applies environment overrides and validates it
func Load(path string) (*PostboardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config PostboardConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault behaves like Load but falls back to Default, with environment
// overrides applied, when path does not exist.
func LoadOrDefault(path string) (*PostboardConfig, error) {
	config, err := Load(path)
	if err == nil {
		return config, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	config = Default()
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Marshal renders c as YAML.
func (c *PostboardConfig) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
