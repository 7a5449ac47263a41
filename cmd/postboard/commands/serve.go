package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/spf13/cobra"

	"github.com/dyluth/postboard/internal/config"
	"github.com/dyluth/postboard/internal/gql/posts"
	"github.com/dyluth/postboard/internal/gql/users"
	"github.com/dyluth/postboard/internal/server"
	"github.com/dyluth/postboard/internal/storage/backend"
	"github.com/dyluth/postboard/pkg/feed"
)

var serveCmd = &cobra.Command{
	Use:   "serve {users|posts|all}",
	Short: "Run the Users and/or Posts GraphQL service",
	Long: `Run a GraphQL service until interrupted.

  users - users, user, createUser, updateUser, deleteUser
  posts - posts, post, createPost, updatePost, deletePost and the
          postAdded subscription (graphql-transport-ws on /graphql)
  all   - both services in one process

Each service also answers GET /healthz.

Examples:
  # Run both services with the defaults from postboard.yml
  postboard serve all

  # Run the Posts service on a shared redis feed
  POSTBOARD_FEED_DRIVER=redis POSTBOARD_FEED_REDIS_URL=redis://localhost:6379 postboard serve posts`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"users", "posts", "all"},
	RunE:      runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// service is one running GraphQL server and the resources it owns.
type service struct {
	name    string
	server  *server.Server
	closers []func() error
}

func (s *service) close(ctx context.Context) {
	if err := s.server.Shutdown(ctx); err != nil {
		log.Printf("[Serve] %s shutdown: %v", s.name, err)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Printf("[Serve] %s close: %v", s.name, err)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	var names []string
	switch args[0] {
	case "users", "posts":
		names = []string{args[0]}
	case "all":
		names = []string{"users", "posts"}
	default:
		return newPrinter(cmd).Error(
			"unknown service",
			fmt.Sprintf("Unknown service: %s", args[0]),
			[]string{"Valid services: users, posts, all"},
		)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopTracing, err := startTracing(ctx, "postboard-"+args[0], cfg)
	if err != nil {
		return err
	}
	defer stopTracing()

	var running []*service
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(running) - 1; i >= 0; i-- {
			running[i].close(sctx)
		}
	}()

	p := newPrinter(cmd)
	for _, name := range names {
		svc, err := startService(ctx, name, cfg)
		if err != nil {
			return p.Error(
				fmt.Sprintf("failed to start %s service", name),
				fmt.Sprintf("Error: %v", err),
				[]string{fmt.Sprintf("Check the %s section of %s", name, configPath)},
			)
		}
		running = append(running, svc)
		p.Success("%s service listening on %s\n", name, svc.server.Addr())
	}

	<-ctx.Done()
	p.Info("Shutting down...\n")
	return nil
}

// startService opens the store (and for posts the feed) of the named service
// and starts serving its schema.
func startService(ctx context.Context, name string, cfg *config.PostboardConfig) (*service, error) {
	svcCfg := cfg.Users
	if name == "posts" {
		svcCfg = cfg.Posts
	}

	svc := &service{name: name}
	success := false
	defer func() {
		if !success {
			for i := len(svc.closers) - 1; i >= 0; i-- {
				_ = svc.closers[i]()
			}
		}
	}()

	store, err := backend.Open(ctx, svcCfg.Store.Driver, svcCfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", svcCfg.Store.Driver, err)
	}
	svc.closers = append(svc.closers, store.Close)
	checks := []server.Check{{Name: "store", Pinger: store}}

	var schema *graphql.Schema
	switch name {
	case "users":
		schema = users.NewSchema(store)
	case "posts":
		bus, err := feed.Open(cfg.Feed.Driver, cfg.Feed.RedisURL, cfg.Feed.Namespace)
		if err != nil {
			return nil, fmt.Errorf("open %s feed: %w", cfg.Feed.Driver, err)
		}
		svc.closers = append(svc.closers, bus.Close)
		checks = append(checks, server.Check{Name: "feed", Pinger: bus})
		schema = posts.NewSchema(store, bus)
	default:
		return nil, fmt.Errorf("unknown service %q", name)
	}

	svc.server = server.New(name, schema, checks...)
	if err := svc.server.Start(svcCfg.Addr); err != nil {
		return nil, err
	}

	success = true
	return svc, nil
}
