package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/postboard/internal/config"
	"github.com/dyluth/postboard/internal/gqlclient"
	"github.com/dyluth/postboard/internal/reconciler"
	"github.com/dyluth/postboard/internal/source"
	"github.com/dyluth/postboard/internal/table"
	"github.com/dyluth/postboard/internal/watch"
	"github.com/dyluth/postboard/pkg/feed"
)

var (
	tablePage     int
	tablePageSize int
	tableExpand   int32
	tableFollow   bool
	tableDirect   bool
	tableOutput   string
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Show posts joined with their authors",
	Long: `Show one page of posts joined with their authors.

Posts are read from the Posts service and matched to users from the Users
service; posts without a known author show as "Unknown". With --follow the
table stays open and every post created afterwards is appended as it
arrives, until interrupted.

Output Formats:
  default - Human-readable table with a row per post
  json    - The page and its pagination state as a JSON document

Examples:
  # First page, 5 posts per page
  postboard table

  # Third page of 10, with post 12 expanded
  postboard table --page 3 --page-size 10 --expand 12

  # Keep the table open and append new posts
  postboard table --follow`,
	Args: cobra.NoArgs,
	RunE: runTable,
}

func init() {
	tableCmd.Flags().IntVarP(&tablePage, "page", "p", 1, "Page to show, starting at 1")
	tableCmd.Flags().IntVar(&tablePageSize, "page-size", 0, "Posts per page (defaults to client.page_size)")
	tableCmd.Flags().Int32Var(&tableExpand, "expand", 0, "Id of a post to show in full")
	tableCmd.Flags().BoolVarP(&tableFollow, "follow", "f", false, "Keep running and append posts as they are created")
	tableCmd.Flags().BoolVar(&tableDirect, "direct", false, "Follow the redis feed directly instead of the Posts service websocket")
	tableCmd.Flags().StringVarP(&tableOutput, "output", "o", "default", "Output format: default or json")
	rootCmd.AddCommand(tableCmd)
}

func runTable(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd)

	format, err := table.ParseOutputFormat(tableOutput, table.OutputFormatDefault, table.OutputFormatJSON)
	if err != nil {
		return p.Error("invalid output format", err.Error(), nil)
	}
	if tablePage < 1 {
		return p.Error("invalid page", fmt.Sprintf("Page must be 1 or more, got %d", tablePage), nil)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pageSize := cfg.Client.PageSize
	if tablePageSize != 0 {
		pageSize = tablePageSize
	}

	stopTracing, err := startTracing(cmd.Context(), "postboard-table", cfg)
	if err != nil {
		return err
	}
	defer stopTracing()

	live, closeLive, err := openLiveFeed(cmd, cfg, tableDirect)
	if err != nil {
		return err
	}
	defer closeLive()

	r := reconciler.New(
		gqlclient.New(cfg.Client.UsersURL),
		gqlclient.New(cfg.Client.PostsURL),
		live,
	)
	defer r.Dispose()

	if err := r.SetPageSize(pageSize); err != nil {
		return p.Error("invalid page size", err.Error(), nil)
	}
	r.SetPage(tablePage - 1)
	if cmd.Flags().Changed("expand") {
		r.ToggleExpand(tableExpand)
	}

	out := cmd.OutOrStdout()
	if !tableFollow {
		if err := r.Initialize(cmd.Context()); err != nil {
			p.Warning("%v\n", err)
		}
		return table.Render(out, r.View(), format)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changed := make(chan struct{}, 1)
	r.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	if err := r.Start(ctx); err != nil {
		p.Warning("%v\n", err)
	}
	return followTable(ctx, r, changed, format, out)
}

// followTable renders the view once, then again after every change, until
// ctx is done.
func followTable(ctx context.Context, r *reconciler.Reconciler, changed <-chan struct{}, format table.OutputFormat, w io.Writer) error {
	if err := table.Render(w, r.View(), format); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if format == table.OutputFormatDefault {
				fmt.Fprintln(w)
			}
			if err := table.Render(w, r.View(), format); err != nil {
				return err
			}
		}
	}
}

// openLiveFeed returns the postAdded source for the client: the Posts service
// websocket endpoint, or with direct the configured redis feed.
func openLiveFeed(cmd *cobra.Command, cfg *config.PostboardConfig, direct bool) (source.LiveFeed, func(), error) {
	if !direct {
		return gqlclient.NewLiveFeed(cfg.Client.PostsWSURL), func() {}, nil
	}

	if cfg.Feed.Driver != "redis" {
		return nil, nil, newPrinter(cmd).Error(
			"direct feed unavailable",
			fmt.Sprintf("--direct needs feed.driver redis, got %q", cfg.Feed.Driver),
			[]string{"Drop --direct to follow the Posts service websocket"},
		)
	}

	bus, err := feed.Open(cfg.Feed.Driver, cfg.Feed.RedisURL, cfg.Feed.Namespace)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open feed: %w", err)
	}
	if err := bus.Ping(cmd.Context()); err != nil {
		bus.Close()
		return nil, nil, newPrinter(cmd).ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Feed.RedisURL),
			nil,
			[]string{"Check feed.redis_url in " + configPath},
		)
	}
	return watch.BusFeed{Bus: bus}, func() { bus.Close() }, nil
}
