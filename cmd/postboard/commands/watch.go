package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/postboard/internal/table"
	"github.com/dyluth/postboard/internal/watch"
)

var (
	watchOutputFormat string
	watchDirect       bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream posts as they are created",
	Long: `Stream every post created from now on, one line per post.

Output Formats:
  default - Human-readable line per post
  jsonl   - Line-delimited JSON for programmatic processing

Examples:
  # Watch new posts through the Posts service
  postboard watch

  # Export posts as JSON lines straight from redis
  postboard watch --direct --output=jsonl > posts.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or jsonl)")
	watchCmd.Flags().BoolVar(&watchDirect, "direct", false, "Read the redis feed directly instead of the Posts service websocket")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := table.ParseOutputFormat(watchOutputFormat, table.OutputFormatDefault, table.OutputFormatJSONL)
	if err != nil {
		return newPrinter(cmd).Error("invalid output format", err.Error(), nil)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	stopTracing, err := startTracing(cmd.Context(), "postboard-watch", cfg)
	if err != nil {
		return err
	}
	defer stopTracing()

	live, closeLive, err := openLiveFeed(cmd, cfg, watchDirect)
	if err != nil {
		return err
	}
	defer closeLive()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watch.StreamPosts(ctx, live, format, cmd.OutOrStdout())
}
