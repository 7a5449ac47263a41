package commands

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/postboard/internal/config"
	"github.com/dyluth/postboard/internal/printer"
	"github.com/dyluth/postboard/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "postboard",
	Short: "postboard - Posts per user, joined live",
	Long: `postboard runs the Users and Posts GraphQL services and a terminal
client that joins them into a paginated table of posts per user.

The table is kept live through the Posts service postAdded subscription.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "Path to postboard.yml")
}

// loadConfig reads --config, falling back to defaults when the file is absent.
func loadConfig(cmd *cobra.Command) (*config.PostboardConfig, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, newPrinter(cmd).Error(
			"invalid configuration",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Fix %s, or regenerate it:\n  postboard init --force", configPath)},
		)
	}
	return cfg, nil
}

func newPrinter(cmd *cobra.Command) *printer.Printer {
	return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// startTracing installs the tracer provider for telemetry.otel_endpoint.
// The returned stop flushes pending spans and never fails the command.
func startTracing(ctx context.Context, serviceName string, cfg *config.PostboardConfig) (func(), error) {
	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Printf("[Telemetry] %s shutdown: %v", serviceName, err)
		}
	}, nil
}
