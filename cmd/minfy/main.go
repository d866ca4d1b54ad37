package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minfy-dev/minfy/pkg/logging"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	projectDir string
	configFile string
	debug      bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "minfy",
	Short: "Deploy static frontend apps to cloud object storage",
	Long: `Minfy builds a frontend app and publishes it as a static website in a
versioned object storage bucket.

Every deploy keeps the previous versions of the site so that a bad release
can be rolled back in seconds.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logging.Options{
			Debug:  debug,
			JSON:   logFormat == "json",
			Writer: cmd.ErrOrStderr(),
		})
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&projectDir, "project-dir", "C", ".", "Directory holding .minfy.json and build.json")
	flags.StringVar(&configFile, "config", "", "Path to the global config file (default ~/.minfy/config.yaml)")
	flags.BoolVar(&debug, "debug", os.Getenv("MINFY_DEBUG") == "true", "Enable debug logging")
	flags.StringVar(&logFormat, "log-format", envOr("MINFY_LOG_FORMAT", "text"), "Log format: text or json")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
