package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/bianoble/repo-mirror/internal/config"
	"github.com/bianoble/repo-mirror/internal/observability"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	configPath string
	cacheDir   string
	verbose    bool
	quiet      bool
	noColor    bool
)

var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "repo-mirror",
	Short: "Mirror application refs into a local package repository",
	Long: `repo-mirror pulls application and runtime refs from remote package
repositories, promotes them to stable local refs, and keeps the local
repository's catalog and summary consistent with what was actually mirrored.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = observability.InitLogger("repo-mirror", observability.Options{
			Level:   observability.LevelFor(verbose, quiet),
			NoColor: noColor,
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("repo-mirror %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFileName, "path to config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "catalog cache directory (default: user cache dir)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (warnings and errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
