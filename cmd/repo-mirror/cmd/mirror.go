package cmd

import (
	"github.com/bianoble/repo-mirror/internal/mirror"
	"github.com/bianoble/repo-mirror/pkg/repomirror"
	"github.com/spf13/cobra"
)

var (
	mirrorArch         string
	mirrorRepo         string
	mirrorMaxPerRemote int
	mirrorConcurrency  int
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Run a full mirroring pass over the configured remotes",
	Long: `Fetches each remote's catalog, pulls the app and runtime refs of every
component, promotes the pulled commits to local refs, then rewrites the
catalog and summary to match what was mirrored.

Individual ref failures are reported but do not fail the command. Only
configuration and repository setup errors produce a non-zero exit code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := repomirror.Options{RepoPath: mirrorRepo, Arch: mirrorArch}
		if cmd.Flags().Changed("max-per-remote") {
			opts.MaxPerRemote = &mirrorMaxPerRemote
		}
		if cmd.Flags().Changed("concurrency") {
			opts.Concurrency = &mirrorConcurrency
		}

		client, err := newClient(opts)
		if err != nil {
			return err
		}

		report, err := client.Mirror(cmd.Context())
		if report == nil {
			return err
		}

		for _, r := range report.Results {
			if r.Outcome == mirror.Promoted {
				detail("%-17s %s %s", r.Outcome, r.Ref, r.Commit)
				continue
			}
			errorf("%s %s (%s): %s", r.Outcome, r.Ref, r.Remote, r.Err)
		}
		for _, w := range report.Warnings() {
			warnf("%s", w)
		}

		c := report.Counts
		info("")
		info("Mirror complete: %d promoted, %d pull failed, %d resolution failed, %d promotion failed.",
			c.Promoted, c.PullFailed, c.ResolutionFailed, c.PromotionFailed)
		info("  components published: %d", len(report.Mirrored))
		if report.Reconcile != nil {
			info("  metadata stage:       %s", report.Reconcile.Stage)
		}
		if report.Descriptor != "" {
			detail("descriptor: %s", report.Descriptor)
		}
		return err
	},
}

func init() {
	mirrorCmd.Flags().StringVar(&mirrorArch, "arch", "", "target architecture (overrides repository.arch)")
	mirrorCmd.Flags().StringVar(&mirrorRepo, "repo", "", "repository path (overrides repository.path)")
	mirrorCmd.Flags().IntVar(&mirrorMaxPerRemote, "max-per-remote", 0, "mirror only the first N components of each remote (0 = all)")
	mirrorCmd.Flags().IntVar(&mirrorConcurrency, "concurrency", 0, "concurrent pulls (overrides mirror.concurrency)")
	rootCmd.AddCommand(mirrorCmd)
}
