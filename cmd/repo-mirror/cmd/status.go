package cmd

import (
	"fmt"
	"time"

	"github.com/bianoble/repo-mirror/internal/state"
	"github.com/bianoble/repo-mirror/pkg/repomirror"
	"github.com/spf13/cobra"
)

var statusRef string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the result of the last mirroring pass",
	Long: `Reads the pass record written by the last 'repo-mirror mirror' run and
prints outcome counts, the metadata stage used, and every ref that did not
reach the repository.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(repomirror.Options{})
		if err != nil {
			return err
		}
		res, err := client.Status()
		if err != nil {
			return err
		}

		if res.Record == nil {
			info("No mirroring pass recorded yet (%s).", res.StatePath)
			return nil
		}

		if statusRef != "" {
			r, ok := res.Ref(statusRef)
			if !ok {
				return fmt.Errorf("%s was not attempted in the last pass", statusRef)
			}
			fmt.Printf("%s\n", r.Ref)
			fmt.Printf("  remote:   %s\n", r.Remote)
			fmt.Printf("  outcome:  %s\n", r.Outcome)
			if r.Commit != "" {
				fmt.Printf("  commit:   %s\n", r.Commit)
			}
			if r.Error != "" {
				fmt.Printf("  error:    %s\n", r.Error)
			}
			return nil
		}

		rec := res.Record
		fmt.Printf("Last pass:  %s (%s)\n", rec.Finished.Local().Format(time.RFC3339), rec.Duration().Round(time.Second))
		fmt.Printf("  arch:     %s\n", rec.Arch)
		fmt.Printf("  stage:    %s\n", rec.Stage)
		fmt.Printf("  mirrored: %d components\n", len(rec.Mirrored))
		for _, outcome := range state.Outcomes(res.Tally) {
			fmt.Printf("  %-18s %d\n", outcome+":", res.Tally[outcome])
		}

		if len(res.Failed) > 0 {
			fmt.Println("\nNot mirrored:")
			for _, r := range res.Failed {
				fmt.Printf("  %-18s %s (%s)\n", r.Outcome, r.Ref, r.Remote)
				detail("%s", r.Error)
			}
		}
		for _, re := range rec.RemoteErrors {
			fmt.Printf("  remote %s: %s\n", re.Remote, re.Error)
		}
		for _, w := range rec.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusRef, "ref", "", "show the recorded outcome of a single ref")
	rootCmd.AddCommand(statusCmd)
}
