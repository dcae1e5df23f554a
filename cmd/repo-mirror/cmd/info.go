package cmd

import (
	"fmt"

	"github.com/bianoble/repo-mirror/pkg/repomirror"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information about the configuration and repository layout",
	Long: `Displays the repo-mirror version, configuration path, repository path and
mode, catalog refs, pass record location, cache directory and size, and the
configured remotes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(repomirror.Options{})
		if err != nil {
			fmt.Printf("repo-mirror %s\n", version)
			fmt.Printf("  config:        %s (%s)\n", configPath, err)
			return nil
		}
		result := client.Info(version)

		fmt.Printf("repo-mirror %s\n", result.Version)
		fmt.Printf("  config:        %s\n", result.ConfigPath)
		fmt.Printf("  repository:    %s (%s, %s)\n", result.RepoPath, result.Mode, result.Arch)
		fmt.Printf("  catalog refs:  %s, %s\n", result.CatalogRefs[0], result.CatalogRefs[1])
		fmt.Printf("  descriptor:    %s\n", result.Descriptor)
		fmt.Printf("  pass record:   %s\n", result.StatePath)
		fmt.Printf("  cache dir:     %s\n", result.CacheDir)
		fmt.Printf("  cache size:    %s\n", humanSize(result.CacheSize))

		if len(result.Remotes) > 0 {
			fmt.Println("\nRemotes:")
			for _, r := range result.Remotes {
				fmt.Printf("  %-15s %s\n", r.Name, r.URL)
				detail("catalog: %s", r.CatalogURL)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
