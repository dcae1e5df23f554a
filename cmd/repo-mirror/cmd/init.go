package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const initTemplate = `# repo-mirror configuration
# See: https://github.com/bianoble/repo-mirror

version: 1

repository:
  path: repo
  mode: archive-z2
  arch: x86_64
  name: repo-mirror
  title: Repo Mirror
  # comment: Local mirror of Flathub applications
  # homepage: https://mirror.example.com
  # url: https://mirror.example.com/repo
  # gpg_key_file: mirror.gpg
  integrated_update: true
  update_catalog: true
  state_file: mirror-state.yaml

mirror:
  concurrency: 4
  max_per_remote: 0
  fetch_timeout: 60s
  max_catalog_size: 268435456

remotes:
  - name: flathub
    url: https://dl.flathub.org/repo/
    gpg_verify: true
    # catalog_url: https://dl.flathub.org/repo/appstream/x86_64/appstream.xml.gz
    # collection_id: org.flathub.Stable
`

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter repo-mirror.yaml configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !initForce {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}
		}

		if err := os.WriteFile(configPath, []byte(initTemplate), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", configPath, err)
		}

		info("Created %s", configPath)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	rootCmd.AddCommand(initCmd)
}
