// cmd/man.go
package cmd

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

const manConfigSection = `Settings are read from ./.config.yaml, ./config.yaml or
$XDG_CONFIG_HOME/cwkeyer/config.yaml, which is created with defaults on first run.
Any setting can be overridden from the environment with the CWKEYER_ prefix,
for example CWKEYER_WPM=25. Changing wpm in the config file takes effect
while the keyer runs.`

var manCmd = &cobra.Command{
	Use:    "man",
	Short:  "Generate the man page",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		page, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return fmt.Errorf("build man page: %w", err)
		}
		page = page.WithSection("Configuration", manConfigSection)

		fmt.Fprint(cmd.OutOrStdout(), page.Build(roff.NewDocument()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(manCmd)
}
