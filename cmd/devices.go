// cmd/devices.go
package cmd

import (
	"fmt"

	"github.com/ColonelBlimp/cwkeyer/internal/cli/keying"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio playback devices",
	Long:  `Lists playback devices by index. Pass the index with --device or set device_index.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		names, err := keying.ListAudioDevices()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "no playback devices found")
			return nil
		}
		for i, name := range names {
			fmt.Fprintf(out, "[%d] %s\n", i, name)
		}
		return nil
	},
}
