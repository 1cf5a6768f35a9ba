package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nodectl/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long:  `Launch the full-screen dashboard for the node's public IP, speed tests, and settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps := tui.Deps{
			Node:    appInstance,
			Storage: appInstance.Storage,
			DataDir: appInstance.Config.DataDir,
			DBPath:  appInstance.Config.DBPath,
		}

		p := tui.NewProgram(deps)
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
