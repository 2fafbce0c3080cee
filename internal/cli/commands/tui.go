package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/workbench/internal/tui"
)

// NewTUICommand creates the tui command.
func NewTUICommand() *cobra.Command {
	var tab string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal SQL console",
		Long: `Open a full-screen SQL console in the terminal.

Write a script in the editor and press ctrl+r to run it. Press tab to move
to the results, then use the arrow keys or 1-9 to switch result sets, o for
the overview and +/- to change the row budget.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return tui.Run(cmd.Context(), cmdCtx.Workbench, tab)
		},
	}

	cmd.Flags().StringVar(&tab, "tab", DefaultTab, "Tab to open")
	return cmd
}
