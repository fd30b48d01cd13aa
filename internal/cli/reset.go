package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command, the emergency escape
// hatch that drops every pending change.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop ALL pending changes (emergency escape hatch)",
		Long: `Drops every uncommitted local change. Unsynced local edits are lost
permanently. Requires --yes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset drops unsynced local edits; re-run with --yes to confirm")
			}

			e, _, cleanup, err := openEngine(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			n := e.ClearAllPending(cmd.Context())

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Successf(map[string]int{"cleared": n}, "cleared %d pending changes", n)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping all pending changes")
	return cmd
}
