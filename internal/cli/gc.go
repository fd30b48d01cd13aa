package cli

import (
	"github.com/spf13/cobra"
)

// NewGCCommand creates the gc command.
func NewGCCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "gc",
		Short:         "Discard long-failed pending changes past the retention window",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, cleanup, err := openEngine(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			res := e.GarbageCollect(cmd.Context())

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Successf(res, "discarded=%d kept=%d", res.Discarded, res.Kept)
		},
	}
}
