package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbeezley/myk9q-sync/internal/ledger"
)

// pendingList is the printable form of the ledger.
type pendingList struct {
	Changes []ledger.PendingChange `json:"changes"`
}

func (p pendingList) String() string {
	if len(p.Changes) == 0 {
		return "no pending changes"
	}
	var b strings.Builder
	for i, chg := range p.Changes {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %-8s %-8s created=%s retries=%d",
			chg.EntityID, chg.Type, chg.Status,
			chg.Timestamp.Format(time.RFC3339), chg.RetryCount)
		if chg.LastError != "" {
			fmt.Fprintf(&b, " last_error=%q", chg.LastError)
		}
	}
	return b.String()
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	var parent string
	var failedOnly bool

	cmd := &cobra.Command{
		Use:           "pending",
		Short:         "List uncommitted local changes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, cleanup, err := openEngine(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			var changes []ledger.PendingChange
			switch {
			case failedOnly:
				changes = e.FailedChanges()
			case parent != "":
				changes = e.PendingChangesForParent(parent)
			default:
				changes = e.PendingChanges()
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(pendingList{Changes: changes})
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "only changes whose entity belongs to this parent")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only changes with status failed")
	return cmd
}
