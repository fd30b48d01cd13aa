package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rbeezley/myk9q-sync/internal/ledger"
)

// statusReport summarizes the local reconciliation state.
type statusReport struct {
	DBPath   string         `json:"db_path"`
	Entities int            `json:"entities"`
	Pending  int            `json:"pending"`
	ByStatus map[string]int `json:"pending_by_status"`
	Failed   int            `json:"failed"`
}

func (s statusReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "database:  %s\n", s.DBPath)
	fmt.Fprintf(&b, "entities:  %d\n", s.Entities)
	fmt.Fprintf(&b, "pending:   %d\n", s.Pending)
	for status, n := range s.ByStatus {
		fmt.Fprintf(&b, "  %-9s %d\n", status+":", n)
	}
	fmt.Fprintf(&b, "failed:    %d", s.Failed)
	return b.String()
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Summarize the local cache and pending ledger",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cfg, cleanup, err := openEngine(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			pending := e.PendingChanges()
			report := statusReport{
				DBPath:   cfg.DBPath,
				Entities: e.EntityCount(),
				Pending:  len(pending),
				ByStatus: make(map[string]int),
			}
			for _, chg := range pending {
				report.ByStatus[string(chg.Status)]++
				if chg.Status == ledger.StatusFailed {
					report.Failed++
				}
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(report)
		},
	}
}
