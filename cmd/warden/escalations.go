package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/escalation"
)

var (
	escalationsAll   bool
	escalationsStuck bool
)

var escalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "List escalation records",
	Long: `Escalations lists open escalation records by default. Use --all to include
terminal (resolved/rejected) records and --stuck to show only records held
past the stuck threshold.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildEngine()
		if err != nil {
			return err
		}
		defer deps.cleanup()

		rs, err := deps.engine.Escalations()
		if err != nil {
			return err
		}

		records := rs.Records
		if !escalationsAll {
			records = rs.OpenRecords()
		}
		if escalationsStuck {
			now := time.Now().UTC()
			threshold := deps.cfg.Escalation.StuckThreshold
			var stuck []*escalation.Record
			for _, r := range records {
				if !r.CurrentState.Terminal() && now.Sub(r.CreatedAt) > threshold {
					stuck = append(stuck, r)
				}
			}
			records = stuck
		}

		if cli.OutputFormat(outputFormat) == cli.FormatJSON {
			return cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), records)
		}

		w := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(w, "No escalation records.")
		}
		for _, r := range records {
			fmt.Fprintf(w, "%s  %-28s %-26s since %s  (%s)\n",
				shortID(r.ID), r.Check, r.CurrentState,
				r.EnteredStateAt.Format(time.RFC3339), r.LastTransitionReason)
		}
		fmt.Fprintf(w, "\nResolved: %d  Rejected: %d\n", rs.ResolvedCount, rs.RejectedCount)
		return nil
	},
}

// shortID abbreviates a record ID for display. State files are operator
// editable, so IDs shorter than the truncation length pass through whole.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	escalationsCmd.Flags().BoolVar(&escalationsAll, "all", false, "include terminal records")
	escalationsCmd.Flags().BoolVar(&escalationsStuck, "stuck", false, "show only stuck records")
	rootCmd.AddCommand(escalationsCmd)
}
