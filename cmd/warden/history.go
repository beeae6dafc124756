package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/history"
	"mercator-hq/warden/pkg/policy"
)

var (
	historySince time.Duration
	historyLevel string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the policy snapshot history",
	Long: `History queries the snapshot history backend for past policy evaluations,
newest first. The append-only JSONL log in the state directory remains the
authoritative record; this is the indexed view of it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildEngine()
		if err != nil {
			return err
		}
		defer deps.cleanup()

		q := history.SnapshotQuery{
			Level: policy.Level(historyLevel),
			Limit: historyLimit,
		}
		if historySince > 0 {
			q.Since = time.Now().UTC().Add(-historySince)
		}

		snaps, err := deps.engine.History().QuerySnapshots(cmd.Context(), q)
		if err != nil {
			return err
		}

		if cli.OutputFormat(outputFormat) == cli.FormatJSON {
			return cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), snaps)
		}

		w := cmd.OutOrStdout()
		if len(snaps) == 0 {
			fmt.Fprintln(w, "No snapshots recorded.")
			return nil
		}
		for _, s := range snaps {
			fmt.Fprintf(w, "%s  %-6s %s\n",
				s.Timestamp.Format(time.RFC3339), s.Level, s.Rationale)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only snapshots within this trailing duration (e.g. 24h)")
	historyCmd.Flags().StringVar(&historyLevel, "level", "", "filter by policy level (GREEN|YELLOW|RED)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum snapshots to return")
	rootCmd.AddCommand(historyCmd)
}
