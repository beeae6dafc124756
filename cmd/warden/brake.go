package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	brakeClearReason string
	brakeClearActor  string
)

var brakeCmd = &cobra.Command{
	Use:   "brake",
	Short: "Inspect and clear the safety brake",
}

var brakeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the safety brake and action budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildEngine()
		if err != nil {
			return err
		}
		defer deps.cleanup()

		state, err := deps.engine.RateLimit()
		if err != nil {
			return err
		}

		var inWindow int64
		for _, b := range state.Buckets {
			inWindow += b.Value
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Actions in window: %d (ceiling %d)\n",
			inWindow, deps.cfg.RateLimit.Ceiling)
		if state.Brake.Engaged {
			fmt.Fprintf(cmd.OutOrStdout(), "Safety brake: ENGAGED since %s\n  %s\n",
				state.Brake.EngagedAt.Format(time.RFC3339), state.Brake.Reason)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Safety brake: disengaged")
		}
		return nil
	},
}

var brakeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Disengage the safety brake",
	Long: `Clear disengages the safety brake so automated actions can resume. The
brake only engages when the rolling action ceiling is reached, and it never
releases on its own; clearing it is an explicit operator decision recorded
with an audit marker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildEngine()
		if err != nil {
			return err
		}
		defer deps.cleanup()

		if err := deps.engine.ClearBrake(brakeClearReason, actorName(brakeClearActor)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Safety brake cleared.")
		return nil
	},
}

func init() {
	brakeClearCmd.Flags().StringVar(&brakeClearReason, "reason", "", "reason for clearing the brake (required)")
	brakeClearCmd.Flags().StringVar(&brakeClearActor, "actor", "", "acting operator (defaults to the OS user)")
	brakeClearCmd.MarkFlagRequired("reason")
	brakeCmd.AddCommand(brakeStatusCmd)
	brakeCmd.AddCommand(brakeClearCmd)
	rootCmd.AddCommand(brakeCmd)
}
