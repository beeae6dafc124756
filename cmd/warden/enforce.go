package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/engine"
)

var enforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Run one full evaluate-and-commit tick",
	Long: `Enforce runs the full governance cycle: collect signals, re-evaluate the
trust lock, compute the policy level, advance escalations, budget-check
automated actions, and commit all resulting state with audit markers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTick(cmd, engine.ModeEnforce)
	},
}

func init() {
	rootCmd.AddCommand(enforceCmd)
}
