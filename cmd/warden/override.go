package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	overrideCredential string
	overrideReason     string
	overrideActor      string
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Release the trust lock through the emergency bypass",
	Long: `Override releases the trust lock without consuming the daily unlock quota.
It requires the configured override credential (set via
WARDEN_TRUST_LOCK_OVERRIDE_CREDENTIAL) and a reason; both the bypass and any
credential mismatch are audited with distinct markers.

Whether the bypass also clears an engaged safety brake is controlled by the
trust_lock.override_bypasses_brake configuration option.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildEngine()
		if err != nil {
			return err
		}
		defer deps.cleanup()

		if _, err := deps.engine.Override(overrideCredential, overrideReason, actorName(overrideActor)); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Trust lock released by emergency override.")
		return nil
	},
}

func init() {
	overrideCmd.Flags().StringVar(&overrideCredential, "credential", "", "override credential (required)")
	overrideCmd.Flags().StringVar(&overrideReason, "reason", "", "reason for the override (required)")
	overrideCmd.Flags().StringVar(&overrideActor, "actor", "", "acting operator (defaults to the OS user)")
	overrideCmd.MarkFlagRequired("credential")
	overrideCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(overrideCmd)
}
