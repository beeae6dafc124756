package main

import (
	"errors"
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/engine"
	"mercator-hq/warden/pkg/trustlock"
)

var (
	unlockReason string
	unlockActor  string
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Manually release the trust lock",
	Long: `Unlock releases an engaged trust lock. Each manual unlock consumes one
unit of the daily quota (default 2 per UTC day) and is recorded with an
audit marker carrying the supplied reason.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildEngine()
		if err != nil {
			return err
		}
		defer deps.cleanup()

		state, err := deps.engine.ManualUnlock(unlockReason, actorName(unlockActor))
		if err != nil {
			if errors.Is(err, trustlock.ErrUnlockQuotaExceeded) {
				return cli.NewExitError(engine.ExitWarnings, err)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Trust lock released. Manual unlocks used today: %d\n",
			state.ManualUnlocksToday)
		return nil
	},
}

// actorName resolves the acting operator for audit markers: the --actor
// flag if given, the OS user otherwise.
func actorName(flag string) string {
	if flag != "" {
		return flag
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

func init() {
	unlockCmd.Flags().StringVar(&unlockReason, "reason", "", "reason for the manual unlock (required)")
	unlockCmd.Flags().StringVar(&unlockActor, "actor", "", "acting operator (defaults to the OS user)")
	unlockCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(unlockCmd)
}
