package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/engine"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate and report without enforcing",
	Long: `Check runs one evaluation tick and reports the policy level, trust-lock
state, escalation activity, and action-budget status. Nothing is committed
except the policy snapshot log, so check is safe to run alongside normal
operation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTick(cmd, engine.ModeCheck)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runTick executes one tick in the given mode, renders the result, and maps
// it to the exit-code contract.
func runTick(cmd *cobra.Command, mode engine.Mode) error {
	deps, err := buildEngine()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	res := deps.engine.Tick(cmd.Context(), mode)

	switch cli.OutputFormat(outputFormat) {
	case cli.FormatJSON:
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	default:
		renderTick(cmd.OutOrStdout(), res)
	}

	if code := res.ExitCode(); code != engine.ExitOK {
		return cli.NewExitError(code, nil)
	}
	return nil
}

// renderTick writes the human-readable tick summary.
func renderTick(w io.Writer, res *engine.TickResult) {
	fmt.Fprintf(w, "Policy level: %s\n", res.Snapshot.Level)
	fmt.Fprintf(w, "  Rationale:  %s\n", res.Snapshot.Rationale)
	fmt.Fprintf(w, "  Evaluated:  %s (%s mode)\n", res.Timestamp.Format(time.RFC3339), res.Mode)

	if res.LockState.Locked {
		fmt.Fprintf(w, "Trust lock:   ENGAGED since %s (%s)\n",
			res.LockState.LockedAt.Format(time.RFC3339), res.LockState.Reason)
		fmt.Fprintf(w, "  Auto-unlock eligible at %s\n",
			res.LockState.AutoUnlockEligibleAt.Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "Trust lock:   disengaged\n")
	}

	fmt.Fprintf(w, "Escalations:  %d open", res.OpenEscalations)
	if len(res.StuckEscalations) > 0 {
		fmt.Fprintf(w, ", %d STUCK", len(res.StuckEscalations))
	}
	fmt.Fprintln(w)
	for _, t := range res.Transitions {
		if t.From == "" {
			fmt.Fprintf(w, "  opened %s (%s)\n", t.Check, shortID(t.RecordID))
			continue
		}
		fmt.Fprintf(w, "  %s: %s -> %s (%s)\n", t.Check, t.From, t.To, t.Reason)
	}
	for _, s := range res.StuckEscalations {
		fmt.Fprintf(w, "  stuck: %s in %s for %s\n", s.Check, s.State, s.Age.Round(time.Minute))
	}

	fmt.Fprintf(w, "Action budget: %d in window", res.WindowCount)
	if res.BrakeEngaged {
		fmt.Fprintf(w, " (SAFETY BRAKE ENGAGED)")
	}
	fmt.Fprintln(w)
	for _, a := range res.ActionsExecuted {
		if a.Executed {
			fmt.Fprintf(w, "  executed: %s\n", a.Action)
		} else {
			fmt.Fprintf(w, "  would execute: %s\n", a.Action)
		}
	}
	for _, a := range res.ActionsBlocked {
		fmt.Fprintf(w, "  blocked by %s: %s\n", a.Gate, a.Action)
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings:\n")
		for _, warn := range res.Warnings {
			fmt.Fprintf(w, "  %s (%s): %s\n", warn.Source, warn.Kind, warn.Message)
		}
	}
	if res.FatalError != "" {
		fmt.Fprintf(w, "FATAL: %s\n", res.FatalError)
	}
}
