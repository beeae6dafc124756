package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - governance policy orchestration and trust-lock engine",
	Long: `Warden aggregates heterogeneous health signals into a single GREEN/YELLOW/RED
policy level, enforces a reversible trust lock on destructive actions when
trust signals degrade, and tracks multi-step remediation escalations through
a deterministic lifecycle.

It is designed to run as a periodic batch tick:
  - check mode evaluates and reports without mutating state
  - enforce mode performs the full evaluate-and-commit cycle
  - the embedded runner can tick on a cron schedule or on signal changes

Exit codes: 0 = evaluated cleanly, 1 = evaluated with warnings or blocked
actions, 2 = fatal persistence failure (diagnostic bundle created).`,
	Version: Version,
}

// Execute runs the root command, honoring the engine's exit-code contract.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintln(os.Stderr, exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "warden.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text|json)")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}
