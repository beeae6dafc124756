package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/warden/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Validate loads the configuration file, applies defaults, and reports any validation errors without running a tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration valid.\n")
		fmt.Fprintf(cmd.OutOrStdout(), "  State dir:   %s\n", cfg.Engine.StateDir)
		fmt.Fprintf(cmd.OutOrStdout(), "  Signals dir: %s\n", cfg.Engine.SignalsDir)
		fmt.Fprintf(cmd.OutOrStdout(), "  History:     %s\n", cfg.History.Backend)
		fmt.Fprintf(cmd.OutOrStdout(), "  Thresholds:  red integrity %.0f, red consensus %.0f, red responses %d\n",
			cfg.Policy.RedIntegrity, cfg.Policy.RedConsensus, cfg.Policy.RedResponses)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
