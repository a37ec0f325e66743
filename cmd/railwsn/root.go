package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"railwsn-sim/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:          "railwsn",
	Short:        "Rail breakage detection network simulator",
	Long:         "railwsn simulates a line of vibration-sensing motes along a railway track, the routing tree toward their gateway and the breakage reports it produces.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// level resolves the log level from the flag, then RAILWSN_LOG_LEVEL.
func level(cmd *cobra.Command) (slog.Level, error) {
	v := logLevel
	if !cmd.Flags().Changed("log-level") {
		if env := os.Getenv("RAILWSN_LOG_LEVEL"); env != "" {
			v = env
		}
	}
	return logging.ParseLevel(v)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(dashboardCmd)
}
