package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateSchema string

var validateCmd = &cobra.Command{
	Use:   "validate <config>",
	Short: "Check a network configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args[0], validateSchema)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d motes, gateway %d, window %s\n",
			args[0], cfg.Network.Motes, cfg.Network.Gateway, cfg.Network.AggregationWindow)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "Path to CUE schema file; empty uses the built-in schema")
}
