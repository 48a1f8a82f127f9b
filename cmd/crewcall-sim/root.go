package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagSchemaPath string
	flagBrokerURL  string
	flagPrintOnly  bool
	flagLogFile    string
)

var rootCmd = &cobra.Command{
	Use:   "crewcall-sim",
	Short: "Virtual device fleet simulator",
	Long:  "crewcall-sim runs virtual call buttons, crew watches, and mesh repeaters against an MQTT broker for platform load and integration testing.",
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context so every subcommand winds its fleet down before exiting.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "config/fleet.yaml", "Path to fleet configuration YAML")
	rootCmd.PersistentFlags().StringVar(&flagSchemaPath, "schema", "schemas/fleet.cue", "Path to CUE schema file (empty to skip validation)")
	rootCmd.PersistentFlags().StringVar(&flagBrokerURL, "broker", "", "MQTT broker URL, overrides the config file")
	rootCmd.PersistentFlags().BoolVar(&flagPrintOnly, "print-only", false, "Print published messages to STDOUT instead of connecting to a broker")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Path to export the device event log (JSONL)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(loadTestCmd)
	rootCmd.AddCommand(lifecycleTestCmd)
	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(dashboardsCmd)
}
