package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"crewcall-sim/internal/fleet"
)

var (
	flagCycleCount      int
	flagCycleDevices    int
	flagCycleConnect    time.Duration
	flagCycleDisconnect time.Duration
)

var lifecycleTestCmd = &cobra.Command{
	Use:   "lifecycle-test",
	Short: "Churn devices through repeated connect/disconnect cycles",
	RunE:  runLifecycleTest,
}

func init() {
	lifecycleTestCmd.Flags().IntVar(&flagCycleCount, "cycles", 5, "Number of connect/disconnect cycles")
	lifecycleTestCmd.Flags().IntVar(&flagCycleDevices, "count", 30, "Devices per cycle")
	lifecycleTestCmd.Flags().DurationVar(&flagCycleConnect, "connect", time.Minute, "How long devices stay connected per cycle")
	lifecycleTestCmd.Flags().DurationVar(&flagCycleDisconnect, "disconnect", 30*time.Second, "Pause between cycles")
}

func runLifecycleTest(cmd *cobra.Command, _ []string) error {
	r, err := buildRuntime()
	if err != nil {
		return err
	}
	defer r.cleanup()

	ctx := cmd.Context()
	if r.collector != nil {
		go r.collector.Run(ctx)
	}

	results, err := r.orchestrator.RunLifecycleTest(ctx, fleet.LifecycleTestConfig{
		Cycles:             flagCycleCount,
		DeviceCount:        flagCycleDevices,
		ConnectDuration:    flagCycleConnect,
		DisconnectDuration: flagCycleDisconnect,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
