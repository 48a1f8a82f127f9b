package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"crewcall-sim/internal/device"
	"crewcall-sim/internal/fleet"
)

var (
	flagLoadDuration time.Duration
	flagLoadRampUp   time.Duration
	flagLoadMax      int
	flagLoadTypes    []string
)

var loadTestCmd = &cobra.Command{
	Use:   "load-test",
	Short: "Ramp up a device mix, hold the load, then tear it down",
	RunE:  runLoadTest,
}

func init() {
	loadTestCmd.Flags().DurationVar(&flagLoadDuration, "duration", 5*time.Minute, "How long to hold the full load")
	loadTestCmd.Flags().DurationVar(&flagLoadRampUp, "ramp-up", 30*time.Second, "Time over which device starts are spread")
	loadTestCmd.Flags().IntVar(&flagLoadMax, "max-devices", 50, "Total devices to run")
	loadTestCmd.Flags().StringSliceVar(&flagLoadTypes, "types", nil, "Device types to mix (default button,watch,repeater)")
}

func runLoadTest(cmd *cobra.Command, _ []string) error {
	r, err := buildRuntime()
	if err != nil {
		return err
	}
	defer r.cleanup()

	ctx := cmd.Context()
	if r.collector != nil {
		go r.collector.Run(ctx)
	}

	types := make([]device.Type, 0, len(flagLoadTypes))
	for _, t := range flagLoadTypes {
		typ, err := device.ParseType(t)
		if err != nil {
			return err
		}
		types = append(types, typ)
	}

	result, err := r.orchestrator.RunLoadTest(ctx, fleet.LoadTestConfig{
		Duration:    flagLoadDuration,
		RampUpTime:  flagLoadRampUp,
		MaxDevices:  flagLoadMax,
		DeviceTypes: types,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
