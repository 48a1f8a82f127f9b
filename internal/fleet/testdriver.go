package fleet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crewcall-sim/internal/device"
)

// LoadTestConfig parameterizes one sustained-traffic run.
type LoadTestConfig struct {
	Duration    time.Duration `json:"duration" yaml:"duration"`
	RampUpTime  time.Duration `json:"ramp_up_time" yaml:"ramp_up_time"`
	MaxDevices  int           `json:"max_devices" yaml:"max_devices"`
	DeviceTypes []device.Type `json:"device_types" yaml:"device_types"`
}

// LoadTestResult captures what a load test did.
type LoadTestResult struct {
	Started    int           `json:"started"`
	Duration   time.Duration `json:"duration"`
	FinalStats Statistics    `json:"final_stats"`
}

// RunLoadTest starts an even device-type mix, holds it for the
// configured duration, records final statistics, and stops everything.
// The ramp-up time is spread across all devices as the start stagger.
func (o *Orchestrator) RunLoadTest(ctx context.Context, cfg LoadTestConfig) (LoadTestResult, error) {
	if cfg.MaxDevices <= 0 {
		return LoadTestResult{}, errors.New("load test requires max_devices > 0")
	}
	if len(cfg.DeviceTypes) == 0 {
		cfg.DeviceTypes = []device.Type{device.TypeButton, device.TypeWatch, device.TypeRepeater}
	}
	for _, t := range cfg.DeviceTypes {
		if _, err := device.ParseType(string(t)); err != nil {
			return LoadTestResult{}, err
		}
	}

	perType := cfg.MaxDevices / len(cfg.DeviceTypes)
	if perType == 0 {
		perType = 1
	}
	specs := make([]Spec, 0, len(cfg.DeviceTypes))
	for _, t := range cfg.DeviceTypes {
		specs = append(specs, Spec{Type: t, Count: perType})
	}

	stagger := o.opts.StartupDelay
	if cfg.RampUpTime > 0 {
		stagger = cfg.RampUpTime / time.Duration(cfg.MaxDevices)
	}

	o.log.Info("load test starting",
		"max_devices", cfg.MaxDevices, "duration", cfg.Duration, "ramp_up", cfg.RampUpTime)
	started := o.startSimulators(ctx, specs, stagger)

	// Wall-clock hold; a hung transport does not abort the run.
	o.sleep(ctx, cfg.Duration)

	result := LoadTestResult{
		Started:    len(started),
		Duration:   cfg.Duration,
		FinalStats: o.GetStatistics(),
	}
	o.StopAll(ctx)
	o.log.Info("load test finished", "started", result.Started)
	return result, nil
}

// LifecycleTestConfig parameterizes repeated connect/disconnect churn.
type LifecycleTestConfig struct {
	Cycles             int           `json:"cycles" yaml:"cycles"`
	DeviceCount        int           `json:"device_count" yaml:"device_count"`
	ConnectDuration    time.Duration `json:"connect_duration" yaml:"connect_duration"`
	DisconnectDuration time.Duration `json:"disconnect_duration" yaml:"disconnect_duration"`
}

// CycleResult reports one lifecycle cycle.
type CycleResult struct {
	Cycle   int `json:"cycle"`
	Started int `json:"started"`
}

// RunLifecycleTest runs repeated start/stop cycles: a third each of
// buttons, watches, and repeaters, tagged with the cycle number as the
// room. The disconnect pause is skipped after the final cycle, and the
// fleet is empty when the test returns.
func (o *Orchestrator) RunLifecycleTest(ctx context.Context, cfg LifecycleTestConfig) ([]CycleResult, error) {
	if cfg.Cycles <= 0 {
		return nil, errors.New("lifecycle test requires cycles > 0")
	}
	if cfg.DeviceCount <= 0 {
		return nil, errors.New("lifecycle test requires device_count > 0")
	}

	third := cfg.DeviceCount / 3
	if third == 0 {
		third = 1
	}
	results := make([]CycleResult, 0, cfg.Cycles)
	for cycle := 1; cycle <= cfg.Cycles; cycle++ {
		room := fmt.Sprintf("cycle-%d", cycle)
		specs := []Spec{
			{Type: device.TypeButton, Count: third, Config: device.Config{Room: room}},
			{Type: device.TypeWatch, Count: third, Config: device.Config{Room: room}},
			{Type: device.TypeRepeater, Count: third, Config: device.Config{Room: room}},
		}
		o.log.Info("lifecycle cycle starting", "cycle", cycle, "devices", third*3)
		started := o.StartSimulators(ctx, specs)
		results = append(results, CycleResult{Cycle: cycle, Started: len(started)})

		o.sleep(ctx, cfg.ConnectDuration)
		o.StopAll(ctx)
		if cycle < cfg.Cycles {
			o.sleep(ctx, cfg.DisconnectDuration)
		}
	}
	o.log.Info("lifecycle test finished", "cycles", cfg.Cycles)
	return results, nil
}
