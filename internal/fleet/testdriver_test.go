package fleet

import (
	"context"
	"testing"
	"time"

	"crewcall-sim/internal/device"
)

func TestRunLoadTest(t *testing.T) {
	o, rec := newTestOrchestrator(Options{})
	result, err := o.RunLoadTest(context.Background(), LoadTestConfig{
		Duration:    time.Second,
		RampUpTime:  900 * time.Millisecond,
		MaxDevices:  9,
		DeviceTypes: []device.Type{device.TypeButton, device.TypeWatch, device.TypeRepeater},
	})
	if err != nil {
		t.Fatalf("load test: %v", err)
	}
	if result.Started != 9 {
		t.Errorf("started = %d, want 9", result.Started)
	}
	if result.FinalStats.Total != 9 {
		t.Errorf("final stats total = %d, want 9", result.FinalStats.Total)
	}
	for _, typ := range []device.Type{device.TypeButton, device.TypeWatch, device.TypeRepeater} {
		if n := result.FinalStats.ByType[typ]; n != 3 {
			t.Errorf("%s count = %d, want even split of 3", typ, n)
		}
	}
	if total := o.GetStatistics().Total; total != 0 {
		t.Errorf("%d instances tracked after load test, want 0", total)
	}

	// Ramp-up spread across devices: per-device stagger of 100ms.
	for _, d := range rec.all() {
		if d == 100*time.Millisecond {
			return
		}
	}
	t.Error("ramp-up stagger of 100ms never used")
}

func TestRunLoadTest_Validation(t *testing.T) {
	o, _ := newTestOrchestrator(Options{})
	if _, err := o.RunLoadTest(context.Background(), LoadTestConfig{}); err == nil {
		t.Error("expected error for missing max_devices")
	}
	_, err := o.RunLoadTest(context.Background(), LoadTestConfig{
		MaxDevices:  3,
		DeviceTypes: []device.Type{"toaster"},
	})
	if err == nil {
		t.Error("expected error for unknown device type")
	}
}

func TestRunLoadTest_CancelledMidHoldStopsFleet(t *testing.T) {
	o, _ := newTestOrchestrator(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Interrupt during the hold, as a signal would.
	o.sleep = func(_ context.Context, d time.Duration) {
		if d == time.Hour {
			cancel()
		}
	}

	result, err := o.RunLoadTest(ctx, LoadTestConfig{
		Duration:   time.Hour,
		MaxDevices: 6,
	})
	if err != nil {
		t.Fatalf("load test: %v", err)
	}
	if result.Started != 6 {
		t.Errorf("started = %d, want 6", result.Started)
	}
	if total := o.GetStatistics().Total; total != 0 {
		t.Errorf("%d instances still tracked after interrupt, want 0", total)
	}
}

func TestRunLifecycleTest_CancelledContextStopsFleet(t *testing.T) {
	o, _ := newTestOrchestrator(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := o.RunLifecycleTest(ctx, LifecycleTestConfig{
		Cycles:          2,
		DeviceCount:     6,
		ConnectDuration: time.Hour,
	})
	if err != nil {
		t.Fatalf("lifecycle test: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("cycles = %d, want 2", len(results))
	}
	if total := o.GetStatistics().Total; total != 0 {
		t.Errorf("%d instances still tracked after interrupt, want 0", total)
	}
}

func TestRunLifecycleTest(t *testing.T) {
	o, _ := newTestOrchestrator(Options{})
	results, err := o.RunLifecycleTest(context.Background(), LifecycleTestConfig{
		Cycles:             3,
		DeviceCount:        9,
		ConnectDuration:    time.Second,
		DisconnectDuration: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("lifecycle test: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("cycles = %d, want 3", len(results))
	}
	for _, r := range results {
		if r.Started != 9 {
			t.Errorf("cycle %d started %d devices, want 9", r.Cycle, r.Started)
		}
	}
	if total := o.GetStatistics().Total; total != 0 {
		t.Errorf("%d instances tracked after lifecycle test, want 0", total)
	}
}

func TestRunLifecycleTest_Validation(t *testing.T) {
	o, _ := newTestOrchestrator(Options{})
	if _, err := o.RunLifecycleTest(context.Background(), LifecycleTestConfig{DeviceCount: 9}); err == nil {
		t.Error("expected error for zero cycles")
	}
	if _, err := o.RunLifecycleTest(context.Background(), LifecycleTestConfig{Cycles: 1}); err == nil {
		t.Error("expected error for zero device count")
	}
}
