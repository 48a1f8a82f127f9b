package scenario

import (
	"context"
	"testing"
	"time"

	"crewcall-sim/internal/fleet"
	"crewcall-sim/internal/logging"
	"crewcall-sim/internal/transport"
)

func TestLoadScenario(t *testing.T) {
	sc, err := Load("testdata/simple.yaml")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if sc.Name != "example" {
		t.Fatalf("unexpected name %s", sc.Name)
	}
	if sc.Description != "basic test scenario" {
		t.Fatalf("unexpected description %s", sc.Description)
	}
	if len(sc.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(sc.Phases))
	}
	if sc.Phases[0].Type != "load" || sc.Phases[0].Load.MaxDevices != 6 {
		t.Fatalf("unexpected load phase %+v", sc.Phases[0])
	}
	if sc.Phases[1].Type != "pause" || sc.Phases[1].PauseS != 5 {
		t.Fatalf("unexpected pause phase %+v", sc.Phases[1])
	}
	if sc.Phases[2].Lifecycle.Cycles != 2 {
		t.Fatalf("unexpected lifecycle phase %+v", sc.Phases[2])
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]Scenario{
		"no phases":         {Name: "x"},
		"unknown type":      {Phases: []Phase{{Name: "p", Type: "attack"}}},
		"load missing":      {Phases: []Phase{{Name: "p", Type: "load"}}},
		"lifecycle missing": {Phases: []Phase{{Name: "p", Type: "lifecycle"}}},
		"zero pause":        {Phases: []Phase{{Name: "p", Type: "pause"}}},
	}
	for name, sc := range cases {
		if err := sc.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestRun(t *testing.T) {
	broker := transport.NewMemoryBroker()
	o := fleet.NewOrchestrator(broker.Client(), fleet.Options{
		StartupDelay:  time.Millisecond,
		ShutdownDelay: time.Millisecond,
	}, logging.New())

	sc := Scenario{
		Name: "smoke",
		Phases: []Phase{
			{Name: "burst", Type: "load", Load: &LoadPhase{MaxDevices: 3, DeviceTypes: []string{"button"}}},
			{Name: "churn", Type: "lifecycle", Lifecycle: &LifecyclePhase{Cycles: 1, DeviceCount: 3}},
		},
	}
	results, err := sc.Run(context.Background(), o, logging.New())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Load == nil || results[0].Load.Started != 3 {
		t.Errorf("load result = %+v", results[0].Load)
	}
	if len(results[1].Lifecycle) != 1 || results[1].Lifecycle[0].Started != 3 {
		t.Errorf("lifecycle result = %+v", results[1].Lifecycle)
	}
	if total := o.GetStatistics().Total; total != 0 {
		t.Errorf("%d instances tracked after run, want 0", total)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	broker := transport.NewMemoryBroker()
	o := fleet.NewOrchestrator(broker.Client(), fleet.Options{}, logging.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc := Scenario{Phases: []Phase{{Name: "wait", Type: "pause", PauseS: 60}}}
	if _, err := sc.Run(ctx, o, logging.New()); err == nil {
		t.Error("expected context error")
	}
}

func TestRun_InvalidPhaseAborts(t *testing.T) {
	broker := transport.NewMemoryBroker()
	o := fleet.NewOrchestrator(broker.Client(), fleet.Options{
		StartupDelay:  time.Millisecond,
		ShutdownDelay: time.Millisecond,
	}, logging.New())

	sc := Scenario{
		Phases: []Phase{
			{Name: "ok", Type: "load", Load: &LoadPhase{MaxDevices: 1, DeviceTypes: []string{"button"}}},
			{Name: "bad", Type: "load", Load: &LoadPhase{MaxDevices: 1, DeviceTypes: []string{"toaster"}}},
		},
	}
	results, err := sc.Run(context.Background(), o, logging.New())
	if err == nil {
		t.Fatal("expected error from unknown device type")
	}
	if len(results) != 1 {
		t.Errorf("completed results = %d, want 1", len(results))
	}
}

func TestBuiltInArcs(t *testing.T) {
	arcs := BuiltIn()
	names := []string{"dinner-rush", "anchorage-churn", "charter-turnaround"}
	for _, n := range names {
		arc, ok := arcs[n]
		if !ok {
			t.Fatalf("arc %s not found", n)
		}
		if arc.Description == "" {
			t.Fatalf("arc %s missing description", n)
		}
		if err := arc.Validate(); err != nil {
			t.Fatalf("arc %s invalid: %v", n, err)
		}
	}
}
