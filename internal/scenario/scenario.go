package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"crewcall-sim/internal/device"
	"crewcall-sim/internal/fleet"
	"crewcall-sim/internal/logging"
)

// Scenario defines a scripted run with ordered phases and an overall description.
type Scenario struct {
	Name        string  `yaml:"name,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Phases      []Phase `yaml:"phases"`
}

// Phase describes one stage of the run. Exactly one of the load,
// lifecycle, or pause sections applies, selected by Type.
type Phase struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Type        string          `yaml:"type"`
	Load        *LoadPhase      `yaml:"load,omitempty"`
	Lifecycle   *LifecyclePhase `yaml:"lifecycle,omitempty"`
	PauseS      int             `yaml:"pause_s,omitempty"`
}

// LoadPhase holds the sustained-traffic parameters in seconds.
type LoadPhase struct {
	DurationS   int      `yaml:"duration_s"`
	RampUpS     int      `yaml:"ramp_up_s"`
	MaxDevices  int      `yaml:"max_devices"`
	DeviceTypes []string `yaml:"device_types,omitempty"`
}

// LifecyclePhase holds the connect/disconnect churn parameters in seconds.
type LifecyclePhase struct {
	Cycles      int `yaml:"cycles"`
	DeviceCount int `yaml:"device_count"`
	ConnectS    int `yaml:"connect_s"`
	DisconnectS int `yaml:"disconnect_s"`
}

// PhaseResult reports what one executed phase did.
type PhaseResult struct {
	Name      string                `json:"name"`
	Type      string                `json:"type"`
	Load      *fleet.LoadTestResult `json:"load,omitempty"`
	Lifecycle []fleet.CycleResult   `json:"lifecycle,omitempty"`
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every phase names a known type and carries the
// section that type requires.
func (s *Scenario) Validate() error {
	if len(s.Phases) == 0 {
		return fmt.Errorf("scenario %q has no phases", s.Name)
	}
	for i, p := range s.Phases {
		switch p.Type {
		case "load":
			if p.Load == nil {
				return fmt.Errorf("phase %d (%s): load section missing", i, p.Name)
			}
		case "lifecycle":
			if p.Lifecycle == nil {
				return fmt.Errorf("phase %d (%s): lifecycle section missing", i, p.Name)
			}
		case "pause":
			if p.PauseS <= 0 {
				return fmt.Errorf("phase %d (%s): pause_s must be positive", i, p.Name)
			}
		default:
			return fmt.Errorf("phase %d (%s): unknown type %q", i, p.Name, p.Type)
		}
	}
	return nil
}

// Run executes the phases in order against the orchestrator. A failed
// phase aborts the run; results for completed phases are returned.
func (s *Scenario) Run(ctx context.Context, o *fleet.Orchestrator, logger *slog.Logger) ([]PhaseResult, error) {
	log := logging.Component(logger, "scenario")
	log.Info("scenario starting", "name", s.Name, "phases", len(s.Phases))

	results := make([]PhaseResult, 0, len(s.Phases))
	for i, p := range s.Phases {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		log.Info("phase starting", "phase", p.Name, "type", p.Type)
		result := PhaseResult{Name: p.Name, Type: p.Type}
		switch p.Type {
		case "load":
			types := make([]device.Type, 0, len(p.Load.DeviceTypes))
			for _, t := range p.Load.DeviceTypes {
				types = append(types, device.Type(t))
			}
			r, err := o.RunLoadTest(ctx, fleet.LoadTestConfig{
				Duration:    time.Duration(p.Load.DurationS) * time.Second,
				RampUpTime:  time.Duration(p.Load.RampUpS) * time.Second,
				MaxDevices:  p.Load.MaxDevices,
				DeviceTypes: types,
			})
			if err != nil {
				return results, fmt.Errorf("phase %d (%s): %w", i, p.Name, err)
			}
			result.Load = &r
		case "lifecycle":
			r, err := o.RunLifecycleTest(ctx, fleet.LifecycleTestConfig{
				Cycles:             p.Lifecycle.Cycles,
				DeviceCount:        p.Lifecycle.DeviceCount,
				ConnectDuration:    time.Duration(p.Lifecycle.ConnectS) * time.Second,
				DisconnectDuration: time.Duration(p.Lifecycle.DisconnectS) * time.Second,
			})
			if err != nil {
				return results, fmt.Errorf("phase %d (%s): %w", i, p.Name, err)
			}
			result.Lifecycle = r
		case "pause":
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(time.Duration(p.PauseS) * time.Second):
			}
		}
		results = append(results, result)
		log.Info("phase finished", "phase", p.Name)
	}
	log.Info("scenario finished", "name", s.Name)
	return results, nil
}
