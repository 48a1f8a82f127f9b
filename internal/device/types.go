// Package device implements per-device behavior simulators for the
// virtual fleet: call buttons, crew watches, mesh repeaters, and
// template-driven generic devices.
package device

import (
	"fmt"
	"time"
)

// Type tags a simulator with its behavior family. Dispatch happens on
// this tag, never on runtime type identity.
type Type string

// Known device types.
const (
	TypeButton   Type = "button"
	TypeWatch    Type = "watch"
	TypeRepeater Type = "repeater"
	TypeGeneric  Type = "generic"
)

// ParseType validates a device type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeButton, TypeWatch, TypeRepeater, TypeGeneric:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown device type %q", s)
}

// Config is the immutable identity and tuning of one device. It is set
// at construction and never mutated afterwards.
type Config struct {
	ID   string `json:"device_id" yaml:"device_id"`
	Name string `json:"name" yaml:"name"`
	Site string `json:"site" yaml:"site"`
	Room string `json:"room" yaml:"room"`
	Type Type   `json:"device_type" yaml:"device_type"`

	// Button tuning.
	PressIntervalMin   time.Duration `json:"press_interval_min,omitempty" yaml:"press_interval_min"`
	PressIntervalMax   time.Duration `json:"press_interval_max,omitempty" yaml:"press_interval_max"`
	LongPressThreshold time.Duration `json:"long_press_threshold,omitempty" yaml:"long_press_threshold"`

	// Watch tuning.
	HeartRateMin   int           `json:"heart_rate_min,omitempty" yaml:"heart_rate_min"`
	HeartRateMax   int           `json:"heart_rate_max,omitempty" yaml:"heart_rate_max"`
	HealthInterval time.Duration `json:"health_interval,omitempty" yaml:"health_interval"`

	// Repeater tuning.
	MeshUpdateInterval time.Duration `json:"mesh_update_interval,omitempty" yaml:"mesh_update_interval"`

	// Generic device template name.
	Template string `json:"template,omitempty" yaml:"template"`

	StatusInterval time.Duration `json:"status_interval,omitempty" yaml:"status_interval"`
	EventLogSize   int           `json:"event_log_size,omitempty" yaml:"event_log_size"`
	InitialBattery float64       `json:"initial_battery,omitempty" yaml:"initial_battery"`
	InitialSignal  float64       `json:"initial_signal,omitempty" yaml:"initial_signal"`
}

// DefaultConfig returns the baseline tuning for a device type.
func DefaultConfig(t Type) Config {
	cfg := Config{
		Type:           t,
		StatusInterval: 30 * time.Second,
		EventLogSize:   50,
		InitialBattery: 100,
		InitialSignal:  100,
	}
	switch t {
	case TypeButton:
		cfg.PressIntervalMin = 30 * time.Second
		cfg.PressIntervalMax = 5 * time.Minute
		cfg.LongPressThreshold = 800 * time.Millisecond
	case TypeWatch:
		cfg.HeartRateMin = 55
		cfg.HeartRateMax = 160
		cfg.HealthInterval = 30 * time.Second
	case TypeRepeater:
		cfg.MeshUpdateInterval = time.Minute
	case TypeGeneric:
		cfg.Template = "temperature_sensor"
	}
	return cfg
}

// Merge overlays non-zero override fields on top of base. Identity
// fields (ID, Name, Site, Room) and every tuning knob participate, so a
// merged config round-trips through the control-surface JSON contract.
func Merge(base, override Config) Config {
	out := base
	if override.ID != "" {
		out.ID = override.ID
	}
	if override.Name != "" {
		out.Name = override.Name
	}
	if override.Site != "" {
		out.Site = override.Site
	}
	if override.Room != "" {
		out.Room = override.Room
	}
	if override.Type != "" {
		out.Type = override.Type
	}
	if override.PressIntervalMin > 0 {
		out.PressIntervalMin = override.PressIntervalMin
	}
	if override.PressIntervalMax > 0 {
		out.PressIntervalMax = override.PressIntervalMax
	}
	if override.LongPressThreshold > 0 {
		out.LongPressThreshold = override.LongPressThreshold
	}
	if override.HeartRateMin > 0 {
		out.HeartRateMin = override.HeartRateMin
	}
	if override.HeartRateMax > 0 {
		out.HeartRateMax = override.HeartRateMax
	}
	if override.HealthInterval > 0 {
		out.HealthInterval = override.HealthInterval
	}
	if override.MeshUpdateInterval > 0 {
		out.MeshUpdateInterval = override.MeshUpdateInterval
	}
	if override.Template != "" {
		out.Template = override.Template
	}
	if override.StatusInterval > 0 {
		out.StatusInterval = override.StatusInterval
	}
	if override.EventLogSize > 0 {
		out.EventLogSize = override.EventLogSize
	}
	if override.InitialBattery > 0 {
		out.InitialBattery = override.InitialBattery
	}
	if override.InitialSignal > 0 {
		out.InitialSignal = override.InitialSignal
	}
	return out
}

// Status is the mutable runtime snapshot of a device. It is owned by
// its simulator; external mutation happens only through commands.
type Status struct {
	Online        bool      `json:"online"`
	Battery       float64   `json:"battery"`
	Signal        float64   `json:"signal"`
	LastSeen      time.Time `json:"last_seen"`
	Location      string    `json:"location,omitempty"`
	AssignedTo    string    `json:"assigned_to,omitempty"`
	Firmware      string    `json:"firmware,omitempty"`
	HeartRate     int       `json:"heart_rate,omitempty"`
	Steps         int       `json:"steps,omitempty"`
	ActiveRequest string    `json:"active_request,omitempty"`
	ActiveFailure string    `json:"active_failure,omitempty"`
}

// clampPercent keeps battery/signal style values inside [0,100].
func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
