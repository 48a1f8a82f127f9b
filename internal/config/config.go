// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"crewcall-sim/internal/metrics"
)

// Broker holds the MQTT connection settings.
type Broker struct {
	URL      string `yaml:"url"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Group defines a set of devices of the same type started together.
// Interval fields are in seconds; zero means the type default.
type Group struct {
	Name                string  `yaml:"name"`
	Type                string  `yaml:"type"`
	Count               int     `yaml:"count"`
	Room                string  `yaml:"room"`
	Site                string  `yaml:"site"`
	Template            string  `yaml:"template"`
	StatusIntervalS     int     `yaml:"status_interval_s"`
	PressIntervalMinS   int     `yaml:"press_interval_min_s"`
	PressIntervalMaxS   int     `yaml:"press_interval_max_s"`
	HealthIntervalS     int     `yaml:"health_interval_s"`
	MeshUpdateIntervalS int     `yaml:"mesh_update_interval_s"`
	InitialBattery      float64 `yaml:"initial_battery"`
	InitialSignal       float64 `yaml:"initial_signal"`
}

// FleetConfig tunes the orchestrator and names the device groups.
type FleetConfig struct {
	MaxDevices      int     `yaml:"max_devices"`
	StartupDelayMs  int     `yaml:"startup_delay_ms"`
	ShutdownDelayMs int     `yaml:"shutdown_delay_ms"`
	Groups          []Group `yaml:"groups"`
}

// MetricsConfig tunes the collector. Intervals are in seconds.
type MetricsConfig struct {
	Enabled          bool               `yaml:"enabled"`
	IntervalS        int                `yaml:"interval_s"`
	RetentionWindowS int                `yaml:"retention_window_s"`
	ExportIntervalS  int                `yaml:"export_interval_s"`
	ExportPath       string             `yaml:"export_path"`
	Thresholds       metrics.Thresholds `yaml:"thresholds"`
}

// Greptime configures the optional time-series sink.
type Greptime struct {
	Endpoint string `yaml:"endpoint"`
	Database string `yaml:"database"`
}

// SimulationConfig is the root configuration for the fleet simulator.
type SimulationConfig struct {
	Broker    Broker        `yaml:"broker"`
	TopicBase string        `yaml:"topic_base"`
	AdminAddr string        `yaml:"admin_addr"`
	Fleet     FleetConfig   `yaml:"fleet"`
	Metrics   MetricsConfig `yaml:"metrics"`
	Greptime  Greptime      `yaml:"greptime"`
}

// Load loads YAML config and validates it against a CUE schema.
// An empty schema path skips CUE validation.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	if cueSchemaPath != "" {
		if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SimulationConfig) applyDefaults() {
	if c.Broker.URL == "" {
		c.Broker.URL = "tcp://localhost:1883"
	}
	if c.Broker.ClientID == "" {
		c.Broker.ClientID = "crewcall-sim"
	}
	if c.TopicBase == "" {
		c.TopicBase = "crewcall"
	}
	if c.Fleet.MaxDevices == 0 {
		c.Fleet.MaxDevices = 1000
	}
	if c.Fleet.StartupDelayMs == 0 {
		c.Fleet.StartupDelayMs = 100
	}
	if c.Fleet.ShutdownDelayMs == 0 {
		c.Fleet.ShutdownDelayMs = 50
	}
	if c.Metrics.IntervalS == 0 {
		c.Metrics.IntervalS = 5
	}
	if c.Metrics.RetentionWindowS == 0 {
		c.Metrics.RetentionWindowS = 3600
	}
	if c.Metrics.Thresholds == (metrics.Thresholds{}) {
		c.Metrics.Thresholds = metrics.DefaultThresholds()
	}
}

// Validate applies the structural checks CUE cannot express relative to
// other fields.
func (c *SimulationConfig) Validate() error {
	for i, g := range c.Fleet.Groups {
		if g.Count <= 0 {
			return fmt.Errorf("fleet group %d (%s): count must be positive", i, g.Name)
		}
		if g.Type == "" {
			return fmt.Errorf("fleet group %d (%s): type is required", i, g.Name)
		}
		if g.PressIntervalMaxS > 0 && g.PressIntervalMinS > g.PressIntervalMaxS {
			return fmt.Errorf("fleet group %d (%s): press interval min exceeds max", i, g.Name)
		}
	}
	if c.Fleet.MaxDevices < 0 {
		return fmt.Errorf("fleet max_devices must not be negative")
	}
	return nil
}

// StartupDelay returns the orchestrator start stagger.
func (c *FleetConfig) StartupDelay() time.Duration {
	return time.Duration(c.StartupDelayMs) * time.Millisecond
}

// ShutdownDelay returns the orchestrator stop stagger.
func (c *FleetConfig) ShutdownDelay() time.Duration {
	return time.Duration(c.ShutdownDelayMs) * time.Millisecond
}

// CollectorConfig converts the YAML metrics section into the collector's
// runtime config.
func (c *MetricsConfig) CollectorConfig() metrics.Config {
	return metrics.Config{
		Interval:        time.Duration(c.IntervalS) * time.Second,
		RetentionWindow: time.Duration(c.RetentionWindowS) * time.Second,
		ExportInterval:  time.Duration(c.ExportIntervalS) * time.Second,
		ExportPath:      c.ExportPath,
		Thresholds:      c.Thresholds,
	}
}
