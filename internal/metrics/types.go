package metrics

import "time"

// Snapshot is one point-in-time sample of process and fleet health.
type Snapshot struct {
	Timestamp  time.Time    `json:"timestamp"`
	CPUPercent float64      `json:"cpu_percent"`
	MemUsedMB  int          `json:"mem_used_mb"`
	MemTotalMB int          `json:"mem_total_mb"`
	MemFreeMB  int          `json:"mem_free_mb"`
	HeapBytes  uint64       `json:"heap_bytes"`
	Network    NetworkStats `json:"network"`
	MQTT       MQTTStats    `json:"mqtt"`
	Devices    DeviceStats  `json:"devices"`
}

// NetworkStats are externally-fed transport-level counters.
type NetworkStats struct {
	BytesSent         uint64 `json:"bytes_sent"`
	BytesReceived     uint64 `json:"bytes_received"`
	ActiveConnections int    `json:"active_connections"`
}

// MQTTStats are externally-fed broker traffic counters.
type MQTTStats struct {
	Sent              uint64 `json:"sent"`
	Received          uint64 `json:"received"`
	Errors            uint64 `json:"errors"`
	ActiveConnections int    `json:"active_connections"`
}

// DeviceStats are externally-fed fleet population counters.
type DeviceStats struct {
	Active       int `json:"active"`
	Connected    int `json:"connected"`
	Disconnected int `json:"disconnected"`
	Errors       int `json:"errors"`
}

// Severity grades an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert reports one threshold crossing for one category in one sample.
type Alert struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Severity  Severity  `json:"severity"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
}

// Threshold holds the warning and critical bounds for one category.
// A zero bound disables that severity for the category.
type Threshold struct {
	Warning  float64 `json:"warning" yaml:"warning"`
	Critical float64 `json:"critical" yaml:"critical"`
}

// Thresholds configures alerting per category.
type Thresholds struct {
	CPUPercent         Threshold `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryPercent      Threshold `json:"memory_percent" yaml:"memory_percent"`
	NetworkConnections Threshold `json:"network_connections" yaml:"network_connections"`
	MQTTErrors         Threshold `json:"mqtt_errors" yaml:"mqtt_errors"`
	DeviceErrors       Threshold `json:"device_errors" yaml:"device_errors"`
}

// DefaultThresholds mirror the alerting defaults of the hosted platform.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUPercent:         Threshold{Warning: 70, Critical: 90},
		MemoryPercent:      Threshold{Warning: 75, Critical: 90},
		NetworkConnections: Threshold{Warning: 800, Critical: 950},
		MQTTErrors:         Threshold{Warning: 10, Critical: 50},
		DeviceErrors:       Threshold{Warning: 5, Critical: 20},
	}
}
