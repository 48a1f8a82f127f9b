package device

import (
	"sync"
	"time"
)

// Priority ranks an event for downstream routing.
type Priority string

// Event priorities.
const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Kind identifies an event variant. The set is closed; forward
// compatible extra fields ride in Event.Meta.
type Kind string

// Event kinds.
const (
	KindPress            Kind = "press"
	KindEmergency        Kind = "emergency"
	KindVoiceReady       Kind = "voice_ready"
	KindRequestAccepted  Kind = "request_accepted"
	KindRequestDeclined  Kind = "request_declined"
	KindRequestCompleted Kind = "request_completed"
	KindFallDetected     Kind = "fall_detected"
	KindSOS              Kind = "sos"
	KindHealth           Kind = "health"
	KindRelay            Kind = "relay"
	KindCongestion       Kind = "congestion"
	KindFirmwareUpdate   Kind = "firmware_update"
	KindMeshUpdate       Kind = "mesh_update"
	KindSignalChange     Kind = "signal_change"
	KindBattery          Kind = "battery"
	KindConnectivity     Kind = "connectivity"
	KindTelemetry        Kind = "telemetry"
)

// Payload is implemented by every typed event payload.
type Payload interface {
	payload()
}

// PressPayload describes a button press.
type PressPayload struct {
	PressType  string `json:"press_type"`
	DurationMS int64  `json:"duration_ms"`
}

// RequestPayload carries service-request workflow details.
type RequestPayload struct {
	RequestID string `json:"request_id"`
	Notes     string `json:"notes,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// HealthPayload carries a watch health sample.
type HealthPayload struct {
	HeartRate int    `json:"heart_rate"`
	Steps     int    `json:"steps"`
	Location  string `json:"location,omitempty"`
}

// RelayPayload tags a relayed message with its endpoints.
type RelayPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body,omitempty"`
}

// CongestionPayload describes a simulated traffic burst.
type CongestionPayload struct {
	Messages   int   `json:"messages"`
	DurationMS int64 `json:"duration_ms"`
	Sequence   int   `json:"sequence"`
}

// FirmwarePayload records a firmware version transition.
type FirmwarePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MeshPayload describes a repeater's place in the mesh.
type MeshPayload struct {
	Role     string   `json:"role"`
	HopCount int      `json:"hop_count"`
	Peers    []string `json:"peers,omitempty"`
	Children int      `json:"children"`
}

// SignalPayload carries a signal strength reading.
type SignalPayload struct {
	Signal float64 `json:"signal"`
}

// BatteryPayload carries a battery level reading.
type BatteryPayload struct {
	Level float64 `json:"level"`
}

// ConnectivityPayload reports an online/offline transition.
type ConnectivityPayload struct {
	Online  bool   `json:"online"`
	Cause   string `json:"cause,omitempty"`
	UntilMS int64  `json:"until_ms,omitempty"`
}

// TelemetryPayload carries sampled generic-device signals.
type TelemetryPayload struct {
	Values map[string]float64 `json:"values"`
}

func (PressPayload) payload()        {}
func (RequestPayload) payload()      {}
func (HealthPayload) payload()       {}
func (RelayPayload) payload()        {}
func (CongestionPayload) payload()   {}
func (FirmwarePayload) payload()     {}
func (MeshPayload) payload()         {}
func (SignalPayload) payload()       {}
func (BatteryPayload) payload()      {}
func (ConnectivityPayload) payload() {}
func (TelemetryPayload) payload()    {}

// Event is an immutable record emitted by a simulator.
type Event struct {
	DeviceID  string            `json:"device_id"`
	Kind      Kind              `json:"kind"`
	Timestamp time.Time         `json:"ts"`
	Priority  Priority          `json:"priority"`
	Payload   Payload           `json:"payload,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// EventLog is a bounded FIFO ring of events, oldest evicted first.
type EventLog struct {
	mu  sync.Mutex
	buf []Event
	max int
}

// DefaultEventLogSize bounds the per-device event ring when the config
// does not override it.
const DefaultEventLogSize = 50

// NewEventLog creates a ring holding at most max events.
func NewEventLog(max int) *EventLog {
	if max <= 0 {
		max = DefaultEventLogSize
	}
	return &EventLog{max: max}
}

// Append records an event, evicting the oldest entry when full.
func (l *EventLog) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) >= l.max {
		copy(l.buf, l.buf[1:])
		l.buf[len(l.buf)-1] = e
		return
	}
	l.buf = append(l.buf, e)
}

// Recent returns up to limit of the newest events, oldest first.
// limit <= 0 returns everything retained.
func (l *EventLog) Recent(limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.buf)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, n)
	copy(out, l.buf[len(l.buf)-n:])
	return out
}

// Len reports how many events are retained.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}
