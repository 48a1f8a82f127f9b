package metrics

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"crewcall-sim/internal/logging"
)

// Sink receives every completed snapshot, e.g. a time-series database.
type Sink interface {
	WriteSnapshot(s Snapshot) error
}

// AlertFunc is invoked for every raised alert.
type AlertFunc func(a Alert)

// Config tunes the collector.
type Config struct {
	Interval        time.Duration `json:"interval" yaml:"interval"`
	RetentionWindow time.Duration `json:"retention_window" yaml:"retention_window"`
	ExportInterval  time.Duration `json:"export_interval" yaml:"export_interval"`
	ExportPath      string        `json:"export_path" yaml:"export_path"`
	Thresholds      Thresholds    `json:"thresholds" yaml:"thresholds"`
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = time.Hour
	}
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = DefaultThresholds()
	}
	return c
}

// Collector samples process health on an interval, keeps a retention
// window of snapshots, raises threshold alerts, and optionally exports
// periodic JSON reports.
type Collector struct {
	cfg     Config
	log     *slog.Logger
	sink    Sink
	onAlert AlertFunc

	mu        sync.Mutex
	snapshots []Snapshot
	alerts    []Alert
	prevCPU   *procCPUReading
	network   NetworkStats
	mqtt      MQTTStats
	devices   DeviceStats
	started   time.Time

	now     func() time.Time
	readCPU func(now time.Time) *procCPUReading
	readMem func() (used, total, free int)
}

// NewCollector builds a collector; Run starts sampling.
func NewCollector(cfg Config, logger *slog.Logger) *Collector {
	return &Collector{
		cfg:     cfg.withDefaults(),
		log:     logging.Component(logger, "metrics"),
		now:     time.Now,
		readCPU: readSelfCPU,
		readMem: systemMemoryMB,
	}
}

// SetSink attaches a snapshot sink. Must be called before Run.
func (c *Collector) SetSink(sink Sink) { c.sink = sink }

// OnAlert registers the alert callback. Must be called before Run.
func (c *Collector) OnAlert(fn AlertFunc) { c.onAlert = fn }

// Run samples until ctx is cancelled. Blocking.
func (c *Collector) Run(ctx context.Context) {
	c.mu.Lock()
	c.started = c.now()
	c.mu.Unlock()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	var exportCh <-chan time.Time
	if c.cfg.ExportInterval > 0 && c.cfg.ExportPath != "" {
		exportTicker := time.NewTicker(c.cfg.ExportInterval)
		defer exportTicker.Stop()
		exportCh = exportTicker.C
	}

	c.log.Info("collector started",
		"interval", c.cfg.Interval, "retention", c.cfg.RetentionWindow)
	for {
		select {
		case <-ctx.Done():
			c.log.Info("collector stopped")
			return
		case <-ticker.C:
			c.Sample()
		case <-exportCh:
			c.Export()
		}
	}
}

// Sample takes one snapshot immediately: reads system state, merges the
// externally-fed counters, prunes the window, and evaluates thresholds.
func (c *Collector) Sample() Snapshot {
	now := c.now()
	cur := c.readCPU(now)
	used, total, free := c.readMem()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.mu.Lock()
	snap := Snapshot{
		Timestamp:  now,
		CPUPercent: cpuPercent(c.prevCPU, cur),
		MemUsedMB:  used,
		MemTotalMB: total,
		MemFreeMB:  free,
		HeapBytes:  ms.HeapAlloc,
		Network:    c.network,
		MQTT:       c.mqtt,
		Devices:    c.devices,
	}
	c.prevCPU = cur
	c.snapshots = append(c.snapshots, snap)
	c.prune(now)

	raised := c.evaluate(snap)
	c.alerts = append(c.alerts, raised...)
	c.mu.Unlock()

	for _, a := range raised {
		c.log.Warn("alert raised",
			"category", a.Category, "severity", a.Severity,
			"value", a.Value, "threshold", a.Threshold)
		if c.onAlert != nil {
			c.onAlert(a)
		}
	}
	if c.sink != nil {
		if err := c.sink.WriteSnapshot(snap); err != nil {
			c.log.Warn("snapshot sink write failed", "err", err)
		}
	}
	return snap
}

// prune drops snapshots and alerts older than the retention window.
// Caller holds c.mu.
func (c *Collector) prune(now time.Time) {
	cutoff := now.Add(-c.cfg.RetentionWindow)
	i := 0
	for i < len(c.snapshots) && c.snapshots[i].Timestamp.Before(cutoff) {
		i++
	}
	c.snapshots = c.snapshots[i:]
	j := 0
	for j < len(c.alerts) && c.alerts[j].Timestamp.Before(cutoff) {
		j++
	}
	c.alerts = c.alerts[j:]
}

// Current returns the newest snapshot, if any.
func (c *Collector) Current() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snapshots) == 0 {
		return Snapshot{}, false
	}
	return c.snapshots[len(c.snapshots)-1], true
}

// History returns all retained snapshots, oldest first.
func (c *Collector) History() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Snapshot(nil), c.snapshots...)
}

// RecentAlerts returns all retained alerts, oldest first.
func (c *Collector) RecentAlerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

// UpdateMQTTStats replaces the MQTT gauge values. Counters accumulated
// via IncrementMQTTMessages and IncrementErrors are preserved.
func (c *Collector) UpdateMQTTStats(activeConnections int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mqtt.ActiveConnections = activeConnections
}

// IncrementMQTTMessages bumps the sent and received counters.
func (c *Collector) IncrementMQTTMessages(sent, received uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mqtt.Sent += sent
	c.mqtt.Received += received
}

// IncrementErrors bumps the MQTT error counter.
func (c *Collector) IncrementErrors(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mqtt.Errors += n
}

// UpdateDeviceStats replaces the fleet population gauges.
func (c *Collector) UpdateDeviceStats(stats DeviceStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = stats
}

// UpdateNetworkStats replaces the transport-level gauges.
func (c *Collector) UpdateNetworkStats(stats NetworkStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.network = stats
}
