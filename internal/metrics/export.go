package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Summary condenses the retained window for an export artifact.
type Summary struct {
	PeriodStart   time.Time        `json:"period_start"`
	PeriodEnd     time.Time        `json:"period_end"`
	Samples       int              `json:"samples"`
	Current       Snapshot         `json:"current"`
	AvgCPUPercent float64          `json:"avg_cpu_percent"`
	PeakCPU       float64          `json:"peak_cpu_percent"`
	AvgMemUsedMB  float64          `json:"avg_mem_used_mb"`
	PeakMemUsedMB int              `json:"peak_mem_used_mb"`
	TotalMQTTSent uint64           `json:"total_mqtt_sent"`
	TotalMQTTRecv uint64           `json:"total_mqtt_received"`
	TotalErrors   uint64           `json:"total_mqtt_errors"`
	AlertCounts   map[Severity]int `json:"alert_counts"`
}

type exportArtifact struct {
	Timestamp time.Time  `json:"timestamp"`
	Config    Config     `json:"config"`
	Metrics   []Snapshot `json:"metrics"`
	Alerts    []Alert    `json:"alerts"`
	Summary   Summary    `json:"summary"`
}

// Export writes the retained window as a timestamped JSON artifact under
// the configured export path. Failures are logged and never returned;
// a broken disk must not take the collector down.
func (c *Collector) Export() {
	c.mu.Lock()
	snapshots := append([]Snapshot(nil), c.snapshots...)
	alerts := append([]Alert(nil), c.alerts...)
	c.mu.Unlock()

	if len(snapshots) == 0 {
		return
	}
	artifact := exportArtifact{
		Timestamp: c.now(),
		Config:    c.cfg,
		Metrics:   snapshots,
		Alerts:    alerts,
		Summary:   summarize(snapshots, alerts),
	}

	if err := os.MkdirAll(c.cfg.ExportPath, 0o755); err != nil {
		c.log.Warn("export dir create failed", "path", c.cfg.ExportPath, "err", err)
		return
	}
	name := fmt.Sprintf("metrics-%s.json", artifact.Timestamp.UTC().Format("2006-01-02T15-04-05Z"))
	path := filepath.Join(c.cfg.ExportPath, name)

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		c.log.Warn("export marshal failed", "err", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.log.Warn("export write failed", "path", path, "err", err)
		return
	}
	c.log.Info("metrics exported", "path", path, "samples", len(snapshots), "alerts", len(alerts))
}

func summarize(snapshots []Snapshot, alerts []Alert) Summary {
	last := snapshots[len(snapshots)-1]
	s := Summary{
		PeriodStart:   snapshots[0].Timestamp,
		PeriodEnd:     last.Timestamp,
		Samples:       len(snapshots),
		Current:       last,
		TotalMQTTSent: last.MQTT.Sent,
		TotalMQTTRecv: last.MQTT.Received,
		TotalErrors:   last.MQTT.Errors,
		AlertCounts:   make(map[Severity]int),
	}
	for _, snap := range snapshots {
		s.AvgCPUPercent += snap.CPUPercent
		s.AvgMemUsedMB += float64(snap.MemUsedMB)
		if snap.CPUPercent > s.PeakCPU {
			s.PeakCPU = snap.CPUPercent
		}
		if snap.MemUsedMB > s.PeakMemUsedMB {
			s.PeakMemUsedMB = snap.MemUsedMB
		}
	}
	s.AvgCPUPercent /= float64(len(snapshots))
	s.AvgMemUsedMB /= float64(len(snapshots))
	for _, a := range alerts {
		s.AlertCounts[a.Severity]++
	}
	return s
}
