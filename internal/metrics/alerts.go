package metrics

import "fmt"

// evaluate checks one snapshot against the configured thresholds and
// returns the alerts to raise. Per category a sample raises at most one
// alert: crossing the critical bound suppresses the warning. Caller
// holds c.mu.
func (c *Collector) evaluate(s Snapshot) []Alert {
	t := c.cfg.Thresholds
	var out []Alert

	check := func(category string, value float64, th Threshold) {
		if th.Critical > 0 && value >= th.Critical {
			out = append(out, Alert{
				Timestamp: s.Timestamp,
				Category:  category,
				Severity:  SeverityCritical,
				Value:     value,
				Threshold: th.Critical,
				Message:   fmt.Sprintf("%s at %.1f exceeds critical threshold %.1f", category, value, th.Critical),
			})
			return
		}
		if th.Warning > 0 && value >= th.Warning {
			out = append(out, Alert{
				Timestamp: s.Timestamp,
				Category:  category,
				Severity:  SeverityWarning,
				Value:     value,
				Threshold: th.Warning,
				Message:   fmt.Sprintf("%s at %.1f exceeds warning threshold %.1f", category, value, th.Warning),
			})
		}
	}

	check("cpu", s.CPUPercent, t.CPUPercent)
	if s.MemTotalMB > 0 {
		memPct := float64(s.MemUsedMB) / float64(s.MemTotalMB) * 100
		check("memory", memPct, t.MemoryPercent)
	}
	check("network_connections", float64(s.Network.ActiveConnections), t.NetworkConnections)
	check("mqtt_errors", float64(s.MQTT.Errors), t.MQTTErrors)
	check("device_errors", float64(s.Devices.Errors), t.DeviceErrors)
	return out
}
