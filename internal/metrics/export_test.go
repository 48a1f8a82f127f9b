package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExport_WritesArtifact(t *testing.T) {
	dir := t.TempDir()
	c, now := newTestCollector(Config{ExportPath: dir, ExportInterval: time.Minute})
	c.IncrementErrors(60)

	c.Sample()
	*now = now.Add(10 * time.Second)
	c.Sample()
	c.Export()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("exported %d files, want 1", len(entries))
	}
	name := entries[0].Name()
	if filepath.Ext(name) != ".json" || name[:8] != "metrics-" {
		t.Errorf("artifact name = %q", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	var artifact exportArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		t.Fatalf("artifact not valid JSON: %v", err)
	}
	if len(artifact.Metrics) != 2 {
		t.Errorf("metrics = %d, want 2", len(artifact.Metrics))
	}
	if artifact.Summary.Samples != 2 {
		t.Errorf("summary samples = %d", artifact.Summary.Samples)
	}
	if artifact.Summary.PeriodEnd.Before(artifact.Summary.PeriodStart) {
		t.Error("summary period inverted")
	}
	// Both samples crossed the mqtt_errors critical threshold.
	if artifact.Summary.AlertCounts[SeverityCritical] != 2 {
		t.Errorf("critical count = %d, want 2", artifact.Summary.AlertCounts[SeverityCritical])
	}
	if artifact.Summary.TotalErrors != 60 {
		t.Errorf("total errors = %d", artifact.Summary.TotalErrors)
	}
}

func TestExport_EmptyWindowIsNoOp(t *testing.T) {
	dir := t.TempDir()
	c, _ := newTestCollector(Config{ExportPath: dir})
	c.Export()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("files written for empty window: %d", len(entries))
	}
}

func TestExport_UnwritablePathIsLoggedOnly(t *testing.T) {
	c, _ := newTestCollector(Config{ExportPath: string([]byte{0})})
	c.Sample()
	c.Export() // must not panic or error out
}

func TestSummarize_Peaks(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	snaps := []Snapshot{
		{Timestamp: base, CPUPercent: 20, MemUsedMB: 1000},
		{Timestamp: base.Add(time.Minute), CPUPercent: 80, MemUsedMB: 3000},
		{Timestamp: base.Add(2 * time.Minute), CPUPercent: 50, MemUsedMB: 2000, MQTT: MQTTStats{Sent: 42}},
	}
	s := summarize(snaps, nil)
	if s.PeakCPU != 80 || s.PeakMemUsedMB != 3000 {
		t.Errorf("peaks = %v cpu / %d mb", s.PeakCPU, s.PeakMemUsedMB)
	}
	if s.AvgCPUPercent != 50 {
		t.Errorf("avg cpu = %v", s.AvgCPUPercent)
	}
	if s.TotalMQTTSent != 42 {
		t.Errorf("total sent = %d", s.TotalMQTTSent)
	}
	if s.Samples != 3 || !s.Current.Timestamp.Equal(snaps[2].Timestamp) {
		t.Errorf("summary = %+v", s)
	}
}
