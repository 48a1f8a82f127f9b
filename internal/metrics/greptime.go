package metrics

import (
	"context"
	"log/slog"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	ingesterContext "github.com/GreptimeTeam/greptimedb-ingester-go/context"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// greptimeClient is the slice of the ingester client the sink uses,
// so tests can capture writes.
type greptimeClient interface {
	Write(ctx context.Context, db string, tables []*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeSink writes snapshots to GreptimeDB via the ingester client.
type GreptimeSink struct {
	client greptimeClient
	db     string
	table  string
	host   string
	log    *slog.Logger
}

// NewGreptimeSink connects and auto-creates the table if needed. host
// tags every row with the simulator instance writing it.
func NewGreptimeSink(endpoint, database, host string, logger *slog.Logger) (*GreptimeSink, error) {
	ctx := ingesterContext.NewContext(context.Background())
	client, err := greptime.NewClient(ctx, &greptime.Config{
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, err
	}

	ddl := `
CREATE TABLE IF NOT EXISTS fleet_metrics (
  host STRING TAG,
  cpu_percent DOUBLE,
  mem_used_mb DOUBLE,
  heap_bytes DOUBLE,
  mqtt_sent DOUBLE,
  mqtt_received DOUBLE,
  mqtt_errors DOUBLE,
  devices_active DOUBLE,
  devices_connected DOUBLE,
  device_errors DOUBLE,
  ts TIMESTAMP TIME INDEX
) WITH (ttl='30d')
`
	if _, err := client.SQL(ctx, ddl); err != nil {
		return nil, err
	}

	return &GreptimeSink{
		client: client,
		db:     database,
		table:  "fleet_metrics",
		host:   host,
		log:    logger,
	}, nil
}

// WriteSnapshot inserts one row.
func (w *GreptimeSink) WriteSnapshot(s Snapshot) error {
	ctx := ingesterContext.NewContext(context.Background())

	tbl := table.New(w.table)
	tbl.AddTagColumn("host", types.StringType, 0)
	tbl.AddFieldColumn("cpu_percent", types.Float64Type)
	tbl.AddFieldColumn("mem_used_mb", types.Float64Type)
	tbl.AddFieldColumn("heap_bytes", types.Float64Type)
	tbl.AddFieldColumn("mqtt_sent", types.Float64Type)
	tbl.AddFieldColumn("mqtt_received", types.Float64Type)
	tbl.AddFieldColumn("mqtt_errors", types.Float64Type)
	tbl.AddFieldColumn("devices_active", types.Float64Type)
	tbl.AddFieldColumn("devices_connected", types.Float64Type)
	tbl.AddFieldColumn("device_errors", types.Float64Type)
	tbl.SetTimeIndex("ts", types.TimestampType)

	tbl.AppendTagValue("host", w.host)
	tbl.AppendFieldValue("cpu_percent", s.CPUPercent)
	tbl.AppendFieldValue("mem_used_mb", float64(s.MemUsedMB))
	tbl.AppendFieldValue("heap_bytes", float64(s.HeapBytes))
	tbl.AppendFieldValue("mqtt_sent", float64(s.MQTT.Sent))
	tbl.AppendFieldValue("mqtt_received", float64(s.MQTT.Received))
	tbl.AppendFieldValue("mqtt_errors", float64(s.MQTT.Errors))
	tbl.AppendFieldValue("devices_active", float64(s.Devices.Active))
	tbl.AppendFieldValue("devices_connected", float64(s.Devices.Connected))
	tbl.AppendFieldValue("device_errors", float64(s.Devices.Errors))
	tbl.AppendTimeIndex(s.Timestamp)

	if err := w.client.Write(ctx, w.db, []*table.Table{tbl}); err != nil {
		w.log.Warn("greptime write failed", "err", err)
		return err
	}
	return nil
}
