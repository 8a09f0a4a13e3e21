package flightlog

import (
	"context"
	"log/slog"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	ingesterContext "github.com/GreptimeTeam/greptimedb-ingester-go/context"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// GreptimeDBWriter archives flight log rows in GreptimeDB via the ingester
// client. It is the long-term sink; the JSONL file writer covers local export.
type GreptimeDBWriter struct {
	client greptime.Client
	db     string
	table  string
	log    *slog.Logger
}

// NewGreptimeDBWriter creates a GreptimeDB writer and auto-creates the table
// if needed. An empty tableName selects "flight_telemetry".
func NewGreptimeDBWriter(endpoint, database, tableName string, log *slog.Logger) (*GreptimeDBWriter, error) {
	if tableName == "" {
		tableName = "flight_telemetry"
	}
	ctx := ingesterContext.NewContext(context.Background())
	client, err := greptime.NewClient(ctx, &greptime.Config{
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, err
	}

	ddl := `
CREATE TABLE IF NOT EXISTS ` + tableName + ` (
  entry_id STRING TAG,
  name STRING TAG,
  mode STRING,
  lat DOUBLE,
  lng DOUBLE,
  alt_m DOUBLE,
  speed_kmh DOUBLE,
  heading_deg DOUBLE,
  battery_pct DOUBLE,
  progress_pct DOUBLE,
  complete BOOLEAN,
  ts TIMESTAMP TIME INDEX
) WITH (ttl='30d')
`
	if _, err := client.SQL(ctx, ddl); err != nil {
		return nil, err
	}

	return &GreptimeDBWriter{client: client, db: database, table: tableName, log: log}, nil
}

// Write inserts a single flight log row.
func (w *GreptimeDBWriter) Write(row Row) error {
	return w.WriteBatch([]Row{row})
}

// WriteBatch inserts multiple flight log rows.
func (w *GreptimeDBWriter) WriteBatch(rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	ctx := ingesterContext.NewContext(context.Background())

	tbl := table.New(w.table)
	tbl.AddTagColumn("entry_id", types.StringType, 0)
	tbl.AddTagColumn("name", types.StringType, 0)
	tbl.AddFieldColumn("mode", types.StringType)
	tbl.AddFieldColumn("lat", types.Float64Type)
	tbl.AddFieldColumn("lng", types.Float64Type)
	tbl.AddFieldColumn("alt_m", types.Float64Type)
	tbl.AddFieldColumn("speed_kmh", types.Float64Type)
	tbl.AddFieldColumn("heading_deg", types.Float64Type)
	tbl.AddFieldColumn("battery_pct", types.Float64Type)
	tbl.AddFieldColumn("progress_pct", types.Float64Type)
	tbl.AddFieldColumn("complete", types.BooleanType)
	tbl.SetTimeIndex("ts", types.TimestampType)

	for _, r := range rows {
		tbl.AppendTagValue("entry_id", r.EntryID)
		tbl.AppendTagValue("name", r.Name)
		tbl.AppendFieldValue("mode", r.Mode)
		tbl.AppendFieldValue("lat", r.Lat)
		tbl.AppendFieldValue("lng", r.Lng)
		tbl.AppendFieldValue("alt_m", r.AltM)
		tbl.AppendFieldValue("speed_kmh", r.SpeedKmh)
		tbl.AppendFieldValue("heading_deg", r.HeadingDeg)
		tbl.AppendFieldValue("battery_pct", r.BatteryPct)
		tbl.AppendFieldValue("progress_pct", r.ProgressPct)
		tbl.AppendFieldValue("complete", r.Complete)
		tbl.AppendTimeIndex(r.Timestamp)
	}

	if err := w.client.Write(ctx, w.db, []*table.Table{tbl}); err != nil {
		w.log.Error("flight log write failed", "rows", len(rows), "err", err)
		return err
	}
	w.log.Debug("flight log rows written", "rows", len(rows))
	return nil
}
