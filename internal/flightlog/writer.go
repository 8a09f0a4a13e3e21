// Flight log sinks: every tick and telemetry message produces one Row.
package flightlog

import (
	"time"

	"fleetconsole/internal/fleet"
)

// Row is one flight log record, ready for JSONL export or a timeseries write.
type Row struct {
	EntryID     string    `json:"entry_id"`
	Name        string    `json:"name"`
	Mode        string    `json:"mode"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	AltM        float64   `json:"alt_m"`
	SpeedKmh    float64   `json:"speed_kmh"`
	HeadingDeg  float64   `json:"heading_deg"`
	BatteryPct  float64   `json:"battery_pct"`
	ProgressPct float64   `json:"progress_pct"`
	Complete    bool      `json:"complete"`
	Timestamp   time.Time `json:"ts"`
}

// FromSnapshot flattens an entry snapshot into a log row.
func FromSnapshot(snap fleet.Snapshot, now time.Time) Row {
	return Row{
		EntryID:     snap.ID,
		Name:        snap.Name,
		Mode:        string(snap.Mode),
		Lat:         snap.Telemetry.Lat,
		Lng:         snap.Telemetry.Lng,
		AltM:        snap.Telemetry.AltitudeM,
		SpeedKmh:    snap.Telemetry.SpeedKmh,
		HeadingDeg:  snap.Telemetry.HeadingDeg,
		BatteryPct:  snap.Telemetry.BatteryPct,
		ProgressPct: snap.ProgressPct(),
		Complete:    snap.MissionComplete,
		Timestamp:   now.UTC(),
	}
}

// TelemetryWriter is an interface to support different output writers.
type TelemetryWriter interface {
	Write(Row) error
}

// Optional: writers can also support batch mode.
type batchWriter interface {
	WriteBatch([]Row) error
}
