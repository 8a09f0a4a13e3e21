// Flight record building: reduces tracked-entry state into report payloads.
package report

import (
	"fmt"
	"math"
	"time"

	"fleetconsole/internal/fleet"
	"fleetconsole/internal/geo"
	"fleetconsole/internal/mission"
)

// FlightRecord is the immutable post-flight summary handed to reporting. It
// never aliases mutable entry state; missions and events are copies.
type FlightRecord struct {
	EntryID       string             `json:"entry_id"`
	Name          string             `json:"name"`
	Mode          fleet.Mode         `json:"mode"`
	GeneratedAt   time.Time          `json:"generated_at"`
	Status        string             `json:"status"`
	Duration      time.Duration      `json:"duration"`
	DurationLabel string             `json:"duration_label"`
	// PlannedDistanceM sums the great-circle legs of the planned route, not
	// the flown track, so it is well-defined even mid-mission.
	PlannedDistanceM float64            `json:"planned_distance_m"`
	WaypointsVisited int                `json:"waypoints_visited"`
	WaypointTotal    int                `json:"waypoint_total"`
	MaxPlannedAltM   float64            `json:"max_planned_alt_m"`
	AvgSpeedKmh      float64            `json:"avg_speed_kmh"`
	PeakSpeedKmh     float64            `json:"peak_speed_kmh"`
	FinalBatteryPct  float64            `json:"final_battery_pct"`
	Waypoints        []mission.Waypoint `json:"waypoints"`
	Events           []fleet.Event      `json:"events"`
}

// Build produces a flight record from an entry snapshot. Callable at any
// time: mid-mission records carry an in-progress status with the same
// percentage the live panel shows.
func Build(snap fleet.Snapshot, now time.Time) FlightRecord {
	duration := time.Duration(0)
	if !snap.MissionStartedAt.IsZero() {
		end := now
		if snap.MissionComplete && !snap.CompletedAt.IsZero() {
			end = snap.CompletedAt
		}
		if end.After(snap.MissionStartedAt) {
			duration = end.Sub(snap.MissionStartedAt)
		}
	}

	status := "complete"
	if !snap.MissionComplete {
		status = fmt.Sprintf("in-progress (%.0f%%)", snap.ProgressPct())
	}

	visited := len(snap.Visited)
	if snap.Mode == fleet.ModeSimulated && len(snap.Mission) > 0 {
		visited = snap.SegmentIndex + 1
		if snap.MissionComplete {
			visited = len(snap.Mission)
		}
	}

	maxAlt := 0.0
	totalM := 0.0
	for i, wp := range snap.Mission {
		if wp.AltitudeM > maxAlt {
			maxAlt = wp.AltitudeM
		}
		if i > 0 {
			prev := snap.Mission[i-1]
			totalM += geo.DistanceMeters(prev.Lat, prev.Lng, wp.Lat, wp.Lng)
		}
	}

	return FlightRecord{
		EntryID:          snap.ID,
		Name:             snap.Name,
		Mode:             snap.Mode,
		GeneratedAt:      now,
		Status:           status,
		Duration:         duration,
		DurationLabel:    durationLabel(duration),
		PlannedDistanceM: totalM,
		WaypointsVisited: visited,
		WaypointTotal:    len(snap.Mission),
		MaxPlannedAltM:   maxAlt,
		AvgSpeedKmh:      snap.Telemetry.SpeedKmh,
		PeakSpeedKmh:     snap.PeakSpeedKmh,
		FinalBatteryPct:  snap.Telemetry.BatteryPct,
		Waypoints:        append([]mission.Waypoint(nil), snap.Mission...),
		Events:           append([]fleet.Event(nil), snap.Events...),
	}
}

// durationLabel buckets a flight duration for display. Sub-minute flights
// collapse to a sentinel instead of showing "0 min".
func durationLabel(d time.Duration) string {
	if d < time.Minute {
		return "<1 min"
	}
	return fmt.Sprintf("%d min", int(math.Round(d.Minutes())))
}
