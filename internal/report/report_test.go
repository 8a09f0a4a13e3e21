package report

import (
	"math"
	"strings"
	"testing"
	"time"

	"fleetconsole/internal/fleet"
	"fleetconsole/internal/geo"
	"fleetconsole/internal/mission"
)

func threeLegMission() []mission.Waypoint {
	return mission.Normalize([]mission.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 0, Lng: 2},
	})
}

func TestLiveInProgressStatus(t *testing.T) {
	e := fleet.NewEntry("scout", "drone:7", "drone-7.local", fleet.ModeLive, threeLegMission())
	e.BeginLiveSession(time.Now().Add(-30 * time.Second))
	e.MarkVisited(0)
	e.MarkVisited(1)

	rec := Build(e.Snapshot(), time.Now())
	if rec.Status != "in-progress (67%)" {
		t.Errorf("status = %q, want \"in-progress (67%%)\"", rec.Status)
	}
	if rec.WaypointsVisited != 2 {
		t.Errorf("waypoints visited = %d, want 2", rec.WaypointsVisited)
	}
	if rec.DurationLabel != "<1 min" {
		t.Errorf("sub-minute flight label = %q, want \"<1 min\"", rec.DurationLabel)
	}
}

func TestCompletedSimulatedMission(t *testing.T) {
	wps := threeLegMission()
	e := fleet.NewEntry("demo", "demo:1", "", fleet.ModeSimulated, wps)
	start := time.Now().Add(-5 * time.Minute)
	e.BeginMission(start)
	e.SetSimProgress(1, 0.5)
	e.UpdateTelemetry(fleet.Telemetry{SpeedKmh: 58, BatteryPct: 8})
	e.CompleteMission(start.Add(4 * time.Minute))

	rec := Build(e.Snapshot(), time.Now())
	if rec.Status != "complete" {
		t.Errorf("status = %q, want complete", rec.Status)
	}
	if rec.WaypointsVisited != 3 {
		t.Errorf("waypoints visited = %d, want 3", rec.WaypointsVisited)
	}
	want := geo.DistanceMeters(0, 0, 0, 1) + geo.DistanceMeters(0, 1, 0, 2)
	if math.Abs(rec.PlannedDistanceM-want) > 1 {
		t.Errorf("planned distance = %f, want %f", rec.PlannedDistanceM, want)
	}
	if rec.DurationLabel != "4 min" {
		t.Errorf("duration label = %q, want \"4 min\"", rec.DurationLabel)
	}
	if rec.FinalBatteryPct != 8 {
		t.Errorf("final battery = %f, want 8", rec.FinalBatteryPct)
	}
}

func TestMidMissionSimulatedPercent(t *testing.T) {
	e := fleet.NewEntry("demo", "demo:1", "", fleet.ModeSimulated, threeLegMission())
	e.BeginMission(time.Now())
	e.SetSimProgress(1, 0)

	rec := Build(e.Snapshot(), time.Now())
	if !strings.HasPrefix(rec.Status, "in-progress (50%") {
		t.Errorf("status = %q, want in-progress (50%%)", rec.Status)
	}
	if rec.WaypointsVisited != 2 {
		t.Errorf("mid-mission visited = %d, want segmentIndex+1", rec.WaypointsVisited)
	}
}

func TestMaxPlannedAltitude(t *testing.T) {
	alt := func(v float64) *float64 { return &v }
	wps := mission.Normalize([]mission.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1, AltM: alt(140)},
		{Lat: 0, Lng: 2, AltM: alt(60)},
		{Lat: 0, Lng: 3},
	})
	e := fleet.NewEntry("demo", "demo:1", "", fleet.ModeSimulated, wps)
	rec := Build(e.Snapshot(), time.Now())
	if rec.MaxPlannedAltM != 140 {
		t.Errorf("max planned altitude = %f, want 140", rec.MaxPlannedAltM)
	}
}

func TestRecordDoesNotAliasEntryState(t *testing.T) {
	e := fleet.NewEntry("demo", "demo:1", "", fleet.ModeSimulated, threeLegMission())
	e.AppendEvent(time.Now(), fleet.EventLaunch, "airborne")
	rec := Build(e.Snapshot(), time.Now())

	rec.Events[0].Detail = "tampered"
	rec.Waypoints[0].Label = "tampered"
	snap := e.Snapshot()
	if snap.Events[0].Detail == "tampered" || snap.Mission[0].Label == "tampered" {
		t.Errorf("flight record aliases entry state")
	}
}

func TestSpeedFieldsAreSnapshots(t *testing.T) {
	e := fleet.NewEntry("demo", "demo:1", "", fleet.ModeSimulated, threeLegMission())
	e.UpdateTelemetry(fleet.Telemetry{SpeedKmh: 70})
	e.UpdateTelemetry(fleet.Telemetry{SpeedKmh: 55})
	rec := Build(e.Snapshot(), time.Now())
	if rec.AvgSpeedKmh != 55 {
		t.Errorf("avg speed = %f, want last observed 55", rec.AvgSpeedKmh)
	}
	if rec.PeakSpeedKmh != 70 {
		t.Errorf("peak speed = %f, want 70", rec.PeakSpeedKmh)
	}
}

func TestDurationLabels(t *testing.T) {
	cases := map[time.Duration]string{
		0:                "<1 min",
		45 * time.Second: "<1 min",
		90 * time.Second: "2 min",
		12 * time.Minute: "12 min",
	}
	for d, want := range cases {
		if got := durationLabel(d); got != want {
			t.Errorf("durationLabel(%s) = %q, want %q", d, got, want)
		}
	}
}
