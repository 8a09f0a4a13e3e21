package sim

import (
	"context"
	"testing"
	"time"

	"fleetconsole/internal/fleet"
	"fleetconsole/internal/mission"
)

func testMission() []mission.Waypoint {
	return mission.Normalize([]mission.Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 0, Lng: 2},
	})
}

func newTestEngine(t *testing.T, notify func(*fleet.Entry)) (*Engine, *fleet.Entry) {
	t.Helper()
	reg := fleet.NewRegistry(0)
	entry := fleet.NewEntry("demo", "demo:1", "", fleet.ModeSimulated, testMission())
	if err := reg.Attach(entry); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	cfg := Config{TickInterval: time.Millisecond, TicksPerSegment: 4}
	return NewEngine(reg, cfg, notify), entry
}

// runToCompletion drives the entry tick-by-tick without timers.
func runToCompletion(t *testing.T, e *Engine, entry *fleet.Entry) int {
	t.Helper()
	entry.BeginMission(time.Now())
	ticks := 0
	for !entry.MissionComplete() {
		ticks++
		if ticks > 100 {
			t.Fatalf("mission did not complete within 100 ticks")
		}
		e.step(entry.ID(), ticks)
	}
	return ticks
}

func TestStepRunsMissionToCompletion(t *testing.T) {
	e, entry := newTestEngine(t, nil)
	runToCompletion(t, e, entry)

	snap := entry.Snapshot()
	if !snap.MissionComplete {
		t.Fatalf("mission should be complete")
	}
	if snap.SegmentIndex != len(snap.Mission)-2 {
		t.Errorf("segment index = %d, want %d", snap.SegmentIndex, len(snap.Mission)-2)
	}
	if len(snap.Events) != len(snap.Mission) {
		t.Fatalf("event count = %d, want %d", len(snap.Events), len(snap.Mission))
	}
	if snap.Events[0].Kind != fleet.EventLaunch {
		t.Errorf("first event = %s, want launch", snap.Events[0].Kind)
	}
	if snap.Events[1].Kind != fleet.EventWaypoint {
		t.Errorf("second event = %s, want waypoint", snap.Events[1].Kind)
	}
	if last := snap.Events[len(snap.Events)-1]; last.Kind != fleet.EventLand {
		t.Errorf("final event = %s, want land", last.Kind)
	}
	if snap.Telemetry.Lat != 0 || snap.Telemetry.Lng != 2 {
		t.Errorf("final position = (%f, %f), want the return point", snap.Telemetry.Lat, snap.Telemetry.Lng)
	}
}

func TestBatteryMonotonicWithFloor(t *testing.T) {
	var batteries []float64
	var e *Engine
	var entry *fleet.Entry
	e, entry = newTestEngine(t, func(en *fleet.Entry) {
		batteries = append(batteries, en.Telemetry().BatteryPct)
	})
	runToCompletion(t, e, entry)

	if len(batteries) < 2 {
		t.Fatalf("expected battery samples, got %d", len(batteries))
	}
	for i := 1; i < len(batteries); i++ {
		if batteries[i] > batteries[i-1]+1e-9 {
			t.Fatalf("battery increased at sample %d: %f -> %f", i, batteries[i-1], batteries[i])
		}
	}
	for i, b := range batteries[:len(batteries)-1] {
		if b < 8 {
			t.Fatalf("battery %f crossed the floor before landing (sample %d)", b, i)
		}
	}
	if final := batteries[len(batteries)-1]; final != 8 {
		t.Errorf("final battery = %f, want the floor", final)
	}
}

func TestSpeedStaysBounded(t *testing.T) {
	e, entry := newTestEngine(t, nil)
	entry.BeginMission(time.Now())
	for tick := 1; tick <= 7; tick++ {
		e.step(entry.ID(), tick)
		s := entry.Telemetry().SpeedKmh
		if s < 62*0.8 || s > 62*1.2 {
			t.Errorf("tick %d speed %f outside cruise band", tick, s)
		}
	}
}

func TestHeadingFollowsSegment(t *testing.T) {
	e, entry := newTestEngine(t, nil)
	entry.BeginMission(time.Now())
	e.step(entry.ID(), 1)
	if h := entry.Telemetry().HeadingDeg; h < 89 || h > 91 {
		t.Errorf("heading = %f, want ~90 for an eastbound segment", h)
	}
}

func TestStepAfterDetachStops(t *testing.T) {
	e, entry := newTestEngine(t, nil)
	e.reg.Detach(entry.ID())
	if !e.step(entry.ID(), 1) {
		t.Errorf("step for a detached entry must report stop")
	}
	snap := entry.Snapshot()
	if snap.SegmentFraction != 0 || len(snap.Events) != 0 {
		t.Errorf("detached entry was mutated: %+v", snap)
	}
}

func TestStartNoOpConditions(t *testing.T) {
	reg := fleet.NewRegistry(0)
	short := fleet.NewEntry("demo", "demo:short", "", fleet.ModeSimulated, nil)
	reg.Attach(short)
	e := NewEngine(reg, Config{TickInterval: time.Millisecond}, nil)
	ctx := context.Background()

	e.Start(ctx, short.ID())
	if e.Running(short.ID()) {
		t.Errorf("entry without a mission must not start")
	}
	e.Start(ctx, "unknown-id")
	if len(short.Snapshot().Events) != 0 {
		t.Errorf("no-op start must not log events")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	e, entry := newTestEngine(t, nil)
	ctx := context.Background()

	e.Start(ctx, entry.ID())
	if !e.Running(entry.ID()) {
		t.Fatalf("engine should be running after Start")
	}
	e.Start(ctx, entry.ID()) // second start is a no-op

	e.Stop(entry.ID())
	if e.Running(entry.ID()) {
		t.Fatalf("engine still running after Stop")
	}
	snapBefore := entry.Snapshot()
	time.Sleep(5 * time.Millisecond)
	snapAfter := entry.Snapshot()
	if snapAfter.SegmentIndex != snapBefore.SegmentIndex || snapAfter.SegmentFraction != snapBefore.SegmentFraction {
		t.Errorf("tick fired after Stop returned")
	}
	e.Stop(entry.ID()) // idempotent
}

func TestRunToCompletionWithTimer(t *testing.T) {
	e, entry := newTestEngine(t, nil)
	ctx := context.Background()
	e.Start(ctx, entry.ID())

	deadline := time.After(2 * time.Second)
	for !entry.MissionComplete() {
		select {
		case <-deadline:
			t.Fatalf("mission did not complete in time")
		case <-time.After(2 * time.Millisecond):
		}
	}
	if e.Running(entry.ID()) {
		t.Errorf("driver should unregister itself on completion")
	}

	// Completed missions stay terminal until an explicit restart.
	e.Start(ctx, entry.ID())
	if e.Running(entry.ID()) {
		t.Errorf("Start on a completed mission must be a no-op")
	}
	e.Restart(ctx, entry.ID())
	if !e.Running(entry.ID()) {
		t.Errorf("Restart should re-enter the running state")
	}
	e.Stop(entry.ID())
}
