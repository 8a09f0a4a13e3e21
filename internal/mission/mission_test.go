package mission

import (
	"math"
	"testing"
)

func alt(v float64) *float64 { return &v }

func TestNormalizeRoles(t *testing.T) {
	wps := Normalize([]Point{
		{Lat: 48.20, Lng: 16.37},
		{Lat: 48.21, Lng: 16.38},
		{Lat: 48.22, Lng: 16.39},
		{Lat: 48.20, Lng: 16.37},
	})
	if len(wps) != 4 {
		t.Fatalf("expected 4 waypoints, got %d", len(wps))
	}
	if wps[0].Role != RoleTakeoff {
		t.Errorf("first role = %s, want takeoff", wps[0].Role)
	}
	if wps[len(wps)-1].Role != RoleReturnToLaunch {
		t.Errorf("last role = %s, want return_to_launch", wps[len(wps)-1].Role)
	}
	for _, wp := range wps[1 : len(wps)-1] {
		if wp.Role != RoleWaypoint {
			t.Errorf("intermediate role = %s, want waypoint", wp.Role)
		}
	}
}

func TestNormalizeAltitudeDefaults(t *testing.T) {
	wps := Normalize([]Point{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 1},
		{Lat: 0, Lng: 2},
	})
	if wps[0].AltitudeM != 0 || wps[2].AltitudeM != 0 {
		t.Errorf("endpoint altitudes = %f, %f, want 0", wps[0].AltitudeM, wps[2].AltitudeM)
	}
	if wps[1].AltitudeM != 80 {
		t.Errorf("intermediate altitude = %f, want 80", wps[1].AltitudeM)
	}
}

func TestNormalizeAltitudeClampAndRound(t *testing.T) {
	wps := Normalize([]Point{
		{Lat: 0, Lng: 0, AltM: alt(-12)},
		{Lat: 0, Lng: 1, AltM: alt(119.6)},
		{Lat: 0, Lng: 2},
	})
	if wps[0].AltitudeM != 0 {
		t.Errorf("negative altitude should clamp to 0, got %f", wps[0].AltitudeM)
	}
	if wps[1].AltitudeM != 120 {
		t.Errorf("altitude should round to whole meters, got %f", wps[1].AltitudeM)
	}
}

func TestNormalizeLabels(t *testing.T) {
	wps := Normalize([]Point{
		{Lat: 0, Lng: 0, Label: "Pad A"},
		{Lat: 0, Lng: 1},
	})
	if wps[0].Label != "Pad A" {
		t.Errorf("explicit label lost, got %q", wps[0].Label)
	}
	if wps[1].Label != "Waypoint 2" {
		t.Errorf("default label = %q, want \"Waypoint 2\"", wps[1].Label)
	}
}

func TestNormalizeDropsInvalidPoints(t *testing.T) {
	wps := Normalize([]Point{
		{Lat: math.NaN(), Lng: 16.37},
		{Lat: 48.20, Lng: math.Inf(1)},
		{Lat: 91, Lng: 0},
		{Lat: 48.21, Lng: 16.38},
		{Lat: 48.22, Lng: 16.39},
	})
	if len(wps) != 2 {
		t.Fatalf("expected 2 surviving waypoints, got %d", len(wps))
	}
	if wps[0].Lat != 48.21 {
		t.Errorf("wrong surviving point: %+v", wps[0])
	}
}

func TestNormalizeTooFewPoints(t *testing.T) {
	if wps := Normalize(nil); wps != nil {
		t.Errorf("empty input should yield empty mission, got %v", wps)
	}
	if wps := Normalize([]Point{{Lat: 48.2, Lng: 16.4}}); wps != nil {
		t.Errorf("single-point mission should normalize away, got %v", wps)
	}
	if wps := Normalize([]Point{{Lat: 48.2, Lng: 16.4}, {Lat: math.NaN(), Lng: 0}}); wps != nil {
		t.Errorf("single surviving point should yield empty mission, got %v", wps)
	}
}
