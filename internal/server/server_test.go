package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"fleetconsole/internal/config"
	"fleetconsole/internal/fleet"
	"fleetconsole/internal/store"
	"fleetconsole/internal/tracker"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "fleet.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	session := tracker.New(config.Default(), nil, nil, log)
	t.Cleanup(session.Close)
	srv := New(st, session, log)
	t.Cleanup(func() { srv.Hub().Close() })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestDroneCRUD(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/drones", store.DroneRecord{Name: "Scout 1", Hostname: "scout-1.local"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decode[store.DroneRecord](t, resp)
	if created.ID != 1 {
		t.Fatalf("expected first drone to get id 1, got %d", created.ID)
	}

	resp = doJSON(t, srv, http.MethodGet, "/api/drones", nil)
	if drones := decode[[]store.DroneRecord](t, resp); len(drones) != 1 {
		t.Errorf("expected 1 drone, got %d", len(drones))
	}

	resp = doJSON(t, srv, http.MethodPut, "/api/drones/1", map[string]any{"notes": "spare props"})
	if updated := decode[store.DroneRecord](t, resp); updated.Notes != "spare props" {
		t.Errorf("update not applied: %+v", updated)
	}

	resp = doJSON(t, srv, http.MethodPost, "/api/drones/1/ping", nil)
	if pinged := decode[store.DroneRecord](t, resp); pinged.LastPing == nil {
		t.Errorf("ping not recorded")
	}

	resp = doJSON(t, srv, http.MethodDelete, "/api/drones/1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp = doJSON(t, srv, http.MethodGet, "/api/drones/1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted drone should 404, got %d", resp.StatusCode)
	}
}

func TestCreateDroneValidation(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, srv, http.MethodPost, "/api/drones", store.DroneRecord{Name: " "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank name should 400, got %d", resp.StatusCode)
	}
}

func TestTestConnectionRequiresHostname(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, srv, http.MethodPost, "/api/test-connection", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing hostname should 400, got %d", resp.StatusCode)
	}
}

func TestTrackingLifecycle(t *testing.T) {
	srv := newTestServer(t)

	spec := map[string]any{
		"name":   "Demo",
		"source": "demo:1",
		"mode":   "simulated",
		"points": []map[string]any{
			{"lat": 48.20, "lng": 16.37},
			{"lat": 48.21, "lng": 16.38},
		},
	}
	resp := doJSON(t, srv, http.MethodPost, "/api/tracking", spec)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("attach status = %d", resp.StatusCode)
	}
	snap := decode[fleet.Snapshot](t, resp)
	if snap.Name != "Demo" || len(snap.Mission) != 2 {
		t.Errorf("unexpected attach snapshot: %+v", snap)
	}

	resp = doJSON(t, srv, http.MethodGet, "/api/tracking", nil)
	if all := decode[[]fleet.Snapshot](t, resp); len(all) != 1 {
		t.Errorf("expected 1 tracked entry, got %d", len(all))
	}

	resp = doJSON(t, srv, http.MethodGet, "/api/tracking/"+snap.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get tracking status = %d", resp.StatusCode)
	}

	resp = doJSON(t, srv, http.MethodPost, "/api/tracking/"+snap.ID+"/activate", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("activate status = %d", resp.StatusCode)
	}

	resp = doJSON(t, srv, http.MethodGet, "/api/tracking/"+snap.ID+"/report", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("report status = %d", resp.StatusCode)
	}

	resp = doJSON(t, srv, http.MethodDelete, "/api/tracking/"+snap.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("detach status = %d", resp.StatusCode)
	}
	resp = doJSON(t, srv, http.MethodGet, "/api/tracking/"+snap.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("detached entry should 404, got %d", resp.StatusCode)
	}
}

func TestAttachShortMissionNormalizesAway(t *testing.T) {
	srv := newTestServer(t)
	spec := map[string]any{
		"name":   "Demo",
		"source": "demo:1",
		"mode":   "simulated",
		"points": []map[string]any{{"lat": 1.0, "lng": 1.0}},
	}
	resp := doJSON(t, srv, http.MethodPost, "/api/tracking", spec)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("short-mission attach should 201, got %d", resp.StatusCode)
	}
	snap := decode[fleet.Snapshot](t, resp)
	if len(snap.Mission) != 0 {
		t.Errorf("single-point mission should normalize away, got %d waypoints", len(snap.Mission))
	}
}

func TestReplaceMission(t *testing.T) {
	srv := newTestServer(t)
	spec := map[string]any{
		"name":   "Demo",
		"source": "demo:1",
		"mode":   "simulated",
		"points": []map[string]any{
			{"lat": 48.20, "lng": 16.37},
			{"lat": 48.21, "lng": 16.38},
		},
	}
	snap := decode[fleet.Snapshot](t, doJSON(t, srv, http.MethodPost, "/api/tracking", spec))

	body := map[string]any{
		"points": []map[string]any{
			{"lat": 50.0, "lng": 8.0},
			{"lat": 50.1, "lng": 8.1},
			{"lat": 50.0, "lng": 8.0},
		},
	}
	resp := doJSON(t, srv, http.MethodPut, "/api/tracking/"+snap.ID+"/mission", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replace mission status = %d", resp.StatusCode)
	}
	updated := decode[fleet.Snapshot](t, resp)
	if len(updated.Mission) != 3 || updated.Mission[0].Lat != 50.0 {
		t.Errorf("mission not replaced: %+v", updated.Mission)
	}
}
