// Package tracker wires the registry, simulation engine, live ingestor, and
// flight log writers into one tracking session.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fleetconsole/internal/config"
	"fleetconsole/internal/fleet"
	"fleetconsole/internal/flightlog"
	"fleetconsole/internal/live"
	"fleetconsole/internal/logging"
	"fleetconsole/internal/mission"
	"fleetconsole/internal/report"
	"fleetconsole/internal/sim"
)

// ErrNotTracked is returned when an entry id is not part of the session.
var ErrNotTracked = errors.New("entry is not being tracked")

// AttachSpec describes one drone to start tracking.
type AttachSpec struct {
	Name     string          `json:"name"`
	Source   string          `json:"source"`
	Hostname string          `json:"hostname"`
	Mode     fleet.Mode      `json:"mode"`
	Points   []mission.Point `json:"points"`
}

// Session owns one tracking session. Every entry update flows through the
// session's notify hook: it is logged to the flight log writer and fanned out
// to subscribers (websocket hub, TUI).
type Session struct {
	reg      *fleet.Registry
	engine   *sim.Engine
	ingestor *live.Ingestor
	writer   flightlog.TelemetryWriter
	log      *slog.Logger
	now      func() time.Time
	// ctx outlives any single request so stream reconnects keep working
	// after the attach call that opened them has returned.
	ctx context.Context

	mu   sync.Mutex
	subs []func(fleet.Snapshot)
}

// New creates a session from the console config. writer may be nil to disable
// flight logging; dialer may be nil to use the default websocket dialer.
func New(cfg *config.ConsoleConfig, dialer live.Dialer, writer flightlog.TelemetryWriter, log *slog.Logger) *Session {
	if dialer == nil {
		dialer = live.WebsocketDialer{}
	}
	s := &Session{
		reg:    fleet.NewRegistry(cfg.Tracking.PaletteSize),
		writer: writer,
		log:    log,
		now:    time.Now,
		ctx:    logging.NewContext(context.Background(), log),
	}
	s.engine = sim.NewEngine(s.reg, cfg.SimConfig(), s.onUpdate)
	s.ingestor = live.NewIngestor(s.reg, cfg.LiveConfig(), dialer, s.onUpdate)
	return s
}

// OnUpdate registers a subscriber for entry updates. Subscribers receive a
// snapshot, never the live entry, and must not block.
func (s *Session) OnUpdate(fn func(fleet.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Session) onUpdate(e *fleet.Entry) {
	snap := e.Snapshot()
	if s.writer != nil {
		if err := s.writer.Write(flightlog.FromSnapshot(snap, s.now())); err != nil {
			s.log.Warn("flight log write failed", "entry", snap.ID, "error", err)
		}
	}
	s.mu.Lock()
	subs := make([]func(fleet.Snapshot), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// Attach normalizes the mission, registers the entry, and starts its driver.
// Waypoints are optional: fewer than two valid points normalize to an empty
// mission and the entry is tracked without one (a live stream still flows,
// proximity marking just finds nothing). A live entry whose stream cannot be
// dialed is rolled back out of the registry before the error is returned.
func (s *Session) Attach(spec AttachSpec) (fleet.Snapshot, error) {
	if spec.Mode != fleet.ModeSimulated && spec.Mode != fleet.ModeLive {
		return fleet.Snapshot{}, fmt.Errorf("unknown tracking mode %q", spec.Mode)
	}
	if spec.Mode == fleet.ModeLive && spec.Hostname == "" {
		return fleet.Snapshot{}, errors.New("live tracking needs a hostname")
	}
	wps := mission.Normalize(spec.Points)

	e := fleet.NewEntry(spec.Name, spec.Source, spec.Hostname, spec.Mode, wps)
	if err := s.reg.Attach(e); err != nil {
		return fleet.Snapshot{}, err
	}

	switch spec.Mode {
	case fleet.ModeSimulated:
		// no-op when the mission is empty
		s.engine.Start(s.ctx, e.ID())
	case fleet.ModeLive:
		if err := s.ingestor.Connect(s.ctx, e.ID()); err != nil {
			s.reg.Detach(e.ID())
			return fleet.Snapshot{}, err
		}
	}
	s.log.Info("tracking started", "entry", e.ID(), "name", e.Name(), "mode", string(spec.Mode))
	return e.Snapshot(), nil
}

// Detach stops the entry's driver and removes it from the session. The driver
// is stopped before removal so no further update can land on the entry.
func (s *Session) Detach(id string) error {
	e, ok := s.reg.Get(id)
	if !ok {
		return ErrNotTracked
	}
	switch e.Mode() {
	case fleet.ModeSimulated:
		s.engine.Stop(id)
	case fleet.ModeLive:
		s.ingestor.Disconnect(id)
	}
	s.reg.Detach(id)
	s.log.Info("tracking stopped", "entry", id, "name", e.Name())
	return nil
}

// SetActive selects the entry shown in the detail panel.
func (s *Session) SetActive(id string) error {
	if !s.reg.SetActive(id) {
		return ErrNotTracked
	}
	return nil
}

// Active returns a snapshot of the selected entry.
func (s *Session) Active() (fleet.Snapshot, bool) {
	e, ok := s.reg.Active()
	if !ok {
		return fleet.Snapshot{}, false
	}
	return e.Snapshot(), true
}

// Get returns a snapshot of one entry.
func (s *Session) Get(id string) (fleet.Snapshot, bool) {
	e, ok := s.reg.Get(id)
	if !ok {
		return fleet.Snapshot{}, false
	}
	return e.Snapshot(), true
}

// All returns snapshots of every tracked entry in attachment order.
func (s *Session) All() []fleet.Snapshot {
	entries := s.reg.All()
	out := make([]fleet.Snapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Snapshot())
	}
	return out
}

// ReplaceMission swaps an entry's mission for a new one. A simulated entry is
// restarted from the first segment of the new route; a live entry keeps its
// stream and simply starts proximity-marking against the new waypoints.
// Points that normalize to an empty mission clear the entry's mission.
func (s *Session) ReplaceMission(id string, points []mission.Point) error {
	e, ok := s.reg.Get(id)
	if !ok {
		return ErrNotTracked
	}
	wps := mission.Normalize(points)
	switch e.Mode() {
	case fleet.ModeSimulated:
		s.engine.Stop(id)
		e.ReplaceMission(wps)
		// no-op when the new mission is empty
		s.engine.Start(s.ctx, id)
	case fleet.ModeLive:
		e.ReplaceMission(wps)
	}
	s.log.Info("mission replaced", "entry", id, "waypoints", len(wps))
	return nil
}

// Restart re-flies a simulated entry's mission from the start.
func (s *Session) Restart(id string) error {
	e, ok := s.reg.Get(id)
	if !ok {
		return ErrNotTracked
	}
	if e.Mode() != fleet.ModeSimulated {
		return errors.New("only simulated entries can be restarted")
	}
	s.engine.Restart(s.ctx, id)
	return nil
}

// Report builds the flight record of one entry.
func (s *Session) Report(id string) (report.FlightRecord, error) {
	e, ok := s.reg.Get(id)
	if !ok {
		return report.FlightRecord{}, ErrNotTracked
	}
	return report.Build(e.Snapshot(), s.now()), nil
}

// Len returns the number of tracked entries.
func (s *Session) Len() int { return s.reg.Len() }

// Close stops every driver. Entries stay readable for final reports.
func (s *Session) Close() {
	s.engine.StopAll()
	s.ingestor.StopAll()
}
