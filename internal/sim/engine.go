// Deterministic mission simulator driving simulated-mode entries.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"fleetconsole/internal/fleet"
	"fleetconsole/internal/geo"
	"fleetconsole/internal/logging"
	"fleetconsole/internal/mission"
)

// Config holds the simulator tunables. Zero values select the defaults.
type Config struct {
	// TickInterval is the fixed driver period.
	TickInterval time.Duration
	// TicksPerSegment sizes the fraction step so every segment takes the
	// same wall-clock time regardless of geographic length. This is a
	// visualization simulator, not a physical model.
	TicksPerSegment int
	// CruiseSpeedKmh is the nominal speed the synthetic readout oscillates around.
	CruiseSpeedKmh float64
	// BatteryFloorPct is the lowest battery value shown before landing.
	BatteryFloorPct float64
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.TicksPerSegment <= 0 {
		c.TicksPerSegment = 20
	}
	if c.CruiseSpeedKmh <= 0 {
		c.CruiseSpeedKmh = 62
	}
	if c.BatteryFloorPct <= 0 {
		c.BatteryFloorPct = 8
	}
	return c
}

// Engine advances simulated entries along their waypoint polylines on a fixed
// tick. Each started entry gets its own driver goroutine; the goroutine
// re-fetches the entry by id on every tick so it can never touch a detached
// entry through a stale reference.
type Engine struct {
	reg    *fleet.Registry
	cfg    Config
	notify func(*fleet.Entry)
	now    func() time.Time

	mu      sync.Mutex
	runners map[string]*runner
}

type runner struct {
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func (r *runner) halt() { r.stopOnce.Do(func() { close(r.stop) }) }

// NewEngine creates a simulation engine over the session registry. notify is
// invoked after every telemetry/progress mutation and may be nil.
func NewEngine(reg *fleet.Registry, cfg Config, notify func(*fleet.Entry)) *Engine {
	return &Engine{
		reg:     reg,
		cfg:     cfg.withDefaults(),
		notify:  notify,
		now:     time.Now,
		runners: make(map[string]*runner),
	}
}

// Start begins driving the entry. No-op if the entry is already running, its
// mission has fewer than two waypoints, or it has already completed (use
// Restart to fly a completed mission again).
func (e *Engine) Start(ctx context.Context, id string) {
	entry, ok := e.reg.Get(id)
	if !ok {
		return
	}
	if entry.Mode() != fleet.ModeSimulated {
		panic("sim: Start called on a live entry")
	}
	if len(entry.Mission()) < 2 || entry.MissionComplete() {
		return
	}

	e.mu.Lock()
	if _, running := e.runners[id]; running {
		e.mu.Unlock()
		return
	}
	r := &runner{stop: make(chan struct{}), done: make(chan struct{})}
	e.runners[id] = r
	e.mu.Unlock()

	log := logging.FromContext(ctx)
	entry.BeginMission(e.now())
	e.emit(entry)
	log.Info("simulation started", "entry_id", id, "waypoints", len(entry.Mission()))

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(e.cfg.TickInterval)
		defer ticker.Stop()
		tick := 0
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				tick++
				if e.step(id, tick) {
					e.mu.Lock()
					if e.runners[id] == r {
						delete(e.runners, id)
					}
					e.mu.Unlock()
					log.Info("simulation finished", "entry_id", id, "ticks", tick)
					return
				}
			}
		}
	}()
}

// Stop halts the entry's driver. Idempotent; when it returns, no further tick
// for this entry will fire.
func (e *Engine) Stop(id string) {
	e.mu.Lock()
	r, ok := e.runners[id]
	if ok {
		delete(e.runners, id)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	r.halt()
	<-r.done
}

// Restart clears a completed or partial mission back to idle and starts over.
func (e *Engine) Restart(ctx context.Context, id string) {
	e.Stop(id)
	if entry, ok := e.reg.Get(id); ok {
		entry.ResetMission()
	}
	e.Start(ctx, id)
}

// Running reports whether the entry currently has a driver.
func (e *Engine) Running(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.runners[id]
	return ok
}

// StopAll halts every driver; used at session teardown.
func (e *Engine) StopAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.runners))
	for id := range e.runners {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		e.Stop(id)
	}
}

// step advances one tick and reports whether the mission finished. The entry
// is re-fetched by id; a vanished entry stops the driver.
func (e *Engine) step(id string, tick int) bool {
	entry, ok := e.reg.Get(id)
	if !ok || entry.MissionComplete() {
		return true
	}

	wps := entry.Mission()
	last := len(wps) - 1
	idx, frac := entry.SimProgress()
	frac += 1 / float64(e.cfg.TicksPerSegment)

	if frac >= 1 {
		arrived := idx + 1
		now := e.now()
		if wps[arrived].Role == mission.RoleReturnToLaunch {
			entry.AppendEvent(now, fleet.EventLand, "landed at "+wps[arrived].Label)
		} else {
			entry.AppendEvent(now, fleet.EventWaypoint, "reached "+wps[arrived].Label)
		}
		if arrived == last {
			entry.UpdateTelemetry(fleet.Telemetry{
				Lat:        wps[last].Lat,
				Lng:        wps[last].Lng,
				AltitudeM:  wps[last].AltitudeM,
				SpeedKmh:   0,
				HeadingDeg: entry.Telemetry().HeadingDeg,
				BatteryPct: e.cfg.BatteryFloorPct,
			})
			entry.CompleteMission(now)
			e.emit(entry)
			return true
		}
		idx = arrived
		frac = 0
	}

	from, to := wps[idx], wps[idx+1]
	lat, lng, alt := geo.Interpolate(from.Lat, from.Lng, from.AltitudeM, to.Lat, to.Lng, to.AltitudeM, frac)
	entry.SetSimProgress(idx, frac)
	entry.UpdateTelemetry(fleet.Telemetry{
		Lat:        lat,
		Lng:        lng,
		AltitudeM:  alt,
		SpeedKmh:   e.syntheticSpeed(tick),
		HeadingDeg: geo.BearingDeg(from.Lat, from.Lng, to.Lat, to.Lng),
		BatteryPct: e.battery(wps, idx, frac),
	})
	e.emit(entry)
	return false
}

// syntheticSpeed oscillates gently around cruise so the readout looks alive.
func (e *Engine) syntheticSpeed(tick int) float64 {
	return e.cfg.CruiseSpeedKmh * (1 + 0.12*math.Sin(0.35*float64(tick)))
}

// battery drains from 100 down to the floor as a function of the distance
// fraction already flown, so the panel never shows an impossible value.
func (e *Engine) battery(wps []mission.Waypoint, idx int, frac float64) float64 {
	total := 0.0
	flown := 0.0
	for i := 0; i < len(wps)-1; i++ {
		seg := geo.DistanceMeters(wps[i].Lat, wps[i].Lng, wps[i+1].Lat, wps[i+1].Lng)
		total += seg
		if i < idx {
			flown += seg
		} else if i == idx {
			flown += seg * frac
		}
	}
	if total == 0 {
		return 100
	}
	return 100 - (100-e.cfg.BatteryFloorPct)*(flown/total)
}

func (e *Engine) emit(entry *fleet.Entry) {
	if e.notify != nil {
		e.notify(entry)
	}
}
