// Per-drone tracking state: the aggregate mutated by exactly one driver.
package fleet

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetconsole/internal/mission"
)

// Mode selects the driver that owns an entry's telemetry. Fixed at creation.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeLive      Mode = "live"
)

// EventKind classifies mission log events.
type EventKind string

const (
	EventLaunch   EventKind = "launch"
	EventWaypoint EventKind = "waypoint"
	EventLand     EventKind = "land"
)

// Event is one append-only mission log record.
type Event struct {
	Time   time.Time `json:"time"`
	Kind   EventKind `json:"kind"`
	Detail string    `json:"detail"`
}

// Telemetry is the current readout for a drone. Overwritten on every tick or
// message; history lives in the flight log, not here.
type Telemetry struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	AltitudeM  float64 `json:"altitude_m"`
	SpeedKmh   float64 `json:"speed_kmh"`
	HeadingDeg float64 `json:"heading_deg"`
	BatteryPct float64 `json:"battery_pct"`
}

// Fix is the last known live position used for ground-speed derivation.
type Fix struct {
	Lat   float64
	Lng   float64
	At    time.Time
	Valid bool
}

// Entry is the aggregate root for one tracked drone. All mutating access goes
// through methods so the mode-discriminated progress halves stay consistent.
type Entry struct {
	id         string
	name       string
	source     string
	hostname   string
	mode       Mode
	colorIndex int

	mu               sync.Mutex
	mission          []mission.Waypoint
	telemetry        Telemetry
	segmentIndex     int
	segmentFraction  float64
	visited          map[int]bool
	missionStartedAt time.Time
	missionComplete  bool
	completedAt      time.Time
	events           []Event
	lastFix          Fix
	peakSpeedKmh     float64
}

// NewEntry creates a tracked entry. The source key identifies the underlying
// physical or demo drone and is what duplicate attachment is checked against.
func NewEntry(name, source, hostname string, mode Mode, wps []mission.Waypoint) *Entry {
	e := &Entry{
		id:       uuid.New().String(),
		name:     name,
		source:   source,
		hostname: hostname,
		mode:     mode,
		visited:  make(map[int]bool),
	}
	e.mission = append([]mission.Waypoint(nil), wps...)
	if len(wps) > 0 {
		e.telemetry = Telemetry{
			Lat:        wps[0].Lat,
			Lng:        wps[0].Lng,
			AltitudeM:  wps[0].AltitudeM,
			BatteryPct: 100,
		}
	} else {
		e.telemetry = Telemetry{BatteryPct: 100}
	}
	return e
}

func (e *Entry) ID() string       { return e.id }
func (e *Entry) Name() string     { return e.name }
func (e *Entry) Source() string   { return e.source }
func (e *Entry) Hostname() string { return e.hostname }
func (e *Entry) Mode() Mode       { return e.mode }
func (e *Entry) ColorIndex() int  { return e.colorIndex }

// Mission returns the waypoint sequence. Waypoints are immutable, so sharing
// the backing array with a single-writer driver is safe; external callers get
// copies via Snapshot.
func (e *Entry) Mission() []mission.Waypoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mission
}

// BeginMission stamps the start time and appends the launch event. Calling it
// on an already-started mission restarts the clock.
func (e *Entry) BeginMission(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.missionStartedAt = now
	e.events = append(e.events, Event{Time: now, Kind: EventLaunch, Detail: e.name + " airborne"})
}

// BeginLiveSession prepares a live entry for a fresh telemetry stream: the
// visited set and speed-derivation fix reset, the mission clock restarts, and
// a launch event is logged.
func (e *Entry) BeginLiveSession(now time.Time) {
	e.assertMode(ModeLive)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visited = make(map[int]bool)
	e.lastFix = Fix{}
	e.missionStartedAt = now
	e.events = append(e.events, Event{Time: now, Kind: EventLaunch, Detail: e.name + " stream connected"})
}

// ResetMission clears all progress and the event log so a completed or stale
// mission can run again from idle.
func (e *Entry) ResetMission() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetProgressLocked()
	e.events = nil
	e.missionStartedAt = time.Time{}
	e.peakSpeedKmh = 0
}

// ReplaceMission swaps in a new normalized waypoint sequence and resets
// progress so no stale index can point past the new mission's bounds.
func (e *Entry) ReplaceMission(wps []mission.Waypoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mission = append([]mission.Waypoint(nil), wps...)
	e.resetProgressLocked()
}

func (e *Entry) resetProgressLocked() {
	e.segmentIndex = 0
	e.segmentFraction = 0
	e.visited = make(map[int]bool)
	e.missionComplete = false
	e.completedAt = time.Time{}
	e.lastFix = Fix{}
}

// SimProgress returns the polyline position of a simulated entry.
func (e *Entry) SimProgress() (segmentIndex int, segmentFraction float64) {
	e.assertMode(ModeSimulated)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.segmentIndex, e.segmentFraction
}

// SetSimProgress moves the polyline position. Driver-only.
func (e *Entry) SetSimProgress(segmentIndex int, segmentFraction float64) {
	e.assertMode(ModeSimulated)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.missionComplete {
		return
	}
	e.segmentIndex = segmentIndex
	e.segmentFraction = segmentFraction
}

// MarkVisited records proximity arrival at waypoint index i for a live entry.
// It reports whether the waypoint was newly marked; repeated marks are no-ops.
func (e *Entry) MarkVisited(i int) bool {
	e.assertMode(ModeLive)
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.mission) || e.visited[i] {
		return false
	}
	e.visited[i] = true
	return true
}

// VisitedCount returns how many waypoints a live entry has reached.
func (e *Entry) VisitedCount() int {
	e.assertMode(ModeLive)
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.visited)
}

// IsVisited reports whether waypoint index i has been reached.
func (e *Entry) IsVisited(i int) bool {
	e.assertMode(ModeLive)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visited[i]
}

// LastFix returns the previous live position fix.
func (e *Entry) LastFix() Fix {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFix
}

// SetLastFix records the live position fix used for the next speed derivation.
func (e *Entry) SetLastFix(f Fix) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastFix = f
}

// UpdateTelemetry overwrites the current readout. Driver-only.
func (e *Entry) UpdateTelemetry(t Telemetry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.telemetry = t
	if t.SpeedKmh > e.peakSpeedKmh {
		e.peakSpeedKmh = t.SpeedKmh
	}
}

// Telemetry returns the current readout.
func (e *Entry) Telemetry() Telemetry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.telemetry
}

// AppendEvent adds a record to the mission log.
func (e *Entry) AppendEvent(now time.Time, kind EventKind, detail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, Event{Time: now, Kind: kind, Detail: detail})
}

// CompleteMission marks the mission finished. The transition fires exactly
// once; later calls are no-ops, and progress mutation stops afterwards.
func (e *Entry) CompleteMission(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.missionComplete {
		return false
	}
	e.missionComplete = true
	e.completedAt = now
	return true
}

// MissionComplete reports whether the completion flag is set.
func (e *Entry) MissionComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.missionComplete
}

func (e *Entry) assertMode(want Mode) {
	if e.mode != want {
		panic("fleet: " + string(want) + " progress accessed on " + string(e.mode) + " entry " + e.id)
	}
}

// Snapshot is an immutable copy of an entry's state for readers: the map
// renderer, the TUI, the HTTP layer, and the flight record builder.
type Snapshot struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Source           string             `json:"source"`
	Hostname         string             `json:"hostname,omitempty"`
	Mode             Mode               `json:"mode"`
	ColorIndex       int                `json:"color_index"`
	Mission          []mission.Waypoint `json:"mission"`
	Telemetry        Telemetry          `json:"telemetry"`
	SegmentIndex     int                `json:"segment_index"`
	SegmentFraction  float64            `json:"segment_fraction"`
	Visited          []int              `json:"visited"`
	MissionStartedAt time.Time          `json:"mission_started_at"`
	MissionComplete  bool               `json:"mission_complete"`
	CompletedAt      time.Time          `json:"completed_at"`
	Events           []Event            `json:"events"`
	PeakSpeedKmh     float64            `json:"peak_speed_kmh"`
}

// ProgressPct returns mission progress on [0,100] from the same fields the
// drivers maintain: polyline position for simulated entries, visited count
// for live ones.
func (s Snapshot) ProgressPct() float64 {
	if s.MissionComplete {
		return 100
	}
	switch s.Mode {
	case ModeSimulated:
		segments := len(s.Mission) - 1
		if segments <= 0 {
			return 0
		}
		return (float64(s.SegmentIndex) + s.SegmentFraction) / float64(segments) * 100
	case ModeLive:
		if len(s.Mission) == 0 {
			return 0
		}
		return float64(len(s.Visited)) / float64(len(s.Mission)) * 100
	}
	return 0
}

// Snapshot copies the entry state under its lock.
func (e *Entry) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	visited := make([]int, 0, len(e.visited))
	for i := range e.visited {
		visited = append(visited, i)
	}
	sort.Ints(visited)
	return Snapshot{
		ID:               e.id,
		Name:             e.name,
		Source:           e.source,
		Hostname:         e.hostname,
		Mode:             e.mode,
		ColorIndex:       e.colorIndex,
		Mission:          append([]mission.Waypoint(nil), e.mission...),
		Telemetry:        e.telemetry,
		SegmentIndex:     e.segmentIndex,
		SegmentFraction:  e.segmentFraction,
		Visited:          visited,
		MissionStartedAt: e.missionStartedAt,
		MissionComplete:  e.missionComplete,
		CompletedAt:      e.completedAt,
		Events:           append([]Event(nil), e.events...),
		PeakSpeedKmh:     e.peakSpeedKmh,
	}
}
