// Live telemetry ingestion: translates a per-drone push stream into entry state.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"

	"fleetconsole/internal/fleet"
	"fleetconsole/internal/geo"
	"fleetconsole/internal/logging"
	"fleetconsole/internal/mission"
)

// Config holds the ingestor tunables. Zero values select the defaults. The
// radius and ceiling reflect demo calibration, not a physical requirement,
// which is why they are configuration rather than constants.
type Config struct {
	// ProximityRadiusM is the arrival threshold for waypoint detection.
	ProximityRadiusM float64
	// SpeedCeilingKmh rejects derived ground speeds above this as noise.
	SpeedCeilingKmh float64
	// ReconnectDelay bounds how soon a dropped stream is redialed.
	ReconnectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProximityRadiusM <= 0 {
		c.ProximityRadiusM = 30
	}
	if c.SpeedCeilingKmh <= 0 {
		c.SpeedCeilingKmh = 180
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 3 * time.Second
	}
	return c
}

// Conn is one open telemetry stream.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens the telemetry stream for a drone hostname.
type Dialer interface {
	Dial(ctx context.Context, hostname string) (Conn, error)
}

// WebsocketDialer dials the drone's websocket telemetry endpoint.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
}

type wsConn struct{ *websocket.Conn }

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.Conn.ReadMessage()
	return data, err
}

// Dial connects to ws://<hostname>/telemetry unless the hostname already
// carries a scheme or path.
func (d WebsocketDialer) Dial(ctx context.Context, hostname string) (Conn, error) {
	u := hostname
	if !strings.Contains(u, "://") {
		u = "ws://" + u
	}
	if !strings.Contains(strings.TrimPrefix(u, "ws://"), "/") {
		u += "/telemetry"
	}
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return wsConn{conn}, nil
}

// telemetryMessage mirrors the consumed stream contract; every section is
// independently optional per message.
type telemetryMessage struct {
	Position *struct {
		LatitudeDeg       float64 `json:"latitude_deg"`
		LongitudeDeg      float64 `json:"longitude_deg"`
		RelativeAltitudeM float64 `json:"relative_altitude_m"`
	} `json:"position"`
	Attitude *struct {
		YawDeg float64 `json:"yaw_deg"`
	} `json:"attitude"`
	Battery *struct {
		RemainingPercent float64 `json:"remaining_percent"`
	} `json:"battery"`
}

// Ingestor owns the stream subscriptions for live-mode entries. Message
// handlers re-fetch their entry by id, so a detach can never be raced into
// mutating a removed entry.
type Ingestor struct {
	reg    *fleet.Registry
	cfg    Config
	dialer Dialer
	notify func(*fleet.Entry)
	now    func() time.Time

	mu      sync.Mutex
	subs    map[string]*subscription
	pending map[string]*time.Timer
}

type subscription struct {
	conn   Conn
	closed bool
	done   chan struct{}
}

// NewIngestor creates a live telemetry ingestor over the session registry.
// notify is invoked after every applied message and may be nil.
func NewIngestor(reg *fleet.Registry, cfg Config, dialer Dialer, notify func(*fleet.Entry)) *Ingestor {
	return &Ingestor{
		reg:     reg,
		cfg:     cfg.withDefaults(),
		dialer:  dialer,
		notify:  notify,
		now:     time.Now,
		subs:    make(map[string]*subscription),
		pending: make(map[string]*time.Timer),
	}
}

// Connect opens the telemetry subscription for a live entry. No-op when a
// subscription is already open. A pending reconnect for the same entry is
// superseded.
func (in *Ingestor) Connect(ctx context.Context, id string) error {
	entry, ok := in.reg.Get(id)
	if !ok {
		return fmt.Errorf("entry %s is not tracked", id)
	}
	if entry.Mode() != fleet.ModeLive {
		panic("live: Connect called on a simulated entry")
	}

	in.mu.Lock()
	if t, ok := in.pending[id]; ok {
		t.Stop()
		delete(in.pending, id)
	}
	if _, open := in.subs[id]; open {
		in.mu.Unlock()
		return nil
	}
	in.mu.Unlock()

	conn, err := in.dialer.Dial(ctx, entry.Hostname())
	if err != nil {
		return err
	}

	sub := &subscription{conn: conn, done: make(chan struct{})}
	in.mu.Lock()
	if _, open := in.subs[id]; open {
		in.mu.Unlock()
		conn.Close()
		return nil
	}
	in.subs[id] = sub
	in.mu.Unlock()

	entry.BeginLiveSession(in.now())
	in.emit(entry)
	logging.FromContext(ctx).Info("telemetry stream connected", "entry_id", id, "hostname", entry.Hostname())

	go in.readLoop(ctx, id, sub)
	return nil
}

// Disconnect tears the subscription down and cancels any pending reconnect.
// Idempotent; when it returns, no further message handler for this entry will
// fire and no reconnect will be attempted.
func (in *Ingestor) Disconnect(id string) {
	in.mu.Lock()
	if t, ok := in.pending[id]; ok {
		t.Stop()
		delete(in.pending, id)
	}
	sub, open := in.subs[id]
	if open {
		sub.closed = true
		delete(in.subs, id)
	}
	in.mu.Unlock()
	if open {
		sub.conn.Close()
		<-sub.done
	}
}

// Connected reports whether the entry currently has an open stream.
func (in *Ingestor) Connected(id string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	_, ok := in.subs[id]
	return ok
}

// StopAll disconnects every subscription; used at session teardown.
func (in *Ingestor) StopAll() {
	in.mu.Lock()
	ids := make([]string, 0, len(in.subs)+len(in.pending))
	for id := range in.subs {
		ids = append(ids, id)
	}
	for id := range in.pending {
		ids = append(ids, id)
	}
	in.mu.Unlock()
	for _, id := range ids {
		in.Disconnect(id)
	}
}

func (in *Ingestor) readLoop(ctx context.Context, id string, sub *subscription) {
	defer close(sub.done)
	log := logging.FromContext(ctx)
	for {
		data, err := sub.conn.ReadMessage()
		if err != nil {
			in.mu.Lock()
			explicit := sub.closed
			if !explicit {
				delete(in.subs, id)
				if _, tracked := in.reg.Get(id); tracked {
					in.pending[id] = time.AfterFunc(in.cfg.ReconnectDelay, func() {
						if err := in.Connect(ctx, id); err != nil {
							log.Warn("telemetry reconnect failed", "entry_id", id, "err", err)
						}
					})
				}
			}
			in.mu.Unlock()
			if !explicit {
				log.Warn("telemetry stream dropped", "entry_id", id, "err", err)
			}
			return
		}
		in.handleMessage(ctx, id, data)
	}
}

// handleMessage applies one stream message. Malformed payloads are dropped
// and logged; they never affect the connection lifecycle.
func (in *Ingestor) handleMessage(ctx context.Context, id string, data []byte) {
	entry, ok := in.reg.Get(id)
	if !ok {
		return
	}

	var msg telemetryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.FromContext(ctx).Debug("dropping malformed telemetry message", "entry_id", id, "err", err)
		return
	}

	tel := entry.Telemetry()
	now := in.now()
	changed := false

	if msg.Position != nil {
		lat, lng, alt := msg.Position.LatitudeDeg, msg.Position.LongitudeDeg, msg.Position.RelativeAltitudeM
		if fix := entry.LastFix(); fix.Valid {
			if dt := now.Sub(fix.At).Seconds(); dt > 0 {
				speed := geo.DistanceMeters(fix.Lat, fix.Lng, lat, lng) / dt * 3.6
				if speed <= in.cfg.SpeedCeilingKmh {
					tel.SpeedKmh = speed
				}
				// A spike above the ceiling is stale or noisy; keep the
				// previous reading.
			}
		}
		tel.Lat, tel.Lng, tel.AltitudeM = lat, lng, alt
		entry.SetLastFix(fleet.Fix{Lat: lat, Lng: lng, At: now, Valid: true})
		in.checkProximity(entry, lat, lng, now)
		changed = true
	}
	if msg.Attitude != nil {
		tel.HeadingDeg = normalizeHeading(msg.Attitude.YawDeg)
		changed = true
	}
	if msg.Battery != nil {
		tel.BatteryPct = normalizeBattery(msg.Battery.RemainingPercent)
		changed = true
	}

	if changed {
		entry.UpdateTelemetry(tel)
		in.emit(entry)
	}
}

// checkProximity marks every not-yet-visited waypoint within the arrival
// radius. Marking is idempotent, so repeated identical fixes log one event.
func (in *Ingestor) checkProximity(entry *fleet.Entry, lat, lng float64, now time.Time) {
	for i, wp := range entry.Mission() {
		if entry.IsVisited(i) {
			continue
		}
		if geo.DistanceMeters(lat, lng, wp.Lat, wp.Lng) > in.cfg.ProximityRadiusM {
			continue
		}
		if !entry.MarkVisited(i) {
			continue
		}
		if wp.Role == mission.RoleReturnToLaunch {
			entry.AppendEvent(now, fleet.EventLand, "landed at "+wp.Label)
		} else {
			entry.AppendEvent(now, fleet.EventWaypoint, "reached "+wp.Label)
		}
	}
}

func (in *Ingestor) emit(entry *fleet.Entry) {
	if in.notify != nil {
		in.notify(entry)
	}
}

// normalizeBattery accepts either a 0-1 fraction or a 0-100 percentage.
func normalizeBattery(raw float64) float64 {
	if raw <= 1 {
		raw *= 100
	}
	return math.Max(0, math.Min(100, raw))
}

// normalizeHeading folds a yaw angle into [0, 360).
func normalizeHeading(yaw float64) float64 {
	h := math.Mod(yaw, 360)
	if h < 0 {
		h += 360
	}
	return h
}
