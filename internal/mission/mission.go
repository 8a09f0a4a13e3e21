// Mission normalization: raw point lists become canonical waypoint sequences.
package mission

import (
	"fmt"
	"math"
)

// Role classifies a waypoint's position within a mission.
type Role string

const (
	RoleTakeoff        Role = "takeoff"
	RoleWaypoint       Role = "waypoint"
	RoleReturnToLaunch Role = "return_to_launch"
)

// Default altitude in meters for intermediate waypoints without one.
const defaultCruiseAltM = 80

// Point is a raw, unvalidated input point as produced by file parsers or API
// payloads. Altitude and label are optional.
type Point struct {
	Lat   float64  `json:"lat" yaml:"lat"`
	Lng   float64  `json:"lng" yaml:"lng"`
	AltM  *float64 `json:"alt,omitempty" yaml:"alt,omitempty"`
	Label string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// Waypoint is one canonical mission point. Immutable once attached to a mission.
type Waypoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	AltitudeM float64 `json:"altitude_m"`
	Role      Role    `json:"role"`
	Label     string  `json:"label"`
}

// Normalize turns an arbitrary ordered point list into a canonical mission.
// Points with non-finite or out-of-range coordinates are dropped. The first
// surviving point becomes takeoff and the last return-to-launch; endpoints
// default to ground level, intermediate points to the cruise altitude.
// Fewer than two surviving points yields an empty mission, which callers must
// treat as "no mission attached".
func Normalize(points []Point) []Waypoint {
	valid := make([]Point, 0, len(points))
	for _, p := range points {
		if !validCoordinate(p.Lat, p.Lng) {
			continue
		}
		valid = append(valid, p)
	}
	if len(valid) < 2 {
		return nil
	}

	wps := make([]Waypoint, len(valid))
	for i, p := range valid {
		role := RoleWaypoint
		switch i {
		case 0:
			role = RoleTakeoff
		case len(valid) - 1:
			role = RoleReturnToLaunch
		}

		alt := float64(defaultCruiseAltM)
		if role != RoleWaypoint {
			alt = 0
		}
		if p.AltM != nil {
			alt = *p.AltM
		}
		if alt < 0 {
			alt = 0
		}

		label := p.Label
		if label == "" {
			label = fmt.Sprintf("Waypoint %d", i+1)
		}

		wps[i] = Waypoint{
			Lat:       p.Lat,
			Lng:       p.Lng,
			AltitudeM: math.Round(alt),
			Role:      role,
			Label:     label,
		}
	}
	return wps
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
