// Great-circle helpers shared by the simulator, the live ingestor, and reporting.
package geo

import "math"

const earthRadiusM = 6371000.0

// DistanceMeters calculates the haversine distance between two lat/lng points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// BearingDeg returns the initial great-circle bearing from the first point to
// the second, normalized to [0, 360).
func BearingDeg(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	y := math.Sin(dLng) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Interpolate returns the point at fraction f along the straight line between
// two lat/lng/alt tuples. Segments in a mission are short enough that linear
// interpolation is indistinguishable from the great-circle path on a map.
func Interpolate(lat1, lng1, alt1, lat2, lng2, alt2, f float64) (lat, lng, alt float64) {
	return lat1 + (lat2-lat1)*f, lng1 + (lng2-lng1)*f, alt1 + (alt2-alt1)*f
}
