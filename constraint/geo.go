package constraint

import "math"

// Point is a WGS84 position.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Geofence is a geographic region: a circle when RadiusMeters is positive,
// otherwise a polygon over Vertices. A fence with neither is never entered.
type Geofence struct {
	Center       Point   `json:"center,omitempty"`
	RadiusMeters float64 `json:"radius,omitempty"`
	Vertices     []Point `json:"vertices,omitempty"`
}

const earthRadiusMeters = 6371000.0

// Contains reports whether the point falls inside the fence.
func (g Geofence) Contains(p Point) bool {
	if g.RadiusMeters > 0 {
		return haversineMeters(g.Center, p) <= g.RadiusMeters
	}
	if len(g.Vertices) >= 3 {
		return pointInPolygon(p, g.Vertices)
	}
	return false
}

// haversineMeters returns the great-circle distance between two points.
func haversineMeters(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// pointInPolygon applies the even-odd ray casting rule over the vertex ring.
func pointInPolygon(p Point, ring []Point) bool {
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		vi, vj := ring[i], ring[j]
		if (vi.Longitude > p.Longitude) != (vj.Longitude > p.Longitude) {
			slope := (vj.Latitude-vi.Latitude)*(p.Longitude-vi.Longitude)/(vj.Longitude-vi.Longitude) + vi.Latitude
			if p.Latitude < slope {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
