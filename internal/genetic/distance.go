package genetic

import (
	"math"

	"routega/internal/model"
)

// Depot is the pseudo-index of the depot in distance lookups.
const Depot = -1

// DistanceMatrix holds precomputed haversine distances between the depot
// and every point and between every pair of points. Read-only after
// construction and safe for concurrent readers.
type DistanceMatrix struct {
	depot []float64   // depot <-> point i
	pair  [][]float64 // point i <-> point j
}

// NewDistanceMatrix precomputes all distances in km. O(n^2) once,
// O(1) per lookup.
func NewDistanceMatrix(points []model.Point, depot model.GeoPoint) *DistanceMatrix {
	n := len(points)
	m := &DistanceMatrix{
		depot: make([]float64, n),
		pair:  make([][]float64, n),
	}
	for i := range points {
		m.depot[i] = HaversineKm(depot, points[i].Location)
		m.pair[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := HaversineKm(points[i].Location, points[j].Location)
			m.pair[i][j] = d
			m.pair[j][i] = d
		}
	}
	return m
}

// Distance returns the distance between two point indices; Depot (-1)
// on either side means the depot.
func (m *DistanceMatrix) Distance(from, to int) float64 {
	switch {
	case from == Depot && to == Depot:
		return 0
	case from == Depot:
		return m.depot[to]
	case to == Depot:
		return m.depot[from]
	default:
		return m.pair[from][to]
	}
}

// RouteDistance is depot -> first point -> ... -> last point -> depot.
func (m *DistanceMatrix) RouteDistance(route []int) float64 {
	if len(route) == 0 {
		return 0
	}
	d := m.depot[route[0]]
	for i := 0; i+1 < len(route); i++ {
		d += m.pair[route[i]][route[i+1]]
	}
	return d + m.depot[route[len(route)-1]]
}

const earthRadiusKm = 6371.0

// HaversineKm computes the great-circle distance between two coordinates.
// Identical coordinates yield exactly 0; the argument of Sqrt is clamped
// so antipodal points never produce NaN.
func HaversineKm(a, b model.GeoPoint) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	if s < 0 {
		s = 0
	} else if s > 1 {
		s = 1
	}
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return earthRadiusKm * c
}
