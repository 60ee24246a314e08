// README: Pure geographic helpers for radius search over the in-memory catalog.
package vehicle

import (
	"math"
	"sort"

	"rental/internal/types"
)

const earthRadiusKm = 6371.0

// distanceKm returns the great-circle distance between two points.
func distanceKm(a, b types.Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

type ranked struct {
	vehicle  Vehicle
	distance float64
}

// withinRadius keeps the vehicles within radiusKm of origin, closest first.
func withinRadius(vs []Vehicle, origin types.Point, radiusKm float64) []Vehicle {
	var hits []ranked
	for _, v := range vs {
		if d := distanceKm(origin, v.Position); d <= radiusKm {
			hits = append(hits, ranked{vehicle: v, distance: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })
	out := make([]Vehicle, len(hits))
	for i, h := range hits {
		out[i] = h.vehicle
	}
	return out
}
