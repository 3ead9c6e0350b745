// Package rank orders events by great-circle distance to a target
// point.
package rank

import (
	"math"
	"sort"

	"github.com/citypulse/eventcache/internal/listing"
)

const earthRadiusKm = 6371.0

// Haversine ranks events nearest-first. Events without coordinates
// sort after all located events, keeping their relative order.
type Haversine struct{}

// Rank returns a new slice; the input is not modified.
func (Haversine) Rank(events []listing.Event, target listing.Target) []listing.Event {
	ranked := append([]listing.Event(nil), events...)
	sort.SliceStable(ranked, func(i, j int) bool {
		di, oki := distanceTo(ranked[i], target)
		dj, okj := distanceTo(ranked[j], target)
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		return di < dj
	})
	return ranked
}

func distanceTo(e listing.Event, t listing.Target) (float64, bool) {
	if e.Lat == 0 && e.Lon == 0 {
		return 0, false
	}
	return haversineKm(e.Lat, e.Lon, t.Lat, t.Lon), true
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
