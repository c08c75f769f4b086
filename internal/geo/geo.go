// Package geo provides great-circle distance and circular zone containment
// used by the geofence engine. All functions are pure and total.
package geo

import (
	"math"

	"github.com/safetrack/safetrack-go/internal/datastore"
)

// earthRadiusM is the mean Earth radius in meters.
const earthRadiusM = 6371000.0

// DistanceMeters returns the great-circle (haversine) distance in meters
// between two coordinates given in decimal degrees.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// IsInsideZone reports whether the point lies inside the zone.
// The boundary is inclusive.
func IsInsideZone(lat, lng float64, zone *datastore.Zone) bool {
	return DistanceMeters(lat, lng, zone.CenterLat, zone.CenterLng) <= zone.RadiusM
}

// FindContainingZone returns the first active zone in list order that
// contains the point, or nil when no zone does. First match wins, callers
// must supply zones in a stable order so overlap resolution stays
// deterministic.
func FindContainingZone(lat, lng float64, zones []datastore.Zone) *datastore.Zone {
	for i := range zones {
		if zones[i].Active && IsInsideZone(lat, lng, &zones[i]) {
			return &zones[i]
		}
	}
	return nil
}
