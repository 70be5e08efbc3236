package domain

import (
	"fmt"
	"math"
)

const (
	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0

	// EarthRadiusKm is the mean Earth radius used by Distance.
	EarthRadiusKm = 6371.0
)

// GeographicPoint is an immutable latitude/longitude pair in degrees.
type GeographicPoint struct {
	lat float64
	lng float64
}

// NewGeographicPoint validates the coordinates and returns a point.
func NewGeographicPoint(lat, lng float64) (GeographicPoint, error) {
	if math.IsNaN(lat) || lat < minLatitude || lat > maxLatitude {
		return GeographicPoint{}, Errorf(KindInvalidArguments, "latitude must be between %.0f and %.0f, got %v", minLatitude, maxLatitude, lat)
	}
	if math.IsNaN(lng) || lng < minLongitude || lng > maxLongitude {
		return GeographicPoint{}, Errorf(KindInvalidArguments, "longitude must be between %.0f and %.0f, got %v", minLongitude, maxLongitude, lng)
	}
	return GeographicPoint{lat: lat, lng: lng}, nil
}

func (p GeographicPoint) Latitude() float64 { return p.lat }

func (p GeographicPoint) Longitude() float64 { return p.lng }

func (p GeographicPoint) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.lat, p.lng)
}

// Distance returns the haversine great-circle distance between a and b in kilometers.
func Distance(a, b GeographicPoint) float64 {
	lat1 := toRadians(a.lat)
	lat2 := toRadians(b.lat)
	dLat := toRadians(b.lat - a.lat)
	dLng := toRadians(b.lng - a.lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
