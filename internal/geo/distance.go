// Package geo computes distances, durations and speeds over GPS samples.
package geo

import (
	"math"
	"time"
)

const (
	earthRadiusKm = 6371.0
	kmToMiles     = 0.621371

	// DefaultIdleThresholdMeters is the path length under which a sample
	// window counts as stationary.
	DefaultIdleThresholdMeters = 50.0
)

// Coordinates is a WGS84 position in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GpsPoint is a timestamped position sample.
type GpsPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"ts"`
}

// Coordinates drops the timestamp.
func (p GpsPoint) Coordinates() Coordinates {
	return Coordinates{Lat: p.Lat, Lng: p.Lng}
}

// HaversineDistanceKm returns the great-circle distance between a and b.
func HaversineDistanceKm(a, b Coordinates) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// HaversineDistanceMiles is HaversineDistanceKm in miles.
func HaversineDistanceMiles(a, b Coordinates) float64 {
	return HaversineDistanceKm(a, b) * kmToMiles
}

// TotalDistanceKm sums the leg distances along points. Samples are used as
// given; no smoothing or outlier rejection is applied.
func TotalDistanceKm(points []GpsPoint) float64 {
	if len(points) < 2 {
		return 0
	}

	total := 0.0
	for i := 1; i < len(points); i++ {
		total += HaversineDistanceKm(points[i-1].Coordinates(), points[i].Coordinates())
	}
	return total
}

// TotalDistanceMiles is TotalDistanceKm in miles.
func TotalDistanceMiles(points []GpsPoint) float64 {
	return TotalDistanceKm(points) * kmToMiles
}

// DurationMinutes is the time between the first and last sample. It is
// negative when points are not in chronological order.
func DurationMinutes(points []GpsPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	first := points[0].Timestamp
	last := points[len(points)-1].Timestamp
	return float64(last.Sub(first).Milliseconds()) / 60000
}

// IsIdle reports whether the path along points is shorter than
// thresholdMeters. Fewer than two samples are treated as idle.
func IsIdle(points []GpsPoint, thresholdMeters float64) bool {
	if len(points) < 2 {
		return true
	}
	return TotalDistanceKm(points)*1000 < thresholdMeters
}

// AverageSpeedKmh returns path distance over elapsed time, or 0 when no
// time has elapsed.
func AverageSpeedKmh(points []GpsPoint) float64 {
	hours := DurationMinutes(points) / 60
	if hours == 0 {
		return 0
	}
	return TotalDistanceKm(points) / hours
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
