package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const driverLocationKey = "drivers:locations"

// ErrLocationUnknown is returned when a driver has no position in the index.
var ErrLocationUnknown = errors.New("driver location unknown")

// DriverLocation represents a driver's position.
type DriverLocation struct {
	DriverID   string
	Lat        float64
	Lng        float64
	DistanceKm float64
}

// LocationStore keeps the live driver positions in a Redis GEO index.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a driver's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// GetLocation returns the last indexed position of a driver.
func (s *LocationStore) GetLocation(ctx context.Context, driverID string) (*DriverLocation, error) {
	positions, err := s.client.GeoPos(ctx, driverLocationKey, driverID).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, ErrLocationUnknown
	}
	return &DriverLocation{
		DriverID: driverID,
		Lat:      positions[0].Latitude,
		Lng:      positions[0].Longitude,
	}, nil
}

// FindNearbyDrivers returns drivers within radiusKm, closest first.
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error) {
	results, err := s.client.GeoSearchLocation(ctx, driverLocationKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]DriverLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, DriverLocation{
			DriverID:   r.Name,
			Lat:        r.Latitude,
			Lng:        r.Longitude,
			DistanceKm: r.Dist,
		})
	}

	return locations, nil
}

// RemoveLocation removes a driver's location from the geo index.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	return s.client.ZRem(ctx, driverLocationKey, driverID).Err()
}
