package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	DriverCacheTTL = 30 * time.Second // Driver status can change frequently
	RouteCacheTTL  = 15 * time.Minute
)

// Key prefixes
const (
	driverCachePrefix   = "cache:driver:"
	routeCachePrefix    = "cache:route:"
	availableDriversKey = "available_drivers"
)

// CachedDriver is the slice of a driver that matching filters on.
type CachedDriver struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Phone             string  `json:"phone"`
	Status            string  `json:"status"`
	Rating            float64 `json:"rating"`
	Seats             int     `json:"seats"`
	VehicleYear       int     `json:"vehicle_year"`
	PetApproved       bool    `json:"pet_approved"`
	BackgroundChecked bool    `json:"background_checked"`
	EliteApproved     bool    `json:"elite_approved"`
}

// CachedRoute is a routed distance and duration between two rounded points.
type CachedRoute struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// GetDriver retrieves a driver from cache. A miss returns nil, nil.
func (s *CacheStore) GetDriver(ctx context.Context, driverID string) (*CachedDriver, error) {
	var driver CachedDriver
	ok, err := s.getJSON(ctx, driverCachePrefix+driverID, &driver)
	if err != nil || !ok {
		return nil, err
	}
	return &driver, nil
}

// SetDriver stores a driver in cache.
func (s *CacheStore) SetDriver(ctx context.Context, driver *CachedDriver) error {
	return s.setJSON(ctx, driverCachePrefix+driver.ID, driver, DriverCacheTTL)
}

// InvalidateDriver removes a driver from cache.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverCachePrefix+driverID).Err()
}

// GetDriversBatch retrieves multiple drivers from cache using pipeline.
// Returns a map of driverID -> CachedDriver, and a slice of missing IDs.
func (s *CacheStore) GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*CachedDriver, []string, error) {
	if len(driverIDs) == 0 {
		return make(map[string]*CachedDriver), nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(driverIDs))
	for _, id := range driverIDs {
		cmds[id] = pipe.Get(ctx, driverCachePrefix+id)
	}

	// Exec reports redis.Nil when any key is missing; each command is checked below.
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}

	result := make(map[string]*CachedDriver, len(driverIDs))
	var missing []string

	for _, id := range driverIDs {
		data, err := cmds[id].Bytes()
		if err != nil {
			missing = append(missing, id)
			continue
		}

		var driver CachedDriver
		if err := json.Unmarshal(data, &driver); err != nil {
			missing = append(missing, id)
			continue
		}
		result[id] = &driver
	}

	return result, missing, nil
}

// RouteKey rounds both endpoints to about 100 m so nearby quotes share an entry.
func RouteKey(fromLat, fromLng, toLat, toLng float64) string {
	return fmt.Sprintf("%.3f,%.3f:%.3f,%.3f", fromLat, fromLng, toLat, toLng)
}

// GetRoute retrieves a cached route. A miss returns nil, nil.
func (s *CacheStore) GetRoute(ctx context.Context, key string) (*CachedRoute, error) {
	var route CachedRoute
	ok, err := s.getJSON(ctx, routeCachePrefix+key, &route)
	if err != nil || !ok {
		return nil, err
	}
	return &route, nil
}

// SetRoute caches a route.
func (s *CacheStore) SetRoute(ctx context.Context, key string, route *CachedRoute) error {
	return s.setJSON(ctx, routeCachePrefix+key, route, RouteCacheTTL)
}

// AddAvailableDriver marks a driver as free for matching.
func (s *CacheStore) AddAvailableDriver(ctx context.Context, driverID string) error {
	return s.client.SAdd(ctx, availableDriversKey, driverID).Err()
}

// RemoveAvailableDriver removes a driver from the available set.
func (s *CacheStore) RemoveAvailableDriver(ctx context.Context, driverID string) error {
	return s.client.SRem(ctx, availableDriversKey, driverID).Err()
}

// IsDriverAvailable checks if a driver is in the available set.
func (s *CacheStore) IsDriverAvailable(ctx context.Context, driverID string) (bool, error) {
	return s.client.SIsMember(ctx, availableDriversKey, driverID).Result()
}

func (s *CacheStore) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CacheStore) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}
