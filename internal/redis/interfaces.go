package redis

import (
	"context"
	"time"

	"zibana/internal/geo"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	GetLocation(ctx context.Context, driverID string) (*DriverLocation, error)
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (*Lock, error)
	AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (*Lock, error)
	Release(ctx context.Context, lock *Lock) error
}

// CacheStoreInterface defines the driver and route caches.
type CacheStoreInterface interface {
	GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*CachedDriver, []string, error)
	SetDriver(ctx context.Context, driver *CachedDriver) error
	InvalidateDriver(ctx context.Context, driverID string) error
	AddAvailableDriver(ctx context.Context, driverID string) error
	RemoveAvailableDriver(ctx context.Context, driverID string) error
	GetRoute(ctx context.Context, key string) (*CachedRoute, error)
	SetRoute(ctx context.Context, key string, route *CachedRoute) error
}

// TelemetryStoreInterface defines per-ride GPS sample storage.
type TelemetryStoreInterface interface {
	Append(ctx context.Context, rideID string, phase TelemetryPhase, p geo.GpsPoint) error
	Points(ctx context.Context, rideID string, phase TelemetryPhase) ([]geo.GpsPoint, error)
	Clear(ctx context.Context, rideID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface  = (*LocationStore)(nil)
	_ LockStoreInterface      = (*LockStore)(nil)
	_ CacheStoreInterface     = (*CacheStore)(nil)
	_ TelemetryStoreInterface = (*TelemetryStore)(nil)
)
