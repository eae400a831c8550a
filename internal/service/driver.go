package service

import (
	"context"
	"errors"
	"log/slog"

	"zibana/internal/domain"
	"zibana/internal/fare"
	"zibana/internal/redis"
	"zibana/internal/repository"
)

// DriverService handles driver availability.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    redis.CacheStoreInterface
	driverRepo    repository.DriverRepository
	rideRepo      repository.RideRepository
	tracking      *TrackingService
	catalog       *fare.Catalog
	log           *slog.Logger
}

// NewDriverService creates a new DriverService. cacheStore may be nil.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	cacheStore redis.CacheStoreInterface,
	driverRepo repository.DriverRepository,
	rideRepo repository.RideRepository,
	tracking *TrackingService,
	catalog *fare.Catalog,
	log *slog.Logger,
) *DriverService {
	if log == nil {
		log = slog.Default()
	}
	if catalog == nil {
		catalog = fare.DefaultCatalog()
	}
	return &DriverService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		rideRepo:      rideRepo,
		tracking:      tracking,
		catalog:       catalog,
		log:           log.With("component", "drivers"),
	}
}

// UpdateLocation records a driver ping. An offline driver comes online, and
// a driver on a ride feeds that ride's telemetry.
func (s *DriverService) UpdateLocation(ctx context.Context, u LocationUpdate) (*LocationResult, error) {
	if u.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if !isValidLatitude(u.Lat) || !isValidLongitude(u.Lng) {
		return nil, ErrInvalidLocation
	}

	driver, err := s.driverRepo.GetByID(ctx, u.DriverID)
	if err != nil {
		return nil, err
	}

	if driver.Status == domain.DriverStatusOffline {
		if err := s.driverRepo.UpdateStatus(ctx, driver.ID, domain.DriverStatusOnline); err != nil {
			return nil, err
		}
		driver.Status = domain.DriverStatusOnline
		s.log.InfoContext(ctx, "driver online", "driver_id", driver.ID)
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.SetDriver(ctx, toCachedDriver(driver))
		if driver.Status == domain.DriverStatusOnline {
			_ = s.cacheStore.AddAvailableDriver(ctx, driver.ID)
		}
	}

	return s.tracking.IngestLocation(ctx, u)
}

// SetDriverOffline takes a driver out of matching. A driver with an active
// ride must finish or cancel it first.
func (s *DriverService) SetDriverOffline(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	active, err := s.rideRepo.GetActiveByDriverID(ctx, driverID)
	if err != nil {
		return err
	}
	if active != nil {
		return ErrDriverHasActiveRide
	}

	if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
		return err
	}

	if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, driverID)
		_ = s.cacheStore.RemoveAvailableDriver(ctx, driverID)
	}

	s.log.InfoContext(ctx, "driver offline", "driver_id", driverID)
	return nil
}

// DriverProfile is a driver with the ride classes they may serve.
type DriverProfile struct {
	Driver   *domain.Driver
	Classes  []fare.RideClass
	Location *redis.DriverLocation
}

// GetProfile returns a driver, the classes they qualify for and their last
// known location.
func (s *DriverService) GetProfile(ctx context.Context, driverID string) (*DriverProfile, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	profile := &DriverProfile{Driver: driver, Classes: s.catalog.EligibleFor(driver)}

	loc, err := s.locationStore.GetLocation(ctx, driverID)
	switch {
	case err == nil:
		profile.Location = loc
	case !errors.Is(err, redis.ErrLocationUnknown):
		return nil, err
	}
	return profile, nil
}
