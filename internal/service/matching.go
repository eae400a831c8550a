package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"zibana/internal/domain"
	"zibana/internal/fare"
	"zibana/internal/redis"
	"zibana/internal/repository"
)

const (
	defaultSearchRadiusKm = 5.0
	driverLockTTL         = 10 * time.Second
)

// Candidate is a nearby driver who qualifies for a ride's class.
type Candidate struct {
	DriverID   string
	Name       string
	Rating     float64
	DistanceKm float64
}

// MatchingService finds drivers for a ride and claims the one who accepts it.
type MatchingService struct {
	locationStore redis.LocationStoreInterface
	lockStore     redis.LockStoreInterface
	cacheStore    redis.CacheStoreInterface
	driverRepo    repository.DriverRepository
	rideRepo      repository.RideRepository
	catalog       *fare.Catalog
	radiusKm      float64
	log           *slog.Logger
}

// NewMatchingService creates a new MatchingService. cacheStore may be nil.
func NewMatchingService(
	locationStore redis.LocationStoreInterface,
	lockStore redis.LockStoreInterface,
	cacheStore redis.CacheStoreInterface,
	driverRepo repository.DriverRepository,
	rideRepo repository.RideRepository,
	catalog *fare.Catalog,
	radiusKm float64,
	log *slog.Logger,
) *MatchingService {
	if radiusKm <= 0 {
		radiusKm = defaultSearchRadiusKm
	}
	if log == nil {
		log = slog.Default()
	}
	return &MatchingService{
		locationStore: locationStore,
		lockStore:     lockStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		rideRepo:      rideRepo,
		catalog:       catalog,
		radiusKm:      radiusKm,
		log:           log.With("component", "matching"),
	}
}

// FindCandidates returns online drivers near the pickup who qualify for the
// ride's class, nearest first.
func (s *MatchingService) FindCandidates(ctx context.Context, ride *domain.Ride) ([]Candidate, error) {
	class, ok := s.catalog.Get(ride.RideClass)
	if !ok {
		return nil, ErrInvalidRideClass
	}

	nearby, err := s.locationStore.FindNearbyDrivers(ctx, ride.PickupLat, ride.PickupLng, s.radiusKm)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		return nil, nil
	}

	driverIDs := make([]string, len(nearby))
	for i, loc := range nearby {
		driverIDs[i] = loc.DriverID
	}

	cached, missing, err := s.getDriversBatch(ctx, driverIDs)
	if err != nil {
		s.log.WarnContext(ctx, "driver cache batch failed", "error", err)
		cached, missing = map[string]*redis.CachedDriver{}, driverIDs
	}

	drivers := make(map[string]*domain.Driver, len(driverIDs))
	for id, c := range cached {
		drivers[id] = cachedToDriver(c)
	}
	if len(missing) > 0 {
		loaded, err := s.driverRepo.GetByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, driver := range loaded {
			drivers[driver.ID] = driver
			s.cacheDriverAsync(driver)
		}
	}

	var candidates []Candidate
	for _, loc := range nearby {
		driver, ok := drivers[loc.DriverID]
		if !ok || driver.Status != domain.DriverStatusOnline {
			continue
		}
		if !class.Qualifies(driver) {
			continue
		}
		candidates = append(candidates, Candidate{
			DriverID:   driver.ID,
			Name:       driver.Name,
			Rating:     driver.Rating,
			DistanceKm: loc.DistanceKm,
		})
	}
	return candidates, nil
}

// ClaimDriver locks a driver who is accepting ride and re-verifies them
// against the database. The caller must release the lock once the
// assignment is written.
func (s *MatchingService) ClaimDriver(ctx context.Context, ride *domain.Ride, driverID string) (*redis.Lock, *domain.Driver, error) {
	lock, err := s.lockStore.AcquireDriverLock(ctx, driverID, driverLockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, nil, ErrDriverBusy
		}
		return nil, nil, err
	}

	driver, err := s.verifyDriver(ctx, ride, driverID)
	if err != nil {
		_ = s.lockStore.Release(ctx, lock)
		return nil, nil, err
	}
	return lock, driver, nil
}

func (s *MatchingService) verifyDriver(ctx context.Context, ride *domain.Ride, driverID string) (*domain.Driver, error) {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if driver.Status != domain.DriverStatusOnline {
		s.invalidateDriverCache(ctx, driverID)
		return nil, ErrDriverNotOnline
	}

	class, ok := s.catalog.Get(ride.RideClass)
	if !ok {
		return nil, ErrInvalidRideClass
	}
	if !class.Qualifies(driver) {
		return nil, ErrDriverNotEligible
	}

	active, err := s.rideRepo.GetActiveByDriverID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if active != nil && active.ID != ride.ID {
		return nil, ErrDriverHasActiveRide
	}
	return driver, nil
}

// Release drops a lock taken by ClaimDriver.
func (s *MatchingService) Release(ctx context.Context, lock *redis.Lock) {
	if err := s.lockStore.Release(ctx, lock); err != nil {
		s.log.WarnContext(ctx, "release driver lock failed", "error", err)
	}
}

// MarkAssigned takes a driver out of the available pool.
func (s *MatchingService) MarkAssigned(ctx context.Context, driverID string) {
	s.invalidateDriverCache(ctx, driverID)
}

// MarkAvailable returns a driver to the available pool after a ride ends.
func (s *MatchingService) MarkAvailable(ctx context.Context, driverID string) {
	if s.cacheStore == nil {
		return
	}
	_ = s.cacheStore.InvalidateDriver(ctx, driverID)
	_ = s.cacheStore.AddAvailableDriver(ctx, driverID)
}

func (s *MatchingService) getDriversBatch(ctx context.Context, driverIDs []string) (map[string]*redis.CachedDriver, []string, error) {
	if s.cacheStore == nil {
		return make(map[string]*redis.CachedDriver), driverIDs, nil
	}
	return s.cacheStore.GetDriversBatch(ctx, driverIDs)
}

// cacheDriverAsync caches a driver without blocking the match.
func (s *MatchingService) cacheDriverAsync(driver *domain.Driver) {
	if s.cacheStore == nil {
		return
	}
	cached := toCachedDriver(driver)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.cacheStore.SetDriver(ctx, cached)
	}()
}

func (s *MatchingService) invalidateDriverCache(ctx context.Context, driverID string) {
	if s.cacheStore == nil {
		return
	}
	_ = s.cacheStore.InvalidateDriver(ctx, driverID)
	_ = s.cacheStore.RemoveAvailableDriver(ctx, driverID)
}

func toCachedDriver(d *domain.Driver) *redis.CachedDriver {
	return &redis.CachedDriver{
		ID:                d.ID,
		Name:              d.Name,
		Phone:             d.Phone,
		Status:            string(d.Status),
		Rating:            d.Rating,
		Seats:             d.Seats,
		VehicleYear:       d.VehicleYear,
		PetApproved:       d.PetApproved,
		BackgroundChecked: d.BackgroundChecked,
		EliteApproved:     d.EliteApproved,
	}
}

func cachedToDriver(c *redis.CachedDriver) *domain.Driver {
	return &domain.Driver{
		ID:                c.ID,
		Name:              c.Name,
		Phone:             c.Phone,
		Status:            domain.DriverStatus(c.Status),
		Rating:            c.Rating,
		Seats:             c.Seats,
		VehicleYear:       c.VehicleYear,
		PetApproved:       c.PetApproved,
		BackgroundChecked: c.BackgroundChecked,
		EliteApproved:     c.EliteApproved,
	}
}
