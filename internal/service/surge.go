package service

import (
	"context"
	"log/slog"

	"zibana/internal/domain"
	"zibana/internal/geo"
	"zibana/internal/redis"
	"zibana/internal/repository"
)

// SurgeService calculates surge pricing based on supply and demand.
type SurgeService struct {
	locationStore redis.LocationStoreInterface
	rideRepo      repository.RideRepository
	config        SurgeConfig
	log           *slog.Logger
}

// NewSurgeService creates a new SurgeService.
func NewSurgeService(
	locationStore redis.LocationStoreInterface,
	rideRepo repository.RideRepository,
	config SurgeConfig,
	log *slog.Logger,
) *SurgeService {
	if log == nil {
		log = slog.Default()
	}
	return &SurgeService{
		locationStore: locationStore,
		rideRepo:      rideRepo,
		config:        config,
		log:           log.With("component", "surge"),
	}
}

// SurgeConfig contains surge pricing configuration.
type SurgeConfig struct {
	RadiusKm       float64 // Radius to check for supply/demand
	LowSurgeRatio  float64 // Demand/supply ratio for 1.25x surge
	MedSurgeRatio  float64 // Demand/supply ratio for 1.5x surge
	HighSurgeRatio float64 // Demand/supply ratio for MaxSurge
	MaxSurge       float64
}

// DefaultSurgeConfig returns the default surge configuration.
func DefaultSurgeConfig() SurgeConfig {
	return SurgeConfig{
		RadiusKm:       5.0,
		LowSurgeRatio:  1.2,
		MedSurgeRatio:  1.5,
		HighSurgeRatio: 2.0,
		MaxSurge:       2.0,
	}
}

// demandStatuses are the rides still competing for a driver near their pickup.
var demandStatuses = []domain.RideStatus{
	domain.RideStatusRequested,
	domain.RideStatusMatching,
}

// GetMultiplier calculates the surge multiplier for a given location.
// Returns 1.0 if no surge, up to MaxSurge if demand far outstrips supply.
func (s *SurgeService) GetMultiplier(ctx context.Context, lat, lng float64) float64 {
	supply := s.countDriversInArea(ctx, lat, lng)
	demand := s.countActiveRequestsInArea(ctx, lat, lng)

	m := CalculateSurgeMultiplier(supply, demand, s.config)
	if m > 1 {
		s.log.DebugContext(ctx, "surge applied", "lat", lat, "lng", lng, "supply", supply, "demand", demand, "multiplier", m)
	}
	return m
}

// countDriversInArea returns the number of located drivers within the surge radius.
func (s *SurgeService) countDriversInArea(ctx context.Context, lat, lng float64) int {
	drivers, err := s.locationStore.FindNearbyDrivers(ctx, lat, lng, s.config.RadiusKm)
	if err != nil {
		// Fail open: a plausible supply avoids a false surge.
		s.log.WarnContext(ctx, "surge supply lookup failed", "error", err)
		return 10
	}
	return len(drivers)
}

// countActiveRequestsInArea counts unmatched rides whose pickup is within the surge radius.
func (s *SurgeService) countActiveRequestsInArea(ctx context.Context, lat, lng float64) int {
	rides, err := s.rideRepo.ListByStatus(ctx, demandStatuses...)
	if err != nil {
		s.log.WarnContext(ctx, "surge demand lookup failed", "error", err)
		return 0
	}

	here := geo.Coordinates{Lat: lat, Lng: lng}
	count := 0
	for _, ride := range rides {
		pickup := geo.Coordinates{Lat: ride.PickupLat, Lng: ride.PickupLng}
		if geo.HaversineDistanceKm(here, pickup) <= s.config.RadiusKm {
			count++
		}
	}
	return count
}

// CalculateSurgeMultiplier maps a demand/supply ratio onto the surge tiers.
func CalculateSurgeMultiplier(supply, demand int, config SurgeConfig) float64 {
	if supply == 0 {
		if demand > 0 {
			return config.MaxSurge
		}
		return 1.0
	}

	ratio := float64(demand) / float64(supply)

	switch {
	case ratio >= config.HighSurgeRatio:
		return config.MaxSurge
	case ratio >= config.MedSurgeRatio:
		return 1.5
	case ratio >= config.LowSurgeRatio:
		return 1.25
	default:
		return 1.0
	}
}
