package service

import (
	"context"
	"log/slog"
	"time"

	"zibana/internal/domain"
	"zibana/internal/geo"
	"zibana/internal/lifecycle"
	"zibana/internal/redis"
	"zibana/internal/repository"
)

// TrackingConfig tunes location-driven automation.
type TrackingConfig struct {
	ArrivalRadiusKm     float64
	IdleThresholdMeters float64
	MonitorInterval     time.Duration
}

// DefaultTrackingConfig returns the standard tracking thresholds.
func DefaultTrackingConfig() TrackingConfig {
	return TrackingConfig{
		ArrivalRadiusKm:     0.1,
		IdleThresholdMeters: geo.DefaultIdleThresholdMeters,
		MonitorInterval:     30 * time.Second,
	}
}

// TrackingService turns driver GPS pings into ride telemetry, automatic
// arrival, and idle-trip safety alerts.
type TrackingService struct {
	rideRepo      repository.RideRepository
	rides         *RideService
	locationStore redis.LocationStoreInterface
	telemetry     redis.TelemetryStoreInterface
	notifier      *NotificationService
	config        TrackingConfig
	log           *slog.Logger
	now           func() time.Time
}

// NewTrackingService creates a new TrackingService.
func NewTrackingService(
	rideRepo repository.RideRepository,
	rides *RideService,
	locationStore redis.LocationStoreInterface,
	telemetry redis.TelemetryStoreInterface,
	notifier *NotificationService,
	config TrackingConfig,
	log *slog.Logger,
) *TrackingService {
	if log == nil {
		log = slog.Default()
	}
	return &TrackingService{
		rideRepo:      rideRepo,
		rides:         rides,
		locationStore: locationStore,
		telemetry:     telemetry,
		notifier:      notifier,
		config:        config,
		log:           log.With("component", "tracking"),
		now:           rides.now,
	}
}

// LocationUpdate is one GPS ping from a driver.
type LocationUpdate struct {
	DriverID  string
	Lat       float64
	Lng       float64
	Timestamp time.Time // Optional: zero means now
}

// LocationResult reports what a ping changed.
type LocationResult struct {
	RideID    string
	Status    domain.RideStatus
	Phase     redis.TelemetryPhase
	Arrived   bool
	AlertSent bool
}

// IngestLocation records a driver ping and advances the driver's active ride
// when the ping shows arrival or movement.
func (s *TrackingService) IngestLocation(ctx context.Context, u LocationUpdate) (*LocationResult, error) {
	if u.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if !isValidLatitude(u.Lat) || !isValidLongitude(u.Lng) {
		return nil, ErrInvalidLocation
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = s.now()
	}

	if err := s.locationStore.UpdateLocation(ctx, u.DriverID, u.Lat, u.Lng); err != nil {
		return nil, err
	}

	ride, err := s.rideRepo.GetActiveByDriverID(ctx, u.DriverID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return &LocationResult{}, nil
	}

	result := &LocationResult{RideID: ride.ID, Status: ride.Status}
	phase, ok := telemetryPhase(ride.Status)
	if !ok {
		return result, nil
	}
	result.Phase = phase

	point := geo.GpsPoint{Lat: u.Lat, Lng: u.Lng, Timestamp: u.Timestamp}
	if err := s.telemetry.Append(ctx, ride.ID, phase, point); err != nil {
		return nil, err
	}

	switch ride.Status {
	case domain.RideStatusDriverEnRoute:
		pickup := geo.Coordinates{Lat: ride.PickupLat, Lng: ride.PickupLng}
		if geo.HaversineDistanceKm(point.Coordinates(), pickup) <= s.config.ArrivalRadiusKm {
			arrived, err := s.arrive(ctx, ride.ID)
			if err != nil {
				s.log.WarnContext(ctx, "automatic arrival failed", "ride_id", ride.ID, "error", err)
				break
			}
			result.Arrived = true
			result.Status = arrived.Status
		}

	case domain.RideStatusInProgress:
		if err := s.recordMovement(ctx, ride, u.Timestamp); err != nil {
			return nil, err
		}
		sent, err := s.checkIdle(ctx, ride)
		if err != nil {
			return nil, err
		}
		result.AlertSent = sent
	}

	return result, nil
}

// arrive marks the driver as arrived and starts the free waiting period.
func (s *TrackingService) arrive(ctx context.Context, rideID string) (*domain.Ride, error) {
	res, err := s.rides.PerformAction(ctx, ActionRequest{
		RideID: rideID,
		Action: lifecycle.ActionArrive,
		Role:   lifecycle.RoleSystem,
	})
	if err != nil {
		return nil, err
	}

	res, err = s.rides.PerformAction(ctx, ActionRequest{
		RideID: rideID,
		Action: lifecycle.ActionStartWaiting,
		Role:   lifecycle.RoleSystem,
	})
	if err != nil {
		return nil, err
	}
	return res.Ride, nil
}

// recordMovement advances LastMovementAt when the trip has covered more than
// the idle threshold since the last recorded movement.
func (s *TrackingService) recordMovement(ctx context.Context, ride *domain.Ride, at time.Time) error {
	points, err := s.telemetry.Points(ctx, ride.ID, redis.PhaseTrip)
	if err != nil {
		return err
	}

	since := ride.StartedAt
	if ride.LastMovementAt != nil {
		since = ride.LastMovementAt
	}
	var window []geo.GpsPoint
	for _, p := range points {
		if since == nil || !p.Timestamp.Before(*since) {
			window = append(window, p)
		}
	}

	if geo.IsIdle(window, s.config.IdleThresholdMeters) {
		return nil
	}

	if err := s.rideRepo.RecordMovement(ctx, ride.ID, at); err != nil {
		return err
	}
	ride.LastMovementAt = &at
	return nil
}

// checkIdle raises a safety alert for an in-progress ride that has not moved
// for lifecycle.IdleAlertMinutes.
func (s *TrackingService) checkIdle(ctx context.Context, ride *domain.Ride) (bool, error) {
	now := s.now()
	if !lifecycle.ShouldTriggerSafetyAlert(ride.LastMovementAt, ride.IdleAlertSentAt, ride.Status, now) {
		return false, nil
	}

	// The stamp fails when a ping recorded movement after ride was read.
	marked, err := s.rideRepo.MarkIdleAlert(ctx, ride.ID, now, ride.LastMovementAt, ride.IdleAlertSentAt)
	if err != nil || !marked {
		return false, err
	}
	ride.IdleAlertSentAt = &now

	idleFor := now.Sub(*ride.LastMovementAt)
	s.log.WarnContext(ctx, "trip idle, safety alert sent",
		"ride_id", ride.ID,
		"driver_id", ride.AssignedDriverID,
		"idle_minutes", int(idleFor.Minutes()),
	)
	s.notifier.NotifySafetyAlert(ctx, ride, idleFor)
	return true, nil
}

// CheckIdleRides scans every in-progress ride for idle alerts. It returns how
// many alerts were sent.
func (s *TrackingService) CheckIdleRides(ctx context.Context) (int, error) {
	rides, err := s.rideRepo.ListByStatus(ctx, domain.RideStatusInProgress)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, ride := range rides {
		ok, err := s.checkIdle(ctx, ride)
		if err != nil {
			s.log.ErrorContext(ctx, "idle check failed", "ride_id", ride.ID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// RunSafetyMonitor expires stale matching windows and checks idle trips on
// every tick until ctx is done.
func (s *TrackingService) RunSafetyMonitor(ctx context.Context) {
	interval := s.config.MonitorInterval
	if interval <= 0 {
		interval = DefaultTrackingConfig().MonitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("safety monitor started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("safety monitor stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *TrackingService) sweep(ctx context.Context) {
	if n, err := s.rides.ExpireMatching(ctx); err != nil {
		s.log.ErrorContext(ctx, "expire matching failed", "error", err)
	} else if n > 0 {
		s.log.InfoContext(ctx, "expired unmatched rides", "count", n)
	}

	if _, err := s.CheckIdleRides(ctx); err != nil {
		s.log.ErrorContext(ctx, "idle scan failed", "error", err)
	}
}

// TrackingSnapshot summarises a ride's telemetry.
type TrackingSnapshot struct {
	RideID            string
	Status            domain.RideStatus
	PickupDistanceKm  float64
	PickupDurationMin float64
	TripDistanceKm    float64
	TripDurationMin   float64
	AverageSpeedKmh   float64
	Idle              bool
	LastPoint         *geo.GpsPoint
	LastMovementAt    *time.Time
	IdleAlertSentAt   *time.Time
}

// Snapshot computes distance, duration, speed and idleness from a ride's telemetry.
func (s *TrackingService) Snapshot(ctx context.Context, rideID string) (*TrackingSnapshot, error) {
	ride, err := s.rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	pickup, err := s.telemetry.Points(ctx, rideID, redis.PhasePickup)
	if err != nil {
		return nil, err
	}
	trip, err := s.telemetry.Points(ctx, rideID, redis.PhaseTrip)
	if err != nil {
		return nil, err
	}

	snap := &TrackingSnapshot{
		RideID:            ride.ID,
		Status:            ride.Status,
		PickupDistanceKm:  geo.TotalDistanceKm(pickup),
		PickupDurationMin: geo.DurationMinutes(pickup),
		TripDistanceKm:    geo.TotalDistanceKm(trip),
		TripDurationMin:   geo.DurationMinutes(trip),
		AverageSpeedKmh:   geo.AverageSpeedKmh(trip),
		LastMovementAt:    ride.LastMovementAt,
		IdleAlertSentAt:   ride.IdleAlertSentAt,
	}

	latest := trip
	if len(latest) == 0 {
		latest = pickup
	}
	if n := len(latest); n > 0 {
		last := latest[n-1]
		snap.LastPoint = &last
		snap.Idle = geo.IsIdle(tail(latest, idleWindow), geo.DefaultIdleThresholdMeters)
	}
	return snap, nil
}

// idleWindow is how many recent samples the snapshot idle check looks at.
const idleWindow = 5

func tail(points []geo.GpsPoint, n int) []geo.GpsPoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}

func telemetryPhase(status domain.RideStatus) (redis.TelemetryPhase, bool) {
	switch status {
	case domain.RideStatusAccepted, domain.RideStatusDriverEnRoute,
		domain.RideStatusArrived, domain.RideStatusWaiting:
		return redis.PhasePickup, true
	case domain.RideStatusInProgress:
		return redis.PhaseTrip, true
	}
	return "", false
}
