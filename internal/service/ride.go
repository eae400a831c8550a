package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"zibana/internal/domain"
	"zibana/internal/fare"
	"zibana/internal/geo"
	"zibana/internal/guard"
	"zibana/internal/lifecycle"
	"zibana/internal/redis"
	"zibana/internal/repository"
	"zibana/internal/routing"
)

const (
	rideLockTTL = 15 * time.Second

	// fallbackSpeedKmh prices a straight-line route when the router is unavailable.
	fallbackSpeedKmh = 30.0

	// ReasonNoDriverFound is recorded on rides whose matching window closed unaccepted.
	ReasonNoDriverFound = "no_driver_found"
)

// Router resolves driving routes between two points.
type Router interface {
	Route(ctx context.Context, origin, destination geo.Coordinates) (routing.Route, error)
	ETA(ctx context.Context, origin, destination geo.Coordinates, trafficBuffer float64) (float64, error)
}

var _ Router = (*routing.Client)(nil)

// RideDeps groups the collaborators of RideService. Cache, Router and Surge
// are optional.
type RideDeps struct {
	Rides     repository.RideRepository
	Users     repository.UserRepository
	Tx        repository.TxRunner
	Locks     redis.LockStoreInterface
	Locations redis.LocationStoreInterface
	Telemetry redis.TelemetryStoreInterface
	Cache     redis.CacheStoreInterface
	Router    Router
	Surge     *SurgeService
	Matching  *MatchingService
	Payments  *PaymentService
	Receipts  *ReceiptService
	Notifier  *NotificationService
	Guard     *guard.Guard
	Catalog   *fare.Catalog
	Rates     fare.Rates

	// ReservationPremium is added to the fare of scheduled rides.
	ReservationPremium float64

	Log *slog.Logger
	Now func() time.Time
}

// RideService owns the ride lifecycle: quoting, requesting, every
// lifecycle action and the money that changes hands when a ride ends.
type RideService struct {
	rides     repository.RideRepository
	users     repository.UserRepository
	tx        repository.TxRunner
	locks     redis.LockStoreInterface
	locations redis.LocationStoreInterface
	telemetry redis.TelemetryStoreInterface
	cache     redis.CacheStoreInterface
	router    Router
	surge     *SurgeService
	matching  *MatchingService
	payments  *PaymentService
	receipts  *ReceiptService
	notifier  *NotificationService
	guard     *guard.Guard
	catalog   *fare.Catalog
	rates     fare.Rates
	premium   float64
	log       *slog.Logger
	now       func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(d RideDeps) *RideService {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Catalog == nil {
		d.Catalog = fare.DefaultCatalog()
	}
	if d.Rates == (fare.Rates{}) {
		d.Rates = fare.DefaultRates()
	}
	if d.Notifier == nil {
		d.Notifier = NewNotificationService(d.Log, nil, nil)
	}
	if d.Guard == nil {
		d.Guard = guard.New(d.Log)
	}
	return &RideService{
		rides:     d.Rides,
		users:     d.Users,
		tx:        d.Tx,
		locks:     d.Locks,
		locations: d.Locations,
		telemetry: d.Telemetry,
		cache:     d.Cache,
		router:    d.Router,
		surge:     d.Surge,
		matching:  d.Matching,
		payments:  d.Payments,
		receipts:  d.Receipts,
		notifier:  d.Notifier,
		guard:     d.Guard,
		catalog:   d.Catalog,
		rates:     d.Rates,
		premium:   d.ReservationPremium,
		log:       d.Log.With("component", "rides"),
		now:       d.Now,
	}
}

// QuoteRequest contains the parameters for pricing a ride.
type QuoteRequest struct {
	PickupLat         float64
	PickupLng         float64
	DestinationLat    float64
	DestinationLng    float64
	RideClass         string // Optional: empty means the default class
	ScheduledPickupAt *time.Time
}

// Route sources reported on a quote.
const (
	RouteSourceRouter       = "router"
	RouteSourceCache        = "cache"
	RouteSourceStraightLine = "straight_line"
)

// Quote is a priced ride before it is requested.
type Quote struct {
	RideClass       string
	DistanceKm      float64
	DurationMinutes float64
	RouteSource     string
	ClassMultiplier float64
	SurgeMultiplier float64
	Fare            fare.Estimate
	Range           fare.Range
}

// Quote prices a trip between two points for a ride class.
func (s *RideService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := validateCoordinates(req); err != nil {
		return nil, err
	}
	if req.RideClass == "" {
		req.RideClass = fare.DefaultClass
	}
	class, ok := s.catalog.Get(req.RideClass)
	if !ok {
		return nil, ErrInvalidRideClass
	}
	if req.ScheduledPickupAt != nil && !req.ScheduledPickupAt.After(s.now()) {
		return nil, ErrInvalidScheduledTime
	}

	pickup := geo.Coordinates{Lat: req.PickupLat, Lng: req.PickupLng}
	destination := geo.Coordinates{Lat: req.DestinationLat, Lng: req.DestinationLng}

	var (
		distanceKm, durationMin float64
		source                  string
		surge                   = 1.0
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		distanceKm, durationMin, source, err = s.resolveRoute(gctx, pickup, destination)
		return err
	})
	g.Go(func() error {
		if s.surge != nil {
			surge = s.surge.GetMultiplier(gctx, req.PickupLat, req.PickupLng)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	multiplier := class.FareMultiplier * surge
	rates := s.ratesFor(req.ScheduledPickupAt != nil).Scaled(multiplier)
	estimate := fare.EstimateFare(distanceKm, durationMin, 0, rates)

	return &Quote{
		RideClass:       class.ID,
		DistanceKm:      distanceKm,
		DurationMinutes: durationMin,
		RouteSource:     source,
		ClassMultiplier: class.FareMultiplier,
		SurgeMultiplier: surge,
		Fare:            estimate,
		Range:           fare.EstimateRange(estimate.TotalFare, durationMin, multiplier),
	}, nil
}

// resolveRoute returns driving distance and duration, preferring the route
// cache, then the router, then a straight line at fallbackSpeedKmh.
func (s *RideService) resolveRoute(ctx context.Context, from, to geo.Coordinates) (float64, float64, string, error) {
	key := redis.RouteKey(from.Lat, from.Lng, to.Lat, to.Lng)
	if s.cache != nil {
		if cached, err := s.cache.GetRoute(ctx, key); err == nil && cached != nil {
			return cached.DistanceKm, cached.DurationMinutes, RouteSourceCache, nil
		}
	}

	if s.router != nil {
		r, err := s.router.Route(ctx, from, to)
		if err == nil {
			if s.cache != nil {
				_ = s.cache.SetRoute(ctx, key, &redis.CachedRoute{DistanceKm: r.DistanceKm, DurationMinutes: r.DurationMinutes})
			}
			return r.DistanceKm, r.DurationMinutes, RouteSourceRouter, nil
		}
		if ctx.Err() != nil {
			return 0, 0, "", ctx.Err()
		}
		s.log.WarnContext(ctx, "routing failed, using straight line", "error", err)
	}

	km := geo.HaversineDistanceKm(from, to)
	return fare.Round2(km), math.Ceil(km / fallbackSpeedKmh * 60), RouteSourceStraightLine, nil
}

// etaMinutes estimates how long a driver at from needs to reach to.
func (s *RideService) etaMinutes(ctx context.Context, from, to geo.Coordinates) float64 {
	if s.router != nil {
		eta, err := s.router.ETA(ctx, from, to, routing.DefaultTrafficBuffer)
		if err == nil {
			return eta
		}
		s.log.WarnContext(ctx, "eta lookup failed, using straight line", "error", err)
	}
	km := geo.HaversineDistanceKm(from, to)
	return math.Ceil(km / fallbackSpeedKmh * 60 * routing.DefaultTrafficBuffer)
}

func (s *RideService) ratesFor(scheduled bool) fare.Rates {
	if scheduled {
		return s.rates.WithPremium(s.premium)
	}
	return s.rates
}

// fareMultiplier is the class multiplier compounded with the surge locked in at request time.
func (s *RideService) fareMultiplier(ride *domain.Ride) float64 {
	m := 1.0
	if class, ok := s.catalog.Get(ride.RideClass); ok {
		m = class.FareMultiplier
	}
	return m * math.Max(1.0, ride.SurgeMultiplier)
}

// RideRequest contains the parameters for requesting a ride.
type RideRequest struct {
	QuoteRequest
	RiderID       string
	PaymentMethod domain.PaymentMethod // Optional: defaults to CASH
}

// RideRequestResult contains the requested ride and the drivers it was offered to.
type RideRequestResult struct {
	Ride    *domain.Ride
	Quote   *Quote
	Offered []Candidate
}

// RequestRide checks the rider's account, prices the trip, stores the ride
// and opens the matching window.
func (s *RideService) RequestRide(ctx context.Context, req RideRequest) (*RideRequestResult, error) {
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}

	user, err := s.users.GetByID(ctx, req.RiderID)
	if err != nil {
		return nil, err
	}
	country := guard.CountryConfig(user.CountryCode)

	verdict := s.guard.ValidateRideRequest(guard.RideRequestInput{
		UserID:           user.ID,
		IsTester:         user.IsTester,
		WalletCurrency:   user.Currency,
		TripCurrency:     country.Currency,
		CountryCode:      country.Code,
		AvailableBalance: user.WalletBalance,
		WalletFrozen:     user.WalletFrozen,
		UserSuspended:    user.Suspended,
		PaymentSource:    req.PaymentMethod,
	})
	if !verdict.Allowed {
		return nil, &GuardError{Result: verdict}
	}

	quote, err := s.Quote(ctx, req.QuoteRequest)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ride := &domain.Ride{
		ID:                   uuid.New().String(),
		RiderID:              req.RiderID,
		PickupLat:            req.PickupLat,
		PickupLng:            req.PickupLng,
		DestinationLat:       req.DestinationLat,
		DestinationLng:       req.DestinationLng,
		RideClass:            quote.RideClass,
		Status:               domain.RideStatusRequested,
		SurgeMultiplier:      quote.SurgeMultiplier,
		PaymentMethod:        req.PaymentMethod,
		Currency:             country.Currency,
		EstimatedDistanceKm:  quote.DistanceKm,
		EstimatedDurationMin: quote.DurationMinutes,
		EstimatedFare:        quote.Fare.TotalFare,
		ScheduledPickupAt:    req.ScheduledPickupAt,
		CreatedAt:            now,
	}
	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, err
	}

	result, err := s.PerformAction(ctx, ActionRequest{
		RideID:  ride.ID,
		Action:  lifecycle.ActionRequestRide,
		Role:    lifecycle.RoleRider,
		ActorID: req.RiderID,
	})
	if err != nil {
		return nil, err
	}
	ride = result.Ride

	offered, err := s.matching.FindCandidates(ctx, ride)
	if err != nil {
		s.log.WarnContext(ctx, "find candidates failed", "ride_id", ride.ID, "error", err)
	}
	if len(offered) > 0 {
		ids := make([]string, len(offered))
		for i, c := range offered {
			ids[i] = c.DriverID
		}
		s.notifier.NotifyRideOffered(ctx, ride, ids)
	}

	s.log.InfoContext(ctx, "ride requested",
		"ride_id", ride.ID,
		"rider_id", ride.RiderID,
		"ride_class", ride.RideClass,
		"estimated_fare", ride.EstimatedFare,
		"surge", ride.SurgeMultiplier,
		"offered", len(offered),
	)

	return &RideRequestResult{Ride: ride, Quote: quote, Offered: offered}, nil
}

// ActionRequest asks for one lifecycle step on a ride.
type ActionRequest struct {
	RideID  string
	Action  lifecycle.RideAction
	Role    lifecycle.ActionRole
	ActorID string // driver ID when Role is driver
	Reason  string // driver cancellation reason
}

// ActionResult is the ride after an action, with the money outcome of
// completions and cancellations.
type ActionResult struct {
	Ride                   *domain.Ride
	Completion             *Completion
	Cancellation           *CancellationOutcome
	RecommendedDepartureAt *time.Time
}

// PerformAction validates and applies a lifecycle action. Actions on one
// ride are serialised by a ride lock, and the status write is conditional
// on the status that was read.
func (s *RideService) PerformAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}

	lock, err := s.locks.AcquireRideLock(ctx, req.RideID, rideLockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, ErrRideBusy
		}
		return nil, err
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lock); err != nil {
			s.log.WarnContext(ctx, "release ride lock failed", "ride_id", req.RideID, "error", err)
		}
	}()

	ride, err := s.rides.GetByID(ctx, req.RideID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	opts := lifecycle.ActionOptions{
		IsAssignedDriver:  req.Role == lifecycle.RoleDriver && req.ActorID != "" && ride.AssignedDriverID == req.ActorID,
		MatchingExpiresAt: ride.MatchingExpiresAt,
		DriverAcceptedAt:  ride.DriverAcceptedAt,
	}
	if req.Action == lifecycle.ActionCancelRide {
		opts.DriverMovement = s.driverMovement(ctx, ride, now)
	}

	validation := lifecycle.ValidateAction(req.Action, req.Role, &ride.Status, opts, now)
	if !validation.Allowed {
		return nil, &ActionError{Action: req.Action, Role: req.Role, Validation: validation}
	}

	to, _ := lifecycle.TargetStatus(req.Action)
	if tr := lifecycle.IsValidTransition(ride.Status, to); !tr.Valid {
		return nil, &TransitionError{Result: tr}
	}

	from := ride.Status
	result := &ActionResult{Ride: ride}

	switch req.Action {
	case lifecycle.ActionAcceptRide:
		if err := s.accept(ctx, ride, req.ActorID, now, result); err != nil {
			return nil, err
		}
	case lifecycle.ActionCompleteTrip:
		if err := s.complete(ctx, ride, now, result); err != nil {
			return nil, err
		}
	case lifecycle.ActionCancelRide:
		if err := s.cancel(ctx, ride, req, validation, now, result); err != nil {
			return nil, err
		}
	default:
		applyTimestamps(ride, req.Action, now)
		ride.Status = to
		if err := s.writeStatus(ctx, ride, from); err != nil {
			return nil, err
		}
	}

	s.log.InfoContext(ctx, "ride action applied",
		"ride_id", ride.ID,
		"action", req.Action,
		"role", req.Role,
		"from", from,
		"to", ride.Status,
	)

	if ride.Status == domain.RideStatusCancelled {
		s.notifier.NotifyRideCancelled(ctx, ride)
	} else {
		s.notifier.NotifyStatusChanged(ctx, ride)
	}
	return result, nil
}

// applyTimestamps stamps the moment a lifecycle stage begins.
func applyTimestamps(ride *domain.Ride, action lifecycle.RideAction, now time.Time) {
	switch action {
	case lifecycle.ActionRequestRide:
		exp := lifecycle.MatchingExpiration(now)
		ride.MatchingExpiresAt = &exp
	case lifecycle.ActionStartPickup:
		ride.EnRouteStartedAt = &now
	case lifecycle.ActionArrive:
		ride.ArrivedAt = &now
	case lifecycle.ActionStartWaiting:
		ride.WaitingStartedAt = &now
	case lifecycle.ActionStartTrip:
		ride.StartedAt = &now
		ride.LastMovementAt = &now
	}
}

func (s *RideService) accept(ctx context.Context, ride *domain.Ride, driverID string, now time.Time, result *ActionResult) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	lock, driver, err := s.matching.ClaimDriver(ctx, ride, driverID)
	if err != nil {
		return err
	}
	defer s.matching.Release(context.WithoutCancel(ctx), lock)

	from := ride.Status
	ride.Status = domain.RideStatusAccepted
	ride.AssignedDriverID = driver.ID
	ride.DriverAcceptedAt = &now

	err = s.tx.WithinTx(ctx, func(st repository.Stores) error {
		if err := st.Rides.UpdateStatus(ctx, ride, from); err != nil {
			return err
		}
		return st.Drivers.UpdateStatus(ctx, driver.ID, domain.DriverStatusOnTrip)
	})
	if err != nil {
		return staleAsConflict(err)
	}
	s.matching.MarkAssigned(ctx, driver.ID)

	if ride.IsScheduled() && s.locations != nil {
		if loc, err := s.locations.GetLocation(ctx, driver.ID); err == nil {
			eta := s.etaMinutes(ctx,
				geo.Coordinates{Lat: loc.Lat, Lng: loc.Lng},
				geo.Coordinates{Lat: ride.PickupLat, Lng: ride.PickupLng},
			)
			dep := fare.RecommendedDepartureTime(*ride.ScheduledPickupAt, eta, fare.DefaultEarlyArrivalBufferMinutes)
			result.RecommendedDepartureAt = &dep
		}
	}
	return nil
}

// endRideTx writes a terminal ride and frees its driver in one transaction.
func (s *RideService) endRideTx(ctx context.Context, ride *domain.Ride, from domain.RideStatus, extra func(st repository.Stores) error) error {
	err := s.tx.WithinTx(ctx, func(st repository.Stores) error {
		if err := st.Rides.UpdateStatus(ctx, ride, from); err != nil {
			return err
		}
		if ride.AssignedDriverID != "" {
			if err := st.Drivers.UpdateStatus(ctx, ride.AssignedDriverID, domain.DriverStatusOnline); err != nil {
				return err
			}
		}
		if extra != nil {
			return extra(st)
		}
		return nil
	})
	if err != nil {
		return staleAsConflict(err)
	}
	if ride.AssignedDriverID != "" {
		s.matching.MarkAvailable(ctx, ride.AssignedDriverID)
	}
	return nil
}

func (s *RideService) writeStatus(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error {
	return staleAsConflict(s.rides.UpdateStatus(ctx, ride, from))
}

func staleAsConflict(err error) error {
	if errors.Is(err, repository.ErrStaleStatus) {
		return ErrConcurrentUpdate
	}
	return err
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	return s.rides.GetByID(ctx, rideID)
}

// ListRides returns recent rides, optionally only those in the given statuses.
func (s *RideService) ListRides(ctx context.Context, statuses ...domain.RideStatus) ([]*domain.Ride, error) {
	if len(statuses) == 0 {
		return s.rides.GetAll(ctx)
	}
	return s.rides.ListByStatus(ctx, statuses...)
}

// ExpireMatching cancels every ride whose matching window closed without a
// driver. It returns how many rides were expired.
func (s *RideService) ExpireMatching(ctx context.Context) (int, error) {
	rides, err := s.rides.ListByStatus(ctx, domain.RideStatusMatching)
	if err != nil {
		return 0, err
	}

	now := s.now()
	expired := 0
	for _, ride := range rides {
		if !lifecycle.IsMatchingExpired(ride.MatchingExpiresAt, now) {
			continue
		}
		if err := s.expire(ctx, ride.ID, now); err != nil {
			if errors.Is(err, ErrRideBusy) || errors.Is(err, ErrConcurrentUpdate) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *RideService) expire(ctx context.Context, rideID string, now time.Time) error {
	lock, err := s.locks.AcquireRideLock(ctx, rideID, rideLockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return ErrRideBusy
		}
		return err
	}
	defer func() { _ = s.locks.Release(context.WithoutCancel(ctx), lock) }()

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.Status != domain.RideStatusMatching {
		return ErrConcurrentUpdate
	}
	if tr := lifecycle.IsValidTransition(ride.Status, domain.RideStatusCancelled); !tr.Valid {
		return &TransitionError{Result: tr}
	}

	ride.Status = domain.RideStatusCancelled
	ride.CancelledAt = &now
	ride.CancelledBy = string(lifecycle.RoleSystem)
	ride.CancelReason = ReasonNoDriverFound
	if err := s.writeStatus(ctx, ride, domain.RideStatusMatching); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "matching window expired", "ride_id", ride.ID)
	s.notifier.NotifyRideCancelled(ctx, ride)
	return nil
}

func validateCoordinates(req QuoteRequest) error {
	if !isValidLatitude(req.PickupLat) || !isValidLongitude(req.PickupLng) {
		return ErrInvalidPickupLocation
	}
	if !isValidLatitude(req.DestinationLat) || !isValidLongitude(req.DestinationLng) {
		return ErrInvalidDestinationLocation
	}
	return nil
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
