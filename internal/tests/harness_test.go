package tests

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"zibana/internal/domain"
	"zibana/internal/fare"
	"zibana/internal/lifecycle"
	"zibana/internal/routing"
	"zibana/internal/service"
)

// Lagos coordinates used throughout: pickup on the mainland, destination on
// the island, and a driver parked a few hundred metres from pickup.
const (
	pickupLat      = 6.5244
	pickupLng      = 3.3792
	destinationLat = 6.4281
	destinationLng = 3.4219
	nearbyLat      = 6.5280
	nearbyLng      = 3.3800
)

var testStart = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type harness struct {
	clock     *Clock
	rides     *MockRideRepository
	drivers   *MockDriverRepository
	users     *MockUserRepository
	payments  *MockPaymentRepository
	receipts  *MockReceiptRepository
	tx        *MockTxRunner
	locks     *MockLockStore
	locations *MockLocationStore
	cache     *MockCacheStore
	telemetry *MockTelemetryStore
	router    *MockRouter
	psp       *MockPSP
	publisher *MockPublisher
	hub       *MockBroadcaster

	rideService    *service.RideService
	paymentService *service.PaymentService
	matching       *service.MatchingService
	tracking       *service.TrackingService
	driverService  *service.DriverService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:     NewClock(testStart),
		rides:     NewMockRideRepository(),
		drivers:   NewMockDriverRepository(),
		users:     NewMockUserRepository(),
		payments:  NewMockPaymentRepository(),
		receipts:  NewMockReceiptRepository(),
		locks:     NewMockLockStore(),
		locations: NewMockLocationStore(),
		cache:     NewMockCacheStore(),
		telemetry: NewMockTelemetryStore(),
		router:    &MockRouter{Result: routing.Route{DistanceKm: 12, DurationMinutes: 25}, ETAMinutes: 6},
		psp:       NewMockPSP(),
		publisher: &MockPublisher{},
		hub:       &MockBroadcaster{},
	}
	h.tx = &MockTxRunner{Rides: h.rides, Drivers: h.drivers, Payments: h.payments}

	log := discardLogger()
	catalog := fare.DefaultCatalog()
	notifier := service.NewNotificationService(log, h.hub, h.publisher)

	h.paymentService = service.NewPaymentService(h.payments, h.psp, log)
	h.matching = service.NewMatchingService(h.locations, h.locks, h.cache, h.drivers, h.rides, catalog, 5, log)
	h.rideService = service.NewRideService(service.RideDeps{
		Rides:              h.rides,
		Users:              h.users,
		Tx:                 h.tx,
		Locks:              h.locks,
		Locations:          h.locations,
		Telemetry:          h.telemetry,
		Cache:              h.cache,
		Router:             h.router,
		Surge:              service.NewSurgeService(h.locations, h.rides, service.DefaultSurgeConfig(), log),
		Matching:           h.matching,
		Payments:           h.paymentService,
		Receipts:           service.NewReceiptService(h.receipts, notifier, log),
		Notifier:           notifier,
		Catalog:            catalog,
		ReservationPremium: 2.00,
		Log:                log,
		Now:                h.clock.Now,
	})
	h.tracking = service.NewTrackingService(h.rides, h.rideService, h.locations, h.telemetry, notifier, service.DefaultTrackingConfig(), log)
	h.driverService = service.NewDriverService(h.locations, h.cache, h.drivers, h.rides, h.tracking, catalog, log)
	return h
}

func (h *harness) addRider(id string) *domain.User {
	u := &domain.User{
		ID:            id,
		Name:          "Rider " + id,
		Phone:         "+234800" + id,
		CountryCode:   "NG",
		Currency:      "NGN",
		WalletBalance: 5000,
	}
	h.users.AddUser(u)
	return u
}

func (h *harness) addDriver(id string, lat, lng float64) *domain.Driver {
	d := &domain.Driver{
		ID:          id,
		Name:        "Driver " + id,
		Phone:       "+234900" + id,
		Status:      domain.DriverStatusOnline,
		Rating:      4.9,
		Seats:       4,
		VehicleYear: 2023,
	}
	h.drivers.AddDriver(d)
	h.locations.SetLocation(id, lat, lng)
	return d
}

func (h *harness) request(t *testing.T, riderID, class string) *service.RideRequestResult {
	t.Helper()
	res, err := h.rideService.RequestRide(context.Background(), service.RideRequest{
		QuoteRequest: service.QuoteRequest{
			PickupLat:      pickupLat,
			PickupLng:      pickupLng,
			DestinationLat: destinationLat,
			DestinationLng: destinationLng,
			RideClass:      class,
		},
		RiderID:       riderID,
		PaymentMethod: domain.PaymentMethodWallet,
	})
	if err != nil {
		t.Fatalf("RequestRide() error = %v", err)
	}
	return res
}

func (h *harness) act(rideID string, action lifecycle.RideAction, role lifecycle.ActionRole, actorID string) (*service.ActionResult, error) {
	return h.rideService.PerformAction(context.Background(), service.ActionRequest{
		RideID:  rideID,
		Action:  action,
		Role:    role,
		ActorID: actorID,
	})
}

func (h *harness) mustAct(t *testing.T, rideID string, action lifecycle.RideAction, role lifecycle.ActionRole, actorID string) *service.ActionResult {
	t.Helper()
	res, err := h.act(rideID, action, role, actorID)
	if err != nil {
		t.Fatalf("%s by %s: %v", action, role, err)
	}
	return res
}

// acceptedRide requests a go ride for r1 and has d1 accept it.
func (h *harness) acceptedRide(t *testing.T) *domain.Ride {
	t.Helper()
	h.addRider("r1")
	h.addDriver("d1", nearbyLat, nearbyLng)
	ride := h.request(t, "r1", "go").Ride
	return h.mustAct(t, ride.ID, lifecycle.ActionAcceptRide, lifecycle.RoleDriver, "d1").Ride
}

// tripInProgress drives a ride through pickup, arrival and waiting to the
// start of the trip.
func (h *harness) tripInProgress(t *testing.T) *domain.Ride {
	t.Helper()
	ride := h.acceptedRide(t)
	h.mustAct(t, ride.ID, lifecycle.ActionStartPickup, lifecycle.RoleDriver, "d1")
	h.mustAct(t, ride.ID, lifecycle.ActionArrive, lifecycle.RoleDriver, "d1")
	h.mustAct(t, ride.ID, lifecycle.ActionStartWaiting, lifecycle.RoleSystem, "")
	return h.mustAct(t, ride.ID, lifecycle.ActionStartTrip, lifecycle.RoleDriver, "d1").Ride
}
