package tests

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"zibana/internal/domain"
	"zibana/internal/geo"
	"zibana/internal/lifecycle"
	"zibana/internal/redis"
	"zibana/internal/repository"
	"zibana/internal/service"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestRideLifecycle_RequestToCompletion(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.addRider("r1")
	h.addDriver("d1", nearbyLat, nearbyLng)

	requested := h.request(t, "r1", "go")
	ride := requested.Ride
	if ride.Status != domain.RideStatusMatching {
		t.Fatalf("status after request = %s, want matching", ride.Status)
	}
	if ride.MatchingExpiresAt == nil || !ride.MatchingExpiresAt.Equal(testStart.Add(10*time.Second)) {
		t.Errorf("MatchingExpiresAt = %v, want request time + 10s", ride.MatchingExpiresAt)
	}
	if !approx(ride.EstimatedFare, 23.15) {
		t.Errorf("EstimatedFare = %v, want 23.15", ride.EstimatedFare)
	}
	if ride.Currency != "NGN" {
		t.Errorf("Currency = %s, want NGN", ride.Currency)
	}
	if len(requested.Offered) != 1 || requested.Offered[0].DriverID != "d1" {
		t.Fatalf("Offered = %+v, want d1", requested.Offered)
	}
	if h.hub.Count(ride.ID, string(service.NotificationRideOffered)) != 1 {
		t.Error("expected one ride offer broadcast")
	}

	accepted := h.mustAct(t, ride.ID, lifecycle.ActionAcceptRide, lifecycle.RoleDriver, "d1")
	if accepted.Ride.Status != domain.RideStatusAccepted || accepted.Ride.AssignedDriverID != "d1" {
		t.Fatalf("after accept: status=%s driver=%s", accepted.Ride.Status, accepted.Ride.AssignedDriverID)
	}
	if got := h.drivers.Status("d1"); got != domain.DriverStatusOnTrip {
		t.Errorf("driver status = %s, want ON_TRIP", got)
	}

	h.mustAct(t, ride.ID, lifecycle.ActionStartPickup, lifecycle.RoleDriver, "d1")

	// A ping at the pickup point moves the ride through arrival into waiting.
	loc, err := h.driverService.UpdateLocation(ctx, service.LocationUpdate{DriverID: "d1", Lat: pickupLat, Lng: pickupLng})
	if err != nil {
		t.Fatalf("UpdateLocation() error = %v", err)
	}
	if !loc.Arrived || loc.Status != domain.RideStatusWaiting {
		t.Fatalf("location result = %+v, want arrived and waiting", loc)
	}
	if h.telemetry.Count(ride.ID, redis.PhasePickup) != 1 {
		t.Errorf("pickup telemetry = %d samples, want 1", h.telemetry.Count(ride.ID, redis.PhasePickup))
	}

	h.clock.Advance(4 * time.Minute)
	h.mustAct(t, ride.ID, lifecycle.ActionStartTrip, lifecycle.RoleDriver, "d1")

	h.clock.Advance(30 * time.Minute)
	done := h.mustAct(t, ride.ID, lifecycle.ActionCompleteTrip, lifecycle.RoleDriver, "d1")

	c := done.Completion
	if c == nil {
		t.Fatal("expected a completion")
	}
	if !approx(c.Waiting.FreeMinutes, 2) || !approx(c.Waiting.PaidMinutes, 2) || c.Waiting.BonusMinutes != 0 {
		t.Errorf("waiting = %+v, want 2 free and 2 paid", c.Waiting)
	}
	if !approx(c.WaitingFee.Total, 0.60) {
		t.Errorf("waiting fee = %v, want 0.60", c.WaitingFee.Total)
	}
	if c.Fare.Fare.Breakdown.Waiting != c.WaitingFee.Total {
		t.Errorf("charged waiting %v differs from reported %v", c.Fare.Fare.Breakdown.Waiting, c.WaitingFee.Total)
	}
	// 2.50 + 12km*1.20 + 30min*0.25 + 2 paid min*0.30 = 25.00, plus 5 overrun minutes at 0.35.
	if !approx(c.Fare.TotalFare, 26.75) {
		t.Errorf("TotalFare = %v, want 26.75", c.Fare.TotalFare)
	}
	if !approx(c.Fare.DriverEarning+c.Fare.PlatformFee, c.Fare.TotalFare) {
		t.Errorf("split %v + %v does not add up to %v", c.Fare.DriverEarning, c.Fare.PlatformFee, c.Fare.TotalFare)
	}
	if c.EarlyStop != nil {
		t.Errorf("EarlyStop = %+v, want nil without trip telemetry", c.EarlyStop)
	}

	if c.Payment == nil || c.Payment.Status != domain.PaymentStatusSuccess || c.Payment.Kind != domain.PaymentKindFare {
		t.Fatalf("payment = %+v, want successful fare payment", c.Payment)
	}
	if c.Receipt == nil || !approx(c.Receipt.Total, c.Fare.TotalFare) {
		t.Fatalf("receipt = %+v", c.Receipt)
	}

	stored := h.rides.Ride(ride.ID)
	if stored.Status != domain.RideStatusCompleted || !approx(stored.FinalFare, 26.75) {
		t.Errorf("stored ride status=%s fare=%v", stored.Status, stored.FinalFare)
	}
	if got := h.drivers.Status("d1"); got != domain.DriverStatusOnline {
		t.Errorf("driver status after completion = %s, want ONLINE", got)
	}
	if !h.cache.IsAvailable("d1") {
		t.Error("driver should be back in the available pool")
	}
	if h.telemetry.Count(ride.ID, redis.PhasePickup) != 0 {
		t.Error("telemetry should be cleared once the ride ends")
	}
	if h.locks.HeldCount() != 0 {
		t.Errorf("%d locks still held", h.locks.HeldCount())
	}

	// One status event per lifecycle step from matching through completed.
	if got := h.publisher.Types(ride.ID); len(got) != 7 {
		t.Errorf("published %d events %v, want 7", len(got), got)
	}
}

func TestCompleteTrip_UsesTripTelemetry(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ride := h.tripInProgress(t)

	// The trip ends about 3 km short of the destination.
	h.telemetry.Seed(ride.ID, redis.PhaseTrip,
		geo.GpsPoint{Lat: pickupLat, Lng: pickupLng, Timestamp: testStart},
		geo.GpsPoint{Lat: 6.4900, Lng: 3.3950, Timestamp: testStart.Add(10 * time.Minute)},
		geo.GpsPoint{Lat: 6.4550, Lng: 3.4100, Timestamp: testStart.Add(20 * time.Minute)},
	)
	h.clock.Advance(20 * time.Minute)

	res := h.mustAct(t, ride.ID, lifecycle.ActionCompleteTrip, lifecycle.RoleDriver, "d1")
	c := res.Completion

	wantKm := geo.TotalDistanceKm([]geo.GpsPoint{
		{Lat: pickupLat, Lng: pickupLng},
		{Lat: 6.4900, Lng: 3.3950},
		{Lat: 6.4550, Lng: 3.4100},
	})
	if !approx(c.DistanceKm, math.Round(wantKm*100)/100) {
		t.Errorf("DistanceKm = %v, want %v", c.DistanceKm, wantKm)
	}
	if c.EarlyStop == nil {
		t.Fatal("expected an early stop comparison")
	}
	if !approx(c.EarlyStop.OriginalFare, ride.EstimatedFare) {
		t.Errorf("EarlyStop.OriginalFare = %v, want %v", c.EarlyStop.OriginalFare, ride.EstimatedFare)
	}
	if !approx(c.EarlyStop.Difference, c.EarlyStop.OriginalFare-c.EarlyStop.RecalculatedFare) {
		t.Errorf("EarlyStop difference inconsistent: %+v", c.EarlyStop)
	}
}

func TestCompleteTrip_BonusWaitingChargedAsReported(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ride := h.acceptedRide(t)
	h.mustAct(t, ride.ID, lifecycle.ActionStartPickup, lifecycle.RoleDriver, "d1")
	h.mustAct(t, ride.ID, lifecycle.ActionArrive, lifecycle.RoleDriver, "d1")
	h.mustAct(t, ride.ID, lifecycle.ActionStartWaiting, lifecycle.RoleSystem, "")

	h.clock.Advance(10 * time.Minute)
	h.mustAct(t, ride.ID, lifecycle.ActionStartTrip, lifecycle.RoleDriver, "d1")
	h.clock.Advance(30 * time.Minute)
	c := h.mustAct(t, ride.ID, lifecycle.ActionCompleteTrip, lifecycle.RoleDriver, "d1").Completion

	if !approx(c.Waiting.PaidMinutes, 5) || !approx(c.Waiting.BonusMinutes, 3) {
		t.Fatalf("waiting = %+v, want 5 paid and 3 bonus", c.Waiting)
	}
	// 5 * 0.30 + 3 * 0.50
	if !approx(c.WaitingFee.Total, 3.00) {
		t.Errorf("waiting fee = %v, want 3.00", c.WaitingFee.Total)
	}
	if c.Fare.Fare.Breakdown.Waiting != c.WaitingFee.Total {
		t.Errorf("charged waiting %v differs from reported %v", c.Fare.Fare.Breakdown.Waiting, c.WaitingFee.Total)
	}
	// 24.40 ride + 3.00 waiting + 1.75 overrun.
	if !approx(c.Fare.TotalFare, 29.15) {
		t.Errorf("TotalFare = %v, want 29.15", c.Fare.TotalFare)
	}
	if c.Receipt == nil {
		t.Fatal("expected a receipt")
	}
	for _, item := range c.Receipt.Items {
		if item.Label == "Waiting" && item.Amount != c.WaitingFee.Total {
			t.Errorf("receipt waiting line = %v, want %v", item.Amount, c.WaitingFee.Total)
		}
	}
}

func TestPerformAction_Rules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T, h *harness) string
		action  lifecycle.RideAction
		role    lifecycle.ActionRole
		actor   string
		wantErr func(err error) bool
	}{
		{
			name:   "rider cannot accept",
			setup:  func(t *testing.T, h *harness) string { return h.request(t, "r1", "go").Ride.ID },
			action: lifecycle.ActionAcceptRide, role: lifecycle.RoleRider, actor: "r1",
			wantErr: func(err error) bool {
				var ae *service.ActionError
				return errors.As(err, &ae)
			},
		},
		{
			name:   "cannot start trip before arrival",
			setup:  func(t *testing.T, h *harness) string { return h.acceptedRide(t).ID },
			action: lifecycle.ActionStartTrip, role: lifecycle.RoleDriver, actor: "d1",
			wantErr: func(err error) bool {
				var ae *service.ActionError
				return errors.As(err, &ae)
			},
		},
		{
			name:   "other driver cannot start pickup",
			setup:  func(t *testing.T, h *harness) string { return h.acceptedRide(t).ID },
			action: lifecycle.ActionStartPickup, role: lifecycle.RoleDriver, actor: "d2",
			wantErr: func(err error) bool {
				var ae *service.ActionError
				return errors.As(err, &ae)
			},
		},
		{
			name:   "unknown ride",
			setup:  func(t *testing.T, h *harness) string { return "missing" },
			action: lifecycle.ActionStartPickup, role: lifecycle.RoleSystem,
			wantErr: func(err error) bool { return errors.Is(err, repository.ErrNotFound) },
		},
		{
			name:   "empty ride id",
			setup:  func(t *testing.T, h *harness) string { return "" },
			action: lifecycle.ActionStartPickup, role: lifecycle.RoleSystem,
			wantErr: func(err error) bool { return errors.Is(err, service.ErrInvalidRideID) },
		},
		{
			name: "ride lock held",
			setup: func(t *testing.T, h *harness) string {
				id := h.acceptedRide(t).ID
				h.locks.HoldRide = true
				return id
			},
			action: lifecycle.ActionStartPickup, role: lifecycle.RoleDriver, actor: "d1",
			wantErr: func(err error) bool { return errors.Is(err, service.ErrRideBusy) },
		},
		{
			name: "status changed underneath",
			setup: func(t *testing.T, h *harness) string {
				id := h.acceptedRide(t).ID
				h.rides.UpdateStatusError = repository.ErrStaleStatus
				return id
			},
			action: lifecycle.ActionStartPickup, role: lifecycle.RoleDriver, actor: "d1",
			wantErr: func(err error) bool { return errors.Is(err, service.ErrConcurrentUpdate) },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.addRider("r1")
			h.addDriver("d2", nearbyLat, nearbyLng)
			id := tt.setup(t, h)

			_, err := h.act(id, tt.action, tt.role, tt.actor)
			if err == nil || !tt.wantErr(err) {
				t.Errorf("PerformAction() error = %v", err)
			}
		})
	}
}

func TestExpireMatching(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	ride := h.request(t, "r1", "go").Ride

	h.clock.Advance(5 * time.Second)
	n, err := h.rideService.ExpireMatching(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("ExpireMatching() inside window = %d, %v", n, err)
	}

	h.clock.Advance(6 * time.Second)
	n, err = h.rideService.ExpireMatching(context.Background())
	if err != nil {
		t.Fatalf("ExpireMatching() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	stored := h.rides.Ride(ride.ID)
	if stored.Status != domain.RideStatusCancelled {
		t.Errorf("status = %s, want cancelled", stored.Status)
	}
	if stored.CancelReason != service.ReasonNoDriverFound || stored.CancelledBy != string(lifecycle.RoleSystem) {
		t.Errorf("cancelled by %s for %s", stored.CancelledBy, stored.CancelReason)
	}
	if h.payments.CountPayments() != 0 {
		t.Error("an expired ride must not be charged")
	}
}

func TestAccept_AfterMatchingWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", nearbyLat, nearbyLng)
	ride := h.request(t, "r1", "go").Ride

	h.clock.Advance(11 * time.Second)
	_, err := h.act(ride.ID, lifecycle.ActionAcceptRide, lifecycle.RoleDriver, "d1")

	var ae *service.ActionError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want ActionError", err)
	}
	if h.drivers.Status("d1") != domain.DriverStatusOnline {
		t.Error("driver must stay online after a rejected accept")
	}
}

func TestAccept_ScheduledRideRecommendsDeparture(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	h.addDriver("d1", nearbyLat, nearbyLng)

	pickupAt := testStart.Add(2 * time.Hour)
	res, err := h.rideService.RequestRide(context.Background(), service.RideRequest{
		QuoteRequest: service.QuoteRequest{
			PickupLat: pickupLat, PickupLng: pickupLng,
			DestinationLat: destinationLat, DestinationLng: destinationLng,
			ScheduledPickupAt: &pickupAt,
		},
		RiderID: "r1",
	})
	if err != nil {
		t.Fatalf("RequestRide() error = %v", err)
	}
	// The reservation premium is added on top of the on-demand price.
	if !approx(res.Ride.EstimatedFare, 25.15) {
		t.Errorf("EstimatedFare = %v, want 25.15", res.Ride.EstimatedFare)
	}

	accepted := h.mustAct(t, res.Ride.ID, lifecycle.ActionAcceptRide, lifecycle.RoleDriver, "d1")
	if accepted.RecommendedDepartureAt == nil {
		t.Fatal("expected a recommended departure time")
	}
	// 6 minute ETA plus the 10 minute early arrival buffer.
	want := pickupAt.Add(-16 * time.Minute)
	if !accepted.RecommendedDepartureAt.Equal(want) {
		t.Errorf("RecommendedDepartureAt = %v, want %v", accepted.RecommendedDepartureAt, want)
	}
}
