package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"zibana/internal/domain"
	"zibana/internal/lifecycle"
	"zibana/internal/redis"
	"zibana/internal/service"
)

func TestFindCandidates_Eligibility(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	h.addDriver("near-new", nearbyLat, nearbyLng)
	old := h.addDriver("near-old", 6.5250, 3.3795)
	old.VehicleYear = 2015
	h.drivers.AddDriver(old)
	low := h.addDriver("near-low-rating", 6.5260, 3.3790)
	low.Rating = 4.4
	h.drivers.AddDriver(low)
	off := h.addDriver("near-offline", 6.5245, 3.3793)
	off.Status = domain.DriverStatusOffline
	h.drivers.AddDriver(off)
	h.addDriver("far", 6.7000, 3.5000)

	ride := &domain.Ride{ID: "ride-comfort", RideClass: "comfort", PickupLat: pickupLat, PickupLng: pickupLng}
	candidates, err := h.matching.FindCandidates(ctx, ride)
	if err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	if len(candidates) != 1 || candidates[0].DriverID != "near-new" {
		t.Fatalf("candidates = %+v, want only near-new", candidates)
	}

	ride.RideClass = "go"
	candidates, err = h.matching.FindCandidates(ctx, ride)
	if err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("go candidates = %+v, want 3", candidates)
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].DistanceKm < candidates[i-1].DistanceKm {
			t.Error("candidates must be ordered nearest first")
		}
	}

	ride.RideClass = "helicopter"
	if _, err := h.matching.FindCandidates(ctx, ride); !errors.Is(err, service.ErrInvalidRideClass) {
		t.Errorf("unknown class error = %v", err)
	}
}

func TestFindCandidates_UsesDriverCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	d := h.addDriver("d1", nearbyLat, nearbyLng)
	_ = h.cache.SetDriver(ctx, &redis.CachedDriver{
		ID: d.ID, Name: d.Name, Status: string(domain.DriverStatusOnline),
		Rating: d.Rating, Seats: d.Seats, VehicleYear: d.VehicleYear,
	})
	ride := &domain.Ride{ID: "ride-1", RideClass: "go", PickupLat: pickupLat, PickupLng: pickupLng}

	// The cached ONLINE entry is trusted for the search even though the row says offline.
	_ = h.drivers.UpdateStatus(ctx, "d1", domain.DriverStatusOffline)
	candidates, err := h.matching.FindCandidates(ctx, ride)
	if err != nil {
		t.Fatalf("FindCandidates() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %+v, want cached d1", candidates)
	}

	// Claiming re-reads the repository, refuses the driver and drops the stale entry.
	if _, _, err := h.matching.ClaimDriver(ctx, ride, "d1"); !errors.Is(err, service.ErrDriverNotOnline) {
		t.Errorf("ClaimDriver() error = %v, want ErrDriverNotOnline", err)
	}
	if h.locks.HeldCount() != 0 {
		t.Error("a failed claim must release the driver lock")
	}
	if cached, _, _ := h.cache.GetDriversBatch(ctx, []string{"d1"}); len(cached) != 0 {
		t.Error("stale cache entry should be invalidated")
	}
}

func TestAccept_DriverChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		class   string
		driver  func(d *domain.Driver)
		prepare func(h *harness)
		wantErr error
	}{
		{name: "offline driver", class: "go", driver: func(d *domain.Driver) { d.Status = domain.DriverStatusOffline }, wantErr: service.ErrDriverNotOnline},
		{name: "not elite approved", class: "elite", driver: func(d *domain.Driver) {}, wantErr: service.ErrDriverNotEligible},
		{name: "pet ride without approval", class: "pet_ride", driver: func(d *domain.Driver) {}, wantErr: service.ErrDriverNotEligible},
		{name: "driver lock held", class: "go", driver: func(d *domain.Driver) {}, prepare: func(h *harness) { h.locks.HoldDriver("dx") }, wantErr: service.ErrDriverBusy},
		{name: "pet approved", class: "pet_ride", driver: func(d *domain.Driver) { d.PetApproved = true }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.addRider("r1")
			ride := h.request(t, "r1", tt.class).Ride

			d := &domain.Driver{ID: "dx", Name: "X", Status: domain.DriverStatusOnline, Rating: 4.9, Seats: 4, VehicleYear: 2023}
			tt.driver(d)
			h.drivers.AddDriver(d)
			if tt.prepare != nil {
				tt.prepare(h)
			}

			_, err := h.act(ride.ID, lifecycle.ActionAcceptRide, lifecycle.RoleDriver, "dx")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("accept error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("accept error = %v, want %v", err, tt.wantErr)
			}
			if h.rides.Ride(ride.ID).Status != domain.RideStatusMatching {
				t.Error("a refused accept must leave the ride matching")
			}
		})
	}
}

func TestAccept_DriverWithActiveRideCannotTakeAnother(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	first := h.acceptedRide(t)
	h.addRider("r2")
	second := h.request(t, "r2", "go").Ride

	_, err := h.act(second.ID, lifecycle.ActionAcceptRide, lifecycle.RoleDriver, "d1")
	if !errors.Is(err, service.ErrDriverNotOnline) {
		t.Fatalf("error = %v, want ErrDriverNotOnline", err)
	}
	if h.rides.Ride(first.ID).AssignedDriverID != "d1" {
		t.Error("first ride lost its driver")
	}
}

func TestAccept_ConcurrentDriversOneWins(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	const drivers = 8
	for i := 0; i < drivers; i++ {
		h.addDriver(fmt.Sprintf("d%d", i), nearbyLat, nearbyLng)
	}
	ride := h.request(t, "r1", "go").Ride

	var (
		wg       sync.WaitGroup
		wins     int32
		winnerMu sync.Mutex
		winner   string
	)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.act(ride.ID, lifecycle.ActionAcceptRide, lifecycle.RoleDriver, id)
			if err == nil {
				atomic.AddInt32(&wins, 1)
				winnerMu.Lock()
				winner = id
				winnerMu.Unlock()
				return
			}
			var ae *service.ActionError
			if !errors.Is(err, service.ErrRideBusy) && !errors.As(err, &ae) {
				t.Errorf("driver %s: unexpected error %v", id, err)
			}
		}(fmt.Sprintf("d%d", i))
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d drivers won the ride, want exactly 1", wins)
	}
	stored := h.rides.Ride(ride.ID)
	if stored.AssignedDriverID != winner {
		t.Errorf("assigned = %s, winner = %s", stored.AssignedDriverID, winner)
	}
	onTrip := 0
	for i := 0; i < drivers; i++ {
		if h.drivers.Status(fmt.Sprintf("d%d", i)) == domain.DriverStatusOnTrip {
			onTrip++
		}
	}
	if onTrip != 1 {
		t.Errorf("%d drivers on trip, want 1", onTrip)
	}
	if h.locks.HeldCount() != 0 {
		t.Errorf("%d locks still held", h.locks.HeldCount())
	}
}

func TestAccept_SecondAcceptRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ride := h.acceptedRide(t)
	h.addDriver("d2", nearbyLat, nearbyLng)

	_, err := h.act(ride.ID, lifecycle.ActionAcceptRide, lifecycle.RoleDriver, "d2")
	var ae *service.ActionError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want ActionError", err)
	}
	if h.drivers.Status("d2") != domain.DriverStatusOnline {
		t.Error("losing driver must stay online")
	}
}
