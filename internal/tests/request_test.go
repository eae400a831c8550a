package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"zibana/internal/domain"
	"zibana/internal/guard"
	"zibana/internal/service"
)

func quoteReq(class string) service.QuoteRequest {
	return service.QuoteRequest{
		PickupLat:      pickupLat,
		PickupLng:      pickupLng,
		DestinationLat: destinationLat,
		DestinationLng: destinationLng,
		RideClass:      class,
	}
}

func TestRequestRide_GuardRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		user     func(u *domain.User)
		method   domain.PaymentMethod
		wantCode string
	}{
		{name: "frozen wallet", user: func(u *domain.User) { u.WalletFrozen = true }, wantCode: guard.CodeWalletFrozen},
		{name: "suspended", user: func(u *domain.User) { u.Suspended = true }, wantCode: guard.CodeUserSuspended},
		{name: "wallet in another currency", user: func(u *domain.User) { u.Currency = "USD" }, wantCode: guard.CodeCurrencyMismatch},
		{name: "below minimum balance", user: func(u *domain.User) { u.WalletBalance = 499 }, wantCode: guard.CodeInsufficientBalance},
		{name: "tester without test wallet", user: func(u *domain.User) { u.IsTester = true }, method: domain.PaymentMethodCard, wantCode: guard.CodeInvalidPaymentSource},
		{name: "test wallet for regular user", user: func(u *domain.User) {}, method: domain.PaymentMethodTestWallet, wantCode: guard.CodeInvalidPaymentSource},
		{name: "frozen beats low balance", user: func(u *domain.User) { u.WalletFrozen = true; u.WalletBalance = 0 }, wantCode: guard.CodeWalletFrozen},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			u := h.addRider("r1")
			tt.user(u)
			h.users.AddUser(u)

			_, err := h.rideService.RequestRide(context.Background(), service.RideRequest{
				QuoteRequest:  quoteReq("go"),
				RiderID:       "r1",
				PaymentMethod: tt.method,
			})
			var ge *service.GuardError
			if !errors.As(err, &ge) {
				t.Fatalf("error = %v, want GuardError", err)
			}
			if ge.Result.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", ge.Result.Code, tt.wantCode)
			}
			if h.rides.CreateCallCount != 0 {
				t.Error("a rejected request must not create a ride")
			}
		})
	}
}

func TestRequestRide_TesterWithTestWallet(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	u := h.addRider("r1")
	u.IsTester = true
	h.users.AddUser(u)

	res, err := h.rideService.RequestRide(context.Background(), service.RideRequest{
		QuoteRequest:  quoteReq("go"),
		RiderID:       "r1",
		PaymentMethod: domain.PaymentMethodTestWallet,
	})
	if err != nil {
		t.Fatalf("RequestRide() error = %v", err)
	}
	if res.Ride.PaymentMethod != domain.PaymentMethodTestWallet {
		t.Errorf("PaymentMethod = %s", res.Ride.PaymentMethod)
	}
	if len(res.Offered) != 0 {
		t.Errorf("Offered = %+v, want none without drivers", res.Offered)
	}
}

func TestRequestRide_Validation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.addRider("r1")
	ctx := context.Background()

	if _, err := h.rideService.RequestRide(ctx, service.RideRequest{QuoteRequest: quoteReq("go")}); !errors.Is(err, service.ErrInvalidRiderID) {
		t.Errorf("missing rider error = %v", err)
	}

	bad := quoteReq("go")
	bad.PickupLat = 95
	if _, err := h.rideService.RequestRide(ctx, service.RideRequest{QuoteRequest: bad, RiderID: "r1"}); !errors.Is(err, service.ErrInvalidPickupLocation) {
		t.Errorf("bad pickup error = %v", err)
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("router then cache", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		q, err := h.rideService.Quote(ctx, quoteReq(""))
		if err != nil {
			t.Fatalf("Quote() error = %v", err)
		}
		if q.RouteSource != service.RouteSourceRouter || q.RideClass != "go" {
			t.Errorf("quote = %+v", q)
		}
		if !approx(q.Fare.TotalFare, 23.15) || q.Range.Max <= q.Range.Min {
			t.Errorf("fare = %+v range = %+v", q.Fare, q.Range)
		}

		q, err = h.rideService.Quote(ctx, quoteReq("comfort"))
		if err != nil {
			t.Fatalf("Quote() error = %v", err)
		}
		if q.RouteSource != service.RouteSourceCache || h.router.RouteCallCount != 1 {
			t.Errorf("second quote source = %s, router calls = %d", q.RouteSource, h.router.RouteCallCount)
		}
		// Comfort scales base, distance and time by 1.5: 3.75 + 21.60 + 9.375.
		if !approxTo(q.Fare.TotalFare, 34.725, 0.006) {
			t.Errorf("comfort fare = %v, want about 34.72", q.Fare.TotalFare)
		}
	})

	t.Run("straight line when the router fails", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.router.Err = errors.New("osrm down")

		q, err := h.rideService.Quote(ctx, quoteReq("go"))
		if err != nil {
			t.Fatalf("Quote() error = %v", err)
		}
		if q.RouteSource != service.RouteSourceStraightLine {
			t.Errorf("source = %s", q.RouteSource)
		}
		if q.DistanceKm < 10 || q.DistanceKm > 12 || q.DurationMinutes <= 0 {
			t.Errorf("straight line distance = %v, duration = %v", q.DistanceKm, q.DurationMinutes)
		}
		if h.cache.RouteCount() != 0 {
			t.Error("fallback routes must not be cached")
		}
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		if _, err := h.rideService.Quote(ctx, quoteReq("helicopter")); !errors.Is(err, service.ErrInvalidRideClass) {
			t.Errorf("unknown class error = %v", err)
		}
		past := testStart.Add(-time.Minute)
		req := quoteReq("go")
		req.ScheduledPickupAt = &past
		if _, err := h.rideService.Quote(ctx, req); !errors.Is(err, service.ErrInvalidScheduledTime) {
			t.Errorf("past reservation error = %v", err)
		}
		req = quoteReq("go")
		req.DestinationLng = 200
		if _, err := h.rideService.Quote(ctx, req); !errors.Is(err, service.ErrInvalidDestinationLocation) {
			t.Errorf("bad destination error = %v", err)
		}
	})

	t.Run("surge from waiting riders", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.addDriver("d1", nearbyLat, nearbyLng)
		for _, id := range []string{"a", "b"} {
			h.rides.AddRide(&domain.Ride{ID: id, Status: domain.RideStatusMatching, PickupLat: pickupLat, PickupLng: pickupLng})
		}

		q, err := h.rideService.Quote(ctx, quoteReq("go"))
		if err != nil {
			t.Fatalf("Quote() error = %v", err)
		}
		if q.SurgeMultiplier != 2.0 {
			t.Errorf("surge = %v, want 2.0 with two riders per driver", q.SurgeMultiplier)
		}
		if !approx(q.Fare.TotalFare, 46.30) {
			t.Errorf("surged fare = %v, want 46.30", q.Fare.TotalFare)
		}
	})
}

func TestCalculateSurgeMultiplier(t *testing.T) {
	t.Parallel()

	cfg := service.DefaultSurgeConfig()
	tests := []struct {
		name           string
		supply, demand int
		want           float64
	}{
		{name: "quiet area", supply: 0, demand: 0, want: 1.0},
		{name: "no drivers", supply: 0, demand: 3, want: 2.0},
		{name: "balanced", supply: 10, demand: 10, want: 1.0},
		{name: "low surge", supply: 10, demand: 12, want: 1.25},
		{name: "medium surge", supply: 10, demand: 15, want: 1.5},
		{name: "high surge", supply: 10, demand: 20, want: 2.0},
		{name: "capped", supply: 1, demand: 50, want: 2.0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := service.CalculateSurgeMultiplier(tt.supply, tt.demand, cfg); got != tt.want {
				t.Errorf("CalculateSurgeMultiplier(%d, %d) = %v, want %v", tt.supply, tt.demand, got, tt.want)
			}
		})
	}
}

func TestPaymentCharge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	req := service.ChargeRequest{RideID: "ride-1", Kind: domain.PaymentKindFare, Method: domain.PaymentMethodCard, Amount: 26.85, Currency: "NGN"}

	t.Run("idempotent per ride and kind", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		first, err := h.paymentService.Charge(ctx, req)
		if err != nil {
			t.Fatalf("Charge() error = %v", err)
		}
		second, err := h.paymentService.Charge(ctx, req)
		if err != nil {
			t.Fatalf("second Charge() error = %v", err)
		}
		if first.ID != second.ID || h.psp.ChargeCallCount != 1 {
			t.Errorf("duplicate charge: ids %s/%s, psp calls %d", first.ID, second.ID, h.psp.ChargeCallCount)
		}

		fee := req
		fee.Kind = domain.PaymentKindCancellationFee
		if _, err := h.paymentService.Charge(ctx, fee); err != nil {
			t.Fatalf("fee Charge() error = %v", err)
		}
		list, _ := h.paymentService.ListForRide(ctx, "ride-1")
		if len(list) != 2 {
			t.Errorf("payments for ride = %d, want 2", len(list))
		}
	})

	t.Run("declined", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.psp.SetFailure(true, nil)

		p, err := h.paymentService.Charge(ctx, req)
		if err != nil {
			t.Fatalf("Charge() error = %v", err)
		}
		if p.Status != domain.PaymentStatusFailed {
			t.Errorf("status = %s, want FAILED", p.Status)
		}
	})

	t.Run("psp error records failure", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.psp.SetFailure(false, ErrMockTimeout)

		p, err := h.paymentService.Charge(ctx, req)
		if err != nil {
			t.Fatalf("Charge() error = %v", err)
		}
		if p.Status != domain.PaymentStatusFailed {
			t.Errorf("status = %s, want FAILED", p.Status)
		}
	})

	t.Run("invalid amount", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		bad := req
		bad.Amount = 0
		if _, err := h.paymentService.Charge(ctx, bad); !errors.Is(err, service.ErrInvalidPaymentAmount) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("repository failure", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.payments.CreateError = ErrMockDBConstraint
		if _, err := h.paymentService.Charge(ctx, req); !errors.Is(err, ErrMockDBConstraint) {
			t.Errorf("error = %v", err)
		}
		if h.psp.ChargeCallCount != 0 {
			t.Error("psp must not be called when the payment cannot be recorded")
		}
	})
}

func TestCompletion_PaymentFailureKeepsRideCompleted(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ride := h.tripInProgress(t)
	h.psp.SetFailure(true, nil)
	h.clock.Advance(20 * time.Minute)

	res, err := h.act(ride.ID, "complete_trip", "driver", "d1")
	if err != nil {
		t.Fatalf("complete error = %v", err)
	}
	if res.Completion.Payment.Status != domain.PaymentStatusFailed {
		t.Errorf("payment status = %s", res.Completion.Payment.Status)
	}
	if res.Completion.Receipt == nil || res.Completion.Receipt.PaymentStatus != domain.PaymentStatusFailed {
		t.Errorf("receipt = %+v, want one recording the failed payment", res.Completion.Receipt)
	}
	if h.rides.Ride(ride.ID).Status != domain.RideStatusCompleted {
		t.Error("a failed charge must not reopen the ride")
	}
	if h.hub.Count(ride.ID, string(service.NotificationPaymentFailed)) != 1 {
		t.Error("expected a payment failed notification")
	}
}
