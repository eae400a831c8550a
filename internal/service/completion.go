package service

import (
	"context"
	"time"

	"zibana/internal/domain"
	"zibana/internal/fare"
	"zibana/internal/geo"
	"zibana/internal/lifecycle"
	"zibana/internal/redis"
)

// earlyStopThresholdKm is how far from the destination a trip may end before
// the fare is compared against the quote.
const earlyStopThresholdKm = 0.5

// Completion is the money outcome of a finished trip.
type Completion struct {
	DistanceKm  float64
	DurationMin float64
	Waiting     lifecycle.WaitingBreakdown
	WaitingFee  fare.WaitingFee
	Fare        fare.CompletedFare
	EarlyStop   *fare.EarlyStop
	Payment     *domain.Payment
	Receipt     *domain.Receipt
}

// complete prices the trip from its telemetry, ends the ride, then collects
// payment and issues the receipt.
func (s *RideService) complete(ctx context.Context, ride *domain.Ride, now time.Time, result *ActionResult) error {
	points := s.points(ctx, ride.ID, redis.PhaseTrip)

	distanceKm := geo.TotalDistanceKm(points)
	if len(points) < 2 {
		distanceKm = ride.EstimatedDistanceKm
	}

	durationMin := 0.0
	if ride.StartedAt != nil {
		durationMin = now.Sub(*ride.StartedAt).Minutes()
	}

	// Waiting is charged from the start of waiting until the rider boards.
	waitingEnd := now
	if ride.StartedAt != nil {
		waitingEnd = *ride.StartedAt
	}
	waiting := lifecycle.CalculateWaitingTime(ride.WaitingStartedAt, waitingEnd)

	in := fare.TripInput{
		DistanceKm:           distanceKm,
		DurationMinutes:      durationMin,
		EstimatedDurationMin: ride.EstimatedDurationMin,
		Waiting:              waiting,
		Multiplier:           s.fareMultiplier(ride),
		Rates:                s.ratesFor(ride.IsScheduled()),
	}
	completed := fare.Complete(in)

	c := &Completion{
		DistanceKm:  fare.Round2(distanceKm),
		DurationMin: fare.Round2(durationMin),
		Waiting:     waiting,
		WaitingFee:  completed.Waiting,
		Fare:        completed,
	}

	if len(points) >= 2 {
		last := points[len(points)-1].Coordinates()
		dest := geo.Coordinates{Lat: ride.DestinationLat, Lng: ride.DestinationLng}
		if geo.HaversineDistanceKm(last, dest) > earlyStopThresholdKm {
			es := fare.RecalculateEarlyStop(ride.EstimatedFare, in, ride.EstimatedDistanceKm)
			c.EarlyStop = &es
		}
	}

	from := ride.Status
	ride.Status = domain.RideStatusCompleted
	ride.CompletedAt = &now
	ride.FinalFare = completed.TotalFare
	ride.DriverEarning = completed.DriverEarning
	ride.PlatformFee = completed.PlatformFee

	if err := s.endRideTx(ctx, ride, from, nil); err != nil {
		return err
	}

	// The ride is completed from here on; payment and receipt failures are
	// logged and can be retried without reopening it.
	payment, err := s.payments.Charge(ctx, ChargeRequest{
		RideID:   ride.ID,
		Kind:     domain.PaymentKindFare,
		Method:   ride.PaymentMethod,
		Amount:   completed.TotalFare,
		Currency: ride.Currency,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "fare payment failed", "ride_id", ride.ID, "error", err)
	} else {
		c.Payment = payment
		s.notifier.NotifyPayment(ctx, payment, ride.RiderID)
	}

	if s.receipts != nil {
		receipt, err := s.receipts.GenerateReceipt(ctx, GenerateReceiptRequest{
			Ride:        ride,
			Fare:        completed,
			DistanceKm:  distanceKm,
			DurationMin: durationMin,
			Payment:     payment,
		})
		if err != nil {
			s.log.ErrorContext(ctx, "receipt generation failed", "ride_id", ride.ID, "error", err)
		}
		c.Receipt = receipt
	}

	s.clearTelemetry(ctx, ride.ID)
	result.Completion = c
	return nil
}

// points reads a telemetry phase. Read failures yield no samples so the
// caller falls back to estimates.
func (s *RideService) points(ctx context.Context, rideID string, phase redis.TelemetryPhase) []geo.GpsPoint {
	if s.telemetry == nil {
		return nil
	}
	points, err := s.telemetry.Points(ctx, rideID, phase)
	if err != nil {
		s.log.WarnContext(ctx, "read telemetry failed", "ride_id", rideID, "phase", phase, "error", err)
		return nil
	}
	return points
}

func (s *RideService) clearTelemetry(ctx context.Context, rideID string) {
	if s.telemetry == nil {
		return
	}
	if err := s.telemetry.Clear(ctx, rideID); err != nil {
		s.log.WarnContext(ctx, "clear telemetry failed", "ride_id", rideID, "error", err)
	}
}
