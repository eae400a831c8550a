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

// CancellationOutcome is what a cancellation cost and who it flagged.
type CancellationOutcome struct {
	CancelledBy       lifecycle.ActionRole
	Reason            string
	WithinGracePeriod bool
	FeeCharged        float64
	Compensation      *fare.Compensation
	FlaggedForReview  bool
	Payment           *domain.Payment
}

func (s *RideService) cancel(ctx context.Context, ride *domain.Ride, req ActionRequest, v lifecycle.ActionValidation, now time.Time, result *ActionResult) error {
	out := &CancellationOutcome{
		CancelledBy:       req.Role,
		Reason:            req.Reason,
		WithinGracePeriod: v.WithinGracePeriod,
	}

	chargeRider := v.RequiresFee
	if req.Role == lifecycle.RoleDriver {
		if v.RequiresReason && req.Reason == "" {
			return ErrCancelReasonRequired
		}
		if req.Reason != "" {
			if !lifecycle.IsValidDriverCancelReason(req.Reason) {
				return ErrInvalidCancelReason
			}
			reason := lifecycle.DriverCancelReason(req.Reason)
			out.FlaggedForReview = !lifecycle.IsJustifiedCancellation(reason)
			// A rider who never showed pays for the driver's trip and wait.
			chargeRider = reason == lifecycle.CancelReasonRiderNoShow && ride.Status != domain.RideStatusInProgress
		}
	}

	if chargeRider {
		movement := s.driverMovement(ctx, ride, now)
		if movement == nil {
			movement = &lifecycle.DriverMovement{}
		}
		comp := fare.CalculateCancellationCompensation(movement.DistanceKm, movement.DurationSec, ride.WaitingStartedAt, now)
		out.Compensation = &comp
		out.FeeCharged = comp.RiderCharge
	}

	from := ride.Status
	ride.Status = domain.RideStatusCancelled
	ride.CancelledAt = &now
	ride.CancelledBy = string(req.Role)
	ride.CancelReason = req.Reason
	ride.CancellationFee = out.FeeCharged
	ride.FlaggedForReview = out.FlaggedForReview

	if err := s.endRideTx(ctx, ride, from, nil); err != nil {
		return err
	}

	if out.FeeCharged > 0 {
		payment, err := s.payments.Charge(ctx, ChargeRequest{
			RideID:   ride.ID,
			Kind:     domain.PaymentKindCancellationFee,
			Method:   ride.PaymentMethod,
			Amount:   out.FeeCharged,
			Currency: ride.Currency,
		})
		if err != nil {
			s.log.ErrorContext(ctx, "cancellation fee payment failed", "ride_id", ride.ID, "error", err)
		} else {
			out.Payment = payment
			s.notifier.NotifyPayment(ctx, payment, ride.RiderID)
		}
		if out.Compensation != nil && out.Compensation.DriverCompensation > 0 {
			s.notifier.NotifyDriverCompensated(ctx, ride, out.Compensation.DriverCompensation)
		}
	}

	if out.FlaggedForReview {
		s.log.WarnContext(ctx, "driver cancellation flagged for review",
			"ride_id", ride.ID,
			"driver_id", ride.AssignedDriverID,
			"reason", req.Reason,
			"status", from,
		)
	}

	s.clearTelemetry(ctx, ride.ID)
	result.Cancellation = out
	return nil
}

// driverMovement measures the driver's progress toward pickup from the
// pickup telemetry. It is nil before any driver accepted the ride.
func (s *RideService) driverMovement(ctx context.Context, ride *domain.Ride, now time.Time) *lifecycle.DriverMovement {
	if ride.AssignedDriverID == "" {
		return nil
	}

	points := s.points(ctx, ride.ID, redis.PhasePickup)
	m := &lifecycle.DriverMovement{DistanceKm: geo.TotalDistanceKm(points)}

	switch {
	case ride.EnRouteStartedAt != nil:
		m.DurationSec = now.Sub(*ride.EnRouteStartedAt).Seconds()
	case len(points) >= 2:
		m.DurationSec = max(0, geo.DurationMinutes(points)*60)
	}
	return m
}

// CancellationPreview tells an actor what cancelling now would cost.
type CancellationPreview struct {
	Allowed           bool
	Error             string
	RequiresFee       bool
	RequiresReason    bool
	WithinGracePeriod bool
	EstimatedFee      float64
	Compensation      *fare.Compensation
	FreeWaiting       bool
	FreeWaitingReason string
	Reasons           []lifecycle.DriverCancelReason
}

// CancellationPreview evaluates a cancellation without applying it.
func (s *RideService) CancellationPreview(ctx context.Context, rideID string, role lifecycle.ActionRole, actorID string) (*CancellationPreview, error) {
	ride, err := s.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	movement := s.driverMovement(ctx, ride, now)
	v := lifecycle.ValidateAction(lifecycle.ActionCancelRide, role, &ride.Status, lifecycle.ActionOptions{
		IsAssignedDriver:  role == lifecycle.RoleDriver && actorID != "" && ride.AssignedDriverID == actorID,
		MatchingExpiresAt: ride.MatchingExpiresAt,
		DriverMovement:    movement,
		DriverAcceptedAt:  ride.DriverAcceptedAt,
	}, now)

	p := &CancellationPreview{
		Allowed:           v.Allowed,
		Error:             v.Error,
		RequiresFee:       v.RequiresFee,
		RequiresReason:    v.RequiresReason,
		WithinGracePeriod: v.WithinGracePeriod,
	}
	p.FreeWaiting, p.FreeWaitingReason = fare.CanCancelWithoutPenalty(ride.WaitingStartedAt, now)

	if role == lifecycle.RoleDriver {
		p.Reasons = lifecycle.DriverCancelReasons
	}

	if v.Allowed && v.RequiresFee {
		if movement == nil {
			movement = &lifecycle.DriverMovement{}
		}
		comp := fare.CalculateCancellationCompensation(movement.DistanceKm, movement.DurationSec, ride.WaitingStartedAt, now)
		p.Compensation = &comp
		p.EstimatedFee = comp.RiderCharge
	}
	return p, nil
}
