package fare

import (
	"fmt"
	"math"
	"time"

	"zibana/internal/lifecycle"
)

// WaitingFee is the surcharge for paid and bonus waiting minutes.
type WaitingFee struct {
	PaidFee  float64
	BonusFee float64
	Total    float64
}

// CalculateWaitingFee prices a waiting breakdown. Free minutes are not charged.
func CalculateWaitingFee(b lifecycle.WaitingBreakdown) WaitingFee {
	paid := b.PaidMinutes * WaitingPaidRatePerMinute
	bonus := b.BonusMinutes * WaitingBonusRatePerMinute
	return WaitingFee{
		PaidFee:  Round2(paid),
		BonusFee: Round2(bonus),
		Total:    Round2(paid + bonus),
	}
}

// TrafficAdjustment is the overrun surcharge for a trip that took longer than quoted.
type TrafficAdjustment struct {
	EstimatedMinutes float64
	ActualMinutes    float64
	ExtraMinutes     float64
	Fee              float64
}

// CalculateTrafficAdjustment charges every minute beyond the estimate.
func CalculateTrafficAdjustment(estimatedMinutes, actualMinutes float64) TrafficAdjustment {
	extra := math.Max(0, actualMinutes-estimatedMinutes)
	return TrafficAdjustment{
		EstimatedMinutes: Round2(estimatedMinutes),
		ActualMinutes:    Round2(actualMinutes),
		ExtraMinutes:     Round2(extra),
		Fee:              Round2(extra * TrafficOverrunRatePerMinute),
	}
}

// Settlement splits a collected amount between driver and platform.
type Settlement struct {
	DriverEarning float64
	PlatformFee   float64
}

// Settle takes commissionPct of total as the platform fee.
func Settle(total, commissionPct float64) Settlement {
	platform := total * commissionPct / 100
	return Settlement{
		DriverEarning: Round2(total - platform),
		PlatformFee:   Round2(platform),
	}
}

// TripInput describes a finished trip for final pricing.
type TripInput struct {
	DistanceKm           float64
	DurationMinutes      float64
	EstimatedDurationMin float64
	Waiting              lifecycle.WaitingBreakdown
	Multiplier           float64
	Rates                Rates
}

// CompletedFare is the final charge for a trip.
type CompletedFare struct {
	Fare          Estimate
	Waiting       WaitingFee
	Traffic       TrafficAdjustment
	TotalFare     float64
	DriverEarning float64
	PlatformFee   float64
}

// Complete prices a finished trip: the estimator over the actual distance
// and duration, the tiered waiting fee, and any traffic overrun. The class
// and surge multiplier does not apply to waiting.
func Complete(in TripInput) CompletedFare {
	waiting := CalculateWaitingFee(in.Waiting)
	est := EstimateFare(in.DistanceKm, in.DurationMinutes, 0, in.Rates.Scaled(in.Multiplier))
	est.Breakdown.Waiting = waiting.Total
	est.TotalFare = Round2(est.TotalFare + waiting.Total)

	traffic := CalculateTrafficAdjustment(in.EstimatedDurationMin, in.DurationMinutes)
	if in.EstimatedDurationMin <= 0 {
		traffic = TrafficAdjustment{ActualMinutes: Round2(in.DurationMinutes)}
	}

	total := Round2(est.TotalFare + traffic.Fee)
	split := Settle(total, PlatformCommissionPct)

	return CompletedFare{
		Fare:          est,
		Waiting:       waiting,
		Traffic:       traffic,
		TotalFare:     total,
		DriverEarning: split.DriverEarning,
		PlatformFee:   split.PlatformFee,
	}
}

// EarlyStop compares the quoted fare against the fare for the distance and
// time actually travelled when a trip ends short of its destination.
type EarlyStop struct {
	OriginalEstimatedKm  float64
	ActualDistanceKm     float64
	OriginalEstimatedMin float64
	ActualDurationMin    float64
	OriginalFare         float64
	RecalculatedFare     float64
	Difference           float64
}

// RecalculateEarlyStop reprices a trip that stopped early.
func RecalculateEarlyStop(originalFare float64, in TripInput, originalKm float64) EarlyStop {
	actual := Complete(in)
	return EarlyStop{
		OriginalEstimatedKm:  Round2(originalKm),
		ActualDistanceKm:     Round2(in.DistanceKm),
		OriginalEstimatedMin: Round2(in.EstimatedDurationMin),
		ActualDurationMin:    Round2(in.DurationMinutes),
		OriginalFare:         Round2(originalFare),
		RecalculatedFare:     actual.TotalFare,
		Difference:           Round2(originalFare - actual.TotalFare),
	}
}

// Compensation is what a rider pays, and a driver receives, when a ride is
// cancelled after the driver has started toward pickup.
type Compensation struct {
	Eligible           bool
	Reason             string
	DriverCompensation float64
	PlatformFee        float64
	RiderCharge        float64
}

// CalculateCancellationCompensation prices a cancellation from the driver's
// movement and any waiting already done. An ineligible driver receives
// nothing but the rider is still charged the minimum fee.
func CalculateCancellationCompensation(distanceKm, durationSec float64, waitingStartedAt *time.Time, cancelledAt time.Time) Compensation {
	decision := lifecycle.IsDriverEligibleForCompensation(distanceKm, durationSec)
	if !decision.Eligible {
		return Compensation{
			Reason:      decision.Reason,
			RiderCharge: CancellationMinimumFee,
		}
	}

	driver := distanceKm * CancellationRatePerKm
	if waitingStartedAt != nil {
		driver += CalculateWaitingFee(lifecycle.CalculateWaitingTime(waitingStartedAt, cancelledAt)).Total
	}
	driver = math.Max(driver, CancellationMinimumFee)

	platform := driver * CancellationPlatformFeePct / 100

	return Compensation{
		Eligible:           true,
		Reason:             decision.Reason,
		DriverCompensation: Round2(driver),
		PlatformFee:        Round2(platform),
		RiderCharge:        Round2(driver + platform),
	}
}

// CanCancelWithoutPenalty reports whether a rider may still cancel for free
// given the waiting that has elapsed, with a human-readable reason.
func CanCancelWithoutPenalty(waitingStartedAt *time.Time, now time.Time) (bool, string) {
	if waitingStartedAt == nil {
		return true, "No waiting period has started"
	}

	b := lifecycle.CalculateWaitingTime(waitingStartedAt, now)
	if b.PaidMinutes > 0 {
		return false, fmt.Sprintf("Paid waiting has begun (%.1f minutes). Cancellation fee applies.", b.PaidMinutes)
	}
	return true, fmt.Sprintf("Within free waiting period (%.1f/%d minutes)", b.FreeMinutes, lifecycle.WaitingFreeMinutes)
}
