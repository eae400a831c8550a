package lifecycle

import (
	"math"
	"time"

	"zibana/internal/domain"
)

const (
	// MatchingWindowSeconds is how long a ride stays open for drivers to accept.
	MatchingWindowSeconds = 10

	// Waiting tiers, in minutes, applied in order after the driver arrives.
	WaitingFreeMinutes  = 2
	WaitingPaidMinutes  = 5
	WaitingBonusMinutes = 4

	// Compensation thresholds for a driver whose ride is cancelled en route.
	CompensationMinDistanceKm  = 1.0
	CompensationMinDurationSec = 60

	// RiderCancelGracePeriod is the free-cancellation window after a driver accepts.
	RiderCancelGracePeriod = 3 * time.Minute

	// IdleAlertMinutes is how long a trip may sit without movement before a safety check.
	IdleAlertMinutes = 4
)

// IsMatchingExpired reports whether the matching window has closed. A ride
// without an expiration never expires.
func IsMatchingExpired(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return now.After(*expiresAt)
}

// MatchingExpiration returns the instant the matching window opened at now closes.
func MatchingExpiration(now time.Time) time.Time {
	return now.Add(MatchingWindowSeconds * time.Second)
}

// WaitingBreakdown splits elapsed waiting time across the free, paid and
// bonus tiers. TotalMinutes is not capped; time past the bonus tier is
// not attributed to any tier.
type WaitingBreakdown struct {
	TotalMinutes float64
	FreeMinutes  float64
	PaidMinutes  float64
	BonusMinutes float64
}

// CalculateWaitingTime tiers the waiting period from startedAt to end.
func CalculateWaitingTime(startedAt *time.Time, end time.Time) WaitingBreakdown {
	if startedAt == nil {
		return WaitingBreakdown{}
	}

	total := end.Sub(*startedAt).Minutes()

	free := math.Max(0, math.Min(total, WaitingFreeMinutes))
	afterFree := math.Max(0, total-WaitingFreeMinutes)
	paid := math.Min(afterFree, WaitingPaidMinutes)
	afterPaid := math.Max(0, afterFree-WaitingPaidMinutes)
	bonus := math.Min(afterPaid, WaitingBonusMinutes)

	return WaitingBreakdown{
		TotalMinutes: total,
		FreeMinutes:  free,
		PaidMinutes:  paid,
		BonusMinutes: bonus,
	}
}

// ShouldTriggerSafetyAlert reports whether an in-progress trip has been idle
// long enough to check on the rider. At most one alert is raised per idle
// period: an alert recorded after the last movement suppresses another.
func ShouldTriggerSafetyAlert(lastMovementAt, idleAlertSentAt *time.Time, status domain.RideStatus, now time.Time) bool {
	if status != domain.RideStatusInProgress {
		return false
	}
	if lastMovementAt == nil {
		return false
	}
	if idleAlertSentAt != nil && idleAlertSentAt.After(*lastMovementAt) {
		return false
	}
	return now.Sub(*lastMovementAt) >= IdleAlertMinutes*time.Minute
}
