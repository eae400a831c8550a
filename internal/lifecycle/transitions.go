// Package lifecycle holds the pure rules of a ride's life: which status
// changes are legal, who may trigger them, and the timing thresholds that
// drive waiting charges, cancellation compensation and safety alerts.
//
// Nothing in this package reads the clock. Callers pass "now" explicitly.
package lifecycle

import (
	"fmt"
	"strings"

	"zibana/internal/domain"
)

// TransitionResult reports whether a status change is allowed. Error is
// empty when Valid is true.
type TransitionResult struct {
	Valid bool
	Error string
}

// AllRideStatuses lists every declared ride status in lifecycle order.
var AllRideStatuses = []domain.RideStatus{
	domain.RideStatusRequested,
	domain.RideStatusMatching,
	domain.RideStatusAccepted,
	domain.RideStatusDriverEnRoute,
	domain.RideStatusArrived,
	domain.RideStatusWaiting,
	domain.RideStatusInProgress,
	domain.RideStatusCompleted,
	domain.RideStatusCancelled,
}

// IsTerminal reports whether no further transitions are possible from status.
func IsTerminal(status domain.RideStatus) bool {
	return status == domain.RideStatusCompleted || status == domain.RideStatusCancelled
}

// ValidNextStates returns the statuses reachable in one step from current.
// Terminal and unknown statuses have no successors.
func ValidNextStates(current domain.RideStatus) []domain.RideStatus {
	switch current {
	case domain.RideStatusRequested:
		return []domain.RideStatus{domain.RideStatusMatching, domain.RideStatusCancelled}
	case domain.RideStatusMatching:
		return []domain.RideStatus{domain.RideStatusAccepted, domain.RideStatusCancelled}
	case domain.RideStatusAccepted:
		return []domain.RideStatus{domain.RideStatusDriverEnRoute, domain.RideStatusCancelled}
	case domain.RideStatusDriverEnRoute:
		return []domain.RideStatus{domain.RideStatusArrived, domain.RideStatusCancelled}
	case domain.RideStatusArrived:
		return []domain.RideStatus{domain.RideStatusWaiting, domain.RideStatusInProgress, domain.RideStatusCancelled}
	case domain.RideStatusWaiting:
		return []domain.RideStatus{domain.RideStatusInProgress, domain.RideStatusCancelled}
	case domain.RideStatusInProgress:
		return []domain.RideStatus{domain.RideStatusCompleted, domain.RideStatusCancelled}
	case domain.RideStatusCompleted, domain.RideStatusCancelled:
		return []domain.RideStatus{}
	default:
		return []domain.RideStatus{}
	}
}

// IsValidTransition decides whether a ride may move from one status to another.
func IsValidTransition(from, to domain.RideStatus) TransitionResult {
	if IsTerminal(from) {
		return TransitionResult{
			Error: fmt.Sprintf("Cannot transition from terminal state '%s'", from),
		}
	}

	next := ValidNextStates(from)
	for _, s := range next {
		if s == to {
			return TransitionResult{Valid: true}
		}
	}

	return TransitionResult{
		Error: fmt.Sprintf("Invalid transition: '%s' → '%s'. Valid transitions are: %s", from, to, joinStatuses(next)),
	}
}

func joinStatuses(statuses []domain.RideStatus) string {
	if len(statuses) == 0 {
		return "none"
	}
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
