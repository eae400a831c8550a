package lifecycle

import (
	"fmt"
	"time"

	"zibana/internal/domain"
)

// ActionRole identifies who is attempting a ride action.
type ActionRole string

const (
	RoleRider  ActionRole = "rider"
	RoleDriver ActionRole = "driver"
	RoleSystem ActionRole = "system"
)

// RideAction is a user- or system-initiated step in the ride lifecycle.
type RideAction string

const (
	ActionRequestRide  RideAction = "request_ride"
	ActionAcceptRide   RideAction = "accept_ride"
	ActionStartPickup  RideAction = "start_pickup"
	ActionArrive       RideAction = "arrive"
	ActionStartWaiting RideAction = "start_waiting"
	ActionStartTrip    RideAction = "start_trip"
	ActionCompleteTrip RideAction = "complete_trip"
	ActionCancelRide   RideAction = "cancel_ride"
)

// DriverMovement is the driver's progress toward pickup, derived from telemetry.
type DriverMovement struct {
	DistanceKm  float64
	DurationSec float64
}

// ActionOptions carries the ride facts an action check may need.
type ActionOptions struct {
	IsAssignedDriver  bool
	MatchingExpiresAt *time.Time
	DriverMovement    *DriverMovement
	DriverAcceptedAt  *time.Time
}

// ActionValidation is the outcome of ValidateAction. The flags only carry
// meaning for cancellations.
type ActionValidation struct {
	Allowed              bool
	Error                string
	RequiresFee          bool
	RequiresReason       bool
	CompensationEligible bool
	WithinGracePeriod    bool
}

var riderCancellableStatuses = []domain.RideStatus{
	domain.RideStatusRequested,
	domain.RideStatusMatching,
	domain.RideStatusAccepted,
	domain.RideStatusDriverEnRoute,
}

var driverCancellableStatuses = []domain.RideStatus{
	domain.RideStatusArrived,
	domain.RideStatusWaiting,
	domain.RideStatusInProgress,
}

// ParseAction converts an external action name, reporting whether it is known.
func ParseAction(s string) (RideAction, bool) {
	a := RideAction(s)
	switch a {
	case ActionRequestRide, ActionAcceptRide, ActionStartPickup, ActionArrive,
		ActionStartWaiting, ActionStartTrip, ActionCompleteTrip, ActionCancelRide:
		return a, true
	}
	return "", false
}

// ParseRole converts an external role name, reporting whether it is known.
func ParseRole(s string) (ActionRole, bool) {
	r := ActionRole(s)
	switch r {
	case RoleRider, RoleDriver, RoleSystem:
		return r, true
	}
	return "", false
}

// AllowedRoles returns the roles permitted to perform action.
func AllowedRoles(action RideAction) []ActionRole {
	switch action {
	case ActionRequestRide:
		return []ActionRole{RoleRider}
	case ActionAcceptRide:
		return []ActionRole{RoleDriver}
	case ActionStartPickup, ActionArrive:
		return []ActionRole{RoleDriver, RoleSystem}
	case ActionStartWaiting:
		return []ActionRole{RoleSystem}
	case ActionStartTrip, ActionCompleteTrip:
		return []ActionRole{RoleDriver}
	case ActionCancelRide:
		return []ActionRole{RoleRider, RoleDriver}
	}
	return nil
}

// RequiredStatuses returns the statuses a ride must be in for action. An
// empty result means the action has no precondition.
func RequiredStatuses(action RideAction) []domain.RideStatus {
	switch action {
	case ActionAcceptRide:
		return []domain.RideStatus{domain.RideStatusMatching}
	case ActionStartPickup:
		return []domain.RideStatus{domain.RideStatusAccepted}
	case ActionArrive:
		return []domain.RideStatus{domain.RideStatusDriverEnRoute}
	case ActionStartWaiting:
		return []domain.RideStatus{domain.RideStatusArrived}
	case ActionStartTrip:
		return []domain.RideStatus{domain.RideStatusWaiting, domain.RideStatusArrived}
	case ActionCompleteTrip:
		return []domain.RideStatus{domain.RideStatusInProgress}
	case ActionCancelRide:
		var open []domain.RideStatus
		for _, s := range AllRideStatuses {
			if !IsTerminal(s) {
				open = append(open, s)
			}
		}
		return open
	}
	return nil
}

// TargetStatus returns the status a ride moves to once action succeeds.
func TargetStatus(action RideAction) (domain.RideStatus, bool) {
	switch action {
	case ActionRequestRide:
		return domain.RideStatusMatching, true
	case ActionAcceptRide:
		return domain.RideStatusAccepted, true
	case ActionStartPickup:
		return domain.RideStatusDriverEnRoute, true
	case ActionArrive:
		return domain.RideStatusArrived, true
	case ActionStartWaiting:
		return domain.RideStatusWaiting, true
	case ActionStartTrip:
		return domain.RideStatusInProgress, true
	case ActionCompleteTrip:
		return domain.RideStatusCompleted, true
	case ActionCancelRide:
		return domain.RideStatusCancelled, true
	}
	return "", false
}

// ValidateAction checks role permission, status precondition and the
// action-specific rules. current is nil when no ride exists yet.
func ValidateAction(action RideAction, role ActionRole, current *domain.RideStatus, opts ActionOptions, now time.Time) ActionValidation {
	if !containsRole(AllowedRoles(action), role) {
		return ActionValidation{Error: fmt.Sprintf("%s cannot perform action '%s'", role, action)}
	}

	required := RequiredStatuses(action)
	if len(required) > 0 && current != nil && !containsStatus(required, *current) {
		return ActionValidation{
			Error: fmt.Sprintf("Cannot '%s' when ride status is '%s'. Required: %s", action, *current, joinStatuses(required)),
		}
	}

	switch action {
	case ActionAcceptRide:
		if IsMatchingExpired(opts.MatchingExpiresAt, now) {
			return ActionValidation{Error: "Matching window has expired. Cannot accept this ride."}
		}
	case ActionStartPickup, ActionArrive, ActionStartTrip, ActionCompleteTrip:
		if role == RoleDriver && !opts.IsAssignedDriver {
			return ActionValidation{Error: "Only the assigned driver can perform this action"}
		}
	case ActionCancelRide:
		return validateCancellation(role, current, opts, now)
	}

	return ActionValidation{Allowed: true}
}

func validateCancellation(role ActionRole, current *domain.RideStatus, opts ActionOptions, now time.Time) ActionValidation {
	if current == nil {
		return ActionValidation{Error: "No ride to cancel"}
	}
	status := *current

	switch role {
	case RoleRider:
		if !containsStatus(riderCancellableStatuses, status) {
			return ActionValidation{
				Error: fmt.Sprintf("Rider cannot cancel when status is '%s'. Trip is in progress.", status),
			}
		}

		if status == domain.RideStatusRequested || status == domain.RideStatusMatching {
			return ActionValidation{Allowed: true}
		}

		pastGrace := false
		if opts.DriverAcceptedAt != nil {
			sinceAccept := now.Sub(*opts.DriverAcceptedAt)
			if sinceAccept <= RiderCancelGracePeriod {
				return ActionValidation{Allowed: true, WithinGracePeriod: true}
			}
			pastGrace = true
		}

		if opts.DriverMovement != nil {
			decision := IsDriverEligibleForCompensation(opts.DriverMovement.DistanceKm, opts.DriverMovement.DurationSec)
			if decision.Eligible {
				return ActionValidation{Allowed: true, RequiresFee: true, CompensationEligible: true}
			}
		}

		if status == domain.RideStatusDriverEnRoute && pastGrace {
			return ActionValidation{Allowed: true, RequiresFee: true, CompensationEligible: true}
		}

		return ActionValidation{Allowed: true}

	case RoleDriver:
		if !containsStatus(driverCancellableStatuses, status) {
			return ActionValidation{Error: fmt.Sprintf("Driver cannot cancel when status is '%s'", status)}
		}
		if status == domain.RideStatusInProgress {
			return ActionValidation{Allowed: true, RequiresReason: true}
		}
		return ActionValidation{Allowed: true}
	}

	return ActionValidation{Error: "Invalid role for cancellation"}
}

// DriverCancelReason is a standard reason a driver gives for cancelling.
type DriverCancelReason string

const (
	CancelReasonRiderNoShow                DriverCancelReason = "rider_no_show"
	CancelReasonRiderChangedDestination    DriverCancelReason = "rider_changed_destination"
	CancelReasonRiderRequestedCancellation DriverCancelReason = "rider_requested_cancellation"
	CancelReasonVehicleIssue               DriverCancelReason = "vehicle_issue"
	CancelReasonPersonalEmergency          DriverCancelReason = "personal_emergency"
	CancelReasonUnsafeLocation             DriverCancelReason = "unsafe_location"
	CancelReasonOther                      DriverCancelReason = "other"
)

// DriverCancelReasons lists every accepted driver cancellation reason.
var DriverCancelReasons = []DriverCancelReason{
	CancelReasonRiderNoShow,
	CancelReasonRiderChangedDestination,
	CancelReasonRiderRequestedCancellation,
	CancelReasonVehicleIssue,
	CancelReasonPersonalEmergency,
	CancelReasonUnsafeLocation,
	CancelReasonOther,
}

// IsValidDriverCancelReason reports whether reason is one of DriverCancelReasons.
func IsValidDriverCancelReason(reason string) bool {
	for _, r := range DriverCancelReasons {
		if string(r) == reason {
			return true
		}
	}
	return false
}

// IsJustifiedCancellation reports whether a driver cancellation for reason
// is excused. Unjustified cancellations are flagged for review.
func IsJustifiedCancellation(reason DriverCancelReason) bool {
	switch reason {
	case CancelReasonRiderNoShow, CancelReasonRiderRequestedCancellation,
		CancelReasonVehicleIssue, CancelReasonPersonalEmergency, CancelReasonUnsafeLocation:
		return true
	}
	return false
}

func containsRole(roles []ActionRole, role ActionRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func containsStatus(statuses []domain.RideStatus, status domain.RideStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
