package service

import (
	"errors"
	"fmt"

	"zibana/internal/guard"
	"zibana/internal/lifecycle"
)

var (
	// ErrNoDriverAvailable is returned when no eligible driver is near the pickup.
	ErrNoDriverAvailable = errors.New("no driver available")

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDestinationLocation is returned when destination coordinates are invalid.
	ErrInvalidDestinationLocation = errors.New("invalid destination location")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidRideClass is returned for an unknown or inactive ride class.
	ErrInvalidRideClass = errors.New("invalid ride class")

	// ErrInvalidScheduledTime is returned when a reservation is in the past.
	ErrInvalidScheduledTime = errors.New("scheduled pickup must be in the future")

	// ErrInvalidAction is returned for an unknown lifecycle action.
	ErrInvalidAction = errors.New("invalid ride action")

	// ErrInvalidRole is returned for an unknown actor role.
	ErrInvalidRole = errors.New("invalid actor role")

	// ErrDriverHasActiveRide is returned when a driver tries to take a second ride.
	ErrDriverHasActiveRide = errors.New("driver already has an active ride")

	// ErrDriverNotOnline is returned when an offline driver tries to accept a ride.
	ErrDriverNotOnline = errors.New("driver is not online")

	// ErrDriverNotEligible is returned when a driver does not qualify for the ride class.
	ErrDriverNotEligible = errors.New("driver does not qualify for this ride class")

	// ErrDriverBusy is returned when another request is already claiming the driver.
	ErrDriverBusy = errors.New("driver is being assigned to another ride")

	// ErrRideBusy is returned when another action on the same ride is in flight.
	ErrRideBusy = errors.New("another action is in progress for this ride")

	// ErrConcurrentUpdate is returned when the ride changed status between read and write.
	ErrConcurrentUpdate = errors.New("ride was updated concurrently")

	// ErrCancelReasonRequired is returned when a driver cancels a trip in progress without a reason.
	ErrCancelReasonRequired = errors.New("a cancellation reason is required")

	// ErrInvalidCancelReason is returned for a driver reason outside the accepted list.
	ErrInvalidCancelReason = errors.New("invalid cancellation reason")

	// ErrNoActiveRide is returned when location data arrives for a driver without a ride.
	ErrNoActiveRide = errors.New("driver has no active ride")

	// ErrInvalidPaymentAmount is returned when payment amount is invalid.
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")

	// ErrInvalidPaymentID is returned when payment ID is empty.
	ErrInvalidPaymentID = errors.New("invalid payment id")

	// ErrInvalidPaymentMethod is returned when payment method is invalid.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidUser is returned when a user registration is incomplete.
	ErrInvalidUser = errors.New("invalid user")

	// ErrInvalidDriver is returned when a driver registration is incomplete.
	ErrInvalidDriver = errors.New("invalid driver")
)

// TransitionError wraps a rejected status change.
type TransitionError struct {
	Result lifecycle.TransitionResult
}

func (e *TransitionError) Error() string { return e.Result.Error }

// ActionError wraps an action the lifecycle rules refused.
type ActionError struct {
	Action     lifecycle.RideAction
	Role       lifecycle.ActionRole
	Validation lifecycle.ActionValidation
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s by %s rejected: %s", e.Action, e.Role, e.Validation.Error)
}

// GuardError wraps a ride request the financial guard blocked.
type GuardError struct {
	Result guard.Result
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Result.Code, e.Result.Message)
}
