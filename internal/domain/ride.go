package domain

import "time"

// RideStatus represents the current lifecycle status of a ride.
type RideStatus string

const (
	RideStatusRequested     RideStatus = "requested"
	RideStatusMatching      RideStatus = "matching"
	RideStatusAccepted      RideStatus = "accepted"
	RideStatusDriverEnRoute RideStatus = "driver_en_route"
	RideStatusArrived       RideStatus = "arrived"
	RideStatusWaiting       RideStatus = "waiting"
	RideStatusInProgress    RideStatus = "in_progress"
	RideStatusCompleted     RideStatus = "completed"
	RideStatusCancelled     RideStatus = "cancelled"
)

// PaymentMethod represents the payment method for a ride.
type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "CASH"
	PaymentMethodCard       PaymentMethod = "CARD"
	PaymentMethodWallet     PaymentMethod = "WALLET"
	PaymentMethodTestWallet PaymentMethod = "TEST_WALLET"
)

// Ride is the aggregate that moves through the lifecycle state machine.
// Nullable timestamps are nil until the corresponding stage is reached.
type Ride struct {
	ID               string
	RiderID          string
	PickupLat        float64
	PickupLng        float64
	DestinationLat   float64
	DestinationLng   float64
	RideClass        string
	Status           RideStatus
	AssignedDriverID string
	SurgeMultiplier  float64 // 1.0 = no surge
	PaymentMethod    PaymentMethod
	Currency         string

	EstimatedDistanceKm  float64
	EstimatedDurationMin float64
	EstimatedFare        float64
	ScheduledPickupAt    *time.Time

	MatchingExpiresAt *time.Time
	DriverAcceptedAt  *time.Time
	EnRouteStartedAt  *time.Time
	ArrivedAt         *time.Time
	WaitingStartedAt  *time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	CancelledAt       *time.Time
	LastMovementAt    *time.Time
	IdleAlertSentAt   *time.Time

	FinalFare        float64
	DriverEarning    float64
	PlatformFee      float64
	CancellationFee  float64
	CancelledBy      string
	CancelReason     string
	FlaggedForReview bool
	CreatedAt        time.Time
}

// IsScheduled reports whether the ride was booked for a later pickup.
func (r *Ride) IsScheduled() bool {
	return r.ScheduledPickupAt != nil
}
