package domain

import "time"

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// PaymentKind distinguishes a trip fare from a cancellation fee.
type PaymentKind string

const (
	PaymentKindFare            PaymentKind = "FARE"
	PaymentKindCancellationFee PaymentKind = "CANCELLATION_FEE"
)

// Payment is a charge against a rider for a ride.
type Payment struct {
	ID             string
	RideID         string
	Kind           PaymentKind
	Amount         float64
	Currency       string
	Status         PaymentStatus
	IdempotencyKey string
	CreatedAt      time.Time
}
