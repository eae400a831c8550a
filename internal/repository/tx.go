package repository

import "context"

// Stores are repositories bound to a single transaction.
type Stores struct {
	Rides    RideRepository
	Drivers  DriverRepository
	Payments PaymentRepository
}

// TxRunner runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(s Stores) error) error
}
