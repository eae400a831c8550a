package repository

import (
	"context"

	"zibana/internal/domain"
)

// ReceiptRepository stores receipts issued for completed rides.
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *domain.Receipt) error

	// GetByRideID returns ErrNotFound when the ride has no receipt yet.
	GetByRideID(ctx context.Context, rideID string) (*domain.Receipt, error)
}
