package repository

import (
	"context"

	"zibana/internal/domain"
)

// DriverRepository stores drivers and their class approvals.
type DriverRepository interface {
	Create(ctx context.Context, driver *domain.Driver) error
	GetByID(ctx context.Context, id string) (*domain.Driver, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Driver, error)

	// GetByIDs loads the drivers that exist among ids. Unknown ids are
	// skipped, so the result may be shorter than the input.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Driver, error)

	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// UpdateStatus moves a driver between OFFLINE, ONLINE and ON_TRIP.
	UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error
}
