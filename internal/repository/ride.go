package repository

import (
	"context"
	"time"

	"zibana/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetAll retrieves the most recent rides.
	GetAll(ctx context.Context) ([]*domain.Ride, error)

	// ListByStatus retrieves rides in any of the given statuses.
	ListByStatus(ctx context.Context, statuses ...domain.RideStatus) ([]*domain.Ride, error)

	// GetActiveByDriverID retrieves the non-terminal ride assigned to a driver.
	// Returns nil if the driver has none.
	GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Ride, error)

	// Update writes every mutable field without a status check. Use it only
	// for changes that do not move the ride through the lifecycle.
	Update(ctx context.Context, ride *domain.Ride) error

	// UpdateStatus writes the ride only if its stored status is still from.
	// Returns ErrStaleStatus otherwise.
	UpdateStatus(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error

	// RecordMovement moves last_movement_at forward to at while the ride is
	// in progress. Older timestamps are ignored.
	RecordMovement(ctx context.Context, rideID string, at time.Time) error

	// MarkIdleAlert stamps idle_alert_sent_at only while the ride is in
	// progress and its movement and alert timestamps still equal the ones the
	// caller read. It reports whether the stamp was written.
	MarkIdleAlert(ctx context.Context, rideID string, sentAt time.Time, lastMovementAt, prevAlertAt *time.Time) (bool, error)
}
