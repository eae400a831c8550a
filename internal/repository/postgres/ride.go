package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"zibana/internal/domain"
	"zibana/internal/repository"
)

const rideColumns = `id, rider_id, pickup_lat, pickup_lng, destination_lat, destination_lng, ride_class,
	status, assigned_driver_id, surge_multiplier, payment_method, currency,
	estimated_distance_km, estimated_duration_min, estimated_fare, scheduled_pickup_at,
	matching_expires_at, driver_accepted_at, en_route_started_at, arrived_at, waiting_started_at,
	started_at, completed_at, cancelled_at, last_movement_at, idle_alert_sent_at,
	final_fare, driver_earning, platform_fee, cancellation_fee, cancelled_by, cancel_reason,
	flagged_for_review, created_at`

// rideSetClause lists the columns a full update writes, in the order of rideUpdateArgs.
const rideSetClause = `status = $1, assigned_driver_id = $2, surge_multiplier = $3, payment_method = $4,
	estimated_distance_km = $5, estimated_duration_min = $6, estimated_fare = $7,
	matching_expires_at = $8, driver_accepted_at = $9, en_route_started_at = $10, arrived_at = $11,
	waiting_started_at = $12, started_at = $13, completed_at = $14, cancelled_at = $15,
	last_movement_at = $16, idle_alert_sent_at = $17, final_fare = $18, driver_earning = $19,
	platform_fee = $20, cancellation_fee = $21, cancelled_by = $22, cancel_reason = $23,
	flagged_for_review = $24`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, rider_id, pickup_lat, pickup_lng, destination_lat, destination_lng, ride_class,
			status, assigned_driver_id, surge_multiplier, payment_method, currency,
			estimated_distance_km, estimated_duration_min, estimated_fare, scheduled_pickup_at,
			matching_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	// Default surge to 1.0 if not set
	surgeMultiplier := ride.SurgeMultiplier
	if surgeMultiplier < 1.0 {
		surgeMultiplier = 1.0
	}

	paymentMethod := ride.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = domain.PaymentMethodCash
	}

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		ride.PickupLat,
		ride.PickupLng,
		ride.DestinationLat,
		ride.DestinationLng,
		ride.RideClass,
		ride.Status,
		nullString(ride.AssignedDriverID),
		surgeMultiplier,
		paymentMethod,
		ride.Currency,
		ride.EstimatedDistanceKm,
		ride.EstimatedDurationMin,
		ride.EstimatedFare,
		nullTime(ride.ScheduledPickupAt),
		nullTime(ride.MatchingExpiresAt),
		ride.CreatedAt,
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// GetAll retrieves the 100 most recent rides.
func (r *RideRepository) GetAll(ctx context.Context) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides ORDER BY created_at DESC LIMIT 100`
	return r.list(ctx, query)
}

// ListByStatus retrieves rides in any of the given statuses, oldest first.
func (r *RideRepository) ListByStatus(ctx context.Context, statuses ...domain.RideStatus) ([]*domain.Ride, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = ANY($1) ORDER BY created_at`
	return r.list(ctx, query, pq.Array(values))
}

// GetActiveByDriverID retrieves the non-terminal ride assigned to a driver.
func (r *RideRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		WHERE assigned_driver_id = $1 AND status NOT IN ('completed', 'cancelled')
		ORDER BY created_at DESC LIMIT 1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ride, nil
}

// Update writes the ride's mutable fields unconditionally.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `UPDATE rides SET ` + rideSetClause + ` WHERE id = $25`

	result, err := r.q.ExecContext(ctx, query, append(rideUpdateArgs(ride), ride.ID)...)
	if err != nil {
		return err
	}
	return checkAffected(result, repository.ErrNotFound)
}

// UpdateStatus writes the ride only while its stored status is still from.
func (r *RideRepository) UpdateStatus(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error {
	query := `UPDATE rides SET ` + rideSetClause + ` WHERE id = $25 AND status = $26`

	args := append(rideUpdateArgs(ride), ride.ID, from)
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	if err := checkAffected(result, repository.ErrStaleStatus); err != nil {
		// Distinguish a missing ride from a lost race.
		if _, gerr := r.GetByID(ctx, ride.ID); errors.Is(gerr, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *RideRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

func rideUpdateArgs(ride *domain.Ride) []any {
	return []any{
		ride.Status,
		nullString(ride.AssignedDriverID),
		ride.SurgeMultiplier,
		ride.PaymentMethod,
		ride.EstimatedDistanceKm,
		ride.EstimatedDurationMin,
		ride.EstimatedFare,
		nullTime(ride.MatchingExpiresAt),
		nullTime(ride.DriverAcceptedAt),
		nullTime(ride.EnRouteStartedAt),
		nullTime(ride.ArrivedAt),
		nullTime(ride.WaitingStartedAt),
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
		nullTime(ride.CancelledAt),
		nullTime(ride.LastMovementAt),
		nullTime(ride.IdleAlertSentAt),
		ride.FinalFare,
		ride.DriverEarning,
		ride.PlatformFee,
		ride.CancellationFee,
		nullString(ride.CancelledBy),
		nullString(ride.CancelReason),
		ride.FlaggedForReview,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// RecordMovement advances last_movement_at without touching other columns.
func (r *RideRepository) RecordMovement(ctx context.Context, rideID string, at time.Time) error {
	query := `
		UPDATE rides SET last_movement_at = $2
		WHERE id = $1 AND status = $3 AND (last_movement_at IS NULL OR last_movement_at < $2)
	`
	_, err := r.q.ExecContext(ctx, query, rideID, at, domain.RideStatusInProgress)
	return err
}

// MarkIdleAlert stamps the idle alert if nothing moved or alerted since the
// caller's read.
func (r *RideRepository) MarkIdleAlert(ctx context.Context, rideID string, sentAt time.Time, lastMovementAt, prevAlertAt *time.Time) (bool, error) {
	query := `
		UPDATE rides SET idle_alert_sent_at = $2
		WHERE id = $1 AND status = $3
			AND last_movement_at IS NOT DISTINCT FROM $4
			AND idle_alert_sent_at IS NOT DISTINCT FROM $5
	`
	result, err := r.q.ExecContext(ctx, query,
		rideID, sentAt, domain.RideStatusInProgress, nullTime(lastMovementAt), nullTime(prevAlertAt))
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var (
		assignedDriverID, cancelledBy, cancelReason sql.NullString

		scheduledPickupAt, matchingExpiresAt, driverAcceptedAt, enRouteStartedAt sql.NullTime
		arrivedAt, waitingStartedAt, startedAt, completedAt, cancelledAt         sql.NullTime
		lastMovementAt, idleAlertSentAt                                          sql.NullTime
	)

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&ride.PickupLat,
		&ride.PickupLng,
		&ride.DestinationLat,
		&ride.DestinationLng,
		&ride.RideClass,
		&ride.Status,
		&assignedDriverID,
		&ride.SurgeMultiplier,
		&ride.PaymentMethod,
		&ride.Currency,
		&ride.EstimatedDistanceKm,
		&ride.EstimatedDurationMin,
		&ride.EstimatedFare,
		&scheduledPickupAt,
		&matchingExpiresAt,
		&driverAcceptedAt,
		&enRouteStartedAt,
		&arrivedAt,
		&waitingStartedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
		&lastMovementAt,
		&idleAlertSentAt,
		&ride.FinalFare,
		&ride.DriverEarning,
		&ride.PlatformFee,
		&ride.CancellationFee,
		&cancelledBy,
		&cancelReason,
		&ride.FlaggedForReview,
		&ride.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ride.AssignedDriverID = assignedDriverID.String
	ride.CancelledBy = cancelledBy.String
	ride.CancelReason = cancelReason.String

	ride.ScheduledPickupAt = timePtr(scheduledPickupAt)
	ride.MatchingExpiresAt = timePtr(matchingExpiresAt)
	ride.DriverAcceptedAt = timePtr(driverAcceptedAt)
	ride.EnRouteStartedAt = timePtr(enRouteStartedAt)
	ride.ArrivedAt = timePtr(arrivedAt)
	ride.WaitingStartedAt = timePtr(waitingStartedAt)
	ride.StartedAt = timePtr(startedAt)
	ride.CompletedAt = timePtr(completedAt)
	ride.CancelledAt = timePtr(cancelledAt)
	ride.LastMovementAt = timePtr(lastMovementAt)
	ride.IdleAlertSentAt = timePtr(idleAlertSentAt)

	return &ride, nil
}
