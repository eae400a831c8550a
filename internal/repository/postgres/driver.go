package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"zibana/internal/domain"
	"zibana/internal/repository"
)

const driverColumns = `id, COALESCE(name, ''), COALESCE(phone, ''), status, rating, seats, vehicle_year,
	pet_approved, background_checked, elite_approved`

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, name, phone, status, rating, seats, vehicle_year, pet_approved, background_checked, elite_approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		driver.Name,
		driver.Phone,
		driver.Status,
		driver.Rating,
		driver.Seats,
		driver.VehicleYear,
		driver.PetApproved,
		driver.BackgroundChecked,
		driver.EliteApproved,
	)
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
}

// GetByPhone retrieves a driver by phone number.
func (r *DriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE phone = $1`, phone)
}

// GetByIDs loads every driver whose id is in ids.
func (r *DriverRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Driver, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = ANY($1)`, pq.Array(ids))
}

// GetAll retrieves all drivers.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	return r.list(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY id`)
}

func (r *DriverRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Driver, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// UpdateStatus updates the status of a driver.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	result, err := r.q.ExecContext(ctx, `UPDATE drivers SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return checkAffected(result, repository.ErrNotFound)
}

func (r *DriverRepository) getOne(ctx context.Context, query string, arg any) (*domain.Driver, error) {
	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var d domain.Driver
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Phone,
		&d.Status,
		&d.Rating,
		&d.Seats,
		&d.VehicleYear,
		&d.PetApproved,
		&d.BackgroundChecked,
		&d.EliteApproved,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
