package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"zibana/internal/domain"
	"zibana/internal/repository"
)

// ReceiptRepository stores receipts with their line items as JSONB.
type ReceiptRepository struct {
	q Querier
}

// NewReceiptRepository creates a new PostgreSQL receipt repository.
func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{q: db}
}

type receiptItemRow struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Create persists a receipt. A second receipt for the same ride is ignored.
func (r *ReceiptRepository) Create(ctx context.Context, receipt *domain.Receipt) error {
	items := make([]receiptItemRow, len(receipt.Items))
	for i, it := range receipt.Items {
		items[i] = receiptItemRow{Label: it.Label, Amount: it.Amount}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode receipt items: %w", err)
	}

	query := `
		INSERT INTO receipts (id, ride_id, driver_id, rider_id, items, total, currency, distance_km, duration_min, payment_method, payment_status, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (ride_id) DO NOTHING
	`
	_, err = r.q.ExecContext(ctx, query,
		receipt.ID,
		receipt.RideID,
		receipt.DriverID,
		receipt.RiderID,
		itemsJSON,
		receipt.Total,
		receipt.Currency,
		receipt.DistanceKm,
		receipt.DurationMin,
		receipt.PaymentMethod,
		receipt.PaymentStatus,
		receipt.CompletedAt,
	)
	return err
}

// GetByRideID retrieves the receipt issued for a ride.
func (r *ReceiptRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Receipt, error) {
	query := `
		SELECT id, ride_id, driver_id, rider_id, items, total, currency, distance_km, duration_min, payment_method, payment_status, completed_at
		FROM receipts WHERE ride_id = $1
	`

	var rc domain.Receipt
	var itemsJSON []byte
	err := r.q.QueryRowContext(ctx, query, rideID).Scan(
		&rc.ID,
		&rc.RideID,
		&rc.DriverID,
		&rc.RiderID,
		&itemsJSON,
		&rc.Total,
		&rc.Currency,
		&rc.DistanceKm,
		&rc.DurationMin,
		&rc.PaymentMethod,
		&rc.PaymentStatus,
		&rc.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var items []receiptItemRow
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return nil, fmt.Errorf("decode receipt items: %w", err)
	}
	rc.Items = make([]domain.ReceiptItem, len(items))
	for i, it := range items {
		rc.Items[i] = domain.ReceiptItem{Label: it.Label, Amount: it.Amount}
	}
	return &rc, nil
}
