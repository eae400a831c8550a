package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"zibana/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)

	_ repository.TxRunner          = (*TxRunner)(nil)
	_ repository.RideRepository    = (*RideRepository)(nil)
	_ repository.DriverRepository  = (*DriverRepository)(nil)
	_ repository.PaymentRepository = (*PaymentRepository)(nil)
	_ repository.UserRepository    = (*UserRepository)(nil)
	_ repository.ReceiptRepository = (*ReceiptRepository)(nil)
)

//go:embed schema.sql
var schema string

// Migrate creates the tables the repositories use if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// TxRunner opens database transactions for multi-table writes.
type TxRunner struct {
	db *sql.DB
}

// NewTxRunner creates a TxRunner.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

// WithinTx runs fn with transaction-scoped repositories.
func (t *TxRunner) WithinTx(ctx context.Context, fn func(s repository.Stores) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = fn(repository.Stores{
		Rides:    NewRideRepositoryWithTx(tx),
		Drivers:  NewDriverRepositoryWithTx(tx),
		Payments: NewPaymentRepositoryWithTx(tx),
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// checkAffected maps a zero-row write to err.
func checkAffected(result sql.Result, err error) error {
	rowsAffected, rerr := result.RowsAffected()
	if rerr != nil {
		return rerr
	}
	if rowsAffected == 0 {
		return err
	}
	return nil
}
