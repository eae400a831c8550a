package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"zibana/internal/domain"
	"zibana/internal/repository"
)

// PSP is the interface for a Payment Service Provider.
type PSP interface {
	Charge(ctx context.Context, method domain.PaymentMethod, amount float64, currency string) (bool, error)
}

// SimulatedPSP approves every charge. Cash rides are settled in the car, so
// recording them as successful mirrors what the driver collects.
type SimulatedPSP struct{}

// NewSimulatedPSP creates a PSP that never declines.
func NewSimulatedPSP() *SimulatedPSP {
	return &SimulatedPSP{}
}

func (p *SimulatedPSP) Charge(context.Context, domain.PaymentMethod, float64, string) (bool, error) {
	return true, nil
}

// PaymentService handles payment operations.
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	psp         PSP
	log         *slog.Logger
	now         func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(paymentRepo repository.PaymentRepository, psp PSP, log *slog.Logger) *PaymentService {
	if log == nil {
		log = slog.Default()
	}
	return &PaymentService{
		paymentRepo: paymentRepo,
		psp:         psp,
		log:         log.With("component", "payments"),
		now:         time.Now,
	}
}

// ChargeRequest contains the parameters for charging a rider.
type ChargeRequest struct {
	RideID   string
	Kind     domain.PaymentKind
	Method   domain.PaymentMethod
	Amount   float64
	Currency string
}

// IdempotencyKey identifies the single charge of a kind allowed per ride.
func IdempotencyKey(kind domain.PaymentKind, rideID string) string {
	return fmt.Sprintf("payment:%s:%s", kind, rideID)
}

// Charge records and collects a payment. A second charge of the same kind
// for the same ride returns the first payment unchanged.
func (s *PaymentService) Charge(ctx context.Context, req ChargeRequest) (*domain.Payment, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidPaymentAmount
	}

	key := IdempotencyKey(req.Kind, req.RideID)

	existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	payment := &domain.Payment{
		ID:             uuid.New().String(),
		RideID:         req.RideID,
		Kind:           req.Kind,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         domain.PaymentStatusPending,
		IdempotencyKey: key,
		CreatedAt:      s.now(),
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	status := domain.PaymentStatusFailed
	ok, err := s.psp.Charge(ctx, req.Method, req.Amount, req.Currency)
	switch {
	case err != nil:
		s.log.WarnContext(ctx, "psp charge error", "payment_id", payment.ID, "ride_id", req.RideID, "error", err)
	case ok:
		status = domain.PaymentStatusSuccess
	}

	if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, status); err != nil {
		return nil, err
	}
	payment.Status = status

	s.log.InfoContext(ctx, "payment processed",
		"payment_id", payment.ID,
		"ride_id", req.RideID,
		"kind", req.Kind,
		"amount", req.Amount,
		"status", status,
	)
	return payment, nil
}

// GetPayment retrieves a payment by ID.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, ErrInvalidPaymentID
	}

	return s.paymentRepo.GetByID(ctx, paymentID)
}

// ListForRide returns every charge made for a ride.
func (s *PaymentService) ListForRide(ctx context.Context, rideID string) ([]*domain.Payment, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return s.paymentRepo.ListByRideID(ctx, rideID)
}

// ValidatePaymentMethod validates a payment method string.
func ValidatePaymentMethod(method string) (domain.PaymentMethod, error) {
	switch domain.PaymentMethod(method) {
	case domain.PaymentMethodCash, domain.PaymentMethodCard,
		domain.PaymentMethodWallet, domain.PaymentMethodTestWallet:
		return domain.PaymentMethod(method), nil
	case "":
		return domain.PaymentMethodCash, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}
