package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"zibana/internal/domain"
	"zibana/internal/fare"
	"zibana/internal/guard"
	"zibana/internal/repository"
)

// ReceiptService issues and formats receipts for completed rides.
type ReceiptService struct {
	receiptRepo         repository.ReceiptRepository
	notificationService *NotificationService
	log                 *slog.Logger
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(receiptRepo repository.ReceiptRepository, notificationService *NotificationService, log *slog.Logger) *ReceiptService {
	if log == nil {
		log = slog.Default()
	}
	return &ReceiptService{
		receiptRepo:         receiptRepo,
		notificationService: notificationService,
		log:                 log.With("component", "receipts"),
	}
}

// GenerateReceiptRequest contains the parameters for generating a receipt.
type GenerateReceiptRequest struct {
	Ride        *domain.Ride
	Fare        fare.CompletedFare
	DistanceKm  float64
	DurationMin float64
	Payment     *domain.Payment
}

// NewReceiptID returns an identifier of the form RCP-XXXXXXXX.
func NewReceiptID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "RCP-" + strings.ToUpper(id[:8])
}

// GenerateReceipt builds and stores the receipt for a completed ride. A ride
// that already has a receipt gets the stored one back.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, req GenerateReceiptRequest) (*domain.Receipt, error) {
	if req.Ride == nil {
		return nil, ErrInvalidRideID
	}

	existing, err := s.receiptRepo.GetByRideID(ctx, req.Ride.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	paymentStatus := domain.PaymentStatusPending
	if req.Payment != nil {
		paymentStatus = req.Payment.Status
	}

	completedAt := time.Now()
	if req.Ride.CompletedAt != nil {
		completedAt = *req.Ride.CompletedAt
	}

	receipt := &domain.Receipt{
		ID:            NewReceiptID(),
		RideID:        req.Ride.ID,
		DriverID:      req.Ride.AssignedDriverID,
		RiderID:       req.Ride.RiderID,
		Items:         ReceiptItems(req.Fare),
		Total:         req.Fare.TotalFare,
		Currency:      req.Ride.Currency,
		DistanceKm:    fare.Round2(req.DistanceKm),
		DurationMin:   fare.Round2(req.DurationMin),
		PaymentMethod: req.Ride.PaymentMethod,
		PaymentStatus: paymentStatus,
		CompletedAt:   completedAt,
	}

	if err := s.receiptRepo.Create(ctx, receipt); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "receipt issued", "receipt_id", receipt.ID, "ride_id", receipt.RideID, "total", receipt.Total)

	if s.notificationService != nil {
		s.notificationService.NotifyReceiptReady(ctx, receipt)
	}
	return receipt, nil
}

// GetByRideID returns the receipt issued for a ride.
func (s *ReceiptService) GetByRideID(ctx context.Context, rideID string) (*domain.Receipt, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return s.receiptRepo.GetByRideID(ctx, rideID)
}

// ReceiptItems itemises a completed fare. Zero lines other than the base
// fare are left out, and when the minimum fare lifted the total a line
// makes up the difference.
func ReceiptItems(f fare.CompletedFare) []domain.ReceiptItem {
	b := f.Fare.Breakdown
	items := []domain.ReceiptItem{{Label: "Base fare", Amount: b.Base}}

	add := func(label string, amount float64) {
		if amount > 0 {
			items = append(items, domain.ReceiptItem{Label: label, Amount: amount})
		}
	}
	add("Distance", b.Distance)
	add("Time", b.Time)
	add("Waiting", b.Waiting)
	add("Reservation premium", b.Premium)

	sum := 0.0
	for _, it := range items {
		sum += it.Amount
	}
	// Per-line rounding can drift a cent or two from the total.
	if diff := fare.Round2(f.Fare.TotalFare - sum); diff > 0.02 {
		add("Minimum fare adjustment", diff)
	}
	add("Traffic adjustment", f.Traffic.Fee)

	return items
}

// FormatReceipt formats the receipt as plain text for email or print.
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder
	line := strings.Repeat("=", 37)
	rule := strings.Repeat("-", 37)

	fmt.Fprintf(&b, "%s\n        RIDE RECEIPT\n%s\n", line, line)
	fmt.Fprintf(&b, "Receipt ID: %s\n", receipt.ID)
	fmt.Fprintf(&b, "Ride ID:    %s\n", receipt.RideID)
	fmt.Fprintf(&b, "Date:       %s\n\n", receipt.CompletedAt.Format("Jan 02, 2006 3:04 PM"))

	fmt.Fprintf(&b, "TRIP DETAILS\n%s\n", rule)
	fmt.Fprintf(&b, "Distance:   %.2f km\n", receipt.DistanceKm)
	fmt.Fprintf(&b, "Duration:   %d min\n\n", int(receipt.DurationMin))

	fmt.Fprintf(&b, "FARE BREAKDOWN\n%s\n", rule)
	for _, it := range receipt.Items {
		fmt.Fprintf(&b, "%-24s %12s\n", it.Label+":", guard.FormatAmount(it.Amount, receipt.Currency))
	}
	fmt.Fprintf(&b, "%s\n%-24s %12s\n\n", rule, "TOTAL:", guard.FormatAmount(receipt.Total, receipt.Currency))

	fmt.Fprintf(&b, "PAYMENT\n%s\n", rule)
	fmt.Fprintf(&b, "Method: %s\n", receipt.PaymentMethod)
	fmt.Fprintf(&b, "Status: %s\n\n", receipt.PaymentStatus)

	fmt.Fprintf(&b, "%s\n     Thank you for riding with us!\n%s\n", line, line)
	return b.String()
}
