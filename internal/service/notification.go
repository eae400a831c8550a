package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zibana/internal/domain"
	"zibana/internal/events"
	"zibana/internal/guard"
	"zibana/internal/lifecycle"
	"zibana/internal/ws"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationRideOffered       NotificationType = "RIDE_OFFERED"
	NotificationRideStatus        NotificationType = "RIDE_STATUS"
	NotificationRideCancelled     NotificationType = "RIDE_CANCELLED"
	NotificationSafetyAlert       NotificationType = "SAFETY_ALERT"
	NotificationPaymentSuccess    NotificationType = "PAYMENT_SUCCESS"
	NotificationPaymentFailed     NotificationType = "PAYMENT_FAILED"
	NotificationReceiptReady      NotificationType = "RECEIPT_READY"
	NotificationDriverCompensated NotificationType = "DRIVER_COMPENSATED"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RideID      string
	RecipientID string
	Title       string
	Message     string
	Data        map[string]any
	CreatedAt   time.Time
}

// Broadcaster pushes live updates to clients watching a ride.
type Broadcaster interface {
	Broadcast(msg ws.Message)
}

// NotificationService fans each notification out to the log, the websocket
// hub and the event broker.
type NotificationService struct {
	log       *slog.Logger
	hub       Broadcaster
	publisher events.Publisher
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService. hub and publisher may be nil.
func NewNotificationService(log *slog.Logger, hub Broadcaster, publisher events.Publisher) *NotificationService {
	if log == nil {
		log = slog.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &NotificationService{
		log:       log.With("component", "notifications"),
		hub:       hub,
		publisher: publisher,
		now:       time.Now,
	}
}

// NotifyRideOffered tells nearby eligible drivers about a ride they can accept.
func (s *NotificationService) NotifyRideOffered(ctx context.Context, ride *domain.Ride, driverIDs []string) {
	for _, driverID := range driverIDs {
		s.send(ctx, Notification{
			Type:        NotificationRideOffered,
			RideID:      ride.ID,
			RecipientID: driverID,
			Title:       "New Ride Request",
			Message:     fmt.Sprintf("New %s ride near you. Pickup at (%.4f, %.4f)", ride.RideClass, ride.PickupLat, ride.PickupLng),
			Data: map[string]any{
				"ride_class":     ride.RideClass,
				"pickup_lat":     ride.PickupLat,
				"pickup_lng":     ride.PickupLng,
				"estimated_fare": ride.EstimatedFare,
				"surge":          ride.SurgeMultiplier,
				"expires_at":     ride.MatchingExpiresAt,
			},
		})
	}
}

// NotifyStatusChanged reports a lifecycle step to the rider, to ride
// watchers, and to the broker.
func (s *NotificationService) NotifyStatusChanged(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, Notification{
		Type:        NotificationRideStatus,
		RideID:      ride.ID,
		RecipientID: ride.RiderID,
		Title:       "Ride Update",
		Message:     statusMessage(ride),
		Data: map[string]any{
			"status":    ride.Status,
			"driver_id": ride.AssignedDriverID,
		},
	})
	s.publish(ctx, ride, NotificationRideStatus, nil)
}

// NotifyRideCancelled tells the other party that a ride was cancelled.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.Ride) {
	recipient := ride.RiderID
	message := "The driver has cancelled the ride"
	if ride.CancelledBy == string(lifecycle.RoleRider) {
		recipient = ride.AssignedDriverID
		message = "The rider has cancelled the ride"
	}
	if ride.CancelReason == "no_driver_found" {
		message = "No driver accepted your ride in time"
	}

	data := map[string]any{
		"cancelled_by":     ride.CancelledBy,
		"reason":           ride.CancelReason,
		"cancellation_fee": ride.CancellationFee,
	}
	if recipient != "" {
		s.send(ctx, Notification{
			Type:        NotificationRideCancelled,
			RideID:      ride.ID,
			RecipientID: recipient,
			Title:       "Ride Cancelled",
			Message:     message,
			Data:        data,
		})
	}
	s.publish(ctx, ride, NotificationRideStatus, data)
}

// NotifySafetyAlert asks the rider to confirm they are safe after the trip
// stopped moving.
func (s *NotificationService) NotifySafetyAlert(ctx context.Context, ride *domain.Ride, idleFor time.Duration) {
	data := map[string]any{
		"idle_minutes": int(idleFor.Minutes()),
		"driver_id":    ride.AssignedDriverID,
	}
	s.send(ctx, Notification{
		Type:        NotificationSafetyAlert,
		RideID:      ride.ID,
		RecipientID: ride.RiderID,
		Title:       "Are you okay?",
		Message:     fmt.Sprintf("Your trip has not moved for %d minutes. Tap to confirm you are safe.", int(idleFor.Minutes())),
		Data:        data,
	})
	s.publish(ctx, ride, NotificationSafetyAlert, data)
}

// NotifyPayment reports the outcome of a charge to the rider.
func (s *NotificationService) NotifyPayment(ctx context.Context, payment *domain.Payment, riderID string) {
	n := Notification{
		Type:        NotificationPaymentSuccess,
		RideID:      payment.RideID,
		RecipientID: riderID,
		Title:       "Payment Successful",
		Message:     fmt.Sprintf("Payment of %s was successful", guard.FormatAmount(payment.Amount, payment.Currency)),
		Data: map[string]any{
			"payment_id": payment.ID,
			"kind":       payment.Kind,
			"amount":     payment.Amount,
		},
	}
	if payment.Status != domain.PaymentStatusSuccess {
		n.Type = NotificationPaymentFailed
		n.Title = "Payment Failed"
		n.Message = fmt.Sprintf("Payment of %s failed. Please update your payment method.", guard.FormatAmount(payment.Amount, payment.Currency))
	}
	s.send(ctx, n)
}

// NotifyDriverCompensated tells a driver what they earn for a cancelled pickup.
func (s *NotificationService) NotifyDriverCompensated(ctx context.Context, ride *domain.Ride, amount float64) {
	s.send(ctx, Notification{
		Type:        NotificationDriverCompensated,
		RideID:      ride.ID,
		RecipientID: ride.AssignedDriverID,
		Title:       "Cancellation Compensation",
		Message:     fmt.Sprintf("You will receive %s for this cancelled pickup", guard.FormatAmount(amount, ride.Currency)),
		Data:        map[string]any{"amount": amount},
	})
}

// NotifyReceiptReady notifies the rider that the receipt is ready.
func (s *NotificationService) NotifyReceiptReady(ctx context.Context, receipt *domain.Receipt) {
	s.send(ctx, Notification{
		Type:        NotificationReceiptReady,
		RideID:      receipt.RideID,
		RecipientID: receipt.RiderID,
		Title:       "Receipt Ready",
		Message:     fmt.Sprintf("Your receipt for %s is ready", guard.FormatAmount(receipt.Total, receipt.Currency)),
		Data: map[string]any{
			"receipt_id": receipt.ID,
			"total":      receipt.Total,
		},
	})
}

func (s *NotificationService) send(ctx context.Context, n Notification) {
	n.CreatedAt = s.now()

	s.log.InfoContext(ctx, "notification",
		"type", n.Type,
		"ride_id", n.RideID,
		"recipient_id", n.RecipientID,
		"title", n.Title,
		"message", n.Message,
	)

	if s.hub != nil && n.RideID != "" {
		s.hub.Broadcast(ws.Message{
			Type:   string(n.Type),
			RideID: n.RideID,
			Data: map[string]any{
				"recipient_id": n.RecipientID,
				"title":        n.Title,
				"message":      n.Message,
				"data":         n.Data,
				"created_at":   n.CreatedAt,
			},
		})
	}
}

func (s *NotificationService) publish(ctx context.Context, ride *domain.Ride, t NotificationType, data map[string]any) {
	event := events.RideEvent{
		Type:       string(t),
		RideID:     ride.ID,
		Status:     string(ride.Status),
		RiderID:    ride.RiderID,
		DriverID:   ride.AssignedDriverID,
		Data:       data,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WarnContext(ctx, "publish ride event failed", "ride_id", ride.ID, "type", t, "error", err)
	}
}

func statusMessage(ride *domain.Ride) string {
	switch ride.Status {
	case domain.RideStatusMatching:
		return "Looking for a driver near you"
	case domain.RideStatusAccepted:
		return "A driver has accepted your ride"
	case domain.RideStatusDriverEnRoute:
		return "Your driver is on the way"
	case domain.RideStatusArrived:
		return "Your driver has arrived"
	case domain.RideStatusWaiting:
		return "Your driver is waiting. Free waiting time has started."
	case domain.RideStatusInProgress:
		return "Your trip has started. Enjoy your ride!"
	case domain.RideStatusCompleted:
		return fmt.Sprintf("Your trip has ended. Total fare: %s", guard.FormatAmount(ride.FinalFare, ride.Currency))
	}
	return fmt.Sprintf("Ride status is now %s", ride.Status)
}
