package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"zibana/internal/domain"
	"zibana/internal/service"
)

// PaymentHandler handles HTTP requests for payments and receipts.
type PaymentHandler struct {
	paymentService *service.PaymentService
	receiptService *service.ReceiptService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService, receiptService *service.ReceiptService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		receiptService: receiptService,
	}
}

// PaymentResponse is the HTTP response for payment operations.
type PaymentResponse struct {
	ID             string  `json:"id"`
	RideID         string  `json:"ride_id"`
	Kind           string  `json:"kind"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	IdempotencyKey string  `json:"idempotency_key"`
	CreatedAt      string  `json:"created_at"`
}

// ReceiptResponse is the HTTP response for a receipt.
type ReceiptResponse struct {
	ID            string               `json:"id"`
	RideID        string               `json:"ride_id"`
	DriverID      string               `json:"driver_id"`
	RiderID       string               `json:"rider_id"`
	Items         []ReceiptItemPayload `json:"items"`
	Total         float64              `json:"total"`
	Currency      string               `json:"currency"`
	DistanceKm    float64              `json:"distance_km"`
	DurationMin   float64              `json:"duration_min"`
	PaymentMethod string               `json:"payment_method"`
	PaymentStatus string               `json:"payment_status"`
	CompletedAt   string               `json:"completed_at"`
}

// ReceiptItemPayload is one receipt line.
type ReceiptItemPayload struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// ListRidePayments handles GET /v1/rides/:id/payments
func (h *PaymentHandler) ListRidePayments(c *gin.Context) {
	payments, err := h.paymentService.ListForRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		response = append(response, toPaymentResponse(p))
	}
	respondJSON(c, http.StatusOK, response)
}

// GetReceipt handles GET /v1/rides/:id/receipt
//
// ?format=text returns the printable receipt.
func (h *PaymentHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.receiptService.GetByRideID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" || strings.HasPrefix(c.GetHeader("Accept"), "text/plain") {
		c.String(http.StatusOK, h.receiptService.FormatReceipt(receipt))
		return
	}

	items := make([]ReceiptItemPayload, len(receipt.Items))
	for i, it := range receipt.Items {
		items[i] = ReceiptItemPayload{Label: it.Label, Amount: it.Amount}
	}

	respondJSON(c, http.StatusOK, ReceiptResponse{
		ID:            receipt.ID,
		RideID:        receipt.RideID,
		DriverID:      receipt.DriverID,
		RiderID:       receipt.RiderID,
		Items:         items,
		Total:         receipt.Total,
		Currency:      receipt.Currency,
		DistanceKm:    receipt.DistanceKm,
		DurationMin:   receipt.DurationMin,
		PaymentMethod: string(receipt.PaymentMethod),
		PaymentStatus: string(receipt.PaymentStatus),
		CompletedAt:   formatTime(&receipt.CompletedAt),
	})
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		RideID:         p.RideID,
		Kind:           string(p.Kind),
		Amount:         p.Amount,
		Currency:       p.Currency,
		Status:         string(p.Status),
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      formatTime(&p.CreatedAt),
	}
}
