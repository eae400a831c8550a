package domain

import "time"

// ReceiptItem is one priced line on a receipt.
type ReceiptItem struct {
	Label  string
	Amount float64
}

// Receipt is issued to the rider once a ride completes.
type Receipt struct {
	ID            string
	RideID        string
	DriverID      string
	RiderID       string
	Items         []ReceiptItem
	Total         float64
	Currency      string
	DistanceKm    float64
	DurationMin   float64
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	CompletedAt   time.Time
}
