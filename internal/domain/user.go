package domain

import "time"

// User represents a rider account together with its wallet state.
type User struct {
	ID            string
	Name          string
	Phone         string
	CountryCode   string
	Currency      string
	WalletBalance float64
	WalletFrozen  bool
	Suspended     bool
	IsTester      bool
	CreatedAt     time.Time
}
