// Package guard holds the financial checks a rider must pass before a ride
// request is accepted.
package guard

import (
	"fmt"
	"log/slog"
	"strconv"

	"zibana/internal/domain"
)

// Rejection codes.
const (
	CodeWalletFrozen         = "WALLET_FROZEN"
	CodeUserSuspended        = "USER_SUSPENDED"
	CodeCurrencyMismatch     = "CURRENCY_MISMATCH"
	CodeInvalidPaymentSource = "INVALID_PAYMENT_SOURCE"
	CodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
)

// RideRequestInput is the rider's financial standing at request time.
type RideRequestInput struct {
	UserID           string
	IsTester         bool
	WalletCurrency   string
	TripCurrency     string
	CountryCode      string
	AvailableBalance float64
	WalletFrozen     bool
	UserSuspended    bool
	PaymentSource    domain.PaymentMethod
}

// Result is the guard's verdict. Code, Message and Details are empty when allowed.
type Result struct {
	Allowed bool           `json:"allowed"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Guard runs ride-request checks and logs every rejection.
type Guard struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{log: log.With("component", "financial_guard")}
}

// ValidateRideRequest checks, in order: frozen wallet, suspended account,
// wallet/trip currency, payment source for testers and non-testers, and the
// country's minimum balance.
func (g *Guard) ValidateRideRequest(in RideRequestInput) Result {
	country := CountryConfig(in.CountryCode)

	switch {
	case in.WalletFrozen:
		return g.reject(in, CodeWalletFrozen, Result{
			Code:    CodeWalletFrozen,
			Message: "Your wallet is frozen. Please contact support.",
		})

	case in.UserSuspended:
		return g.reject(in, CodeUserSuspended, Result{
			Code:    CodeUserSuspended,
			Message: "Your account is suspended. Please contact support.",
		})

	case in.WalletCurrency != in.TripCurrency:
		return g.reject(in, CodeCurrencyMismatch, Result{
			Code:    CodeCurrencyMismatch,
			Message: fmt.Sprintf("Currency mismatch: Your wallet is %s but trip is %s", in.WalletCurrency, in.TripCurrency),
			Details: map[string]any{
				"wallet_currency": in.WalletCurrency,
				"trip_currency":   in.TripCurrency,
			},
		})

	case in.IsTester && in.PaymentSource != domain.PaymentMethodTestWallet:
		return g.reject(in, "TESTER_INVALID_SOURCE", Result{
			Code:    CodeInvalidPaymentSource,
			Message: "Test users must use TEST_WALLET",
		})

	case !in.IsTester && in.PaymentSource == domain.PaymentMethodTestWallet:
		return g.reject(in, "NON_TESTER_TEST_WALLET", Result{
			Code:    CodeInvalidPaymentSource,
			Message: "Regular users cannot use TEST_WALLET",
		})

	case in.AvailableBalance < country.MinBalanceForRide:
		return g.reject(in, CodeInsufficientBalance, Result{
			Code:    CodeInsufficientBalance,
			Message: "Minimum balance required: " + country.Symbol + strconv.FormatFloat(country.MinBalanceForRide, 'f', -1, 64),
			Details: map[string]any{
				"required":  country.MinBalanceForRide,
				"available": in.AvailableBalance,
				"currency":  country.Currency,
			},
		})
	}

	return Result{Allowed: true}
}

// reason is the log code, which is finer grained than the returned Code for
// payment source rejections.
func (g *Guard) reject(in RideRequestInput, reason string, r Result) Result {
	g.log.Warn("ride request rejected",
		"code", reason,
		"user_id", in.UserID,
		"country_code", in.CountryCode,
		"is_tester", in.IsTester,
		"payment_source", in.PaymentSource,
		"balance", in.AvailableBalance,
	)
	r.Allowed = false
	return r
}
