// Package fare prices rides: quotes, completed-trip settlement, waiting and
// traffic surcharges, and cancellation compensation.
//
// Every money component is rounded to cents where it is computed, using
// half-up rounding.
package fare

import "math"

// Rates is the pricing table a fare is computed from.
type Rates struct {
	BaseFare           float64 `yaml:"base_fare"`
	PerKm              float64 `yaml:"per_km"`
	PerMinute          float64 `yaml:"per_minute"`
	WaitingPerMinute   float64 `yaml:"waiting_per_minute"`
	MinimumFare        float64 `yaml:"minimum_fare"`
	ReservationPremium float64 `yaml:"reservation_premium"`
}

// DefaultRates returns the standard pricing table.
func DefaultRates() Rates {
	return Rates{
		BaseFare:           2.50,
		PerKm:              1.20,
		PerMinute:          0.25,
		WaitingPerMinute:   0.35,
		MinimumFare:        5.00,
		ReservationPremium: 0,
	}
}

// Scaled applies a ride-class or surge multiplier to the base, distance and
// time rates. Multipliers below 1 are treated as 1.
func (r Rates) Scaled(multiplier float64) Rates {
	m := math.Max(1.0, multiplier)
	r.BaseFare *= m
	r.PerKm *= m
	r.PerMinute *= m
	return r
}

// WithPremium returns a copy of r carrying a reservation premium.
func (r Rates) WithPremium(premium float64) Rates {
	r.ReservationPremium = premium
	return r
}

const (
	// Waiting surcharges per tier minute.
	WaitingPaidRatePerMinute  = 0.30
	WaitingBonusRatePerMinute = 0.50

	// TrafficOverrunRatePerMinute is charged per minute a trip runs past its estimate.
	TrafficOverrunRatePerMinute = 0.35

	CancellationRatePerKm         = 1.00
	CancellationMinimumFee        = 3.00
	CancellationPlatformFeePct    = 20.0
	PlatformCommissionPct         = 20.0
	estimateTrafficVarianceFactor = 0.3
)

// Round2 rounds to cents, with halves rounded up.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
