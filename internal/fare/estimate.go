package fare

import (
	"math"
	"time"
)

// DefaultEarlyArrivalBufferMinutes is the slack added before a reserved pickup.
const DefaultEarlyArrivalBufferMinutes = 10

// Breakdown itemises a fare.
type Breakdown struct {
	Base     float64 `json:"base"`
	Distance float64 `json:"distance"`
	Time     float64 `json:"time"`
	Waiting  float64 `json:"waiting"`
	Premium  float64 `json:"premium"`
}

// Estimate is a priced fare with its components.
type Estimate struct {
	TotalFare float64   `json:"total_fare"`
	Breakdown Breakdown `json:"breakdown"`
}

// EstimateFare prices a trip. Components are rounded individually; the
// minimum fare is applied to the unrounded subtotal and the result rounded once.
func EstimateFare(distanceKm, durationMinutes, waitingMinutes float64, rates Rates) Estimate {
	distance := distanceKm * rates.PerKm
	timeCharge := durationMinutes * rates.PerMinute
	waiting := waitingMinutes * rates.WaitingPerMinute

	subtotal := rates.BaseFare + distance + timeCharge + waiting + rates.ReservationPremium

	return Estimate{
		TotalFare: Round2(math.Max(subtotal, rates.MinimumFare)),
		Breakdown: Breakdown{
			Base:     rates.BaseFare,
			Distance: Round2(distance),
			Time:     Round2(timeCharge),
			Waiting:  Round2(waiting),
			Premium:  rates.ReservationPremium,
		},
	}
}

// RecommendedDepartureTime is when a driver should leave to reach a
// reserved pickup etaMinutes away with bufferMinutes to spare.
func RecommendedDepartureTime(scheduledPickupAt time.Time, etaMinutes, bufferMinutes float64) time.Time {
	lead := time.Duration((etaMinutes + bufferMinutes) * float64(time.Minute))
	return scheduledPickupAt.Add(-lead)
}

// Range is the span a quoted fare may end up in once traffic is known.
type Range struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Estimate float64 `json:"estimate"`
}

// EstimateRange widens an estimate by the typical traffic overrun on a trip
// of durationMinutes.
func EstimateRange(estimate, durationMinutes, multiplier float64) Range {
	m := math.Max(1.0, multiplier)
	upper := estimate + durationMinutes*estimateTrafficVarianceFactor*TrafficOverrunRatePerMinute*m
	return Range{
		Min:      Round2(estimate),
		Max:      Round2(upper),
		Estimate: Round2(estimate),
	}
}
