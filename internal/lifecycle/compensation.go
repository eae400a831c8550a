package lifecycle

import (
	"fmt"
	"strconv"
)

// CompensationDecision says whether a driver is owed compensation for a
// cancelled pickup, with a reason naming the observed value and threshold.
type CompensationDecision struct {
	Eligible bool
	Reason   string
}

// IsDriverEligibleForCompensation applies the distance rule first and the
// duration rule second.
func IsDriverEligibleForCompensation(distanceKm, durationSec float64) CompensationDecision {
	if distanceKm >= CompensationMinDistanceKm {
		return CompensationDecision{
			Eligible: true,
			Reason:   fmt.Sprintf("Driver moved %.2f km (threshold: 1 km)", distanceKm),
		}
	}

	if durationSec >= CompensationMinDurationSec {
		return CompensationDecision{
			Eligible: true,
			Reason:   fmt.Sprintf("Driver spent %s seconds en route (threshold: 60 seconds)", formatSeconds(durationSec)),
		}
	}

	return CompensationDecision{
		Reason: fmt.Sprintf("Driver movement below compensation threshold (%.2f km, %s seconds)", distanceKm, formatSeconds(durationSec)),
	}
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
