package lifecycle

import "testing"

func TestIsDriverEligibleForCompensation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		distanceKm  float64
		durationSec float64
		eligible    bool
		reason      string
	}{
		{1.0, 0, true, "Driver moved 1.00 km (threshold: 1 km)"},
		{2.345, 300, true, "Driver moved 2.35 km (threshold: 1 km)"},
		{0.5, 59, false, "Driver movement below compensation threshold (0.50 km, 59 seconds)"},
		{0.5, 60, true, "Driver spent 60 seconds en route (threshold: 60 seconds)"},
		{0, 90.5, true, "Driver spent 90.5 seconds en route (threshold: 60 seconds)"},
	}

	for _, tt := range tests {
		got := IsDriverEligibleForCompensation(tt.distanceKm, tt.durationSec)
		if got.Eligible != tt.eligible {
			t.Errorf("(%v km, %v s) eligible = %v, want %v", tt.distanceKm, tt.durationSec, got.Eligible, tt.eligible)
		}
		if got.Reason != tt.reason {
			t.Errorf("(%v km, %v s) reason = %q, want %q", tt.distanceKm, tt.durationSec, got.Reason, tt.reason)
		}
	}
}
