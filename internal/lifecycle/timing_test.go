package lifecycle

import (
	"math"
	"testing"
	"time"

	"zibana/internal/domain"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestMatchingWindow(t *testing.T) {
	t.Parallel()

	exp := MatchingExpiration(epoch)
	if got := exp.Sub(epoch); got != 10*time.Second {
		t.Fatalf("matching window = %v, want 10s", got)
	}

	if IsMatchingExpired(nil, epoch) {
		t.Error("nil expiration must never expire")
	}
	if IsMatchingExpired(&exp, exp) {
		t.Error("window should still be open at exactly the expiration instant")
	}
	if !IsMatchingExpired(&exp, exp.Add(time.Millisecond)) {
		t.Error("window should be closed after expiration")
	}
}

func TestCalculateWaitingTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		elapsed time.Duration
		want    WaitingBreakdown
	}{
		{"zero", 0, WaitingBreakdown{}},
		{"inside free tier", 90 * time.Second, WaitingBreakdown{TotalMinutes: 1.5, FreeMinutes: 1.5}},
		{"ten minutes", 10 * time.Minute, WaitingBreakdown{TotalMinutes: 10, FreeMinutes: 2, PaidMinutes: 5, BonusMinutes: 3}},
		{"capped", 20 * time.Minute, WaitingBreakdown{TotalMinutes: 20, FreeMinutes: 2, PaidMinutes: 5, BonusMinutes: 4}},
		{"negative", -3 * time.Minute, WaitingBreakdown{TotalMinutes: -3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateWaitingTime(ptr(epoch), epoch.Add(tt.elapsed))
			if !closeEnough(got.TotalMinutes, tt.want.TotalMinutes) ||
				!closeEnough(got.FreeMinutes, tt.want.FreeMinutes) ||
				!closeEnough(got.PaidMinutes, tt.want.PaidMinutes) ||
				!closeEnough(got.BonusMinutes, tt.want.BonusMinutes) {
				t.Errorf("CalculateWaitingTime(+%v) = %+v, want %+v", tt.elapsed, got, tt.want)
			}
			if got.FreeMinutes < 0 || got.PaidMinutes < 0 || got.BonusMinutes < 0 {
				t.Errorf("negative tier in %+v", got)
			}
		})
	}
}

func TestCalculateWaitingTime_NotStarted(t *testing.T) {
	t.Parallel()

	if got := CalculateWaitingTime(nil, epoch); got != (WaitingBreakdown{}) {
		t.Errorf("nil start = %+v, want zero value", got)
	}
}

func TestShouldTriggerSafetyAlert(t *testing.T) {
	t.Parallel()

	now := epoch
	fiveAgo := now.Add(-5 * time.Minute)

	tests := []struct {
		name      string
		lastMove  *time.Time
		alertSent *time.Time
		status    domain.RideStatus
		want      bool
	}{
		{"idle in progress", ptr(fiveAgo), nil, domain.RideStatusInProgress, true},
		{"waiting never alerts", ptr(fiveAgo), nil, domain.RideStatusWaiting, false},
		{"no movement recorded", nil, nil, domain.RideStatusInProgress, false},
		{"already alerted", ptr(fiveAgo), ptr(now.Add(-time.Minute)), domain.RideStatusInProgress, false},
		{"alert from earlier idle period", ptr(fiveAgo), ptr(now.Add(-10 * time.Minute)), domain.RideStatusInProgress, true},
		{"exactly four minutes", ptr(now.Add(-4 * time.Minute)), nil, domain.RideStatusInProgress, true},
		{"under four minutes", ptr(now.Add(-3 * time.Minute)), nil, domain.RideStatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldTriggerSafetyAlert(tt.lastMove, tt.alertSent, tt.status, now); got != tt.want {
				t.Errorf("ShouldTriggerSafetyAlert() = %v, want %v", got, tt.want)
			}
		})
	}
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
