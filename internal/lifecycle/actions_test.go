package lifecycle

import (
	"testing"
	"time"

	"zibana/internal/domain"
)

func status(s domain.RideStatus) *domain.RideStatus { return &s }

func TestValidateAction_RolePermissions(t *testing.T) {
	t.Parallel()

	got := ValidateAction(ActionStartWaiting, RoleDriver, status(domain.RideStatusArrived), ActionOptions{}, epoch)
	if got.Allowed {
		t.Fatal("driver must not start waiting")
	}
	if got.Error != "driver cannot perform action 'start_waiting'" {
		t.Errorf("error = %q", got.Error)
	}

	if !ValidateAction(ActionStartWaiting, RoleSystem, status(domain.RideStatusArrived), ActionOptions{}, epoch).Allowed {
		t.Error("system should start waiting from arrived")
	}
}

func TestValidateAction_RequiredStatus(t *testing.T) {
	t.Parallel()

	got := ValidateAction(ActionStartTrip, RoleDriver, status(domain.RideStatusAccepted), ActionOptions{IsAssignedDriver: true}, epoch)
	want := "Cannot 'start_trip' when ride status is 'accepted'. Required: waiting, arrived"
	if got.Error != want {
		t.Errorf("error = %q, want %q", got.Error, want)
	}

	for _, s := range []domain.RideStatus{domain.RideStatusArrived, domain.RideStatusWaiting} {
		if !ValidateAction(ActionStartTrip, RoleDriver, status(s), ActionOptions{IsAssignedDriver: true}, epoch).Allowed {
			t.Errorf("start_trip should be allowed from %s", s)
		}
	}
}

func TestValidateAction_RequestHasNoPrecondition(t *testing.T) {
	t.Parallel()

	if !ValidateAction(ActionRequestRide, RoleRider, nil, ActionOptions{}, epoch).Allowed {
		t.Error("rider should be able to request a ride")
	}
}

func TestValidateAction_AcceptRespectsMatchingWindow(t *testing.T) {
	t.Parallel()

	exp := MatchingExpiration(epoch)
	opts := ActionOptions{MatchingExpiresAt: &exp}

	if !ValidateAction(ActionAcceptRide, RoleDriver, status(domain.RideStatusMatching), opts, epoch.Add(5*time.Second)).Allowed {
		t.Error("accept inside the window should be allowed")
	}
	got := ValidateAction(ActionAcceptRide, RoleDriver, status(domain.RideStatusMatching), opts, epoch.Add(11*time.Second))
	if got.Allowed || got.Error != "Matching window has expired. Cannot accept this ride." {
		t.Errorf("late accept = %+v", got)
	}
}

func TestValidateAction_AssignedDriverOnly(t *testing.T) {
	t.Parallel()

	got := ValidateAction(ActionArrive, RoleDriver, status(domain.RideStatusDriverEnRoute), ActionOptions{}, epoch)
	if got.Allowed || got.Error != "Only the assigned driver can perform this action" {
		t.Errorf("unassigned driver arrive = %+v", got)
	}
	if !ValidateAction(ActionArrive, RoleSystem, status(domain.RideStatusDriverEnRoute), ActionOptions{}, epoch).Allowed {
		t.Error("system arrive does not need an assigned driver")
	}
}

func TestValidateAction_RiderCancellation(t *testing.T) {
	t.Parallel()

	accepted := epoch.Add(-time.Minute)
	longAgo := epoch.Add(-10 * time.Minute)

	tests := []struct {
		name   string
		status domain.RideStatus
		opts   ActionOptions
		want   ActionValidation
	}{
		{"requested is free", domain.RideStatusRequested, ActionOptions{}, ActionValidation{Allowed: true}},
		{"matching is free", domain.RideStatusMatching, ActionOptions{}, ActionValidation{Allowed: true}},
		{
			"within grace", domain.RideStatusAccepted,
			ActionOptions{DriverAcceptedAt: &accepted, DriverMovement: &DriverMovement{DistanceKm: 3}},
			ActionValidation{Allowed: true, WithinGracePeriod: true},
		},
		{
			"driver moved after grace", domain.RideStatusAccepted,
			ActionOptions{DriverAcceptedAt: &longAgo, DriverMovement: &DriverMovement{DistanceKm: 1.2}},
			ActionValidation{Allowed: true, RequiresFee: true, CompensationEligible: true},
		},
		{
			"en route past grace with little movement", domain.RideStatusDriverEnRoute,
			ActionOptions{DriverAcceptedAt: &longAgo, DriverMovement: &DriverMovement{DistanceKm: 0.1, DurationSec: 10}},
			ActionValidation{Allowed: true, RequiresFee: true, CompensationEligible: true},
		},
		{
			"accepted past grace without movement", domain.RideStatusAccepted,
			ActionOptions{DriverAcceptedAt: &longAgo},
			ActionValidation{Allowed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateAction(ActionCancelRide, RoleRider, status(tt.status), tt.opts, epoch)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	got := ValidateAction(ActionCancelRide, RoleRider, status(domain.RideStatusArrived), ActionOptions{}, epoch)
	if got.Allowed || got.Error != "Rider cannot cancel when status is 'arrived'. Trip is in progress." {
		t.Errorf("rider cancel from arrived = %+v", got)
	}
}

func TestValidateAction_DriverCancellation(t *testing.T) {
	t.Parallel()

	got := ValidateAction(ActionCancelRide, RoleDriver, status(domain.RideStatusAccepted), ActionOptions{}, epoch)
	if got.Allowed || got.Error != "Driver cannot cancel when status is 'accepted'" {
		t.Errorf("driver cancel from accepted = %+v", got)
	}

	got = ValidateAction(ActionCancelRide, RoleDriver, status(domain.RideStatusInProgress), ActionOptions{}, epoch)
	if !got.Allowed || !got.RequiresReason {
		t.Errorf("driver cancel in progress = %+v, want allowed with reason", got)
	}

	got = ValidateAction(ActionCancelRide, RoleDriver, status(domain.RideStatusWaiting), ActionOptions{}, epoch)
	if !got.Allowed || got.RequiresReason {
		t.Errorf("driver cancel while waiting = %+v", got)
	}
}

func TestValidateAction_CancelTerminal(t *testing.T) {
	t.Parallel()

	got := ValidateAction(ActionCancelRide, RoleRider, status(domain.RideStatusCompleted), ActionOptions{}, epoch)
	if got.Allowed {
		t.Error("completed ride cannot be cancelled")
	}
	if got := ValidateAction(ActionCancelRide, RoleRider, nil, ActionOptions{}, epoch); got.Error != "No ride to cancel" {
		t.Errorf("nil status error = %q", got.Error)
	}
}

func TestTargetStatus_MatchesTransitionTable(t *testing.T) {
	t.Parallel()

	actions := []RideAction{
		ActionRequestRide, ActionAcceptRide, ActionStartPickup, ActionArrive,
		ActionStartWaiting, ActionStartTrip, ActionCompleteTrip,
	}
	for _, a := range actions {
		to, ok := TargetStatus(a)
		if !ok {
			t.Fatalf("no target for %s", a)
		}
		from := RequiredStatuses(a)
		if a == ActionRequestRide {
			from = []domain.RideStatus{domain.RideStatusRequested}
		}
		for _, f := range from {
			if !IsValidTransition(f, to).Valid {
				t.Errorf("%s: %s -> %s not in transition table", a, f, to)
			}
		}
	}
}

func TestCancelReasons(t *testing.T) {
	t.Parallel()

	if !IsValidDriverCancelReason("vehicle_issue") || IsValidDriverCancelReason("bored") {
		t.Error("reason validation mismatch")
	}
	if IsJustifiedCancellation(CancelReasonOther) || IsJustifiedCancellation(CancelReasonRiderChangedDestination) {
		t.Error("other and changed destination should be unjustified")
	}
	if !IsJustifiedCancellation(CancelReasonRiderNoShow) {
		t.Error("no-show should be justified")
	}
}
