package lifecycle

import (
	"strings"
	"testing"

	"zibana/internal/domain"
)

func TestIsValidTransition_Table(t *testing.T) {
	t.Parallel()

	allowed := map[domain.RideStatus][]domain.RideStatus{
		domain.RideStatusRequested:     {domain.RideStatusMatching, domain.RideStatusCancelled},
		domain.RideStatusMatching:      {domain.RideStatusAccepted, domain.RideStatusCancelled},
		domain.RideStatusAccepted:      {domain.RideStatusDriverEnRoute, domain.RideStatusCancelled},
		domain.RideStatusDriverEnRoute: {domain.RideStatusArrived, domain.RideStatusCancelled},
		domain.RideStatusArrived:       {domain.RideStatusWaiting, domain.RideStatusInProgress, domain.RideStatusCancelled},
		domain.RideStatusWaiting:       {domain.RideStatusInProgress, domain.RideStatusCancelled},
		domain.RideStatusInProgress:    {domain.RideStatusCompleted, domain.RideStatusCancelled},
	}

	for _, from := range AllRideStatuses {
		for _, to := range AllRideStatuses {
			want := containsStatus(allowed[from], to)
			got := IsValidTransition(from, to)
			if got.Valid != want {
				t.Errorf("IsValidTransition(%s, %s).Valid = %v, want %v", from, to, got.Valid, want)
			}
			if got.Valid && got.Error != "" {
				t.Errorf("IsValidTransition(%s, %s) valid but has error %q", from, to, got.Error)
			}
			if !got.Valid && got.Error == "" {
				t.Errorf("IsValidTransition(%s, %s) invalid without error", from, to)
			}
		}
	}
}

func TestIsValidTransition_NoSelfTransitions(t *testing.T) {
	t.Parallel()

	for _, s := range AllRideStatuses {
		if IsValidTransition(s, s).Valid {
			t.Errorf("self transition %s should be rejected", s)
		}
	}
}

func TestIsValidTransition_TerminalMessage(t *testing.T) {
	t.Parallel()

	got := IsValidTransition(domain.RideStatusCompleted, domain.RideStatusMatching)
	want := "Cannot transition from terminal state 'completed'"
	if got.Error != want {
		t.Errorf("error = %q, want %q", got.Error, want)
	}

	got = IsValidTransition(domain.RideStatusCancelled, domain.RideStatusRequested)
	if got.Error != "Cannot transition from terminal state 'cancelled'" {
		t.Errorf("unexpected error %q", got.Error)
	}
}

func TestIsValidTransition_ListsSuccessors(t *testing.T) {
	t.Parallel()

	got := IsValidTransition(domain.RideStatusArrived, domain.RideStatusCompleted)
	want := "Invalid transition: 'arrived' → 'completed'. Valid transitions are: waiting, in_progress, cancelled"
	if got.Error != want {
		t.Errorf("error = %q, want %q", got.Error, want)
	}
}

func TestIsValidTransition_UnknownStatus(t *testing.T) {
	t.Parallel()

	got := IsValidTransition(domain.RideStatus("teleporting"), domain.RideStatusCompleted)
	if got.Valid {
		t.Fatal("unknown from-status must be rejected")
	}
	if !strings.HasSuffix(got.Error, "Valid transitions are: none") {
		t.Errorf("error = %q, want suffix listing none", got.Error)
	}
}

func TestValidNextStates_TerminalEmpty(t *testing.T) {
	t.Parallel()

	for _, s := range []domain.RideStatus{domain.RideStatusCompleted, domain.RideStatusCancelled, "bogus"} {
		next := ValidNextStates(s)
		if next == nil || len(next) != 0 {
			t.Errorf("ValidNextStates(%s) = %v, want empty non-nil slice", s, next)
		}
	}
}

func TestValidNextStates_EveryStatusHandled(t *testing.T) {
	t.Parallel()

	// Every non-terminal status must be able to reach cancellation; a new
	// status added without a switch case would fall into default and fail here.
	for _, s := range AllRideStatuses {
		if IsTerminal(s) {
			continue
		}
		if !containsStatus(ValidNextStates(s), domain.RideStatusCancelled) {
			t.Errorf("status %s has no explicit successor list", s)
		}
	}
}
