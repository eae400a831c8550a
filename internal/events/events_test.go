package events

import (
	"context"
	"testing"
)

func TestRideEventRoutingKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		event RideEvent
		want  string
	}{
		{RideEvent{Type: "RIDE_STATUS", Status: "accepted"}, "ride.status.accepted"},
		{RideEvent{Type: "RIDE_STATUS", Status: "cancelled"}, "ride.status.cancelled"},
		{RideEvent{Type: "SAFETY_ALERT", Status: "in_progress"}, "ride.safety.idle"},
	}

	for _, tt := range tests {
		if got := tt.event.RoutingKey(); got != tt.want {
			t.Errorf("RoutingKey(%+v) = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()

	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), RideEvent{RideID: "r1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
