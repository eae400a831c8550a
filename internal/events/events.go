// Package events publishes ride lifecycle events to RabbitMQ.
package events

import (
	"context"
	"time"
)

// Exchange and routing keys.
const (
	RideExchange = "ride_topic"

	RoutingRideStatus = "ride.status."
	RoutingRideSafety = "ride.safety.idle"
)

// RideEvent is the message body published for every ride change.
type RideEvent struct {
	Type       string         `json:"type"`
	RideID     string         `json:"ride_id"`
	Status     string         `json:"status"`
	RiderID    string         `json:"rider_id"`
	DriverID   string         `json:"driver_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// RoutingKey returns the topic the event is published under.
func (e RideEvent) RoutingKey() string {
	if e.Type == "SAFETY_ALERT" {
		return RoutingRideSafety
	}
	return RoutingRideStatus + e.Status
}

// Publisher sends ride events to subscribers outside this service.
type Publisher interface {
	Publish(ctx context.Context, event RideEvent) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, RideEvent) error { return nil }
