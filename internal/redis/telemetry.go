package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"zibana/internal/geo"
)

// TelemetryPhase separates the driver's approach to pickup from the trip itself.
type TelemetryPhase string

const (
	PhasePickup TelemetryPhase = "pickup"
	PhaseTrip   TelemetryPhase = "trip"
)

// TelemetryTTL bounds how long GPS samples outlive a ride.
const TelemetryTTL = 24 * time.Hour

// TelemetryStore keeps per-ride GPS samples in Redis lists.
type TelemetryStore struct {
	client *redis.Client
}

// NewTelemetryStore creates a new TelemetryStore.
func NewTelemetryStore(client *redis.Client) *TelemetryStore {
	return &TelemetryStore{client: client}
}

func telemetryKey(rideID string, phase TelemetryPhase) string {
	return fmt.Sprintf("ride:telemetry:%s:%s", rideID, phase)
}

// Append records a GPS sample for a ride phase.
func (s *TelemetryStore) Append(ctx context.Context, rideID string, phase TelemetryPhase, p geo.GpsPoint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	key := telemetryKey(rideID, phase)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, TelemetryTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Points returns the samples recorded for a ride phase in arrival order.
func (s *TelemetryStore) Points(ctx context.Context, rideID string, phase TelemetryPhase) ([]geo.GpsPoint, error) {
	raw, err := s.client.LRange(ctx, telemetryKey(rideID, phase), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	points := make([]geo.GpsPoint, 0, len(raw))
	for _, item := range raw {
		var p geo.GpsPoint
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			// Corrupt samples are skipped.
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

// Clear drops every sample for a ride.
func (s *TelemetryStore) Clear(ctx context.Context, rideID string) error {
	return s.client.Del(ctx, telemetryKey(rideID, PhasePickup), telemetryKey(rideID, PhaseTrip)).Err()
}
