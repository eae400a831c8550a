// Package routing asks an OSRM server for driving distance and duration.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zibana/internal/geo"
)

const (
	DefaultBaseURL       = "https://router.project-osrm.org"
	DefaultUserAgent     = "ZIBA-RideHailing/1.0"
	DefaultTrafficBuffer = 1.15

	metersPerMile = 1609.34
)

// ErrNoRoute is returned when the router answers but has no route between the points.
var ErrNoRoute = errors.New("routing: no route found")

// Route is the driving distance and duration between two points.
type Route struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DistanceKm      float64 `json:"distance_km"`
	DistanceMiles   float64 `json:"distance_miles"`
	DurationSeconds float64 `json:"duration_seconds"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// Client is a thin OSRM HTTP client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient builds a client. A nil httpClient gets a 5 second timeout.
func NewClient(httpClient *http.Client, baseURL, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
	}
}

// Route returns the driving route from origin to destination.
func (c *Client) Route(ctx context.Context, origin, destination geo.Coordinates) (Route, error) {
	endpoint := fmt.Sprintf("%s/route/v1/driving/%s,%s;%s,%s?overview=false",
		c.baseURL,
		formatCoord(origin.Lng), formatCoord(origin.Lat),
		formatCoord(destination.Lng), formatCoord(destination.Lat),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Route{}, fmt.Errorf("routing: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("routing: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Route{}, fmt.Errorf("routing: http %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var payload struct {
		Code   string `json:"code"`
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Route{}, fmt.Errorf("routing: decode: %w", err)
	}
	if payload.Code != "Ok" || len(payload.Routes) == 0 {
		return Route{}, ErrNoRoute
	}

	r := payload.Routes[0]
	return Route{
		DistanceMeters:  r.Distance,
		DistanceKm:      r.Distance / 1000,
		DistanceMiles:   r.Distance / metersPerMile,
		DurationSeconds: r.Duration,
		DurationMinutes: math.Ceil(r.Duration / 60),
	}, nil
}

// ETA returns the whole minutes to drive from origin to destination with
// the route duration scaled by trafficBuffer. A buffer of 0 uses DefaultTrafficBuffer.
func (c *Client) ETA(ctx context.Context, origin, destination geo.Coordinates, trafficBuffer float64) (float64, error) {
	if trafficBuffer <= 0 {
		trafficBuffer = DefaultTrafficBuffer
	}
	route, err := c.Route(ctx, origin, destination)
	if err != nil {
		return 0, err
	}
	return math.Ceil(route.DurationMinutes * trafficBuffer), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
