package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"zibana/internal/domain"
	"zibana/internal/fare"
	"zibana/internal/geo"
	"zibana/internal/lifecycle"
	"zibana/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
	tracking    *service.TrackingService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService, tracking *service.TrackingService) *RideHandler {
	return &RideHandler{
		rideService: rideService,
		tracking:    tracking,
	}
}

// QuoteRideRequest is the HTTP request body for pricing a ride.
type QuoteRideRequest struct {
	PickupLat         float64    `json:"pickup_lat"`
	PickupLng         float64    `json:"pickup_lng"`
	DestinationLat    float64    `json:"destination_lat"`
	DestinationLng    float64    `json:"destination_lng"`
	RideClass         string     `json:"ride_class,omitempty"`
	ScheduledPickupAt *time.Time `json:"scheduled_pickup_at,omitempty"`
}

func (r QuoteRideRequest) toService() service.QuoteRequest {
	return service.QuoteRequest{
		PickupLat:         r.PickupLat,
		PickupLng:         r.PickupLng,
		DestinationLat:    r.DestinationLat,
		DestinationLng:    r.DestinationLng,
		RideClass:         r.RideClass,
		ScheduledPickupAt: r.ScheduledPickupAt,
	}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	QuoteRideRequest
	RiderID       string `json:"rider_id"`
	PaymentMethod string `json:"payment_method,omitempty"` // CASH, CARD, WALLET, TEST_WALLET
}

// ActionRideRequest is the HTTP request body for a lifecycle action.
type ActionRideRequest struct {
	Action  string `json:"action"`
	Role    string `json:"role"`
	ActorID string `json:"actor_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Role    string `json:"role"`
	ActorID string `json:"actor_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// QuoteResponse is the HTTP response for a priced ride.
type QuoteResponse struct {
	RideClass       string        `json:"ride_class"`
	DistanceKm      float64       `json:"distance_km"`
	DurationMinutes float64       `json:"duration_minutes"`
	RouteSource     string        `json:"route_source"`
	ClassMultiplier float64       `json:"class_multiplier"`
	SurgeMultiplier float64       `json:"surge_multiplier"`
	SurgeActive     bool          `json:"surge_active"`
	Fare            fare.Estimate `json:"fare"`
	Range           fare.Range    `json:"range"`
}

// RideResponse is the HTTP response for a ride.
type RideResponse struct {
	ID                   string   `json:"id"`
	RiderID              string   `json:"rider_id"`
	PickupLat            float64  `json:"pickup_lat"`
	PickupLng            float64  `json:"pickup_lng"`
	DestinationLat       float64  `json:"destination_lat"`
	DestinationLng       float64  `json:"destination_lng"`
	RideClass            string   `json:"ride_class"`
	Status               string   `json:"status"`
	AssignedDriverID     string   `json:"assigned_driver_id,omitempty"`
	SurgeMultiplier      float64  `json:"surge_multiplier"`
	SurgeActive          bool     `json:"surge_active"`
	PaymentMethod        string   `json:"payment_method"`
	Currency             string   `json:"currency"`
	EstimatedDistanceKm  float64  `json:"estimated_distance_km"`
	EstimatedDurationMin float64  `json:"estimated_duration_min"`
	EstimatedFare        float64  `json:"estimated_fare"`
	ScheduledPickupAt    string   `json:"scheduled_pickup_at,omitempty"`
	MatchingExpiresAt    string   `json:"matching_expires_at,omitempty"`
	DriverAcceptedAt     string   `json:"driver_accepted_at,omitempty"`
	EnRouteStartedAt     string   `json:"en_route_started_at,omitempty"`
	ArrivedAt            string   `json:"arrived_at,omitempty"`
	WaitingStartedAt     string   `json:"waiting_started_at,omitempty"`
	StartedAt            string   `json:"started_at,omitempty"`
	CompletedAt          string   `json:"completed_at,omitempty"`
	CancelledAt          string   `json:"cancelled_at,omitempty"`
	CancelledBy          string   `json:"cancelled_by,omitempty"`
	CancelReason         string   `json:"cancel_reason,omitempty"`
	CancellationFee      float64  `json:"cancellation_fee,omitempty"`
	FinalFare            float64  `json:"final_fare,omitempty"`
	DriverEarning        float64  `json:"driver_earning,omitempty"`
	PlatformFee          float64  `json:"platform_fee,omitempty"`
	FlaggedForReview     bool     `json:"flagged_for_review,omitempty"`
	NextStatuses         []string `json:"next_statuses"`
}

// CreateRideResponse is the HTTP response for creating a ride.
type CreateRideResponse struct {
	Ride           RideResponse  `json:"ride"`
	Quote          QuoteResponse `json:"quote"`
	OfferedDrivers []string      `json:"offered_drivers"`
	DriverOffered  bool          `json:"driver_offered"`
}

// ActionResponse is the HTTP response for a lifecycle action.
type ActionResponse struct {
	Ride                   RideResponse                 `json:"ride"`
	Completion             *CompletionResponse          `json:"completion,omitempty"`
	Cancellation           *service.CancellationOutcome `json:"cancellation,omitempty"`
	RecommendedDepartureAt string                       `json:"recommended_departure_at,omitempty"`
}

// CompletionResponse is the money outcome of a finished trip.
type CompletionResponse struct {
	DistanceKm  float64                    `json:"distance_km"`
	DurationMin float64                    `json:"duration_min"`
	Waiting     lifecycle.WaitingBreakdown `json:"waiting"`
	WaitingFee  fare.WaitingFee            `json:"waiting_fee"`
	Fare        fare.CompletedFare         `json:"fare"`
	EarlyStop   *fare.EarlyStop            `json:"early_stop,omitempty"`
	PaymentID   string                     `json:"payment_id,omitempty"`
	ReceiptID   string                     `json:"receipt_id,omitempty"`
}

// NavigationResponse carries map deep links to the current leg's target.
type NavigationResponse struct {
	Target string              `json:"target"`
	URL    string              `json:"url"`
	Links  geo.NavigationLinks `json:"links"`
}

// Quote handles POST /v1/rides/quote
func (h *RideHandler) Quote(c *gin.Context) {
	var req QuoteRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	quote, err := h.rideService.Quote(c.Request.Context(), req.toService())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toQuoteResponse(quote))
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	paymentMethod, err := service.ValidatePaymentMethod(req.PaymentMethod)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.rideService.RequestRide(c.Request.Context(), service.RideRequest{
		QuoteRequest:  req.toService(),
		RiderID:       req.RiderID,
		PaymentMethod: paymentMethod,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	offered := make([]string, 0, len(result.Offered))
	for _, cand := range result.Offered {
		offered = append(offered, cand.DriverID)
	}

	respondJSON(c, http.StatusCreated, CreateRideResponse{
		Ride:           toRideResponse(result.Ride),
		Quote:          toQuoteResponse(result.Quote),
		OfferedDrivers: offered,
		DriverOffered:  len(offered) > 0,
	})
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ListRides handles GET /v1/rides?status=matching,accepted
func (h *RideHandler) ListRides(c *gin.Context) {
	var statuses []domain.RideStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, domain.RideStatus(strings.TrimSpace(s)))
		}
	}

	rides, err := h.rideService.ListRides(c.Request.Context(), statuses...)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, toRideResponse(r))
	}
	respondJSON(c, http.StatusOK, response)
}

// PerformAction handles POST /v1/rides/:id/actions
func (h *RideHandler) PerformAction(c *gin.Context) {
	var req ActionRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	action, ok := lifecycle.ParseAction(req.Action)
	if !ok {
		respondError(c, service.ErrInvalidAction)
		return
	}

	h.perform(c, action, req.Role, req.ActorID, req.Reason)
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.perform(c, lifecycle.ActionCancelRide, req.Role, req.ActorID, req.Reason)
}

func (h *RideHandler) perform(c *gin.Context, action lifecycle.RideAction, rawRole, actorID, reason string) {
	role, ok := lifecycle.ParseRole(rawRole)
	if !ok {
		respondError(c, service.ErrInvalidRole)
		return
	}

	result, err := h.rideService.PerformAction(c.Request.Context(), service.ActionRequest{
		RideID:  c.Param("id"),
		Action:  action,
		Role:    role,
		ActorID: actorID,
		Reason:  reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := ActionResponse{
		Ride:                   toRideResponse(result.Ride),
		Cancellation:           result.Cancellation,
		RecommendedDepartureAt: formatTime(result.RecommendedDepartureAt),
	}
	if comp := result.Completion; comp != nil {
		resp.Completion = &CompletionResponse{
			DistanceKm:  comp.DistanceKm,
			DurationMin: comp.DurationMin,
			Waiting:     comp.Waiting,
			WaitingFee:  comp.WaitingFee,
			Fare:        comp.Fare,
			EarlyStop:   comp.EarlyStop,
		}
		if comp.Payment != nil {
			resp.Completion.PaymentID = comp.Payment.ID
		}
		if comp.Receipt != nil {
			resp.Completion.ReceiptID = comp.Receipt.ID
		}
	}

	respondJSON(c, http.StatusOK, resp)
}

// CancellationPreview handles GET /v1/rides/:id/cancellation-preview?role=rider
func (h *RideHandler) CancellationPreview(c *gin.Context) {
	role, ok := lifecycle.ParseRole(c.Query("role"))
	if !ok {
		respondError(c, service.ErrInvalidRole)
		return
	}

	preview, err := h.rideService.CancellationPreview(c.Request.Context(), c.Param("id"), role, c.Query("actor_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, preview)
}

// Tracking handles GET /v1/rides/:id/tracking
func (h *RideHandler) Tracking(c *gin.Context) {
	snap, err := h.tracking.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, snap)
}

// Navigation handles GET /v1/rides/:id/navigation
//
// Before pickup the links lead to the rider; afterwards to the destination.
func (h *RideHandler) Navigation(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	target := "pickup"
	dest := geo.Coordinates{Lat: ride.PickupLat, Lng: ride.PickupLng}
	if ride.Status == domain.RideStatusInProgress || c.Query("target") == "destination" {
		target = "destination"
		dest = geo.Coordinates{Lat: ride.DestinationLat, Lng: ride.DestinationLng}
	}

	links := geo.BuildNavigationLinks(dest, c.Query("label"))
	respondJSON(c, http.StatusOK, NavigationResponse{
		Target: target,
		URL:    links.URLFor(c.Request.UserAgent()),
		Links:  links,
	})
}

func toQuoteResponse(q *service.Quote) QuoteResponse {
	return QuoteResponse{
		RideClass:       q.RideClass,
		DistanceKm:      q.DistanceKm,
		DurationMinutes: q.DurationMinutes,
		RouteSource:     q.RouteSource,
		ClassMultiplier: q.ClassMultiplier,
		SurgeMultiplier: q.SurgeMultiplier,
		SurgeActive:     q.SurgeMultiplier > 1.0,
		Fare:            q.Fare,
		Range:           q.Range,
	}
}

func toRideResponse(r *domain.Ride) RideResponse {
	next := lifecycle.ValidNextStates(r.Status)
	nextStatuses := make([]string, len(next))
	for i, s := range next {
		nextStatuses[i] = string(s)
	}

	return RideResponse{
		ID:                   r.ID,
		RiderID:              r.RiderID,
		PickupLat:            r.PickupLat,
		PickupLng:            r.PickupLng,
		DestinationLat:       r.DestinationLat,
		DestinationLng:       r.DestinationLng,
		RideClass:            r.RideClass,
		Status:               string(r.Status),
		AssignedDriverID:     r.AssignedDriverID,
		SurgeMultiplier:      r.SurgeMultiplier,
		SurgeActive:          r.SurgeMultiplier > 1.0,
		PaymentMethod:        string(r.PaymentMethod),
		Currency:             r.Currency,
		EstimatedDistanceKm:  r.EstimatedDistanceKm,
		EstimatedDurationMin: r.EstimatedDurationMin,
		EstimatedFare:        r.EstimatedFare,
		ScheduledPickupAt:    formatTime(r.ScheduledPickupAt),
		MatchingExpiresAt:    formatTime(r.MatchingExpiresAt),
		DriverAcceptedAt:     formatTime(r.DriverAcceptedAt),
		EnRouteStartedAt:     formatTime(r.EnRouteStartedAt),
		ArrivedAt:            formatTime(r.ArrivedAt),
		WaitingStartedAt:     formatTime(r.WaitingStartedAt),
		StartedAt:            formatTime(r.StartedAt),
		CompletedAt:          formatTime(r.CompletedAt),
		CancelledAt:          formatTime(r.CancelledAt),
		CancelledBy:          r.CancelledBy,
		CancelReason:         r.CancelReason,
		CancellationFee:      r.CancellationFee,
		FinalFare:            r.FinalFare,
		DriverEarning:        r.DriverEarning,
		PlatformFee:          r.PlatformFee,
		FlaggedForReview:     r.FlaggedForReview,
		NextStatuses:         nextStatuses,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
