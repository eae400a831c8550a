package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"zibana/internal/service"
	"zibana/internal/ws"
)

// StreamHandler serves live ride updates over websockets.
type StreamHandler struct {
	hub         *ws.Hub
	rideService *service.RideService
	log         *slog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(hub *ws.Hub, rideService *service.RideService, log *slog.Logger) *StreamHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StreamHandler{hub: hub, rideService: rideService, log: log}
}

// Stream handles GET /v1/rides/:id/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	rideID := c.Param("id")

	// Only existing rides can be watched.
	if _, err := h.rideService.GetRide(c.Request.Context(), rideID); err != nil {
		respondError(c, err)
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, rideID); err != nil {
		h.log.WarnContext(c.Request.Context(), "ws upgrade failed", "ride_id", rideID, "error", err)
	}
}
