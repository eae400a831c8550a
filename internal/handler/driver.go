package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"zibana/internal/domain"
	"zibana/internal/fare"
	"zibana/internal/repository"
	"zibana/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
	driverRepo    repository.DriverRepository
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, driverRepo repository.DriverRepository) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		driverRepo:    driverRepo,
	}
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// UpdateLocationResponse reports what a location ping changed.
type UpdateLocationResponse struct {
	RideID    string `json:"ride_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Arrived   bool   `json:"arrived"`
	AlertSent bool   `json:"alert_sent"`
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name              string  `json:"name"`
	Phone             string  `json:"phone"`
	Rating            float64 `json:"rating,omitempty"`
	Seats             int     `json:"seats,omitempty"`
	VehicleYear       int     `json:"vehicle_year,omitempty"`
	PetApproved       bool    `json:"pet_approved,omitempty"`
	BackgroundChecked bool    `json:"background_checked,omitempty"`
	EliteApproved     bool    `json:"elite_approved,omitempty"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	Status      string   `json:"status"`
	Rating      float64  `json:"rating"`
	Seats       int      `json:"seats"`
	VehicleYear int      `json:"vehicle_year,omitempty"`
	RideClasses []string `json:"ride_classes,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
}

const (
	defaultDriverRating = 5.0
	defaultDriverSeats  = 4
)

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if req.Name == "" || req.Phone == "" {
		badRequest(c, "name and phone are required")
		return
	}
	if req.Rating < 0 || req.Rating > 5 || req.Seats < 0 {
		respondError(c, service.ErrInvalidDriver)
		return
	}

	existing, err := h.driverRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}

	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message": "Driver already registered",
			"driver":  toDriverResponse(existing, nil),
		})
		return
	}

	driver := &domain.Driver{
		ID:                uuid.New().String(),
		Name:              req.Name,
		Phone:             req.Phone,
		Status:            domain.DriverStatusOffline,
		Rating:            req.Rating,
		Seats:             req.Seats,
		VehicleYear:       req.VehicleYear,
		PetApproved:       req.PetApproved,
		BackgroundChecked: req.BackgroundChecked,
		EliteApproved:     req.EliteApproved,
	}
	if driver.Rating == 0 {
		driver.Rating = defaultDriverRating
	}
	if driver.Seats == 0 {
		driver.Seats = defaultDriverSeats
	}

	if err := h.driverRepo.Create(c.Request.Context(), driver); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toDriverResponse(driver, nil))
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	drivers, err := h.driverRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, toDriverResponse(d, nil))
	}

	c.JSON(http.StatusOK, response)
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	profile, err := h.driverService.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := toDriverResponse(profile.Driver, profile.Classes)
	if loc := profile.Location; loc != nil {
		resp.Lat, resp.Lng = &loc.Lat, &loc.Lng
	}
	respondJSON(c, http.StatusOK, resp)
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	update := service.LocationUpdate{
		DriverID: c.Param("id"),
		Lat:      req.Lat,
		Lng:      req.Lng,
	}
	if req.Timestamp != nil {
		update.Timestamp = *req.Timestamp
	}

	result, err := h.driverService.UpdateLocation(c.Request.Context(), update)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.RideID == "" {
		c.Status(http.StatusNoContent)
		return
	}

	respondJSON(c, http.StatusOK, UpdateLocationResponse{
		RideID:    result.RideID,
		Status:    string(result.Status),
		Phase:     string(result.Phase),
		Arrived:   result.Arrived,
		AlertSent: result.AlertSent,
	})
}

// GoOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	if err := h.driverService.SetDriverOffline(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func toDriverResponse(d *domain.Driver, classes []fare.RideClass) DriverResponse {
	resp := DriverResponse{
		ID:          d.ID,
		Name:        d.Name,
		Phone:       d.Phone,
		Status:      string(d.Status),
		Rating:      d.Rating,
		Seats:       d.Seats,
		VehicleYear: d.VehicleYear,
	}
	for _, cl := range classes {
		resp.RideClasses = append(resp.RideClasses, cl.ID)
	}
	return resp
}
