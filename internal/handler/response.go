package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"zibana/internal/guard"
	"zibana/internal/lifecycle"
	"zibana/internal/repository"
	"zibana/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	resp := ErrorResponse{Error: err.Error()}

	var ge *service.GuardError
	if errors.As(err, &ge) {
		resp.Error = ge.Result.Message
		resp.Code = ge.Result.Code
		resp.Details = ge.Result.Details
	}

	c.JSON(code, resp)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest answers a request whose body or parameters could not be parsed.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var (
		ae *service.ActionError
		te *service.TransitionError
		ge *service.GuardError
	)

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrInvalidRiderID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidDestinationLocation),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidRideClass),
		errors.Is(err, service.ErrInvalidScheduledTime),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrCancelReasonRequired),
		errors.Is(err, service.ErrInvalidCancelReason),
		errors.Is(err, service.ErrInvalidPaymentAmount),
		errors.Is(err, service.ErrInvalidPaymentID),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidUser),
		errors.Is(err, service.ErrInvalidDriver):
		return http.StatusBadRequest

	case errors.As(err, &ge):
		return guardStatus(ge.Result.Code)

	// Lifecycle rule violations
	case errors.As(err, &ae):
		if isPermissionError(ae) {
			return http.StatusForbidden
		}
		return http.StatusConflict
	case errors.As(err, &te):
		return http.StatusConflict

	case errors.Is(err, service.ErrRideBusy),
		errors.Is(err, service.ErrConcurrentUpdate),
		errors.Is(err, service.ErrDriverBusy),
		errors.Is(err, service.ErrDriverHasActiveRide),
		errors.Is(err, service.ErrNoActiveRide):
		return http.StatusConflict

	case errors.Is(err, service.ErrDriverNotOnline),
		errors.Is(err, service.ErrDriverNotEligible):
		return http.StatusUnprocessableEntity

	case errors.Is(err, service.ErrNoDriverAvailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// isPermissionError reports whether the actor is not allowed to take the
// action at all, as opposed to taking it at the wrong time.
func isPermissionError(ae *service.ActionError) bool {
	for _, role := range lifecycle.AllowedRoles(ae.Action) {
		if role == ae.Role {
			return false
		}
	}
	return true
}

func guardStatus(code string) int {
	switch code {
	case guard.CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case guard.CodeWalletFrozen, guard.CodeUserSuspended:
		return http.StatusForbidden
	default:
		return http.StatusUnprocessableEntity
	}
}
