package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"zibana/internal/domain"
	"zibana/internal/guard"
	"zibana/internal/repository"
)

// UserHandler handles HTTP requests for riders.
type UserHandler struct {
	userRepo repository.UserRepository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userRepo repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// RegisterRequest is the HTTP request body for user registration.
type RegisterRequest struct {
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	CountryCode   string  `json:"country_code,omitempty"`
	WalletBalance float64 `json:"wallet_balance,omitempty"`
	IsTester      bool    `json:"is_tester,omitempty"`
}

// UserResponse is the HTTP response for user data.
type UserResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	CountryCode   string  `json:"country_code"`
	Currency      string  `json:"currency"`
	WalletBalance float64 `json:"wallet_balance"`
	Wallet        string  `json:"wallet"`
	WalletFrozen  bool    `json:"wallet_frozen,omitempty"`
	Suspended     bool    `json:"suspended,omitempty"`
	IsTester      bool    `json:"is_tester,omitempty"`
}

// Register handles POST /v1/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if req.Name == "" || req.Phone == "" {
		badRequest(c, "name and phone are required")
		return
	}
	if req.WalletBalance < 0 {
		badRequest(c, "wallet_balance cannot be negative")
		return
	}

	existing, err := h.userRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}

	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message": "User already registered",
			"user":    toUserResponse(existing),
		})
		return
	}

	// Unknown countries fall back to the default market.
	country := guard.CountryConfig(req.CountryCode)

	user := &domain.User{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Phone:         req.Phone,
		CountryCode:   country.Code,
		Currency:      country.Currency,
		WalletBalance: req.WalletBalance,
		IsTester:      req.IsTester,
		CreatedAt:     time.Now().UTC(),
	}

	if err := h.userRepo.Create(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

// GetAll handles GET /v1/users
func (h *UserHandler) GetAll(c *gin.Context) {
	users, err := h.userRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, toUserResponse(u))
	}

	c.JSON(http.StatusOK, response)
}

// GetUser handles GET /v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Phone:         u.Phone,
		CountryCode:   u.CountryCode,
		Currency:      u.Currency,
		WalletBalance: u.WalletBalance,
		Wallet:        guard.FormatAmount(u.WalletBalance, u.Currency),
		WalletFrozen:  u.WalletFrozen,
		Suspended:     u.Suspended,
		IsTester:      u.IsTester,
	}
}
