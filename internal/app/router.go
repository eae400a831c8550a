package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"zibana/internal/handler"
	"zibana/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	DriverHandler  *handler.DriverHandler
	UserHandler    *handler.UserHandler
	PaymentHandler *handler.PaymentHandler
	StreamHandler  *handler.StreamHandler
	RedisClient    redis.UniversalClient
	NewRelicApp    *newrelic.Application
	Log            *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(deps.Log))
	router.Use(middleware.NewRelicMiddleware(deps.NewRelicApp))
	router.Use(middleware.TagTransaction())
	if deps.RedisClient != nil {
		router.Use(middleware.Idempotency(deps.RedisClient, deps.Log))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		users := v1.Group("/users")
		{
			users.POST("/register", deps.UserHandler.Register)
			users.GET("", deps.UserHandler.GetAll)
			users.GET("/:id", deps.UserHandler.GetUser)
		}

		rides := v1.Group("/rides")
		{
			rides.POST("/quote", deps.RideHandler.Quote)
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("", deps.RideHandler.ListRides)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/actions", deps.RideHandler.PerformAction)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.GET("/:id/cancellation-preview", deps.RideHandler.CancellationPreview)
			rides.GET("/:id/tracking", deps.RideHandler.Tracking)
			rides.GET("/:id/navigation", deps.RideHandler.Navigation)
			rides.GET("/:id/payments", deps.PaymentHandler.ListRidePayments)
			rides.GET("/:id/receipt", deps.PaymentHandler.GetReceipt)
			if deps.StreamHandler != nil {
				rides.GET("/:id/stream", deps.StreamHandler.Stream)
			}
		}

		drivers := v1.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.Register)
			drivers.GET("", deps.DriverHandler.GetAll)
			drivers.GET("/:id", deps.DriverHandler.GetDriver)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.POST("/:id/offline", deps.DriverHandler.GoOffline)
		}

		payments := v1.Group("/payments")
		{
			payments.GET("/:id", deps.PaymentHandler.GetPayment)
		}
	}

	return router
}
