package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"zibana/internal/app"
	"zibana/internal/config"
	"zibana/internal/events"
	"zibana/internal/fare"
	"zibana/internal/guard"
	"zibana/internal/handler"
	"zibana/internal/middleware"
	internalRedis "zibana/internal/redis"
	"zibana/internal/repository/postgres"
	"zibana/internal/routing"
	"zibana/internal/service"
	"zibana/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// New Relic comes first so the database and Redis clients are instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("new relic disabled", "error", err)
			nrApp = nil
		} else {
			logger.Info("new relic enabled", "app", cfg.NewRelic.AppName)
			defer nrApp.Shutdown(5 * time.Second)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to postgres", "host", cfg.Database.Host, "db", cfg.Database.DBName)

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)

	publisher, closePublisher, err := app.NewEventPublisher(cfg.RabbitMQ, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	catalog := fare.DefaultCatalog()
	if cfg.Pricing.ClassesFile != "" {
		catalog, err = fare.LoadCatalog(cfg.Pricing.ClassesFile)
		if err != nil {
			return err
		}
		logger.Info("ride classes loaded", "file", cfg.Pricing.ClassesFile, "classes", len(catalog.List()))
	}

	hub := ws.NewHub(logger)
	defer hub.Close()

	srv, tracking := wireServer(db, redisClient, nrApp, publisher, hub, catalog, cfg, logger)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go tracking.RunSafetyMonitor(monitorCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	stopMonitor()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}

// wireServer wires all dependencies and returns the HTTP server and the
// tracking service whose safety monitor the caller runs.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	publisher events.Publisher,
	hub *ws.Hub,
	catalog *fare.Catalog,
	cfg *config.Config,
	logger *slog.Logger,
) (*http.Server, *service.TrackingService) {
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)
	telemetryStore := internalRedis.NewTelemetryStore(redisClient)

	userRepo := postgres.NewUserRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	receiptRepo := postgres.NewReceiptRepository(db)
	txRunner := postgres.NewTxRunner(db)

	var router service.Router
	if cfg.Routing.Enabled {
		router = routing.NewClient(&http.Client{Timeout: cfg.Routing.Timeout}, cfg.Routing.BaseURL, cfg.Routing.UserAgent)
	}

	surgeConfig := service.DefaultSurgeConfig()
	surgeConfig.RadiusKm = cfg.Pricing.SurgeRadiusKm

	notificationService := service.NewNotificationService(logger, hub, publisher)
	receiptService := service.NewReceiptService(receiptRepo, notificationService, logger)
	paymentService := service.NewPaymentService(paymentRepo, service.NewSimulatedPSP(), logger)
	surgeService := service.NewSurgeService(locationStore, rideRepo, surgeConfig, logger)
	matchingService := service.NewMatchingService(
		locationStore, lockStore, cacheStore, driverRepo, rideRepo,
		catalog, cfg.Pricing.MatchingRadiusKm, logger,
	)

	rideService := service.NewRideService(service.RideDeps{
		Rides:     rideRepo,
		Users:     userRepo,
		Tx:        txRunner,
		Locks:     lockStore,
		Locations: locationStore,
		Telemetry: telemetryStore,
		Cache:     cacheStore,
		Router:    router,
		Surge:     surgeService,
		Matching:  matchingService,
		Payments:  paymentService,
		Receipts:  receiptService,
		Notifier:  notificationService,
		Guard:     guard.New(logger),
		Catalog:   catalog,
		Rates: fare.Rates{
			BaseFare:         cfg.Pricing.BaseFare,
			PerKm:            cfg.Pricing.PerKm,
			PerMinute:        cfg.Pricing.PerMinute,
			WaitingPerMinute: cfg.Pricing.WaitingPerMinute,
			MinimumFare:      cfg.Pricing.MinimumFare,
		},
		ReservationPremium: cfg.Pricing.ReservationPremium,
		Log:                logger,
	})

	trackingService := service.NewTrackingService(
		rideRepo, rideService, locationStore, telemetryStore, notificationService,
		service.TrackingConfig{
			ArrivalRadiusKm:     cfg.Lifecycle.ArrivalRadiusKm,
			IdleThresholdMeters: cfg.Lifecycle.IdleThresholdMeters,
			MonitorInterval:     cfg.Lifecycle.MonitorInterval,
		},
		logger,
	)
	driverService := service.NewDriverService(locationStore, cacheStore, driverRepo, rideRepo, trackingService, catalog, logger)

	engine := app.NewRouter(app.RouterDeps{
		UserHandler:    handler.NewUserHandler(userRepo),
		RideHandler:    handler.NewRideHandler(rideService, trackingService),
		DriverHandler:  handler.NewDriverHandler(driverService, driverRepo),
		PaymentHandler: handler.NewPaymentHandler(paymentService, receiptService),
		StreamHandler:  handler.NewStreamHandler(hub, rideService, logger),
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Log:            logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      middleware.SecurityHeaders(middleware.CORS(cfg.Server.CORSOrigins).Handler(engine)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, trackingService
}
