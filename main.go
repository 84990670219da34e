package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/barrim_ledger/config"
	"github.com/HSouheill/barrim_ledger/controllers"
	"github.com/HSouheill/barrim_ledger/metrics"
	"github.com/HSouheill/barrim_ledger/middleware"
	"github.com/HSouheill/barrim_ledger/repositories"
	"github.com/HSouheill/barrim_ledger/routes"
	"github.com/HSouheill/barrim_ledger/services"
	"github.com/HSouheill/barrim_ledger/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if !cfg.DotEnvLoaded {
		log.Warn(".env file not found, using environment variables")
	}

	// Storage
	var (
		store       repositories.Store
		mongoClient *mongo.Client
		ping        routes.Pinger
	)
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		store = repositories.NewMemoryStore()
	default:
		client, mongoStore, err := config.ConnectDB(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("MongoDB setup failed")
		}
		mongoClient = client
		store = mongoStore
		ping = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	// Payout locks
	var locker services.Locker = services.NewMemoryLocker()
	redisClient := config.ConnectRedis(cfg, log)
	if redisClient != nil {
		locker = services.NewRedisLocker(redisClient, "barrim_ledger:", log)
	}

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	notifyTargets := []services.Notifier{wsHub}
	if cfg.SMTPHost != "" {
		notifyTargets = append(notifyTargets, services.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom))
	}

	var treasury services.Treasury
	if cfg.WhishBaseURL != "" {
		treasury = services.NewWhishService(cfg.WhishBaseURL, cfg.WhishChannel, cfg.WhishSecret, cfg.WhishWebsiteURL, log)
	}

	opts := services.Options{
		Logger:     log,
		Currency:   cfg.DefaultCurrency,
		HoldPeriod: cfg.HoldPeriod(),
	}
	commissionService := services.NewCommissionService(store, opts)
	advanceService := services.NewAdvanceService(store, opts)
	financeService := services.NewFinanceService(store, opts)
	payoutService := services.NewPayoutService(store, services.PayoutDeps{
		Locker:   locker,
		LockTTL:  cfg.PayoutLockTTL,
		Notifier: services.NewNotifiers(log, notifyTargets...),
		Treasury: treasury,
	}, opts)

	promotionJob, err := services.NewPromotionJob(commissionService, cfg.PromotionSchedule, log)
	if err != nil {
		log.WithError(err).Fatal("invalid PROMOTION_SCHEDULE")
	}
	promotionJob.Start()

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = controllers.NewCustomValidator()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS)

	// Middleware
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.ContextLogger(log))
	e.Use(middleware.RequestLogger(log))
	e.Use(metrics.Middleware())
	e.Use(middleware.GlobalCORS(cfg.CORSOrigins))
	e.Use(middleware.SecurityHeaders())
	e.Use(rateLimiter.RateLimit())

	routes.SetupRoutes(e, cfg.StoreDriver, ping)

	ctrl := routes.Controllers{
		SalesReps: controllers.NewSalesRepController(commissionService),
		Earnings:  controllers.NewEarningController(commissionService),
		Advances:  controllers.NewAdvanceController(advanceService),
		Payouts:   controllers.NewPayoutController(payoutService),
		Finance:   controllers.NewFinanceController(financeService, commissionService),
		Portal:    controllers.NewPortalController(commissionService, payoutService, wsHub, cfg.JWTSecret),
	}
	auth := middleware.JWTMiddleware(cfg.JWTSecret, log)
	routes.RegisterLedgerRoutes(e, ctrl, auth)
	routes.RegisterPortalRoutes(e, ctrl, auth)

	// Start server
	go func() {
		log.WithField("port", cfg.Port).Info("starting HTTP server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP shutdown failed")
	}
	promotionJob.Stop()
	rateLimiter.Stop()
	wsHub.Stop()
	if redisClient != nil {
		redisClient.Close()
	}
	if mongoClient != nil {
		mongoClient.Disconnect(ctx)
	}
}
