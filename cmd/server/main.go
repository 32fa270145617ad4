package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/makkenzo/ledgerpro-license-api/internal/config"
	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/gateway"
	"github.com/makkenzo/ledgerpro-license-api/internal/handler"
	"github.com/makkenzo/ledgerpro-license-api/internal/handler/middleware"
	"github.com/makkenzo/ledgerpro-license-api/internal/notify"
	"github.com/makkenzo/ledgerpro-license-api/internal/pricing"
	"github.com/makkenzo/ledgerpro-license-api/internal/realtime"
	"github.com/makkenzo/ledgerpro-license-api/internal/service"
	"github.com/makkenzo/ledgerpro-license-api/internal/storage/memstorage"
	"github.com/makkenzo/ledgerpro-license-api/internal/storage/postgres"
	"github.com/makkenzo/ledgerpro-license-api/internal/storage/redis"
	"github.com/makkenzo/ledgerpro-license-api/internal/util"
	"github.com/makkenzo/ledgerpro-license-api/internal/worker"
	"github.com/makkenzo/ledgerpro-license-api/pkg/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()

	sugarLogger.Info("Starting application...")
	sugarLogger.Infof("Log level set to: %s", cfg.Log.Level)

	if err := checkSecrets(cfg); err != nil {
		sugarLogger.Fatalf("Invalid configuration: %v", err)
	}

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		customerRepo customer.Repository
		dbPinger     handler.Pinger
	)
	switch cfg.Database.Driver {
	case "memory":
		sugarLogger.Warn("Using in-memory customer store; all data is lost on restart")
		customerRepo = memstorage.NewCustomerRepository()
	case "postgres", "":
		if cfg.Database.AutoMigrate {
			if err := postgres.RunMigrations(cfg.Database.URL, appLogger); err != nil {
				sugarLogger.Fatalf("Failed to apply database migrations: %v", err)
			}
		}

		dbPool, err := postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
		if err != nil {
			sugarLogger.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer dbPool.Close()

		customerRepo = postgres.NewCustomerRepository(dbPool, appLogger)
		dbPinger = dbPool
	default:
		sugarLogger.Fatalf("Unknown database driver %q", cfg.Database.Driver)
	}

	redisClient, err := redis.NewRedisClient(appCtx, &cfg.Redis, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	asynqClient := asynq.NewClient(worker.RedisClientOpt(&cfg.Redis))
	defer asynqClient.Close()

	// Requests only enqueue notifications; the worker delivers them.
	var emailTransport notify.Sink
	if err := notify.ValidateSMTPConfig(cfg.SMTP); err != nil {
		sugarLogger.Warnf("SMTP not configured (%v); emails will be logged instead of sent", err)
		emailTransport = notify.NewLogSink(appLogger)
	} else {
		mailer, err := notify.NewMailer(cfg.SMTP, appLogger)
		if err != nil {
			sugarLogger.Fatalf("Failed to initialize mailer: %v", err)
		}
		emailTransport = mailer
	}

	priceService := pricing.NewService(pricing.Prices{
		Professional: cfg.Pricing.Professional,
		Enterprise:   cfg.Pricing.Enterprise,
	}, appLogger)

	hubConfig := realtime.DefaultConfig()
	hubConfig.AllowedOrigins = cfg.CORS.AllowedOrigins
	hub := realtime.NewHub(priceService, hubConfig, appLogger)
	priceService.Subscribe(hub.BroadcastPrices)
	hub.Start()

	licenseService := service.NewLicenseService(service.LicenseServiceDeps{
		Repo:      customerRepo,
		Gateway:   gateway.NewRazorpayClient(&cfg.Razorpay, appLogger),
		Keys:      util.NewLicenseKeyGenerator(cfg.License.Secret),
		Notifier:  notify.NewAsynqSink(asynqClient, appLogger),
		Prices:    priceService,
		Publisher: hub,
		Guard:     redis.NewWebhookGuard(redisClient, redis.DefaultClaimTTL, appLogger),
	}, service.NewLicenseSettings(cfg), appLogger)

	authService, err := service.NewAuthService(&cfg.Admin, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to initialize admin auth: %v", err)
	}
	adminService := service.NewAdminService(customerRepo, priceService, licenseService, appLogger)

	rateLimit, err := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Period, redisClient, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to initialize rate limiter: %v", err)
	}

	router := handler.NewRouter(handler.Handlers{
		Customer: handler.NewCustomerHandler(licenseService, appLogger),
		Webhook:  handler.NewWebhookHandler(licenseService, appLogger),
		Admin:    handler.NewAdminHandler(adminService, authService, appLogger),
		Realtime: handler.NewRealtimeHandler(hub, authService, appLogger),
		Health:   handler.NewHealthHandler(dbPinger, redisClient, appLogger),
	}, handler.RouterOptions{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AdminAuth:      middleware.AdminAuthMiddleware(authService, appLogger),
		RateLimit:      rateLimit,
	}, appLogger)

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugarLogger.Errorf("HTTP server ListenAndServe error: %v", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	workerErrs, shutdownWorkers := worker.RunWorkers(cfg, customerRepo, emailTransport, appLogger)

	g.Go(func() error {
		select {
		case err := <-workerErrs:
			sugarLogger.Errorw("Asynq worker failed", "error", err)
			return fmt.Errorf("asynq worker error: %w", err)
		case <-groupCtx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		hub.Stop()
		shutdownWorkers(shutdownCtx)

		if err != nil {
			sugarLogger.Errorf("HTTP server graceful shutdown failed: %v", err)
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	sugarLogger.Info("Application started. Waiting for interrupt signal (Ctrl+C) or component error...")

	waitErr := g.Wait()

	sugarLogger.Info("Shutdown sequence finished.")

	if waitErr != nil {
		if errors.Is(waitErr, context.Canceled) {
			sugarLogger.Info("Shutdown reason: Context canceled (likely due to OS signal).")
		} else {
			sugarLogger.Errorf("Application shutdown finished with unexpected error: %v", waitErr)
		}
	} else {
		sugarLogger.Info("Application shutdown successfully (all components finished without errors).")
	}

	sugarLogger.Info("Application exiting now.")
}

// checkSecrets refuses to start with an empty signing or verification secret.
func checkSecrets(cfg *config.Config) error {
	required := []struct {
		key   string
		value string
	}{
		{"license.secret", cfg.License.Secret},
		{"razorpay.keyId", cfg.Razorpay.KeyID},
		{"razorpay.keySecret", cfg.Razorpay.KeySecret},
		{"razorpay.webhookSecret", cfg.Razorpay.WebhookSecret},
		{"admin.token", cfg.Admin.Token},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}
	return nil
}
