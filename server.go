package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/database"
	"github.com/Ananth-NQI/finbot-backend/internal/broadcast"
	"github.com/Ananth-NQI/finbot-backend/internal/config"
	"github.com/Ananth-NQI/finbot-backend/internal/handlers"
	"github.com/Ananth-NQI/finbot-backend/internal/jobs"
	"github.com/Ananth-NQI/finbot-backend/internal/routes"
	"github.com/Ananth-NQI/finbot-backend/internal/services"
	"github.com/Ananth-NQI/finbot-backend/internal/storage"
	"github.com/Ananth-NQI/finbot-backend/internal/transport"
)

const shutdownTimeout = 15 * time.Second

func serve(parent context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store storage.Store
	storageType := cfg.DBDriver
	if cfg.UseMemoryStore {
		logger.Warn("⚠️ Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
		storageType = "memory"
	} else {
		logger.Info("📦 Connecting to database...", zap.String("driver", cfg.DBDriver))
		db, err := database.Connect(cfg, logger)
		if err != nil {
			return err
		}
		logger.Info("🔄 Running database migrations...")
		if err := storage.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		store = storage.NewDatabaseStore(db)
		logger.Info("✅ Using database storage", zap.String("driver", cfg.DBDriver))
	}

	// Session events fan out to SSE clients and, optionally, RabbitMQ
	hub := broadcast.NewHub()
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	if cfg.RabbitMQURL != "" {
		producer, err := broadcast.NewAMQPProducer(cfg.RabbitMQURL, cfg.WhatsAppEventExchange)
		if err != nil {
			logger.Warn("⚠️ RabbitMQ unavailable, session events stay in-process", zap.Error(err))
		} else {
			defer producer.Close()
			go broadcast.NewAMQPRelay(hub, producer, logger).Run(relayCtx)
			logger.Info("✅ Relaying session events to RabbitMQ", zap.String("exchange", cfg.WhatsAppEventExchange))
		}
	}

	var limiter services.RateLimiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter = services.NewRedisRateLimiter(rdb, "finbot:rate_limit", cfg.ChatRateLimitPerMinute, time.Minute)
		logger.Info("✅ Chat rate limiting enabled", zap.Int("per_minute", cfg.ChatRateLimitPerMinute))
	}

	// Chat transport
	var (
		dialer         transport.Dialer
		webhookHandler *handlers.WebhookHandler
		sandboxHandler *handlers.SandboxHandler
	)
	switch cfg.WhatsAppTransport {
	case config.TransportTwilio:
		twilioDialer, err := transport.NewTwilioDialer(transport.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioWhatsAppFrom,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Twilio transport: %w", err)
		}
		dialer = twilioDialer
		webhookHandler = handlers.NewWebhookHandler(twilioDialer, logger)
		logger.Info("✅ Twilio transport initialized")
	default:
		sandboxDialer := transport.NewSandboxDialer(logger)
		dialer = sandboxDialer
		sandboxHandler = handlers.NewSandboxHandler(sandboxDialer, logger)
		logger.Warn("⚠️ Using sandbox WhatsApp transport")
	}

	// Services
	commandService := services.NewCommandService(store, logger)
	whatsappService := services.NewWhatsAppService(store, commandService, limiter, logger)
	sessionManager := services.NewSessionManager(store, dialer, whatsappService, hub, logger,
		services.WithDefaultSession(cfg.WhatsAppDefaultSession),
		services.WithRestoreConcurrency(cfg.WhatsAppRestoreConcurrency),
	)
	contactService := services.NewContactService(store, sessionManager, logger)

	if err := sessionManager.Restore(ctx); err != nil {
		logger.Error("❌ Session recovery failed", zap.Error(err))
	}

	reconciler := jobs.NewSessionReconciler(sessionManager, cfg.SessionReconcileCron, logger)
	if err := reconciler.Start(); err != nil {
		return fmt.Errorf("failed to schedule session reconciler: %w", err)
	}

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "FinBot WhatsApp Backend v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, routes.Handlers{
		WhatsApp: handlers.NewWhatsAppHandler(sessionManager, logger),
		Admin:    handlers.NewAdminHandler(contactService, logger),
		Events:   handlers.NewEventsHandler(hub, logger),
		Health:   handlers.NewHealthHandler(version, storageType, store, sessionManager),
		Webhook:  webhookHandler,
		Sandbox:  sandboxHandler,
	}, routes.Options{
		AdminJWTSecret:           cfg.AdminJWTSecret,
		TwilioAuthToken:          cfg.TwilioAuthToken,
		DisableWebhookValidation: cfg.DisableWebhookValidation,
		Version:                  version,
		Logger:                   logger,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("🚀 Server starting", zap.String("port", cfg.Port))
		serverErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
		logger.Info("🛑 Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			logger.Error("❌ Server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Closing the hub ends open SSE streams so the server can drain
	hub.Close()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("❌ HTTP shutdown failed", zap.Error(err))
	}
	<-reconciler.Stop().Done()
	if err := sessionManager.Shutdown(shutdownCtx); err != nil {
		logger.Error("❌ Session shutdown incomplete", zap.Error(err))
	}
	stopRelay()

	logger.Info("✅ Server exited")
	return nil
}
