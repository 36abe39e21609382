package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/handlers"
	"github.com/Ananth-NQI/finbot-backend/internal/middleware"
)

// Handlers groups the HTTP handlers. Webhook is set only for the Twilio
// transport and Sandbox only for the sandbox transport.
type Handlers struct {
	WhatsApp *handlers.WhatsAppHandler
	Admin    *handlers.AdminHandler
	Events   *handlers.EventsHandler
	Health   *handlers.HealthHandler
	Webhook  *handlers.WebhookHandler
	Sandbox  *handlers.SandboxHandler
}

// Options controls route guards
type Options struct {
	AdminJWTSecret           string
	TwilioAuthToken          string
	DisableWebhookValidation bool
	Version                  string
	Logger                   *zap.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, h Handlers, opts Options) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to FinBot WhatsApp Backend!",
			"version": opts.Version,
			"endpoints": fiber.Map{
				"health":   "/health",
				"whatsapp": "/api/whatsapp",
				"webhook":  "/webhook/whatsapp/:session",
				"sandbox":  "/test/whatsapp/:session",
			},
		})
	})

	app.Get("/health", h.Health.Check)

	// ========== ADMIN API ==========
	if opts.AdminJWTSecret == "" {
		opts.Logger.Warn("⚠️ ADMIN_JWT_SECRET not set, session API is unauthenticated")
	}
	whatsapp := app.Group("/api/whatsapp", middleware.RequireAdmin(opts.AdminJWTSecret))

	whatsapp.Post("/init", h.WhatsApp.InitSession)
	whatsapp.Get("/sessions", h.WhatsApp.ListSessions)
	whatsapp.Get("/status/:session", h.WhatsApp.GetStatus)
	whatsapp.Get("/qr/:session", h.WhatsApp.GetQRCode)
	whatsapp.Post("/pair/:session", h.WhatsApp.RequestPairingCode)
	whatsapp.Post("/disconnect/:session", h.WhatsApp.Disconnect)
	whatsapp.Delete("/session/:session", h.WhatsApp.DeleteSession)
	whatsapp.Post("/send/:session", h.WhatsApp.SendMessage)
	whatsapp.Get("/events", h.Events.Stream)

	whatsapp.Get("/contacts", h.Admin.ListContacts)
	whatsapp.Post("/contacts", h.Admin.RegisterContact)
	whatsapp.Post("/contacts/:phone/verification", h.Admin.StartVerification)
	whatsapp.Post("/contacts/:phone/verify", h.Admin.VerifyContact)

	// ========== WEBHOOK ROUTES ==========
	if h.Webhook != nil {
		webhooks := app.Group("/webhook")
		if opts.DisableWebhookValidation {
			opts.Logger.Warn("⚠️ WhatsApp webhook validation DISABLED")
			webhooks.Post("/whatsapp/:session", h.Webhook.HandleTwilio)
		} else {
			webhooks.Post("/whatsapp/:session",
				middleware.ValidateTwilioSignature(opts.TwilioAuthToken, opts.Logger),
				h.Webhook.HandleTwilio)
		}
	}

	// ========== TEST ROUTES (sandbox transport only) ==========
	if h.Sandbox != nil {
		test := app.Group("/test/whatsapp")
		test.Post("/:session/scan", h.Sandbox.Scan)
		test.Post("/:session/drop", h.Sandbox.Drop)
		test.Post("/:session/message", h.Sandbox.Message)
	}
}
