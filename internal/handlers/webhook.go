package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// InboundDeliverer hands a webhook message to a session's transport client
type InboundDeliverer interface {
	Deliver(sessionName, from, body string) error
}

// WebhookHandler receives Twilio WhatsApp webhooks
type WebhookHandler struct {
	inbound InboundDeliverer
	logger  *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(inbound InboundDeliverer, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		inbound: inbound,
		logger:  logger,
	}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid string `form:"MessageSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"` // WhatsApp number (whatsapp:+5511999990000)
	To         string `form:"To"`   // Your Twilio number
	Body       string `form:"Body"` // Message text
	NumMedia   string `form:"NumMedia"`
}

// HandleTwilio processes incoming WhatsApp messages for a session. The reply
// goes out asynchronously through the session, so Twilio gets an empty 200.
func (h *WebhookHandler) HandleTwilio(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Warn("⚠️ Invalid webhook payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// Delivery receipts carry no body
	if payload.Body == "" || payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	session := c.Params("session")
	h.logger.Info("📱 WhatsApp message received",
		zap.String("session", session),
		zap.String("sid", payload.MessageSid))

	if err := h.inbound.Deliver(session, payload.From, payload.Body); err != nil {
		h.logger.Warn("⚠️ Message for inactive session", zap.String("session", session), zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not connected",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
