package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/transport"
)

const sandboxReplyTimeout = 5 * time.Second

// SandboxHandler drives sandbox sessions for local development
type SandboxHandler struct {
	dialer *transport.SandboxDialer
	logger *zap.Logger
}

// NewSandboxHandler creates a new sandbox handler
func NewSandboxHandler(dialer *transport.SandboxDialer, logger *zap.Logger) *SandboxHandler {
	return &SandboxHandler{
		dialer: dialer,
		logger: logger,
	}
}

// TestMessagePayload is a simulated inbound message
type TestMessagePayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// client returns the open sandbox client for the :session param
func (h *SandboxHandler) client(c *fiber.Ctx) (*transport.SandboxClient, bool) {
	client, ok := h.dialer.Client(c.Params("session"))
	if !ok || client.Closed() {
		return nil, false
	}
	return client, true
}

func sessionNotInitialized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Session not initialized",
	})
}

// Scan simulates the phone scanning the session's QR code
func (h *SandboxHandler) Scan(c *fiber.Ctx) error {
	client, ok := h.client(c)
	if !ok {
		return sessionNotInitialized(c)
	}
	client.Scan()
	return c.JSON(fiber.Map{"success": true})
}

// Drop simulates the network unlinking the device
func (h *SandboxHandler) Drop(c *fiber.Ctx) error {
	client, ok := h.client(c)
	if !ok {
		return sessionNotInitialized(c)
	}
	reason := c.Query("reason", "sandbox_drop")
	client.Drop(reason)
	return c.JSON(fiber.Map{"success": true})
}

// Message injects an inbound message and returns the bot's reply
func (h *SandboxHandler) Message(c *fiber.Ctx) error {
	var payload TestMessagePayload
	if err := c.BodyParser(&payload); err != nil || payload.From == "" || payload.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from and message are required",
		})
	}

	client, ok := h.client(c)
	if !ok {
		return sessionNotInitialized(c)
	}

	h.logger.Info("🧪 Test message received", zap.String("session", c.Params("session")), zap.String("from", payload.From))

	before := len(client.Sent())
	client.Receive(payload.From, payload.Message)

	ctx, cancel := context.WithTimeout(c.UserContext(), sandboxReplyTimeout)
	defer cancel()

	sent, err := client.WaitForSent(ctx, before+1)
	if err != nil {
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "No reply from session",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"response": sent[before].Text,
	})
}
