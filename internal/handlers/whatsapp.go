package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/services"
	"github.com/Ananth-NQI/finbot-backend/internal/transport"
)

// WhatsAppHandler exposes session control to administrators
type WhatsAppHandler struct {
	sessions *services.SessionManager
	logger   *zap.Logger
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(sessions *services.SessionManager, logger *zap.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{
		sessions: sessions,
		logger:   logger,
	}
}

type initSessionRequest struct {
	SessionName string `json:"sessionName"`
}

type pairingCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type sendMessageRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

// InitSession starts a new session
func (h *WhatsAppHandler) InitSession(c *fiber.Ctx) error {
	var req initSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.sessions.InitializeSession(c.UserContext(), req.SessionName)
	if errors.Is(err, services.ErrInvalidSessionName) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "sessionName is required",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(result)
}

// ListSessions returns every persisted session
func (h *WhatsAppHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.sessions.ListSessions(c.UserContext())
	if err != nil {
		h.logger.Error("❌ Failed to list sessions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sessions",
		})
	}
	return c.JSON(sessions)
}

// GetStatus returns the status of one session
func (h *WhatsAppHandler) GetStatus(c *fiber.Ctx) error {
	status, err := h.sessions.GetStatus(c.UserContext(), c.Params("session"))
	if err != nil {
		h.logger.Error("❌ Failed to read session status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch session status",
		})
	}
	return c.JSON(status)
}

// GetQRCode returns the QR image while the session waits for a scan
func (h *WhatsAppHandler) GetQRCode(c *fiber.Ctx) error {
	qr, ok := h.sessions.GetQRCode(c.Params("session"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "QR code not available. Session may be connected or not initialized.",
		})
	}
	return c.JSON(fiber.Map{"qrCode": qr})
}

// RequestPairingCode links a phone by code instead of QR
func (h *WhatsAppHandler) RequestPairingCode(c *fiber.Ctx) error {
	var req pairingCodeRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.PhoneNumber) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phoneNumber is required",
		})
	}

	code, err := h.sessions.RequestPairingCode(c.UserContext(), c.Params("session"), req.PhoneNumber)
	switch {
	case errors.Is(err, services.ErrSessionNotInitialized):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not initialized"})
	case errors.Is(err, transport.ErrPairingUnsupported):
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "Pairing codes are not supported by this transport"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"pairingCode": code})
}

// Disconnect logs a session out
func (h *WhatsAppHandler) Disconnect(c *fiber.Ctx) error {
	result, err := h.sessions.DisconnectSession(c.UserContext(), c.Params("session"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(result)
}

// DeleteSession disconnects a session and removes its record
func (h *WhatsAppHandler) DeleteSession(c *fiber.Ctx) error {
	if err := h.sessions.DeleteSession(c.UserContext(), c.Params("session")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(services.OperationResult{Success: true, Message: "Session deleted successfully"})
}

// SendMessage sends a text through a connected session
func (h *WhatsAppHandler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.PhoneNumber) == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phoneNumber and message are required",
		})
	}

	err := h.sessions.SendMessage(c.UserContext(), c.Params("session"), req.PhoneNumber, req.Message)
	if errors.Is(err, services.ErrSessionNotConnected) {
		return c.Status(fiber.StatusConflict).JSON(services.OperationResult{Success: false, Message: "Session not connected"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(services.OperationResult{Success: true, Message: "Message sent successfully"})
}
