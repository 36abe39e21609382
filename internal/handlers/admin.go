package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/services"
	"github.com/Ananth-NQI/finbot-backend/internal/storage"
)

// AdminHandler manages the WhatsApp contact directory
type AdminHandler struct {
	contacts *services.ContactService
	logger   *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(contacts *services.ContactService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		contacts: contacts,
		logger:   logger,
	}
}

type registerContactRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	UserID      string `json:"userId"`
	Verified    bool   `json:"verified"`
}

type startVerificationRequest struct {
	SessionName string `json:"sessionName"`
}

type verifyContactRequest struct {
	Code string `json:"code"`
}

// ListContacts returns every registered contact
func (h *AdminHandler) ListContacts(c *fiber.Ctx) error {
	contacts, err := h.contacts.List(c.UserContext())
	if err != nil {
		h.logger.Error("❌ Failed to list contacts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch contacts",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"contacts": contacts,
		"count":    len(contacts),
	})
}

// RegisterContact binds a phone number to a user
func (h *AdminHandler) RegisterContact(c *fiber.Ctx) error {
	var req registerContactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if strings.TrimSpace(req.UserID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	contact, err := h.contacts.Register(c.UserContext(), req.PhoneNumber, req.UserID, req.Verified)
	if errors.Is(err, services.ErrInvalidPhone) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid phone number",
		})
	}
	if err != nil {
		h.logger.Warn("⚠️ Failed to register contact", zap.Error(err))
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Contact could not be registered",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"contact": contact,
	})
}

// StartVerification sends a verification code to the contact over WhatsApp
func (h *AdminHandler) StartVerification(c *fiber.Ctx) error {
	var req startVerificationRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.SessionName) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "sessionName is required",
		})
	}

	err := h.contacts.StartVerification(c.UserContext(), req.SessionName, c.Params("phone"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Contact not found"})
	case errors.Is(err, services.ErrContactAlreadyVerified):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Contact already verified"})
	case errors.Is(err, services.ErrSessionNotConnected):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Session not connected"})
	case err != nil:
		h.logger.Error("❌ Failed to start verification", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send verification code"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Verification code sent",
	})
}

// VerifyContact checks the code the contact received
func (h *AdminHandler) VerifyContact(c *fiber.Ctx) error {
	var req verifyContactRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	contact, err := h.contacts.Verify(c.UserContext(), c.Params("phone"), req.Code)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Contact not found"})
	case errors.Is(err, services.ErrNoPendingVerification),
		errors.Is(err, services.ErrVerificationExpired),
		errors.Is(err, services.ErrVerificationInvalid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrTooManyAttempts):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		h.logger.Error("❌ Failed to verify contact", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to verify contact"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"contact": contact,
	})
}
