package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// LiveSessionCounter reports the sessions with a live connection
type LiveSessionCounter interface {
	LiveSessionNames() []string
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	Storage  string
	store    Pinger
	sessions LiveSessionCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, storageType string, store Pinger, sessions LiveSessionCounter) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		Storage:  storageType,
		store:    store,
		sessions: sessions,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "OK"
	code := fiber.StatusOK
	dbStatus := "connected"
	if err := h.store.Ping(ctx); err != nil {
		status = "DEGRADED"
		code = fiber.StatusServiceUnavailable
		dbStatus = "error: " + err.Error()
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"service": "FinBot WhatsApp Backend",
		"version": h.Version,
		"storage": fiber.Map{
			"type":   h.Storage,
			"status": dbStatus,
		},
		"whatsapp": fiber.Map{
			"live_sessions": len(h.sessions.LiveSessionNames()),
		},
	})
}
