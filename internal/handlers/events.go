package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/broadcast"
)

const sseKeepAlive = 25 * time.Second

// EventsHandler streams session events to admin dashboards over SSE
type EventsHandler struct {
	hub       *broadcast.Hub
	logger    *zap.Logger
	keepAlive time.Duration
}

// NewEventsHandler creates a new SSE handler
func NewEventsHandler(hub *broadcast.Hub, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		hub:       hub,
		logger:    logger,
		keepAlive: sseKeepAlive,
	}
}

// Stream writes one SSE frame per hub event until the client goes away or
// the hub is closed
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	events, cancel := h.hub.Subscribe(0)
	h.logger.Debug("📡 Event stream opened", zap.String("ip", c.IP()))

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					h.logger.Error("❌ Failed to encode event", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				// client disconnected
				return
			}
		}
	}))
	return nil
}
