package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/broadcast"
	"github.com/Ananth-NQI/finbot-backend/internal/handlers"
	"github.com/Ananth-NQI/finbot-backend/internal/services"
	"github.com/Ananth-NQI/finbot-backend/internal/storage"
	"github.com/Ananth-NQI/finbot-backend/internal/transport"
)

const secret = "routes-secret"

type stubDeliverer struct{ delivered int }

func (s *stubDeliverer) Deliver(sessionName, from, body string) error {
	s.delivered++
	return nil
}

func newApp(t *testing.T, withSandbox bool, opts Options) (*fiber.App, *stubDeliverer) {
	t.Helper()

	logger := zap.NewNop()
	store := storage.NewMemoryStore()
	dialer := transport.NewSandboxDialer(logger)
	hub := broadcast.NewHub()
	commands := services.NewCommandService(store, logger)
	sessions := services.NewSessionManager(store, dialer, services.NewWhatsAppService(store, commands, nil, logger), hub, logger)
	t.Cleanup(func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sessions.Shutdown(ctx)
	})

	inbound := &stubDeliverer{}
	h := Handlers{
		WhatsApp: handlers.NewWhatsAppHandler(sessions, logger),
		Admin:    handlers.NewAdminHandler(services.NewContactService(store, sessions, logger), logger),
		Events:   handlers.NewEventsHandler(hub, logger),
		Health:   handlers.NewHealthHandler("test", "memory", store, sessions),
	}
	if withSandbox {
		h.Sandbox = handlers.NewSandboxHandler(dialer, logger)
	} else {
		h.Webhook = handlers.NewWebhookHandler(inbound, logger)
	}

	opts.Logger = logger
	opts.Version = "test"
	app := fiber.New()
	SetupRoutes(app, h, opts)
	return app, inbound
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops",
		"role": "ADMIN",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func status(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestPublicRoutes(t *testing.T) {
	app, _ := newApp(t, true, Options{AdminJWTSecret: secret})

	assert.Equal(t, http.StatusOK, status(t, app, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusOK, status(t, app, httptest.NewRequest(http.MethodGet, "/health", nil)))
}

func TestAdminRoutesRequireToken(t *testing.T) {
	app, _ := newApp(t, true, Options{AdminJWTSecret: secret})

	for _, path := range []string{"/api/whatsapp/sessions", "/api/whatsapp/status/main", "/api/whatsapp/contacts"} {
		assert.Equal(t, http.StatusUnauthorized, status(t, app, httptest.NewRequest(http.MethodGet, path, nil)), path)

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t))
		assert.Equal(t, http.StatusOK, status(t, app, req), path)
	}
}

func TestAdminRoutesOpenWithoutSecret(t *testing.T) {
	app, _ := newApp(t, true, Options{})

	assert.Equal(t, http.StatusOK, status(t, app, httptest.NewRequest(http.MethodGet, "/api/whatsapp/sessions", nil)))
}

func body(t *testing.T, app *fiber.App, req *http.Request) string {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestTransportSpecificRoutes(t *testing.T) {
	sandboxApp, _ := newApp(t, true, Options{})
	// the sandbox route exists and answers for the unknown session
	assert.Contains(t, body(t, sandboxApp, httptest.NewRequest(http.MethodPost, "/test/whatsapp/main/scan", nil)), "Session not initialized")
	assert.Contains(t, body(t, sandboxApp, httptest.NewRequest(http.MethodPost, "/webhook/whatsapp/main", nil)), "Cannot POST")

	twilioApp, _ := newApp(t, false, Options{DisableWebhookValidation: true})
	assert.Contains(t, body(t, twilioApp, httptest.NewRequest(http.MethodPost, "/test/whatsapp/main/scan", nil)), "Cannot POST")
}

func TestWebhookSignatureGuard(t *testing.T) {
	form := url.Values{"From": {"whatsapp:+5511999990000"}, "Body": {"saldo"}}
	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp/main", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	guarded, inbound := newApp(t, false, Options{TwilioAuthToken: "token"})
	assert.Equal(t, http.StatusUnauthorized, status(t, guarded, newReq()))
	assert.Zero(t, inbound.delivered)

	open, inbound := newApp(t, false, Options{DisableWebhookValidation: true})
	assert.Equal(t, http.StatusOK, status(t, open, newReq()))
	assert.Equal(t, 1, inbound.delivered)
}
