package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/models"
)

// TwilioConfig holds the Twilio account used for WhatsApp messaging
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string // Format: "whatsapp:+14155238886"
}

// messageCreator is the part of the Twilio REST client a session needs
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioDialer builds clients on a Twilio WhatsApp sender. Twilio numbers
// are linked in the Twilio console, so there is no QR or pairing step and
// inbound messages arrive through the webhook (see Deliver).
type TwilioDialer struct {
	api    messageCreator
	from   string
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[string]*TwilioClient
}

// NewTwilioDialer creates a new Twilio-backed dialer
func NewTwilioDialer(cfg TwilioConfig, logger *zap.Logger) (*TwilioDialer, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return newTwilioDialer(client.Api, cfg.From, logger), nil
}

func newTwilioDialer(api messageCreator, from string, logger *zap.Logger) *TwilioDialer {
	return &TwilioDialer{
		api:     api,
		from:    from,
		logger:  logger,
		clients: make(map[string]*TwilioClient),
	}
}

// Dial implements Dialer
func (d *TwilioDialer) Dial(sessionName string) (Client, error) {
	client := &TwilioClient{
		name:   sessionName,
		dialer: d,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}

	d.mu.Lock()
	d.clients[sessionName] = client
	d.mu.Unlock()

	return client, nil
}

// Deliver hands an inbound webhook message to the session's client
func (d *TwilioDialer) Deliver(sessionName, from, body string) error {
	d.mu.RLock()
	client, ok := d.clients[sessionName]
	d.mu.RUnlock()

	if !ok || client.isClosed() {
		return fmt.Errorf("session %s: %w", sessionName, ErrClosed)
	}
	client.emit(Event{Type: EventMessage, From: from, Body: body})
	return nil
}

func (d *TwilioDialer) forget(sessionName string, client *TwilioClient) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.clients[sessionName] == client {
		delete(d.clients, sessionName)
	}
}

// TwilioClient is one session on the shared Twilio sender
type TwilioClient struct {
	name   string
	dialer *TwilioDialer
	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func (c *TwilioClient) Events() <-chan Event {
	return c.events
}

// Connect reports the session as linked straight away
func (c *TwilioClient) Connect(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.emit(Event{Type: EventAuthenticated})
	c.emit(Event{Type: EventReady})
	return nil
}

func (c *TwilioClient) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	return "", ErrPairingUnsupported
}

// SendText sends a WhatsApp message via Twilio
func (c *TwilioClient) SendText(ctx context.Context, to, text string) error {
	if c.isClosed() {
		return ErrClosed
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(c.dialer.from)
	params.SetTo("whatsapp:+" + models.NormalizePhone(to))
	params.SetBody(text)

	resp, err := c.dialer.api.CreateMessage(params)
	if err != nil {
		c.dialer.logger.Error("❌ Failed to send WhatsApp message", zap.String("session", c.name), zap.Error(err))
		return fmt.Errorf("twilio send: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	c.dialer.logger.Info("✅ WhatsApp message sent", zap.String("session", c.name), zap.String("sid", sid))
	return nil
}

// Logout is a no-op: the Twilio sender stays linked to the account
func (c *TwilioClient) Logout(ctx context.Context) error {
	return nil
}

func (c *TwilioClient) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()

	c.dialer.forget(c.name, c)
	return nil
}

func (c *TwilioClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *TwilioClient) emit(ev Event) {
	select {
	case <-c.done:
	case c.events <- ev:
	}
}
