package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/utils"
)

// Outbound is a message a sandbox client was asked to send
type Outbound struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// SandboxDialer creates in-process clients that behave like a linked phone
// driven by test endpoints instead of a real network
type SandboxDialer struct {
	logger *zap.Logger

	mu         sync.Mutex
	clients    map[string]*SandboxClient
	connectErr map[string]error
}

// NewSandboxDialer creates a new sandbox dialer
func NewSandboxDialer(logger *zap.Logger) *SandboxDialer {
	return &SandboxDialer{
		logger:     logger,
		clients:    make(map[string]*SandboxClient),
		connectErr: make(map[string]error),
	}
}

// Dial implements Dialer. The newest client for a name replaces older ones.
func (d *SandboxDialer) Dial(sessionName string) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	client := &SandboxClient{
		name:       sessionName,
		logger:     d.logger,
		events:     make(chan Event, eventBuffer),
		done:       make(chan struct{}),
		notify:     make(chan struct{}),
		connectErr: d.connectErr[sessionName],
	}
	d.clients[sessionName] = client
	return client, nil
}

// Client returns the latest client dialed for a session
func (d *SandboxDialer) Client(sessionName string) (*SandboxClient, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	client, ok := d.clients[sessionName]
	return client, ok
}

// FailConnect makes future clients for sessionName fail their handshake
func (d *SandboxDialer) FailConnect(sessionName string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		delete(d.connectErr, sessionName)
		return
	}
	d.connectErr[sessionName] = err
}

// SandboxClient is a Client whose link status is driven by method calls
type SandboxClient struct {
	name       string
	logger     *zap.Logger
	events     chan Event
	done       chan struct{}
	connectErr error

	mu        sync.Mutex
	closed    bool
	loggedOut bool
	sent      []Outbound
	notify    chan struct{} // closed and replaced on every send
}

func (c *SandboxClient) Events() <-chan Event {
	return c.events
}

// Connect emits a QR credential, as an unlinked device would
func (c *SandboxClient) Connect(ctx context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	c.EmitQR(fmt.Sprintf("sandbox@%s,%s", c.name, uuid.NewString()))
	return nil
}

func (c *SandboxClient) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	if c.isClosed() {
		return "", ErrClosed
	}
	return utils.GeneratePairingCode()
}

func (c *SandboxClient) SendText(ctx context.Context, to, text string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.sent = append(c.sent, Outbound{To: to, Text: text})
	close(c.notify)
	c.notify = make(chan struct{})
	c.mu.Unlock()

	c.logger.Debug("📤 Sandbox message", zap.String("session", c.name), zap.String("to", to))
	return nil
}

func (c *SandboxClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.loggedOut = true
	return nil
}

func (c *SandboxClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Scan simulates the phone scanning the QR code
func (c *SandboxClient) Scan() {
	c.emit(Event{Type: EventAuthenticated})
	c.emit(Event{Type: EventReady})
}

// EmitQR emits a raw QR credential
func (c *SandboxClient) EmitQR(payload string) {
	c.emit(Event{Type: EventQR, QR: payload})
}

// Receive simulates an inbound text message
func (c *SandboxClient) Receive(from, body string) {
	c.emit(Event{Type: EventMessage, From: from, Body: body})
}

// Drop simulates the network unlinking the device
func (c *SandboxClient) Drop(reason string) {
	c.emit(Event{Type: EventDisconnected, Reason: reason})
}

// RejectAuth simulates an authentication failure
func (c *SandboxClient) RejectAuth(reason string) {
	c.emit(Event{Type: EventAuthFailure, Reason: reason})
}

// Sent returns a copy of every message sent so far
func (c *SandboxClient) Sent() []Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Outbound, len(c.sent))
	copy(out, c.sent)
	return out
}

// WaitForSent blocks until at least n messages were sent or ctx ends
func (c *SandboxClient) WaitForSent(ctx context.Context, n int) ([]Outbound, error) {
	for {
		c.mu.Lock()
		if len(c.sent) >= n {
			out := make([]Outbound, len(c.sent))
			copy(out, c.sent)
			c.mu.Unlock()
			return out, nil
		}
		notify := c.notify
		c.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// LoggedOut reports whether Logout was called
func (c *SandboxClient) LoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

// Closed reports whether Close was called
func (c *SandboxClient) Closed() bool {
	return c.isClosed()
}

func (c *SandboxClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *SandboxClient) emit(ev Event) {
	select {
	case <-c.done:
	case c.events <- ev:
	}
}
