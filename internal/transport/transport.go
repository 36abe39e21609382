// Package transport abstracts the chat network behind a per-session client:
// connect, emit QR/pairing credentials, send and receive text, report link
// status.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned when a client is used after Close
	ErrClosed = errors.New("transport: client closed")
	// ErrPairingUnsupported is returned by transports that cannot link by code
	ErrPairingUnsupported = errors.New("transport: pairing codes not supported")
)

// EventType names the events a client emits
type EventType string

const (
	EventQR            EventType = "qr"
	EventReady         EventType = "ready"
	EventAuthenticated EventType = "authenticated"
	EventAuthFailure   EventType = "auth_failure"
	EventDisconnected  EventType = "disconnected"
	EventMessage       EventType = "message"
)

// Event is one item of a client's event stream. QR is set for EventQR,
// Reason for EventAuthFailure/EventDisconnected, From/Body for EventMessage.
type Event struct {
	Type   EventType
	QR     string
	Reason string
	From   string
	Body   string
}

// Client is one live connection for a session
type Client interface {
	// Connect starts the handshake. Progress is reported through Events.
	Connect(ctx context.Context) error
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)
	SendText(ctx context.Context, to, text string) error
	Logout(ctx context.Context) error
	// Close releases the connection without unlinking the device
	Close() error
	Events() <-chan Event
}

// Dialer builds a fresh client for a session name
type Dialer interface {
	Dial(sessionName string) (Client, error)
}

// eventBuffer is the per-client event channel capacity
const eventBuffer = 32
