package models

import (
	"time"
)

// SessionStatus is the lifecycle state of a WhatsApp session
type SessionStatus string

const (
	SessionDisconnected  SessionStatus = "DISCONNECTED"
	SessionConnecting    SessionStatus = "CONNECTING"
	SessionQRReady       SessionStatus = "QR_READY"
	SessionAuthenticated SessionStatus = "AUTHENTICATED"
	SessionConnected     SessionStatus = "CONNECTED"
)

// RestorableStatuses are the persisted states that get reconnected on boot
var RestorableStatuses = []SessionStatus{SessionConnected, SessionAuthenticated}

// LiveStatuses are every state other than DISCONNECTED
var LiveStatuses = []SessionStatus{SessionConnecting, SessionQRReady, SessionAuthenticated, SessionConnected}

// WhatsAppSession is the persisted record of one bot identity
type WhatsAppSession struct {
	Name         string        `json:"name" gorm:"primaryKey;size:100"`
	Status       SessionStatus `json:"status" gorm:"type:varchar(20);default:'DISCONNECTED';index"`
	QRCode       string        `json:"qr_code,omitempty" gorm:"type:text"` // PNG data URL, only while QR_READY
	PairingCode  string        `json:"pairing_code,omitempty" gorm:"size:32"`
	LastActiveAt *time.Time    `json:"last_active_at"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// TableName specifies the table name for WhatsAppSession
func (WhatsAppSession) TableName() string {
	return "whatsapp_sessions"
}

// IsLive reports whether the status implies an open connection
func (s SessionStatus) IsLive() bool {
	return s != SessionDisconnected && s != ""
}
