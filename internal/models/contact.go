package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WhatsAppContact binds a phone number to a ledger user
type WhatsAppContact struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	PhoneNumber string     `json:"phone_number" gorm:"uniqueIndex;not null"` // digits only, no network suffix
	UserID      string     `json:"user_id" gorm:"index;not null"`
	IsVerified  bool       `json:"is_verified" gorm:"default:false"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`

	// Pending verification code, sent over WhatsApp
	VerificationCode      string     `json:"-" gorm:"size:6"`
	VerificationExpiresAt *time.Time `json:"-"`
	VerificationAttempts  int        `json:"-" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for WhatsAppContact
func (WhatsAppContact) TableName() string {
	return "whatsapp_contacts"
}

// BeforeCreate assigns an ID and normalizes the phone number
func (c *WhatsAppContact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.PhoneNumber = NormalizePhone(c.PhoneNumber)
	return nil
}

// NormalizePhone strips transport prefixes/suffixes and formatting from a
// phone address, e.g. "whatsapp:+55 11 99999-0000" or "5511999990000@c.us".
func NormalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimPrefix(phone, "whatsapp:")
	if i := strings.Index(phone, "@"); i >= 0 {
		phone = phone[:i]
	}

	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ChatAddress returns the WhatsApp chat id for a phone number
func ChatAddress(phone string) string {
	if strings.Contains(phone, "@c.us") {
		return phone
	}
	return NormalizePhone(phone) + "@c.us"
}
