package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/models"
	"github.com/Ananth-NQI/finbot-backend/internal/storage"
	"github.com/Ananth-NQI/finbot-backend/internal/utils"
)

var (
	ErrInvalidPhone           = errors.New("invalid phone number")
	ErrNoPendingVerification  = errors.New("no pending verification")
	ErrVerificationExpired    = errors.New("verification code expired")
	ErrVerificationInvalid    = errors.New("invalid verification code")
	ErrTooManyAttempts        = errors.New("too many attempts")
	ErrContactAlreadyVerified = errors.New("contact already verified")
)

const (
	verificationTTL         = 10 * time.Minute
	maxVerificationAttempts = 3
)

// MessageSender delivers a text through a named WhatsApp session
type MessageSender interface {
	SendMessage(ctx context.Context, sessionName, phoneNumber, text string) error
}

// ContactService manages the verified phone-number-to-user directory
type ContactService struct {
	store  storage.ContactStore
	sender MessageSender
	logger *zap.Logger
	now    func() time.Time
}

// NewContactService creates a new contact service
func NewContactService(store storage.ContactStore, sender MessageSender, logger *zap.Logger) *ContactService {
	return &ContactService{
		store:  store,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// Register binds phone to userID. Contacts added as verified can use the bot
// immediately; others must complete a code verification first.
func (s *ContactService) Register(ctx context.Context, phone, userID string, verified bool) (*models.WhatsAppContact, error) {
	normalized := models.NormalizePhone(phone)
	if len(normalized) < 8 {
		return nil, ErrInvalidPhone
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}

	contact := &models.WhatsAppContact{
		PhoneNumber: normalized,
		UserID:      userID,
		IsVerified:  verified,
	}
	if verified {
		now := s.now()
		contact.VerifiedAt = &now
	}

	if err := s.store.CreateContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	s.logger.Info("📇 Contact registered", zap.String("phone", normalized), zap.Bool("verified", verified))
	return contact, nil
}

// List returns all contacts, newest first
func (s *ContactService) List(ctx context.Context) ([]*models.WhatsAppContact, error) {
	return s.store.GetAllContacts(ctx)
}

// StartVerification issues a fresh code, invalidating any earlier one, and
// sends it to the contact through sessionName.
func (s *ContactService) StartVerification(ctx context.Context, sessionName, phone string) error {
	contact, err := s.store.GetContactByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if contact.IsVerified {
		return ErrContactAlreadyVerified
	}

	code, err := utils.GenerateSecureOTP()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	expiresAt := s.now().Add(verificationTTL)
	contact.VerificationCode = code
	contact.VerificationExpiresAt = &expiresAt
	contact.VerificationAttempts = 0
	if err := s.store.UpdateContact(ctx, contact); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	text := fmt.Sprintf("🔐 Seu código de verificação FinBot: *%s*\n\nVálido por %d minutos.", code, int(verificationTTL.Minutes()))
	if err := s.sender.SendMessage(ctx, sessionName, contact.PhoneNumber, text); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}

	s.logger.Info("📤 Verification code sent", zap.String("phone", contact.PhoneNumber), zap.String("session", sessionName))
	return nil
}

// Verify checks code against the pending verification for phone
func (s *ContactService) Verify(ctx context.Context, phone, code string) (*models.WhatsAppContact, error) {
	contact, err := s.store.GetContactByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if contact.IsVerified {
		return contact, nil
	}
	if contact.VerificationCode == "" || contact.VerificationExpiresAt == nil {
		return nil, ErrNoPendingVerification
	}
	if s.now().After(*contact.VerificationExpiresAt) {
		return nil, ErrVerificationExpired
	}

	contact.VerificationAttempts++
	if contact.VerificationAttempts > maxVerificationAttempts {
		if err := s.store.UpdateContact(ctx, contact); err != nil {
			return nil, err
		}
		return nil, ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(contact.VerificationCode), []byte(strings.TrimSpace(code))) != 1 {
		if err := s.store.UpdateContact(ctx, contact); err != nil {
			return nil, err
		}
		return nil, ErrVerificationInvalid
	}

	now := s.now()
	contact.IsVerified = true
	contact.VerifiedAt = &now
	contact.VerificationCode = ""
	contact.VerificationExpiresAt = nil
	contact.VerificationAttempts = 0
	if err := s.store.UpdateContact(ctx, contact); err != nil {
		return nil, err
	}

	s.logger.Info("✅ Contact verified", zap.String("phone", contact.PhoneNumber))
	return contact, nil
}
