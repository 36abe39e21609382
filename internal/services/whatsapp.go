package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/models"
	"github.com/Ananth-NQI/finbot-backend/internal/storage"
)

// Fixed replies sent back over WhatsApp
const (
	replyNotVerified = "Seu número não está cadastrado ou verificado. Entre em contato com o administrador."
	replyError       = "Desculpe, ocorreu um erro ao processar seu comando. Por favor, tente novamente."
	replySlowDown    = "⏳ Você enviou muitas mensagens em pouco tempo. Aguarde um minuto e tente novamente."
)

// MessageProcessor turns an inbound chat message into the reply text
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, from, body string) string
}

// WhatsAppService handles WhatsApp message processing
type WhatsAppService struct {
	contacts storage.ContactStore
	commands *CommandService
	limiter  RateLimiter
	logger   *zap.Logger
}

// NewWhatsAppService creates a new WhatsApp service. limiter may be nil.
func NewWhatsAppService(contacts storage.ContactStore, commands *CommandService, limiter RateLimiter, logger *zap.Logger) *WhatsAppService {
	return &WhatsAppService{
		contacts: contacts,
		commands: commands,
		limiter:  limiter,
		logger:   logger,
	}
}

// ProcessMessage gates the sender on a verified contact, then classifies and
// executes the command. Faults never escape: they become an apology reply.
func (w *WhatsAppService) ProcessMessage(ctx context.Context, from, body string) (reply string) {
	phone := models.NormalizePhone(from)

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("❌ Panic while processing message", zap.String("phone", phone), zap.Any("panic", r))
			reply = replyError
		}
	}()

	contact, err := w.contacts.GetContactByPhone(ctx, phone)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.logger.Error("❌ Contact lookup failed", zap.String("phone", phone), zap.Error(err))
		return replyError
	}
	if contact == nil || !contact.IsVerified {
		w.logger.Info("🚫 Message from unverified number", zap.String("phone", phone))
		return replyNotVerified
	}

	if w.limiter != nil {
		allowed, err := w.limiter.Allow(ctx, phone)
		if err != nil {
			// Redis being down should not silence the bot
			w.logger.Warn("⚠️ Rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			return replySlowDown
		}
	}

	cmd := Classify(strings.TrimSpace(body))
	w.logger.Info("📨 Processing command",
		zap.String("phone", phone),
		zap.String("intent", string(cmd.Intent)))

	result, err := w.commands.Execute(ctx, contact.UserID, cmd)
	if err != nil {
		w.logger.Error("❌ Command failed", zap.String("phone", phone), zap.String("intent", string(cmd.Intent)), zap.Error(err))
		return replyError
	}
	return result.Message
}
