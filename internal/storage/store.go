package storage

import (
	"context"
	"errors"

	"github.com/Ananth-NQI/finbot-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no record
var ErrNotFound = errors.New("record not found")

// LedgerStore is the accounts/categories/transactions/goals collaborator
type LedgerStore interface {
	// Accounts
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetFirstAccount(ctx context.Context, userID string) (*models.Account, error)
	GetAccountsByUser(ctx context.Context, userID string) ([]*models.Account, error)

	// Categories
	CreateCategory(ctx context.Context, category *models.Category) error
	FindCategoryByName(ctx context.Context, userID, name string) (*models.Category, error)

	// Transactions. RecordTransaction creates the entry and applies its
	// signed amount to the linked account atomically.
	RecordTransaction(ctx context.Context, tx *models.Transaction) error
	GetRecentTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)

	// Goals
	CreateGoal(ctx context.Context, goal *models.Goal) error
	GetGoalsByUser(ctx context.Context, userID string) ([]*models.Goal, error)
}

// ContactStore is the phone-number-to-user directory
type ContactStore interface {
	CreateContact(ctx context.Context, contact *models.WhatsAppContact) error
	GetContactByPhone(ctx context.Context, phone string) (*models.WhatsAppContact, error)
	UpdateContact(ctx context.Context, contact *models.WhatsAppContact) error
	GetAllContacts(ctx context.Context) ([]*models.WhatsAppContact, error)
}

// SessionStore persists WhatsApp session records keyed by name
type SessionStore interface {
	GetSession(ctx context.Context, name string) (*models.WhatsAppSession, error)
	SaveSession(ctx context.Context, session *models.WhatsAppSession) error
	DeleteSession(ctx context.Context, name string) error
	GetSessionsByStatus(ctx context.Context, statuses ...models.SessionStatus) ([]*models.WhatsAppSession, error)
	GetAllSessions(ctx context.Context) ([]*models.WhatsAppSession, error)
}

// Store defines the interface for storage operations
type Store interface {
	LedgerStore
	ContactStore
	SessionStore

	Ping(ctx context.Context) error
}
