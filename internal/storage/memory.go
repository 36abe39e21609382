package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ananth-NQI/finbot-backend/internal/models"
)

// MemoryStore holds all data in memory for local runs and tests
type MemoryStore struct {
	accounts     map[string]*models.Account
	categories   map[string]*models.Category
	transactions map[string]*models.Transaction
	goals        map[string]*models.Goal
	contacts     map[string]*models.WhatsAppContact // keyed by phone
	sessions     map[string]*models.WhatsAppSession

	// ledgerMu covers accounts, categories, transactions and goals so a
	// transaction and its balance change land together
	ledgerMu  sync.RWMutex
	contactMu sync.RWMutex
	sessionMu sync.RWMutex
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]*models.Account),
		categories:   make(map[string]*models.Category),
		transactions: make(map[string]*models.Transaction),
		goals:        make(map[string]*models.Goal),
		contacts:     make(map[string]*models.WhatsAppContact),
		sessions:     make(map[string]*models.WhatsAppSession),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Account operations
func (m *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()

	_ = account.BeforeCreate(nil)
	stamp(&account.CreatedAt, &account.UpdatedAt)
	if account.Currency == "" {
		account.Currency = "BRL"
	}

	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	m.ledgerMu.RLock()
	defer m.ledgerMu.RUnlock()

	account, exists := m.accounts[id]
	if !exists {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	cp := *account
	return &cp, nil
}

func (m *MemoryStore) GetFirstAccount(ctx context.Context, userID string) (*models.Account, error) {
	accounts, err := m.GetAccountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("account for user %s: %w", userID, ErrNotFound)
	}
	return accounts[0], nil
}

// GetAccountsByUser returns the user's accounts, oldest first
func (m *MemoryStore) GetAccountsByUser(ctx context.Context, userID string) ([]*models.Account, error) {
	m.ledgerMu.RLock()
	defer m.ledgerMu.RUnlock()

	var accounts []*models.Account
	for _, account := range m.accounts {
		if account.UserID == userID {
			cp := *account
			accounts = append(accounts, &cp)
		}
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

// Category operations
func (m *MemoryStore) CreateCategory(ctx context.Context, category *models.Category) error {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()

	_ = category.BeforeCreate(nil)
	stamp(&category.CreatedAt, &category.UpdatedAt)

	cp := *category
	m.categories[category.ID] = &cp
	return nil
}

// FindCategoryByName matches case-insensitively on a name substring
func (m *MemoryStore) FindCategoryByName(ctx context.Context, userID, name string) (*models.Category, error) {
	m.ledgerMu.RLock()
	defer m.ledgerMu.RUnlock()

	needle := strings.ToLower(name)
	var match *models.Category
	for _, category := range m.categories {
		if category.UserID != userID || !strings.Contains(strings.ToLower(category.Name), needle) {
			continue
		}
		if match == nil || category.CreatedAt.Before(match.CreatedAt) {
			match = category
		}
	}
	if match == nil {
		return nil, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	cp := *match
	return &cp, nil
}

// Transaction operations
func (m *MemoryStore) RecordTransaction(ctx context.Context, tx *models.Transaction) error {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()

	account, exists := m.accounts[tx.AccountID]
	if !exists {
		return fmt.Errorf("account %s: %w", tx.AccountID, ErrNotFound)
	}
	if tx.CategoryID != nil {
		if _, ok := m.categories[*tx.CategoryID]; !ok {
			return fmt.Errorf("category %s: %w", *tx.CategoryID, ErrNotFound)
		}
	}

	_ = tx.BeforeCreate(nil)
	stamp(&tx.CreatedAt, &tx.UpdatedAt)
	if tx.Currency == "" {
		tx.Currency = account.Currency
	}

	account.Balance = account.Balance.Add(tx.SignedAmount())
	account.UpdatedAt = time.Now()

	cp := *tx
	cp.Category = nil
	cp.Account = nil
	m.transactions[tx.ID] = &cp

	accountCopy := *account
	tx.Account = &accountCopy
	if tx.CategoryID != nil {
		categoryCopy := *m.categories[*tx.CategoryID]
		tx.Category = &categoryCopy
	}
	return nil
}

// GetRecentTransactions returns the newest entries first with categories loaded
func (m *MemoryStore) GetRecentTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	m.ledgerMu.RLock()
	defer m.ledgerMu.RUnlock()

	var transactions []*models.Transaction
	for _, tx := range m.transactions {
		if tx.UserID != userID {
			continue
		}
		cp := *tx
		if tx.CategoryID != nil {
			if category, ok := m.categories[*tx.CategoryID]; ok {
				categoryCopy := *category
				cp.Category = &categoryCopy
			}
		}
		transactions = append(transactions, &cp)
	}
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].Date.After(transactions[j].Date)
	})
	if limit > 0 && len(transactions) > limit {
		transactions = transactions[:limit]
	}
	return transactions, nil
}

// Goal operations
func (m *MemoryStore) CreateGoal(ctx context.Context, goal *models.Goal) error {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()

	_ = goal.BeforeCreate(nil)
	stamp(&goal.CreatedAt, &goal.UpdatedAt)

	cp := *goal
	m.goals[goal.ID] = &cp
	return nil
}

func (m *MemoryStore) GetGoalsByUser(ctx context.Context, userID string) ([]*models.Goal, error) {
	m.ledgerMu.RLock()
	defer m.ledgerMu.RUnlock()

	var goals []*models.Goal
	for _, goal := range m.goals {
		if goal.UserID == userID {
			cp := *goal
			goals = append(goals, &cp)
		}
	}
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].CreatedAt.Before(goals[j].CreatedAt)
	})
	return goals, nil
}

// Contact operations
func (m *MemoryStore) CreateContact(ctx context.Context, contact *models.WhatsAppContact) error {
	m.contactMu.Lock()
	defer m.contactMu.Unlock()

	_ = contact.BeforeCreate(nil)
	if _, exists := m.contacts[contact.PhoneNumber]; exists {
		return fmt.Errorf("contact %s already exists", contact.PhoneNumber)
	}
	stamp(&contact.CreatedAt, &contact.UpdatedAt)

	cp := *contact
	m.contacts[contact.PhoneNumber] = &cp
	return nil
}

func (m *MemoryStore) GetContactByPhone(ctx context.Context, phone string) (*models.WhatsAppContact, error) {
	m.contactMu.RLock()
	defer m.contactMu.RUnlock()

	contact, exists := m.contacts[models.NormalizePhone(phone)]
	if !exists {
		return nil, fmt.Errorf("contact %s: %w", phone, ErrNotFound)
	}
	cp := *contact
	return &cp, nil
}

func (m *MemoryStore) UpdateContact(ctx context.Context, contact *models.WhatsAppContact) error {
	m.contactMu.Lock()
	defer m.contactMu.Unlock()

	existing, exists := m.contacts[contact.PhoneNumber]
	if !exists {
		return fmt.Errorf("contact %s: %w", contact.PhoneNumber, ErrNotFound)
	}
	contact.CreatedAt = existing.CreatedAt
	contact.UpdatedAt = time.Now()

	cp := *contact
	m.contacts[contact.PhoneNumber] = &cp
	return nil
}

func (m *MemoryStore) GetAllContacts(ctx context.Context) ([]*models.WhatsAppContact, error) {
	m.contactMu.RLock()
	defer m.contactMu.RUnlock()

	contacts := make([]*models.WhatsAppContact, 0, len(m.contacts))
	for _, contact := range m.contacts {
		cp := *contact
		contacts = append(contacts, &cp)
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.After(contacts[j].CreatedAt)
	})
	return contacts, nil
}

// Session operations
func (m *MemoryStore) GetSession(ctx context.Context, name string) (*models.WhatsAppSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	session, exists := m.sessions[name]
	if !exists {
		return nil, fmt.Errorf("session %s: %w", name, ErrNotFound)
	}
	cp := *session
	return &cp, nil
}

// SaveSession inserts or replaces the record, keeping the original CreatedAt
func (m *MemoryStore) SaveSession(ctx context.Context, session *models.WhatsAppSession) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	now := time.Now()
	if existing, ok := m.sessions[session.Name]; ok {
		session.CreatedAt = existing.CreatedAt
	} else if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	cp := *session
	m.sessions[session.Name] = &cp
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, name string) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if _, exists := m.sessions[name]; !exists {
		return fmt.Errorf("session %s: %w", name, ErrNotFound)
	}
	delete(m.sessions, name)
	return nil
}

func (m *MemoryStore) GetSessionsByStatus(ctx context.Context, statuses ...models.SessionStatus) ([]*models.WhatsAppSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	var sessions []*models.WhatsAppSession
	for _, session := range m.sessions {
		for _, status := range statuses {
			if session.Status == status {
				cp := *session
				sessions = append(sessions, &cp)
				break
			}
		}
	}
	sortSessionsNewestFirst(sessions)
	return sessions, nil
}

// GetAllSessions returns every record, newest first
func (m *MemoryStore) GetAllSessions(ctx context.Context) ([]*models.WhatsAppSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	sessions := make([]*models.WhatsAppSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		cp := *session
		sessions = append(sessions, &cp)
	}
	sortSessionsNewestFirst(sessions)
	return sessions, nil
}

func sortSessionsNewestFirst(sessions []*models.WhatsAppSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].Name < sessions[j].Name
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}

// stamp fills zero timestamps the way gorm's autoCreateTime does
func stamp(createdAt, updatedAt *time.Time) {
	now := time.Now()
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
}
