package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/finbot-backend/internal/models"
)

// DatabaseStore implements Store on top of gorm
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new gorm-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// AutoMigrate creates or updates every table the store reads
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.Category{},
		&models.Transaction{},
		&models.Goal{},
		&models.WhatsAppContact{},
		&models.WhatsAppSession{},
	)
}

func (d *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// Account operations
func (d *DatabaseStore) CreateAccount(ctx context.Context, account *models.Account) error {
	return d.db.WithContext(ctx).Create(account).Error
}

func (d *DatabaseStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := d.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "account "+id)
	}
	return &account, nil
}

func (d *DatabaseStore) GetFirstAccount(ctx context.Context, userID string) (*models.Account, error) {
	var account models.Account
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		First(&account).Error
	if err != nil {
		return nil, notFound(err, "account for user "+userID)
	}
	return &account, nil
}

func (d *DatabaseStore) GetAccountsByUser(ctx context.Context, userID string) ([]*models.Account, error) {
	var accounts []*models.Account
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

// Category operations
func (d *DatabaseStore) CreateCategory(ctx context.Context, category *models.Category) error {
	return d.db.WithContext(ctx).Create(category).Error
}

// FindCategoryByName matches case-insensitively on a name substring.
// LOWER/LIKE keeps the query portable between postgres and sqlite.
func (d *DatabaseStore) FindCategoryByName(ctx context.Context, userID, name string) (*models.Category, error) {
	var category models.Category
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND LOWER(name) LIKE ?", userID, "%"+strings.ToLower(name)+"%").
		Order("created_at ASC").
		First(&category).Error
	if err != nil {
		return nil, notFound(err, "category "+name)
	}
	return &category, nil
}

// RecordTransaction inserts the entry and moves the account balance in one
// database transaction
func (d *DatabaseStore) RecordTransaction(ctx context.Context, tx *models.Transaction) error {
	return d.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Omit(clause.Associations).Create(tx).Error; err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		res := db.Model(&models.Account{}).
			Where("id = ?", tx.AccountID).
			Update("balance", gorm.Expr("balance + ?", tx.SignedAmount()))
		if res.Error != nil {
			return fmt.Errorf("adjust balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("account %s: %w", tx.AccountID, ErrNotFound)
		}

		var account models.Account
		if err := db.First(&account, "id = ?", tx.AccountID).Error; err != nil {
			return err
		}
		tx.Account = &account

		if tx.CategoryID != nil {
			var category models.Category
			if err := db.First(&category, "id = ?", *tx.CategoryID).Error; err == nil {
				tx.Category = &category
			}
		}
		return nil
	})
}

func (d *DatabaseStore) GetRecentTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	var transactions []*models.Transaction
	err := d.db.WithContext(ctx).
		Preload("Category").
		Where("user_id = ?", userID).
		Order("date DESC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

// Goal operations
func (d *DatabaseStore) CreateGoal(ctx context.Context, goal *models.Goal) error {
	return d.db.WithContext(ctx).Create(goal).Error
}

func (d *DatabaseStore) GetGoalsByUser(ctx context.Context, userID string) ([]*models.Goal, error) {
	var goals []*models.Goal
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&goals).Error
	return goals, err
}

// Contact operations
func (d *DatabaseStore) CreateContact(ctx context.Context, contact *models.WhatsAppContact) error {
	return d.db.WithContext(ctx).Create(contact).Error
}

func (d *DatabaseStore) GetContactByPhone(ctx context.Context, phone string) (*models.WhatsAppContact, error) {
	var contact models.WhatsAppContact
	err := d.db.WithContext(ctx).
		Where("phone_number = ?", models.NormalizePhone(phone)).
		First(&contact).Error
	if err != nil {
		return nil, notFound(err, "contact "+phone)
	}
	return &contact, nil
}

func (d *DatabaseStore) UpdateContact(ctx context.Context, contact *models.WhatsAppContact) error {
	result := d.db.WithContext(ctx).Model(contact).
		Where("phone_number = ?", contact.PhoneNumber).
		Select("is_verified", "verified_at", "verification_code", "verification_expires_at", "verification_attempts", "user_id", "updated_at").
		Updates(contact)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("contact %s: %w", contact.PhoneNumber, ErrNotFound)
	}
	return nil
}

func (d *DatabaseStore) GetAllContacts(ctx context.Context) ([]*models.WhatsAppContact, error) {
	var contacts []*models.WhatsAppContact
	err := d.db.WithContext(ctx).Order("created_at DESC").Find(&contacts).Error
	return contacts, err
}

// Session operations
func (d *DatabaseStore) GetSession(ctx context.Context, name string) (*models.WhatsAppSession, error) {
	var session models.WhatsAppSession
	if err := d.db.WithContext(ctx).First(&session, "name = ?", name).Error; err != nil {
		return nil, notFound(err, "session "+name)
	}
	return &session, nil
}

// SaveSession upserts on the session name
func (d *DatabaseStore) SaveSession(ctx context.Context, session *models.WhatsAppSession) error {
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "qr_code", "pairing_code", "last_active_at", "updated_at"}),
		}).
		Create(session).Error
}

func (d *DatabaseStore) DeleteSession(ctx context.Context, name string) error {
	res := d.db.WithContext(ctx).Delete(&models.WhatsAppSession{}, "name = ?", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("session %s: %w", name, ErrNotFound)
	}
	return nil
}

func (d *DatabaseStore) GetSessionsByStatus(ctx context.Context, statuses ...models.SessionStatus) ([]*models.WhatsAppSession, error) {
	var sessions []*models.WhatsAppSession
	err := d.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (d *DatabaseStore) GetAllSessions(ctx context.Context) ([]*models.WhatsAppSession, error) {
	var sessions []*models.WhatsAppSession
	err := d.db.WithContext(ctx).Order("created_at DESC").Find(&sessions).Error
	return sessions, err
}
