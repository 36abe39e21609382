package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionIncome   TransactionType = "INCOME"
	TransactionExpense  TransactionType = "EXPENSE"
	TransactionTransfer TransactionType = "TRANSFER"
)

// Account is a user-owned balance holder (checking, savings, cash...)
type Account struct {
	ID        string          `json:"id" gorm:"primaryKey;size:36"`
	UserID    string          `json:"user_id" gorm:"index;not null"`
	Name      string          `json:"name" gorm:"not null"`
	Type      string          `json:"type" gorm:"size:20;default:'CHECKING'"`
	Balance   decimal.Decimal `json:"balance" gorm:"type:numeric(14,2);not null;default:0"`
	Currency  string          `json:"currency" gorm:"size:3;default:'BRL'"`
	CreatedAt time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Category groups transactions
type Category struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Type      string    `json:"type" gorm:"size:20;default:'VARIABLE'"` // FIXED or VARIABLE
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Transaction is a single ledger entry
type Transaction struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	UserID      string          `json:"user_id" gorm:"index;not null"`
	AccountID   string          `json:"account_id" gorm:"index;size:36"`
	CategoryID  *string         `json:"category_id,omitempty" gorm:"size:36"`
	Type        TransactionType `json:"type" gorm:"size:20;not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	Currency    string          `json:"currency" gorm:"size:3;default:'BRL'"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date" gorm:"index"`
	IsPaid      bool            `json:"is_paid" gorm:"default:true"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Account  *Account  `json:"account,omitempty" gorm:"foreignKey:AccountID"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Date.IsZero() {
		t.Date = time.Now()
	}
	return nil
}

// SignedAmount is the balance delta this entry applies to its account
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Goal is a savings target
type Goal struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	UserID        string          `json:"user_id" gorm:"index;not null"`
	Name          string          `json:"name" gorm:"not null"`
	TargetAmount  decimal.Decimal `json:"target_amount" gorm:"type:numeric(14,2);not null"`
	CurrentAmount decimal.Decimal `json:"current_amount" gorm:"type:numeric(14,2);not null;default:0"`
	TargetDate    *time.Time      `json:"target_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (g *Goal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// Progress returns the completed share of the goal as a percentage capped at 100
func (g *Goal) Progress() float64 {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	pct, _ := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Float64()
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
