package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecurrenceFrequency represents how often a recurring transaction fires
type RecurrenceFrequency string

const (
	RecurrenceDaily   RecurrenceFrequency = "daily"
	RecurrenceWeekly  RecurrenceFrequency = "weekly"
	RecurrenceMonthly RecurrenceFrequency = "monthly"
	RecurrenceYearly  RecurrenceFrequency = "yearly"
)

// RecurringTransaction is a template that the scheduler materializes into
// real transactions. NextRunAt is the next occurrence date; the run loop
// advances it by the frequency until it passes now, creating one transaction
// per occurrence, and deactivates the template once NextRunAt passes EndDate.
type RecurringTransaction struct {
	Base
	UserID      string              `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID   string              `gorm:"type:uuid;not null;index" json:"account_id"`
	CategoryID  *string             `gorm:"type:uuid" json:"category_id,omitempty"`
	Type        TransactionType     `gorm:"not null" json:"type"`
	Amount      decimal.Decimal     `gorm:"type:DECIMAL(20,8);not null" json:"amount"`
	Currency    string              `gorm:"not null;size:3" json:"currency"`
	Description string              `json:"description"`
	Frequency   RecurrenceFrequency `gorm:"not null" json:"frequency"`
	StartDate   time.Time           `gorm:"not null" json:"start_date"`
	EndDate     *time.Time          `json:"end_date,omitempty"`
	NextRunAt   time.Time           `gorm:"not null;index" json:"next_run_at"`
	IsActive    bool                `gorm:"default:true" json:"is_active"`

	PaymentMethod PaymentMethod `gorm:"not null;default:'other'" json:"payment_method"`

	// Relationships
	Account  Account   `gorm:"foreignKey:AccountID" json:"account"`
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
