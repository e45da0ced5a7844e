package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome     TransactionType = "income"
	TransactionTypeExpense    TransactionType = "expense"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer, TransactionTypeAdjustment:
		return true
	}
	return false
}

// TransactionStatus represents the lifecycle state of a transaction.
// Failed and cancelled transactions are excluded from every aggregate.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

// PaymentMethod represents how a transaction was paid
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodDebitCard    PaymentMethod = "debit_card"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodMobile       PaymentMethod = "mobile"
	PaymentMethodOther        PaymentMethod = "other"
)

// Transaction represents a financial transaction in the system. Amounts are
// always positive; the Type decides whether they add to or subtract from an
// account balance. Transfers carry the destination in ToAccountID.
type Transaction struct {
	Base
	UserID      string            `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID   string            `gorm:"type:uuid;not null;index" json:"account_id"`
	CategoryID  *string           `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Type        TransactionType   `gorm:"not null" json:"type"`
	Status      TransactionStatus `gorm:"not null;default:'completed'" json:"status"`
	Amount      decimal.Decimal   `gorm:"type:DECIMAL(20,8);not null" json:"amount"`
	Currency    string            `gorm:"not null;size:3" json:"currency"`
	Description string            `json:"description"`
	Date        time.Time         `gorm:"not null;index" json:"date"`

	PaymentMethod PaymentMethod `gorm:"not null;default:'other'" json:"payment_method"`

	// For transfers
	ToAccountID *string `gorm:"type:uuid" json:"to_account_id,omitempty"`

	// Set when the transaction was materialized from a recurring template
	IsRecurring            bool    `gorm:"default:false" json:"is_recurring"`
	RecurringTransactionID *string `gorm:"type:uuid" json:"recurring_transaction_id,omitempty"`

	// Relationships
	Account   Account   `gorm:"foreignKey:AccountID" json:"account"`
	ToAccount *Account  `gorm:"foreignKey:ToAccountID" json:"to_account,omitempty"`
	Category  *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
