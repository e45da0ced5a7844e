package models

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCash       AccountType = "cash"
	AccountTypeCreditCard AccountType = "credit_card"
)

// Account represents a financial account in the system. Balances are not
// stored on the row: they are derived from the account's transaction history.
type Account struct {
	Base
	UserID      string      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string      `gorm:"not null" json:"name"`
	Type        AccountType `gorm:"not null" json:"type"`
	Currency    string      `gorm:"not null;size:3;default:'USD'" json:"currency"`
	Description string      `json:"description"`
	IsActive    bool        `gorm:"default:true" json:"is_active"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:AccountID" json:"transactions,omitempty"`
}
