package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodWeekly  BudgetPeriod = "weekly"
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
)

// Budget represents a spending limit for a category. Progress against the
// budget counts expenses of the category and all of its descendants.
type Budget struct {
	Base
	UserID     string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CategoryID string          `gorm:"type:uuid;not null;index" json:"category_id"`
	Name       string          `gorm:"not null" json:"name"`
	Amount     decimal.Decimal `gorm:"type:DECIMAL(20,8);not null" json:"amount"`
	Period     BudgetPeriod    `gorm:"not null" json:"period"`
	StartDate  time.Time       `gorm:"not null" json:"start_date"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
	IsActive   bool            `gorm:"default:true" json:"is_active"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID" json:"category"`
}
