package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// StringSlice stores a list of strings as a JSON-encoded text column. It is
// used for the materialized ancestor path on categories so the hierarchy can
// be displayed without walking parent pointers.
type StringSlice []string

// Value implements driver.Valuer.
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		s = StringSlice{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type %T for StringSlice", value)
	}
}

// Category represents a transaction category. Categories form a tree per
// user: Path holds the names of all ancestors from the root down to (but not
// including) this category, and Level is its depth (root categories have an
// empty path and level 0). Both are maintained by the category service
// whenever a category is created, renamed, reparented, or deleted.
type Category struct {
	Base
	UserID      string       `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string       `gorm:"not null" json:"name"`
	Type        CategoryType `gorm:"not null" json:"type"`
	Description string       `json:"description"`
	Icon        string       `json:"icon"`
	Color       string       `json:"color"`
	ParentID    *string      `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Path        StringSlice  `gorm:"type:text" json:"path"`
	Level       int          `gorm:"not null;default:0" json:"level"`

	// Relationships
	Parent       *Category     `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children     []Category    `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:CategoryID" json:"transactions,omitempty"`
	Budgets      []Budget      `gorm:"foreignKey:CategoryID" json:"budgets,omitempty"`
}
