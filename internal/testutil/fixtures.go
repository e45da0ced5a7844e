package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAccount creates a USD checking account.
func CreateTestAccount(t *testing.T, db *gorm.DB, userID string) *models.Account {
	t.Helper()
	return CreateTestAccountWithCurrency(t, db, userID, "USD")
}

// CreateTestAccountWithCurrency creates a checking account in the given currency.
func CreateTestAccountWithCurrency(t *testing.T, db *gorm.DB, userID, currency string) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Account %d", nextID()),
		Type:     models.AccountTypeChecking,
		Currency: currency,
		IsActive: true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCategory creates a root category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
		Path:   models.StringSlice{},
		Level:  0,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestChildCategory creates a category nested under parent, with its
// path and level derived from the parent.
func CreateTestChildCategory(t *testing.T, db *gorm.DB, parent *models.Category) *models.Category {
	t.Helper()

	path := make(models.StringSlice, 0, len(parent.Path)+1)
	path = append(path, parent.Path...)
	path = append(path, parent.Name)

	category := &models.Category{
		UserID:   parent.UserID,
		Name:     fmt.Sprintf("Test Child Category %d", nextID()),
		Type:     parent.Type,
		ParentID: &parent.ID,
		Path:     path,
		Level:    parent.Level + 1,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test child category: %v", err)
	}
	return category
}

// CreateTestTransaction creates a completed USD transaction dated now.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, accountID string, txType models.TransactionType, amount float64) *models.Transaction {
	t.Helper()
	return CreateTestTransactionAt(t, db, userID, accountID, txType, amount, time.Now())
}

// CreateTestTransactionAt creates a completed USD transaction dated at the
// given time.
func CreateTestTransactionAt(t *testing.T, db *gorm.DB, userID, accountID string, txType models.TransactionType, amount float64, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:    userID,
		AccountID: accountID,
		Type:      txType,
		Status:    models.TransactionStatusCompleted,
		Amount:    decimal.NewFromFloat(amount),
		Currency:  "USD",
		Date:      date,
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestBudget creates an active monthly budget of 100 for the given
// category, starting at the beginning of the current month.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID, categoryID string) *models.Budget {
	t.Helper()

	now := time.Now()
	budget := &models.Budget{
		UserID:     userID,
		CategoryID: categoryID,
		Name:       fmt.Sprintf("Test Budget %d", nextID()),
		Amount:     decimal.NewFromInt(100),
		Period:     models.BudgetPeriodMonthly,
		StartDate:  time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
		IsActive:   true,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestRecurring creates an active monthly recurring transaction
// template due now.
func CreateTestRecurring(t *testing.T, db *gorm.DB, userID, accountID string) *models.RecurringTransaction {
	t.Helper()

	now := time.Now()
	rec := &models.RecurringTransaction{
		UserID:    userID,
		AccountID: accountID,
		Type:      models.TransactionTypeExpense,
		Amount:    decimal.NewFromInt(10),
		Currency:  "USD",
		Frequency: models.RecurrenceMonthly,
		StartDate: now,
		NextRunAt: now,
		IsActive:  true,
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("failed to create test recurring transaction: %v", err)
	}
	return rec
}
