package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// transactionService handles transaction-related business logic.
type transactionService struct {
	db              *gorm.DB
	accountService  AccountServicer
	categoryService CategoryServicer
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB, accountService AccountServicer, categoryService CategoryServicer) TransactionServicer {
	return &transactionService{
		db:              db,
		accountService:  accountService,
		categoryService: categoryService,
	}
}

// CreateTransaction creates an income, expense, or adjustment transaction.
// Transfers go through CreateTransfer. The date defaults to now, the status
// to completed, and the currency to the account's currency; an explicit
// currency must match the account's.
func (s *transactionService) CreateTransaction(userID string, input CreateTransactionInput) (*models.Transaction, error) {
	if input.Type == models.TransactionTypeTransfer {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidTransactionType, "transfers must include a destination account")
	}
	if !input.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if input.AccountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account ID is required")
	}

	account, err := s.accountService.GetAccountByID(userID, input.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, apperrors.ErrAccountInactive
	}
	// Balances are derived 1:1 from amounts, so the currency must match.
	if input.Currency != "" && input.Currency != account.Currency {
		return nil, apperrors.ErrCurrencyMismatch
	}

	var categoryID *string
	if input.CategoryID != nil && *input.CategoryID != "" {
		category, err := s.categoryService.GetCategoryByID(userID, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		if err := validateCategoryForType(category, input.Type); err != nil {
			return nil, err
		}
		categoryID = &category.ID
	}

	transaction := &models.Transaction{
		UserID:        userID,
		AccountID:     account.ID,
		CategoryID:    categoryID,
		Type:          input.Type,
		Status:        input.Status,
		Amount:        input.Amount,
		Currency:      input.Currency,
		Description:   input.Description,
		Date:          input.Date,
		PaymentMethod: input.PaymentMethod,
	}
	applyTransactionDefaults(transaction, account)

	if err := s.db.Create(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return transaction, nil
}

// CreateTransfer creates a transfer between two accounts owned by the same
// user. Both accounts must use the same currency.
func (s *transactionService) CreateTransfer(userID string, input CreateTransferInput) (*models.Transaction, error) {
	if !input.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if input.FromAccountID == "" || input.ToAccountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "source and destination account IDs are required")
	}
	if input.FromAccountID == input.ToAccountID {
		return nil, apperrors.ErrSameAccountTransfer
	}

	fromAccount, err := s.accountService.GetAccountByID(userID, input.FromAccountID)
	if err != nil {
		return nil, err
	}
	toAccount, err := s.accountService.GetAccountByID(userID, input.ToAccountID)
	if err != nil {
		return nil, err
	}
	if !fromAccount.IsActive || !toAccount.IsActive {
		return nil, apperrors.ErrAccountInactive
	}
	if fromAccount.Currency != toAccount.Currency {
		return nil, apperrors.WithMessage(apperrors.ErrCurrencyMismatch, "Source and destination accounts must use the same currency")
	}

	transaction := &models.Transaction{
		UserID:        userID,
		AccountID:     fromAccount.ID,
		ToAccountID:   &toAccount.ID,
		Type:          models.TransactionTypeTransfer,
		Status:        input.Status,
		Amount:        input.Amount,
		Currency:      fromAccount.Currency,
		Description:   input.Description,
		Date:          input.Date,
		PaymentMethod: input.PaymentMethod,
	}
	applyTransactionDefaults(transaction, fromAccount)

	if err := s.db.Create(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return transaction, nil
}

// GetUserTransactions retrieves a paginated, filtered list of all
// transactions of a user, newest first.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC, created_at DESC").
		Preload("Account").
		Preload("ToAccount").
		Preload("Category").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAccountTransactions retrieves a paginated, filtered list of transactions for a specific account.
func (s *transactionService) GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	// First verify the account belongs to the user
	if _, err := s.accountService.GetAccountByID(userID, accountID); err != nil {
		return nil, err
	}

	page.Defaults()

	base := s.db.Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Where("account_id = ? OR to_account_id = ?", accountID, accountID)
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC, created_at DESC").
		Preload("Account").
		Preload("ToAccount").
		Preload("Category").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.Currency != nil {
		q = q.Where("currency = ?", *f.Currency)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	if f.Search != nil && *f.Search != "" {
		q = q.Where("description LIKE ?", "%"+*f.Search+"%")
	}
	return q
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ? AND user_id = ?", transactionID, userID).
		Preload("Account").
		Preload("ToAccount").
		Preload("Category").
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// UpdateTransaction updates the mutable fields of a transaction. Nil fields
// are left unchanged. The category can be cleared by passing a pointer to
// the empty string.
func (s *transactionService) UpdateTransaction(userID, transactionID string, input UpdateTransactionInput) (*models.Transaction, error) {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if input.CategoryID != nil {
		if *input.CategoryID == "" {
			updates["category_id"] = nil
		} else {
			category, err := s.categoryService.GetCategoryByID(userID, *input.CategoryID)
			if err != nil {
				return nil, err
			}
			if err := validateCategoryForType(category, transaction.Type); err != nil {
				return nil, err
			}
			updates["category_id"] = category.ID
		}
	}
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *input.Amount
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Date != nil {
		updates["date"] = *input.Date
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.PaymentMethod != nil {
		updates["payment_method"] = *input.PaymentMethod
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Transaction{}).Where("id = ?", transaction.ID).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return s.GetTransactionByID(userID, transactionID)
}

// DeleteTransaction soft-deletes a transaction. Derived balances and
// aggregates stop counting it immediately.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	transaction, err := s.GetTransactionByID(userID, transactionID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(transaction).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// applyTransactionDefaults fills the defaulted transaction fields from the
// source account.
func applyTransactionDefaults(transaction *models.Transaction, account *models.Account) {
	if transaction.Date.IsZero() {
		transaction.Date = time.Now()
	}
	if transaction.Status == "" {
		transaction.Status = models.TransactionStatusCompleted
	}
	if transaction.Currency == "" {
		transaction.Currency = account.Currency
	}
	if transaction.PaymentMethod == "" {
		transaction.PaymentMethod = models.PaymentMethodOther
	}
}

// validateCategoryForType checks that a category may be attached to a
// transaction of the given type. Income and expense transactions require a
// category of the matching type; transfers and adjustments carry none.
func validateCategoryForType(category *models.Category, transactionType models.TransactionType) error {
	switch transactionType {
	case models.TransactionTypeIncome:
		if category.Type != models.CategoryTypeIncome {
			return apperrors.WithMessage(apperrors.ErrCategoryTypeMismatch, "Category type does not match the transaction type")
		}
	case models.TransactionTypeExpense:
		if category.Type != models.CategoryTypeExpense {
			return apperrors.WithMessage(apperrors.ErrCategoryTypeMismatch, "Category type does not match the transaction type")
		}
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "only income and expense transactions can have a category")
	}
	return nil
}
