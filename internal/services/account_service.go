package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// accountService handles account-related business logic.
type accountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB) AccountServicer {
	return &accountService{db: db}
}

// CreateAccount creates a new account for a user.
func (s *accountService) CreateAccount(userID, name string, accountType models.AccountType, currency, description string) (*models.Account, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}

	if currency == "" {
		currency = "USD" // Default currency
	}

	account := &models.Account{
		UserID:      userID,
		Name:        name,
		Type:        accountType,
		Currency:    currency,
		Description: description,
		IsActive:    true,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return account, nil
}

// GetUserAccounts retrieves a paginated list of accounts for a user,
// optionally filtered by the is_active flag.
func (s *accountService) GetUserAccounts(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.Account], error) {
	page.Defaults()

	base := s.db.Model(&models.Account{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := base.Order("created_at ASC").Scopes(pagination.Paginate(page)).Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAccountByID retrieves an account by ID for a specific user
func (s *accountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// GetAccountDetail retrieves an account together with its derived balance.
func (s *accountService) GetAccountDetail(userID, accountID string) (*AccountDetail, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}

	balances, err := deriveBalances(s.db, userID, []string{account.ID})
	if err != nil {
		return nil, err
	}

	return &AccountDetail{Account: *account, Balance: balances[account.ID]}, nil
}

// UpdateAccount updates an existing account. Nil fields are left unchanged.
func (s *accountService) UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil && *fields.Name != "" {
		updates["name"] = *fields.Name
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.IsActive != nil {
		updates["is_active"] = *fields.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(account).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		// Reload to get fresh data
		if err := s.db.Where("id = ?", account.ID).First(account).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return account, nil
}

// DeleteAccount soft-deletes an account. Its transactions are kept for
// history and continue to count toward reports.
func (s *accountService) DeleteAccount(userID, accountID string) error {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(account).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// deriveBalances computes the balance of each given account from its
// transaction history. Income and adjustments add, expenses subtract, and
// transfers move the amount from the source to the destination account.
// Failed and cancelled transactions are ignored.
func deriveBalances(db *gorm.DB, userID string, accountIDs []string) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(accountIDs))
	for _, id := range accountIDs {
		balances[id] = decimal.Zero
	}
	if len(accountIDs) == 0 {
		return balances, nil
	}

	type movement struct {
		AccountID   string
		ToAccountID *string
		Type        models.TransactionType
		Amount      decimal.Decimal
	}
	var movements []movement
	if err := db.Table("transactions").
		Select("account_id, to_account_id, type, amount").
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Where("status IN ?", []models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusCompleted}).
		Where("account_id IN ? OR to_account_id IN ?", accountIDs, accountIDs).
		Scan(&movements).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for _, m := range movements {
		switch m.Type {
		case models.TransactionTypeIncome, models.TransactionTypeAdjustment:
			if b, ok := balances[m.AccountID]; ok {
				balances[m.AccountID] = b.Add(m.Amount)
			}
		case models.TransactionTypeExpense:
			if b, ok := balances[m.AccountID]; ok {
				balances[m.AccountID] = b.Sub(m.Amount)
			}
		case models.TransactionTypeTransfer:
			if b, ok := balances[m.AccountID]; ok {
				balances[m.AccountID] = b.Sub(m.Amount)
			}
			if m.ToAccountID != nil {
				if b, ok := balances[*m.ToAccountID]; ok {
					balances[*m.ToAccountID] = b.Add(m.Amount)
				}
			}
		}
	}

	return balances, nil
}
