package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// maxCatchUpOccurrences bounds how many occurrences a single run will
// materialize per template; anything beyond carries over to the next run.
const maxCatchUpOccurrences = 1000

// recurringService handles recurring transaction templates and their
// materialization into real transactions.
type recurringService struct {
	db              *gorm.DB
	accountService  AccountServicer
	categoryService CategoryServicer
}

// NewRecurringService creates a new RecurringServicer.
func NewRecurringService(db *gorm.DB, accountService AccountServicer, categoryService CategoryServicer) RecurringServicer {
	return &recurringService{
		db:              db,
		accountService:  accountService,
		categoryService: categoryService,
	}
}

// CreateRecurring creates a recurring income or expense template. The first
// occurrence fires at the start date.
func (s *recurringService) CreateRecurring(userID string, input CreateRecurringInput) (*models.RecurringTransaction, error) {
	if input.Type != models.TransactionTypeIncome && input.Type != models.TransactionTypeExpense {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidTransactionType, "recurring transactions must be income or expense")
	}
	if !input.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}

	account, err := s.accountService.GetAccountByID(userID, input.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, apperrors.ErrAccountInactive
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

	startDate := input.StartDate
	if startDate.IsZero() {
		startDate = time.Now()
	}
	if input.EndDate != nil && !input.EndDate.After(startDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must be after the start date")
	}

	currency := input.Currency
	if currency == "" {
		currency = account.Currency
	} else if currency != account.Currency {
		// Materialized transactions feed the account's derived balance.
		return nil, apperrors.ErrCurrencyMismatch
	}
	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = models.PaymentMethodOther
	}

	recurring := &models.RecurringTransaction{
		UserID:        userID,
		AccountID:     account.ID,
		CategoryID:    categoryID,
		Type:          input.Type,
		Amount:        input.Amount,
		Currency:      currency,
		Description:   input.Description,
		Frequency:     input.Frequency,
		StartDate:     startDate,
		EndDate:       input.EndDate,
		NextRunAt:     startDate,
		IsActive:      true,
		PaymentMethod: paymentMethod,
	}

	if err := s.db.Create(recurring).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return recurring, nil
}

// GetUserRecurring retrieves a paginated list of recurring templates for a
// user, optionally filtered by the is_active flag.
func (s *recurringService) GetUserRecurring(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.RecurringTransaction], error) {
	page.Defaults()

	base := s.db.Model(&models.RecurringTransaction{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var templates []models.RecurringTransaction
	if err := base.Order("next_run_at ASC").Scopes(pagination.Paginate(page)).
		Preload("Account").
		Preload("Category").
		Find(&templates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(templates, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetRecurringByID retrieves a recurring template by ID for a specific user
func (s *recurringService) GetRecurringByID(userID, recurringID string) (*models.RecurringTransaction, error) {
	var recurring models.RecurringTransaction
	if err := s.db.Where("id = ? AND user_id = ?", recurringID, userID).
		Preload("Account").
		Preload("Category").
		First(&recurring).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecurringNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &recurring, nil
}

// UpdateRecurring updates a recurring template. Nil fields are left unchanged.
func (s *recurringService) UpdateRecurring(userID, recurringID string, input UpdateRecurringInput) (*models.RecurringTransaction, error) {
	recurring, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *input.Amount
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.PaymentMethod != nil {
		updates["payment_method"] = *input.PaymentMethod
	}
	if input.Frequency != nil {
		updates["frequency"] = *input.Frequency
	}
	if input.EndDate != nil {
		if !input.EndDate.After(recurring.StartDate) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must be after the start date")
		}
		updates["end_date"] = *input.EndDate
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.RecurringTransaction{}).Where("id = ?", recurring.ID).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return s.GetRecurringByID(userID, recurringID)
}

// DeleteRecurring soft-deletes a recurring template. Transactions it
// already materialized are kept.
func (s *recurringService) DeleteRecurring(userID, recurringID string) error {
	recurring, err := s.GetRecurringByID(userID, recurringID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(recurring).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetUpcoming lists active templates due within the window, soonest first.
// Overdue templates that have not been materialized yet are included.
func (s *recurringService) GetUpcoming(userID string, within time.Duration) ([]models.RecurringTransaction, error) {
	deadline := time.Now().Add(within)

	var templates []models.RecurringTransaction
	if err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Where("next_run_at <= ?", deadline).
		Where("end_date IS NULL OR next_run_at <= end_date").
		Order("next_run_at ASC").
		Preload("Account").
		Preload("Category").
		Find(&templates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return templates, nil
}

// RunDue materializes every due occurrence of every active template across
// all users, advancing next_run_at past now. Templates whose next
// occurrence would fall after their end date are deactivated. A failing
// template is logged and skipped so one bad row cannot stall the scheduler.
func (s *recurringService) RunDue(now time.Time) (*RecurringRunResult, error) {
	var due []models.RecurringTransaction
	if err := s.db.Where("is_active = ? AND next_run_at <= ?", true, now).
		Order("next_run_at ASC").
		Find(&due).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := &RecurringRunResult{}
	for i := range due {
		template := &due[i]
		created, deactivated, err := s.runTemplate(template, now)
		if err != nil {
			logger.Get().Errorw("recurring run failed for template",
				"recurring_id", template.ID,
				"user_id", template.UserID,
				"error", err,
			)
			continue
		}
		result.Created += created
		if deactivated {
			result.Deactivated++
		}
	}

	return result, nil
}

// runTemplate materializes one template inside a transaction.
func (s *recurringService) runTemplate(template *models.RecurringTransaction, now time.Time) (int, bool, error) {
	created := 0
	deactivated := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for !template.NextRunAt.After(now) && created < maxCatchUpOccurrences {
			if template.EndDate != nil && template.NextRunAt.After(*template.EndDate) {
				break
			}

			transaction := &models.Transaction{
				UserID:                 template.UserID,
				AccountID:              template.AccountID,
				CategoryID:             template.CategoryID,
				Type:                   template.Type,
				Status:                 models.TransactionStatusCompleted,
				Amount:                 template.Amount,
				Currency:               template.Currency,
				Description:            template.Description,
				Date:                   template.NextRunAt,
				PaymentMethod:          template.PaymentMethod,
				IsRecurring:            true,
				RecurringTransactionID: &template.ID,
			}
			if err := tx.Create(transaction).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			created++

			template.NextRunAt = nextOccurrence(template.NextRunAt, template.Frequency)
		}

		if template.EndDate != nil && template.NextRunAt.After(*template.EndDate) && template.IsActive {
			template.IsActive = false
			deactivated = true
		}

		if err := tx.Model(&models.RecurringTransaction{}).Where("id = ?", template.ID).Updates(map[string]interface{}{
			"next_run_at": template.NextRunAt,
			"is_active":   template.IsActive,
		}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	return created, deactivated, nil
}

// nextOccurrence advances an occurrence date by one frequency step. Monthly
// and yearly steps follow time.AddDate normalization, so a template
// anchored on the 31st rolls into early the following month when the month
// is shorter.
func nextOccurrence(t time.Time, frequency models.RecurrenceFrequency) time.Time {
	switch frequency {
	case models.RecurrenceDaily:
		return t.AddDate(0, 0, 1)
	case models.RecurrenceWeekly:
		return t.AddDate(0, 0, 7)
	case models.RecurrenceYearly:
		return t.AddDate(1, 0, 0)
	default: // monthly
		return t.AddDate(0, 1, 0)
	}
}
