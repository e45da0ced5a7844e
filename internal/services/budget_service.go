package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db              *gorm.DB
	categoryService CategoryServicer
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, categoryService CategoryServicer) BudgetServicer {
	return &budgetService{db: db, categoryService: categoryService}
}

// CreateBudget creates a new budget for an expense category.
func (s *budgetService) CreateBudget(userID, categoryID, name string, amount decimal.Decimal, period models.BudgetPeriod, startDate time.Time, endDate *time.Time) (*models.Budget, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name is required")
	}
	if !amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}

	category, err := s.categoryService.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}
	if category.Type != models.CategoryTypeExpense {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budgets can only be set on expense categories")
	}

	if startDate.IsZero() {
		startDate = time.Now()
	}
	if endDate != nil && !endDate.After(startDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must be after the start date")
	}

	budget := &models.Budget{
		UserID:     userID,
		CategoryID: category.ID,
		Name:       name,
		Amount:     amount,
		Period:     period,
		StartDate:  startDate,
		EndDate:    endDate,
		IsActive:   true,
	}

	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return budget, nil
}

// GetUserBudgets returns a paginated list of budgets for the user with optional filters.
func (s *budgetService) GetUserBudgets(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)
	if isActive != nil {
		base = base.Where("is_active = ?", *isActive)
	}
	if period != nil {
		base = base.Where("period = ?", *period)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := base.Order("created_at ASC").Scopes(pagination.Paginate(page)).
		Preload("Category").
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetByID retrieves a budget by ID for a specific user
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Where("id = ? AND user_id = ?", budgetID, userID).
		Preload("Category").
		First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget updates a budget. Empty or nil fields are left unchanged.
func (s *budgetService) UpdateBudget(userID, budgetID, name string, amount *decimal.Decimal, period *models.BudgetPeriod, endDate *time.Time) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != "" {
		updates["name"] = name
	}
	if amount != nil {
		if !amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
		}
		updates["amount"] = *amount
	}
	if period != nil {
		updates["period"] = *period
	}
	if endDate != nil {
		if !endDate.After(budget.StartDate) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must be after the start date")
		}
		updates["end_date"] = *endDate
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Budget{}).Where("id = ?", budget.ID).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return s.GetBudgetByID(userID, budgetID)
}

// DeleteBudget soft-deletes a budget.
func (s *budgetService) DeleteBudget(userID, budgetID string) error {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetBudgetProgress computes spending against the budget for the calendar
// period containing now. Spending counts pending and completed expense
// transactions of the budget's category and all of its descendants.
func (s *budgetService) GetBudgetProgress(userID, budgetID string) (*BudgetProgress, error) {
	budget, err := s.GetBudgetByID(userID, budgetID)
	if err != nil {
		return nil, err
	}
	return s.progressFor(userID, budget)
}

// GetActiveBudgetProgress computes progress for every active budget of the
// user, optionally restricted to one period type.
func (s *budgetService) GetActiveBudgetProgress(userID string, period *models.BudgetPeriod) ([]BudgetProgress, error) {
	q := s.db.Where("user_id = ? AND is_active = ?", userID, true)
	if period != nil {
		q = q.Where("period = ?", *period)
	}

	var budgets []models.Budget
	if err := q.Order("created_at ASC").Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	results := make([]BudgetProgress, 0, len(budgets))
	for i := range budgets {
		progress, err := s.progressFor(userID, &budgets[i])
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.Code == apperrors.ErrCategoryNotFound.Code {
				continue // category was deleted out from under the budget
			}
			return nil, err
		}
		results = append(results, *progress)
	}

	return results, nil
}

func (s *budgetService) progressFor(userID string, budget *models.Budget) (*BudgetProgress, error) {
	subtreeIDs, err := s.categoryService.GetSubtreeIDs(userID, budget.CategoryID)
	if err != nil {
		return nil, err
	}

	periodStart, periodEnd := budgetWindow(budget, time.Now())

	type row struct {
		Amount decimal.Decimal
	}
	var rows []row
	if err := s.db.Table("transactions").
		Select("amount").
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Where("type = ?", models.TransactionTypeExpense).
		Where("status IN ?", []models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusCompleted}).
		Where("category_id IN ?", subtreeIDs).
		Where("date >= ? AND date < ?", periodStart, periodEnd).
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	spent := decimal.Zero
	for _, r := range rows {
		spent = spent.Add(r.Amount)
	}

	percentage := 0.0
	if budget.Amount.IsPositive() {
		percentage = spent.Div(budget.Amount).InexactFloat64() * 100
	}

	return &BudgetProgress{
		BudgetID:    budget.ID,
		CategoryID:  budget.CategoryID,
		Name:        budget.Name,
		Budgeted:    budget.Amount,
		Spent:       spent,
		Remaining:   budget.Amount.Sub(spent),
		Percentage:  percentage,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}, nil
}

// budgetWindow returns the half-open calendar window [start, end) of the
// budget period containing now, clamped to the budget's start and end dates.
func budgetWindow(budget *models.Budget, now time.Time) (time.Time, time.Time) {
	var start, end time.Time
	switch budget.Period {
	case models.BudgetPeriodWeekly:
		start = startOfISOWeek(now)
		end = start.AddDate(0, 0, 7)
	case models.BudgetPeriodYearly:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(1, 0, 0)
	default: // monthly
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)
	}

	if budget.StartDate.After(start) {
		start = budget.StartDate
	}
	if budget.EndDate != nil && budget.EndDate.Before(end) {
		end = *budget.EndDate
	}
	return start, end
}

// startOfISOWeek returns midnight of the Monday of the week containing t.
func startOfISOWeek(t time.Time) time.Time {
	weekday := (int(t.Weekday()) + 6) % 7 // Monday = 0
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -weekday)
}
