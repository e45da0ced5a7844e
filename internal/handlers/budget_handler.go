package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auditService: auditService}
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	CategoryID string              `json:"category_id" binding:"required,uuid"`
	Name       string              `json:"name" binding:"required,min=1,max=100"`
	Amount     decimal.Decimal     `json:"amount" binding:"required"`
	Period     models.BudgetPeriod `json:"period" binding:"required,budget_period"`
	StartDate  *string             `json:"start_date"`
	EndDate    *string             `json:"end_date"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	Name    *string              `json:"name" binding:"omitempty,min=1,max=100"`
	Amount  *decimal.Decimal     `json:"amount"`
	Period  *models.BudgetPeriod `json:"period" binding:"omitempty,budget_period"`
	EndDate *string              `json:"end_date"`
}

// BudgetResponse represents a budget in the response.
type BudgetResponse struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	CategoryID string              `json:"category_id"`
	Name       string              `json:"name"`
	Amount     decimal.Decimal     `json:"amount"`
	Period     models.BudgetPeriod `json:"period"`
	StartDate  time.Time           `json:"start_date"`
	EndDate    *time.Time          `json:"end_date"`
	IsActive   bool                `json:"is_active"`
}

// CreateBudget handles the creation of a new budget
// @Summary     Create a budget
// @Description Create a new budget for an expense category. Spending against the budget includes the category's descendants.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} BudgetResponse "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	var startDate time.Time
	if req.StartDate != nil && *req.StartDate != "" {
		startDate, err = parseDate(*req.StartDate)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}
	var endDate *time.Time
	if req.EndDate != nil && *req.EndDate != "" {
		parsed, err := parseDate(*req.EndDate)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		endDate = &parsed
	}

	budget, err := h.budgetService.CreateBudget(userID, req.CategoryID, req.Name, req.Amount, req.Period, startDate, endDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_BUDGET", "budget", budget.ID, c.ClientIP(),
		map[string]interface{}{"name": budget.Name, "amount": budget.Amount.String(), "period": string(budget.Period)})

	respondData(c, http.StatusCreated, budget)
}

// GetUserBudgets handles the retrieval of budgets for a user
// @Summary     Get user budgets
// @Description Get a paginated list of budgets for the authenticated user
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Param       is_active query bool   false "Filter by active state"
// @Param       period    query string false "Filter by period (weekly, monthly, yearly)"
// @Success     200 {object} pagination.PageResponse[models.Budget] "Paginated budgets"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [get]
func (h *BudgetHandler) GetUserBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondBindingError(c, err)
		return
	}
	isActive, err := parseBoolQuery(c, "is_active")
	if err != nil {
		respondWithError(c, err)
		return
	}
	period, err := parseBudgetPeriod(c.Query("period"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.budgetService.GetUserBudgets(userID, page, isActive, period)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, result)
}

func parseBudgetPeriod(raw string) (*models.BudgetPeriod, error) {
	if raw == "" {
		return nil, nil
	}
	p := models.BudgetPeriod(raw)
	switch p {
	case models.BudgetPeriodWeekly, models.BudgetPeriodMonthly, models.BudgetPeriodYearly:
		return &p, nil
	}
	return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid budget period")
}

// GetBudgetByID handles the retrieval of a specific budget
// @Summary     Get budget by ID
// @Description Get a specific budget by ID for the authenticated user
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} BudgetResponse "Budget details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudgetByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.GetBudgetByID(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, budget)
}

// GetBudgetProgress returns current-period spending against a budget.
// @Summary     Get budget progress
// @Description Get spending progress for the budget's current period, including descendant category activity
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} services.BudgetProgress "Budget progress"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/progress [get]
func (h *BudgetHandler) GetBudgetProgress(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	progress, err := h.budgetService.GetBudgetProgress(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, progress)
}

// UpdateBudget handles updating a budget.
// @Summary     Update budget
// @Description Update a budget's name, amount, period, or end date
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Param       request body UpdateBudgetRequest true "Updated budget details"
// @Success     200 {object} BudgetResponse "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	var endDate *time.Time
	if req.EndDate != nil && *req.EndDate != "" {
		parsed, err := parseDate(*req.EndDate)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		endDate = &parsed
	}

	budget, err := h.budgetService.UpdateBudget(userID, c.Param("id"), name, req.Amount, req.Period, endDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_BUDGET", "budget", budget.ID, c.ClientIP(), nil)

	respondData(c, http.StatusOK, budget)
}

// DeleteBudget handles deleting a budget.
// @Summary     Delete budget
// @Description Soft-delete a budget
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} MessageResponse "Budget deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID := c.Param("id")
	if err := h.budgetService.DeleteBudget(userID, budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_BUDGET", "budget", budgetID, c.ClientIP(), nil)

	respondMessage(c, http.StatusOK, "Budget deleted successfully")
}
