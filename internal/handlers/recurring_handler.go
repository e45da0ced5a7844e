package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
	"fintrack/internal/services"
)

// RecurringHandler handles recurring transaction template requests.
type RecurringHandler struct {
	recurringService services.RecurringServicer
	auditService     services.AuditServicer
}

// NewRecurringHandler creates a new RecurringHandler.
func NewRecurringHandler(recurringService services.RecurringServicer, auditService services.AuditServicer) *RecurringHandler {
	return &RecurringHandler{recurringService: recurringService, auditService: auditService}
}

// CreateRecurringRequest represents the request payload for creating a
// recurring transaction template.
type CreateRecurringRequest struct {
	AccountID     string                     `json:"account_id" binding:"required,uuid"`
	CategoryID    *string                    `json:"category_id" binding:"omitempty,uuid"`
	Type          models.TransactionType     `json:"type" binding:"required,transaction_type"`
	Amount        decimal.Decimal            `json:"amount" binding:"required"`
	Currency      string                     `json:"currency" binding:"omitempty,iso4217"`
	Description   string                     `json:"description" binding:"max=500"`
	PaymentMethod models.PaymentMethod       `json:"payment_method" binding:"omitempty,payment_method"`
	Frequency     models.RecurrenceFrequency `json:"frequency" binding:"required,recurrence_frequency"`
	StartDate     *string                    `json:"start_date"`
	EndDate       *string                    `json:"end_date"`
}

// UpdateRecurringRequest represents the request payload for updating a
// recurring transaction template.
type UpdateRecurringRequest struct {
	Amount        *decimal.Decimal            `json:"amount"`
	Description   *string                     `json:"description" binding:"omitempty,max=500"`
	PaymentMethod *models.PaymentMethod       `json:"payment_method" binding:"omitempty,payment_method"`
	Frequency     *models.RecurrenceFrequency `json:"frequency" binding:"omitempty,recurrence_frequency"`
	EndDate       *string                     `json:"end_date"`
	IsActive      *bool                       `json:"is_active"`
}

// CreateRecurring handles the creation of a recurring template
// @Summary     Create a recurring transaction
// @Description Create a template that materializes income or expense transactions on a schedule
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateRecurringRequest true "Recurring transaction details"
// @Success     201 {object} models.RecurringTransaction "Template created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring [post]
func (h *RecurringHandler) CreateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	input := services.CreateRecurringInput{
		AccountID:     req.AccountID,
		CategoryID:    req.CategoryID,
		Type:          req.Type,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		Frequency:     req.Frequency,
	}
	if req.StartDate != nil && *req.StartDate != "" {
		startDate, err := parseDate(*req.StartDate)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		input.StartDate = startDate
	}
	if req.EndDate != nil && *req.EndDate != "" {
		endDate, err := parseDate(*req.EndDate)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		input.EndDate = &endDate
	}

	recurring, err := h.recurringService.CreateRecurring(userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_RECURRING", "recurring_transaction", recurring.ID, c.ClientIP(),
		map[string]interface{}{"type": string(recurring.Type), "frequency": string(recurring.Frequency)})

	respondData(c, http.StatusCreated, recurring)
}

// GetUserRecurring handles the retrieval of recurring templates
// @Summary     Get recurring transactions
// @Description Get a paginated list of recurring transaction templates, soonest next run first
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int  false "Page number (default 1)"
// @Param       page_size query int  false "Items per page (default 20, max 100)"
// @Param       is_active query bool false "Filter by active state"
// @Success     200 {object} pagination.PageResponse[models.RecurringTransaction] "Paginated templates"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring [get]
func (h *RecurringHandler) GetUserRecurring(c *gin.Context) {
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

	result, err := h.recurringService.GetUserRecurring(userID, page, isActive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, result)
}

// GetUpcoming returns templates due within a horizon.
// @Summary     Get upcoming recurring transactions
// @Description Get active templates due within the given number of days (default 30)
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       days query int false "Horizon in days (default 30)"
// @Success     200 {array} models.RecurringTransaction "Upcoming templates"
// @Failure     400 {object} ErrorResponse "Invalid days value"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/upcoming [get]
func (h *RecurringHandler) GetUpcoming(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	days := 30
	if raw := c.Query("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 1 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid days value"))
			return
		}
	}

	upcoming, err := h.recurringService.GetUpcoming(userID, time.Duration(days)*24*time.Hour)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, upcoming)
}

// GetRecurringByID handles the retrieval of a specific template
// @Summary     Get recurring transaction by ID
// @Description Get a specific recurring transaction template by ID
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Success     200 {object} models.RecurringTransaction "Template details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/{id} [get]
func (h *RecurringHandler) GetRecurringByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurring, err := h.recurringService.GetRecurringByID(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, recurring)
}

// UpdateRecurring handles updating a template.
// @Summary     Update recurring transaction
// @Description Update a recurring transaction template's mutable fields
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Param       request body UpdateRecurringRequest true "Updated template details"
// @Success     200 {object} models.RecurringTransaction "Updated template"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/{id} [put]
func (h *RecurringHandler) UpdateRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	input := services.UpdateRecurringInput{
		Amount:        req.Amount,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		Frequency:     req.Frequency,
		IsActive:      req.IsActive,
	}
	if req.EndDate != nil && *req.EndDate != "" {
		endDate, err := parseDate(*req.EndDate)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		input.EndDate = &endDate
	}

	recurring, err := h.recurringService.UpdateRecurring(userID, c.Param("id"), input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_RECURRING", "recurring_transaction", recurring.ID, c.ClientIP(), nil)

	respondData(c, http.StatusOK, recurring)
}

// DeleteRecurring handles deleting a template.
// @Summary     Delete recurring transaction
// @Description Soft-delete a recurring transaction template; already materialized transactions remain
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recurring transaction ID"
// @Success     200 {object} MessageResponse "Template deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring/{id} [delete]
func (h *RecurringHandler) DeleteRecurring(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recurringID := c.Param("id")
	if err := h.recurringService.DeleteRecurring(userID, recurringID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_RECURRING", "recurring_transaction", recurringID, c.ClientIP(), nil)

	respondMessage(c, http.StatusOK, "Recurring transaction deleted successfully")
}

// Run materializes all due recurring transactions across users. The route
// is protected by the scheduler API key, not user authentication.
// @Summary     Run due recurring transactions
// @Description Materialize transactions for every active template whose next run is due, catching up missed occurrences
// @Tags        recurring
// @Accept      json
// @Produce     json
// @Param       X-API-Key header string true "Scheduler API key"
// @Success     200 {object} services.RecurringRunResult "Run result"
// @Failure     401 {object} ErrorResponse "Invalid or missing API key"
// @Failure     503 {object} ErrorResponse "Scheduled endpoints are not configured"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /internal/recurring/run [post]
func (h *RecurringHandler) Run(c *gin.Context) {
	result, err := h.recurringService.RunDue(time.Now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, result)
}
