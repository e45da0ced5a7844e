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

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
	auditService       services.AuditServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactionService services.TransactionServicer, auditService services.AuditServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService, auditService: auditService}
}

// CreateTransactionRequest represents the request payload for creating a
// transaction. Transfers additionally require to_account_id; the currency
// of a transfer always follows the source account.
type CreateTransactionRequest struct {
	AccountID     string                   `json:"account_id" binding:"required,uuid"`
	ToAccountID   *string                  `json:"to_account_id" binding:"omitempty,uuid"`
	CategoryID    *string                  `json:"category_id" binding:"omitempty,uuid"`
	Type          models.TransactionType   `json:"type" binding:"required,transaction_type"`
	Status        models.TransactionStatus `json:"status" binding:"omitempty,transaction_status"`
	Amount        decimal.Decimal          `json:"amount" binding:"required"`
	Currency      string                   `json:"currency" binding:"omitempty,iso4217"`
	Description   string                   `json:"description" binding:"max=500"`
	Date          *string                  `json:"date"`
	PaymentMethod models.PaymentMethod     `json:"payment_method" binding:"omitempty,payment_method"`
}

// UpdateTransactionRequest represents the request payload for updating a
// transaction. An empty string for category_id clears the category.
type UpdateTransactionRequest struct {
	CategoryID    *string                   `json:"category_id"`
	Amount        *decimal.Decimal          `json:"amount"`
	Description   *string                   `json:"description" binding:"omitempty,max=500"`
	Date          *string                   `json:"date"`
	Status        *models.TransactionStatus `json:"status" binding:"omitempty,transaction_status"`
	PaymentMethod *models.PaymentMethod     `json:"payment_method" binding:"omitempty,payment_method"`
}

// TransactionResponse represents a transaction in the response.
type TransactionResponse struct {
	ID            string                   `json:"id"`
	UserID        string                   `json:"user_id"`
	AccountID     string                   `json:"account_id"`
	ToAccountID   *string                  `json:"to_account_id"`
	CategoryID    *string                  `json:"category_id"`
	Type          models.TransactionType   `json:"type"`
	Status        models.TransactionStatus `json:"status"`
	Amount        decimal.Decimal          `json:"amount"`
	Currency      string                   `json:"currency"`
	Description   string                   `json:"description"`
	Date          time.Time                `json:"date"`
	PaymentMethod models.PaymentMethod     `json:"payment_method"`
}

// CreateTransaction handles the creation of a new transaction
// @Summary     Create a transaction
// @Description Create a new transaction. Transfers require to_account_id and move money between two accounts of the same currency.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} TransactionResponse "Transaction created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account or category not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [post]
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	var date time.Time
	if req.Date != nil && *req.Date != "" {
		date, err = parseDate(*req.Date)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	var transaction *models.Transaction
	if req.Type == models.TransactionTypeTransfer {
		if req.ToAccountID == nil || *req.ToAccountID == "" {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "to_account_id is required for transfers"))
			return
		}
		transaction, err = h.transactionService.CreateTransfer(userID, services.CreateTransferInput{
			FromAccountID: req.AccountID,
			ToAccountID:   *req.ToAccountID,
			Amount:        req.Amount,
			Description:   req.Description,
			Date:          date,
			Status:        req.Status,
			PaymentMethod: req.PaymentMethod,
		})
	} else {
		transaction, err = h.transactionService.CreateTransaction(userID, services.CreateTransactionInput{
			AccountID:     req.AccountID,
			CategoryID:    req.CategoryID,
			Type:          req.Type,
			Status:        req.Status,
			Amount:        req.Amount,
			Currency:      req.Currency,
			Description:   req.Description,
			Date:          date,
			PaymentMethod: req.PaymentMethod,
		})
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_TRANSACTION", "transaction", transaction.ID, c.ClientIP(),
		map[string]interface{}{"type": string(transaction.Type), "amount": transaction.Amount.String(), "currency": transaction.Currency})

	respondData(c, http.StatusCreated, transaction)
}

// parseTransactionFilter extracts the optional list filters from the query.
func parseTransactionFilter(c *gin.Context) (services.TransactionFilter, error) {
	var filter services.TransactionFilter

	if raw := c.Query("from"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		filter.FromDate = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		end := endOfDay(to)
		filter.ToDate = &end
	}
	if raw := c.Query("type"); raw != "" {
		t := models.TransactionType(raw)
		if !t.Valid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid transaction type")
		}
		filter.Type = &t
	}
	if raw := c.Query("status"); raw != "" {
		s := models.TransactionStatus(raw)
		if !s.Valid() {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid transaction status")
		}
		filter.Status = &s
	}
	if raw := c.Query("category_id"); raw != "" {
		filter.CategoryID = &raw
	}
	if raw := c.Query("account_id"); raw != "" {
		filter.AccountID = &raw
	}
	if raw := c.Query("currency"); raw != "" {
		filter.Currency = &raw
	}
	if raw := c.Query("min_amount"); raw != "" {
		min, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid min_amount value")
		}
		filter.MinAmount = &min
	}
	if raw := c.Query("max_amount"); raw != "" {
		max, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid max_amount value")
		}
		filter.MaxAmount = &max
	}
	if raw := c.Query("search"); raw != "" {
		filter.Search = &raw
	}

	return filter, nil
}

// GetUserTransactions handles the retrieval of transactions for a user
// @Summary     Get user transactions
// @Description Get a paginated, filterable list of transactions for the authenticated user
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Param       from        query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to          query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Param       type        query string false "Filter by transaction type"
// @Param       status      query string false "Filter by status"
// @Param       category_id query string false "Filter by category"
// @Param       account_id  query string false "Filter by account (includes transfers in and out)"
// @Param       currency    query string false "Filter by currency"
// @Param       min_amount  query string false "Minimum amount"
// @Param       max_amount  query string false "Maximum amount"
// @Param       search      query string false "Search in descriptions"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     400 {object} ErrorResponse "Invalid filter"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions [get]
func (h *TransactionHandler) GetUserTransactions(c *gin.Context) {
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
	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetUserTransactions(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, result)
}

// GetAccountTransactions handles the retrieval of one account's transactions
// @Summary     Get account transactions
// @Description Get a paginated list of transactions touching one account, including transfers in and out
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Account ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Paginated transactions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /accounts/{id}/transactions [get]
func (h *TransactionHandler) GetAccountTransactions(c *gin.Context) {
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
	filter, err := parseTransactionFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.transactionService.GetAccountTransactions(userID, c.Param("id"), page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, result)
}

// GetTransactionByID handles the retrieval of a specific transaction
// @Summary     Get transaction by ID
// @Description Get a specific transaction by ID for the authenticated user
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} TransactionResponse "Transaction details"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [get]
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.transactionService.GetTransactionByID(userID, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, transaction)
}

// UpdateTransaction handles updating a transaction.
// @Summary     Update transaction
// @Description Update a transaction's mutable fields. Type and accounts cannot be changed after creation.
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Param       request body UpdateTransactionRequest true "Updated transaction details"
// @Success     200 {object} TransactionResponse "Updated transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	input := services.UpdateTransactionInput{
		CategoryID:    req.CategoryID,
		Amount:        req.Amount,
		Description:   req.Description,
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
	}
	if req.Date != nil && *req.Date != "" {
		date, err := parseDate(*req.Date)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		input.Date = &date
	}

	transaction, err := h.transactionService.UpdateTransaction(userID, c.Param("id"), input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_TRANSACTION", "transaction", transaction.ID, c.ClientIP(), nil)

	respondData(c, http.StatusOK, transaction)
}

// DeleteTransaction handles deleting a transaction.
// @Summary     Delete transaction
// @Description Soft-delete a transaction; it immediately stops counting toward balances and aggregates
// @Tags        transactions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Transaction ID"
// @Success     200 {object} MessageResponse "Transaction deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Transaction not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID := c.Param("id")
	if err := h.transactionService.DeleteTransaction(userID, transactionID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_TRANSACTION", "transaction", transactionID, c.ClientIP(), nil)

	respondMessage(c, http.StatusOK, "Transaction deleted successfully")
}
