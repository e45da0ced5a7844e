package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/services"
)

// FinancialHandler handles the cross-entity aggregation endpoints:
// dashboard, reports, insights, budget analysis, summary, and export.
type FinancialHandler struct {
	financialService services.FinancialServicer
	exportService    services.ExportServicer
	auditService     services.AuditServicer
}

// NewFinancialHandler creates a new FinancialHandler.
func NewFinancialHandler(financialService services.FinancialServicer, exportService services.ExportServicer, auditService services.AuditServicer) *FinancialHandler {
	return &FinancialHandler{financialService: financialService, exportService: exportService, auditService: auditService}
}

// GenerateReportRequest represents the request payload for report generation.
// From and to are only honoured for the custom report type.
type GenerateReportRequest struct {
	ReportType         string  `json:"report_type"`
	From               *string `json:"from"`
	To                 *string `json:"to"`
	Granularity        *string `json:"granularity" binding:"omitempty,report_granularity"`
	SeparateCurrencies bool    `json:"separate_currencies"`
}

// ExportRequest represents the request payload for data export. An absent
// range exports the full history.
type ExportRequest struct {
	Format string  `json:"format" binding:"omitempty,export_format"`
	From   *string `json:"from"`
	To     *string `json:"to"`
}

// GetDashboard returns the aggregated financial overview.
// @Summary     Get dashboard
// @Description Get aggregated totals, top expense categories, account balances, recent transactions, and upcoming recurring charges for a period (default: current month)
// @Tags        financial
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       from                query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to                  query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Param       separate_currencies query bool   false "Aggregate independently per currency"
// @Success     200 {object} services.Dashboard "Dashboard data"
// @Failure     400 {object} ErrorResponse "Invalid date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /financial/dashboard [get]
func (h *FinancialHandler) GetDashboard(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rng, err := parseDateRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	separate, err := parseBoolQuery(c, "separate_currencies")
	if err != nil {
		respondWithError(c, err)
		return
	}

	dashboard, err := h.financialService.GetDashboard(c.Request.Context(), userID, rng, separate != nil && *separate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, dashboard)
}

// GenerateReport builds a financial report.
// @Summary     Generate a report
// @Description Generate a monthly, quarterly, annual, or custom report with per-category breakdowns and a trend series
// @Tags        financial
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body GenerateReportRequest true "Report parameters"
// @Success     200 {object} services.Report "Generated report"
// @Failure     400 {object} ErrorResponse "Missing or invalid report type, or invalid date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     504 {object} ErrorResponse "Report generation timed out"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /financial/report [post]
func (h *FinancialHandler) GenerateReport(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	serviceReq := services.ReportRequest{
		ReportType:         req.ReportType,
		SeparateCurrencies: req.SeparateCurrencies,
	}
	if req.From != nil && *req.From != "" {
		from, err := parseDate(*req.From)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		serviceReq.From = &from
	}
	if req.To != nil && *req.To != "" {
		to, err := parseDate(*req.To)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		end := endOfDay(to)
		serviceReq.To = &end
	}
	if req.Granularity != nil && *req.Granularity != "" {
		g := services.Granularity(*req.Granularity)
		serviceReq.Granularity = &g
	}

	report, err := h.financialService.GenerateReport(c.Request.Context(), userID, serviceReq)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, report)
}

// GetInsights returns rule-based findings about recent activity.
// @Summary     Get insights
// @Description Evaluate spending rules over a period (default: current month) and return findings, most severe first
// @Tags        financial
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       from query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to   query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {array} services.Insight "Insights"
// @Failure     400 {object} ErrorResponse "Invalid date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /financial/insights [get]
func (h *FinancialHandler) GetInsights(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rng, err := parseDateRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	insights, err := h.financialService.GetInsights(c.Request.Context(), userID, rng)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, insights)
}

// GetBudgetAnalysis returns aggregated progress across active budgets.
// @Summary     Get budget analysis
// @Description Get progress for every active budget plus rollup totals and over-budget counts
// @Tags        financial
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       period query string false "Filter by budget period (weekly, monthly, yearly)"
// @Success     200 {object} services.BudgetAnalysis "Budget analysis"
// @Failure     400 {object} ErrorResponse "Invalid period"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /financial/budget-analysis [get]
func (h *FinancialHandler) GetBudgetAnalysis(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	period, err := parseBudgetPeriod(c.Query("period"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	analysis, err := h.financialService.GetBudgetAnalysis(c.Request.Context(), userID, period)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, analysis)
}

// GetSummary returns the compact period summary.
// @Summary     Get financial summary
// @Description Get headline totals and per-type transaction counts for a period (default: current month)
// @Tags        financial
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       from query string false "Start date (RFC3339 or YYYY-MM-DD)"
// @Param       to   query string false "End date (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} services.FinancialSummary "Summary"
// @Failure     400 {object} ErrorResponse "Invalid date range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /financial/summary [get]
func (h *FinancialHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rng, err := parseDateRange(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.financialService.GetSummary(c.Request.Context(), userID, rng)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondData(c, http.StatusOK, summary)
}

// Export renders the user's transactions as a downloadable file.
// @Summary     Export transactions
// @Description Export transactions as json, csv, xlsx, or pdf. An absent range exports the full history. Unlike aggregates, exports include transactions of every status.
// @Tags        financial
// @Accept      json
// @Produce     application/octet-stream
// @Security    BearerAuth
// @Param       request body ExportRequest true "Export parameters"
// @Success     200 {file} file "Exported file"
// @Failure     400 {object} ErrorResponse "Unsupported format or invalid date"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /financial/export [post]
func (h *FinancialHandler) Export(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	var rng services.DateRange
	if req.From != nil && *req.From != "" {
		from, err := parseDate(*req.From)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		rng.From = from
	}
	if req.To != nil && *req.To != "" {
		to, err := parseDate(*req.To)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		rng.To = endOfDay(to)
	}

	result, err := h.exportService.Export(c.Request.Context(), userID, services.ExportFormat(req.Format), rng)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "EXPORT_DATA", "export", "", c.ClientIP(),
		map[string]interface{}{"format": req.Format})

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
