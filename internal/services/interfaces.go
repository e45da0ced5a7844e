package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
	ClearRefreshTokenHash(userID string) error
}

// AccountUpdateFields holds the mutable account fields for updates.
// Nil fields are left unchanged.
type AccountUpdateFields struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// AccountDetail is an account together with its derived balance.
type AccountDetail struct {
	models.Account
	Balance decimal.Decimal `json:"balance"`
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(userID, name string, accountType models.AccountType, currency, description string) (*models.Account, error)
	GetUserAccounts(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	GetAccountDetail(userID, accountID string) (*AccountDetail, error)
	UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error)
	DeleteAccount(userID, accountID string) error
}

// CategoryNode is a category with its children resolved, for tree responses.
type CategoryNode struct {
	models.Category
	Children []*CategoryNode `json:"children"`
}

// CategoryStats aggregates transaction activity for a category and all of
// its descendants, keyed by currency.
type CategoryStats struct {
	CategoryID       string                     `json:"category_id"`
	Name             string                     `json:"name"`
	Type             models.CategoryType        `json:"type"`
	Path             []string                   `json:"path"`
	Level            int                        `json:"level"`
	TransactionCount int64                      `json:"transaction_count"`
	Totals           map[string]decimal.Decimal `json:"totals"`
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name string, categoryType models.CategoryType, description, icon, color string, parentID *string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest, categoryType *models.CategoryType) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID, name, description, icon, color string, parentID *string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
	GetCategoryTree(userID string) ([]*CategoryNode, error)
	GetCategoryStats(userID string, from, to *time.Time) ([]CategoryStats, error)
	GetSubtreeIDs(userID, categoryID string) ([]string, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	Status     *models.TransactionStatus
	CategoryID *string
	AccountID  *string
	Currency   *string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	Search     *string
}

// CreateTransactionInput holds the fields for creating an income, expense,
// or adjustment transaction. Zero values for Date, Status, Currency, and
// PaymentMethod fall back to defaults.
type CreateTransactionInput struct {
	AccountID     string
	CategoryID    *string
	Type          models.TransactionType
	Status        models.TransactionStatus
	Amount        decimal.Decimal
	Currency      string
	Description   string
	Date          time.Time
	PaymentMethod models.PaymentMethod
}

// CreateTransferInput holds the fields for creating a transfer between two
// accounts owned by the same user.
type CreateTransferInput struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Description   string
	Date          time.Time
	Status        models.TransactionStatus
	PaymentMethod models.PaymentMethod
}

// UpdateTransactionInput holds the mutable transaction fields for updates.
// Nil fields are left unchanged; a pointer to the empty string for
// CategoryID clears the category.
type UpdateTransactionInput struct {
	CategoryID    *string
	Amount        *decimal.Decimal
	Description   *string
	Date          *time.Time
	Status        *models.TransactionStatus
	PaymentMethod *models.PaymentMethod
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID string, input CreateTransactionInput) (*models.Transaction, error)
	CreateTransfer(userID string, input CreateTransferInput) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, input UpdateTransactionInput) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
}

// BudgetProgress contains spending vs budget data for a budget's current
// period. Spent covers the budget's category and all of its descendants.
type BudgetProgress struct {
	BudgetID    string          `json:"budget_id"`
	CategoryID  string          `json:"category_id"`
	Name        string          `json:"name"`
	Budgeted    decimal.Decimal `json:"budgeted"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Percentage  float64         `json:"percentage"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(userID, categoryID, name string, amount decimal.Decimal, period models.BudgetPeriod, startDate time.Time, endDate *time.Time) (*models.Budget, error)
	GetUserBudgets(userID string, page pagination.PageRequest, isActive *bool, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(userID, budgetID, name string, amount *decimal.Decimal, period *models.BudgetPeriod, endDate *time.Time) (*models.Budget, error)
	DeleteBudget(userID, budgetID string) error
	GetBudgetProgress(userID, budgetID string) (*BudgetProgress, error)
	GetActiveBudgetProgress(userID string, period *models.BudgetPeriod) ([]BudgetProgress, error)
}

// CreateRecurringInput holds the fields for creating a recurring transaction template.
type CreateRecurringInput struct {
	AccountID     string
	CategoryID    *string
	Type          models.TransactionType
	Amount        decimal.Decimal
	Currency      string
	Description   string
	PaymentMethod models.PaymentMethod
	Frequency     models.RecurrenceFrequency
	StartDate     time.Time
	EndDate       *time.Time
}

// UpdateRecurringInput holds the mutable recurring template fields for
// updates. Nil fields are left unchanged.
type UpdateRecurringInput struct {
	Amount        *decimal.Decimal
	Description   *string
	PaymentMethod *models.PaymentMethod
	Frequency     *models.RecurrenceFrequency
	EndDate       *time.Time
	IsActive      *bool
}

// RecurringRunResult reports what a scheduler run did.
type RecurringRunResult struct {
	Created     int `json:"created"`
	Deactivated int `json:"deactivated"`
}

// RecurringServicer defines the contract for recurring transaction templates.
type RecurringServicer interface {
	CreateRecurring(userID string, input CreateRecurringInput) (*models.RecurringTransaction, error)
	GetUserRecurring(userID string, page pagination.PageRequest, isActive *bool) (*pagination.PageResponse[models.RecurringTransaction], error)
	GetRecurringByID(userID, recurringID string) (*models.RecurringTransaction, error)
	UpdateRecurring(userID, recurringID string, input UpdateRecurringInput) (*models.RecurringTransaction, error)
	DeleteRecurring(userID, recurringID string) error
	GetUpcoming(userID string, within time.Duration) ([]models.RecurringTransaction, error)
	RunDue(now time.Time) (*RecurringRunResult, error)
}

// DateRange is an inclusive reporting window.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Granularity is the bucket size for report trends.
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
)

// Report types accepted by GenerateReport.
const (
	ReportTypeMonthly   = "monthly"
	ReportTypeQuarterly = "quarterly"
	ReportTypeAnnual    = "annual"
	ReportTypeCustom    = "custom"
)

// CategoryAmount is a category with an aggregated amount, used for top
// spending categories on the dashboard.
type CategoryAmount struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Path       []string        `json:"path"`
	Amount     decimal.Decimal `json:"amount"`
}

// AccountBalance is an account's derived balance at query time.
type AccountBalance struct {
	AccountID string             `json:"account_id"`
	Name      string             `json:"name"`
	Type      models.AccountType `json:"type"`
	Currency  string             `json:"currency"`
	Balance   decimal.Decimal    `json:"balance"`
}

// DashboardBlock holds the aggregates of a dashboard, either combined
// across currencies or restricted to one currency.
type DashboardBlock struct {
	Currency         string           `json:"currency,omitempty"`
	TotalIncome      decimal.Decimal  `json:"total_income"`
	TotalExpenses    decimal.Decimal  `json:"total_expenses"`
	Net              decimal.Decimal  `json:"net"`
	TransferVolume   decimal.Decimal  `json:"transfer_volume"`
	TransactionCount int64            `json:"transaction_count"`
	TopCategories    []CategoryAmount `json:"top_expense_categories"`
	AccountBalances  []AccountBalance `json:"account_balances"`
}

// Dashboard is the aggregated overview for a user and period.
type Dashboard struct {
	PeriodStart        time.Time                     `json:"period_start"`
	PeriodEnd          time.Time                     `json:"period_end"`
	Combined           *DashboardBlock               `json:"combined,omitempty"`
	ByCurrency         []*DashboardBlock             `json:"by_currency,omitempty"`
	RecentTransactions []models.Transaction          `json:"recent_transactions"`
	UpcomingRecurring  []models.RecurringTransaction `json:"upcoming_recurring"`
}

// ReportRequest holds the parameters for GenerateReport. From/To are only
// honoured for the custom report type; the named types derive their own
// calendar window.
type ReportRequest struct {
	ReportType         string
	From               *time.Time
	To                 *time.Time
	Granularity        *Granularity
	SeparateCurrencies bool
}

// ReportSummary holds the headline totals of a report block.
type ReportSummary struct {
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	Net              decimal.Decimal `json:"net"`
	TransferVolume   decimal.Decimal `json:"transfer_volume"`
	TransactionCount int64           `json:"transaction_count"`
}

// CategoryBreakdownItem is one row of a per-category breakdown. Share is
// the fraction of the block total contributed by this category.
type CategoryBreakdownItem struct {
	CategoryID string          `json:"category_id,omitempty"`
	Name       string          `json:"name"`
	Path       []string        `json:"path,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Share      float64         `json:"share"`
}

// TrendPoint is one bucket of a report trend series.
type TrendPoint struct {
	PeriodStart time.Time       `json:"period_start"`
	Label       string          `json:"label"`
	Income      decimal.Decimal `json:"income"`
	Expenses    decimal.Decimal `json:"expenses"`
	Net         decimal.Decimal `json:"net"`
}

// ReportBlock holds a report's aggregates, either combined across
// currencies or restricted to one currency.
type ReportBlock struct {
	Currency          string                  `json:"currency,omitempty"`
	Summary           ReportSummary           `json:"summary"`
	IncomeByCategory  []CategoryBreakdownItem `json:"income_by_category"`
	ExpenseByCategory []CategoryBreakdownItem `json:"expense_by_category"`
	Trend             []TrendPoint            `json:"trend"`
}

// Report is a generated financial report.
type Report struct {
	ReportType  string         `json:"report_type"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	Granularity Granularity    `json:"granularity"`
	Combined    *ReportBlock   `json:"combined,omitempty"`
	ByCurrency  []*ReportBlock `json:"by_currency,omitempty"`
}

// InsightSeverity ranks how urgent an insight is.
type InsightSeverity string

const (
	InsightSeverityPositive InsightSeverity = "positive"
	InsightSeverityWarning  InsightSeverity = "warning"
	InsightSeverityAlert    InsightSeverity = "alert"
)

// Insight is a rule-generated observation about recent activity.
type Insight struct {
	Severity InsightSeverity `json:"severity"`
	Code     string          `json:"code"`
	Title    string          `json:"title"`
	Message  string          `json:"message"`
}

// BudgetAnalysis aggregates progress across all active budgets.
type BudgetAnalysis struct {
	Budgets        []BudgetProgress `json:"budgets"`
	TotalBudgeted  decimal.Decimal  `json:"total_budgeted"`
	TotalSpent     decimal.Decimal  `json:"total_spent"`
	TotalRemaining decimal.Decimal  `json:"total_remaining"`
	OverBudget     int              `json:"over_budget"`
	OnTrack        int              `json:"on_track"`
}

// FinancialSummary is the compact period summary.
type FinancialSummary struct {
	PeriodStart      time.Time                        `json:"period_start"`
	PeriodEnd        time.Time                        `json:"period_end"`
	TotalIncome      decimal.Decimal                  `json:"total_income"`
	TotalExpenses    decimal.Decimal                  `json:"total_expenses"`
	Net              decimal.Decimal                  `json:"net"`
	TransactionCount int64                            `json:"transaction_count"`
	CountsByType     map[models.TransactionType]int64 `json:"counts_by_type"`
}

// FinancialServicer defines the contract for cross-entity aggregation:
// dashboards, reports, insights, budget analysis, and summaries. All methods
// honour context cancellation since report windows can span years.
type FinancialServicer interface {
	GetDashboard(ctx context.Context, userID string, rng DateRange, separateCurrencies bool) (*Dashboard, error)
	GenerateReport(ctx context.Context, userID string, req ReportRequest) (*Report, error)
	GetInsights(ctx context.Context, userID string, rng DateRange) ([]Insight, error)
	GetBudgetAnalysis(ctx context.Context, userID string, period *models.BudgetPeriod) (*BudgetAnalysis, error)
	GetSummary(ctx context.Context, userID string, rng DateRange) (*FinancialSummary, error)
}

// ExportFormat identifies an export file format.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatPDF  ExportFormat = "pdf"
)

// ExportResult is a rendered export file ready to be served.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportServicer defines the contract for exporting a user's transaction data.
type ExportServicer interface {
	Export(ctx context.Context, userID string, format ExportFormat, rng DateRange) (*ExportResult, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
