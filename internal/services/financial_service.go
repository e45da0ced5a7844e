package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
)

const (
	// currencyReportTimeout bounds the currency-separated report path,
	// which fans out one aggregation pass per currency.
	currencyReportTimeout = 25 * time.Second

	dashboardRecentLimit   = 10
	dashboardTopCategories = 5
	dashboardUpcomingDays  = 30

	// Insight rule thresholds.
	topCategoryShareThreshold = 0.40
	healthySavingsRate        = 0.20
	budgetWarningPercentage   = 90.0
	spendingSpikeRatio        = 1.25
)

// financialService aggregates transactions, accounts, budgets, and
// recurring templates into dashboards, reports, insights, and summaries.
type financialService struct {
	db            *gorm.DB
	budgetService BudgetServicer
}

// NewFinancialService creates a new FinancialServicer.
func NewFinancialService(db *gorm.DB, budgetService BudgetServicer) FinancialServicer {
	return &financialService{db: db, budgetService: budgetService}
}

// txRow is the slim transaction projection used by all aggregations.
type txRow struct {
	CategoryID *string
	Type       models.TransactionType
	Amount     decimal.Decimal
	Currency   string
	Date       time.Time
}

// categoryInfo carries the display fields needed for breakdowns.
type categoryInfo struct {
	Name string
	Path []string
}

// GetDashboard builds the aggregated overview for the period. With
// separateCurrencies the aggregates are computed independently per
// transaction currency; otherwise amounts are combined regardless of
// currency.
func (s *financialService) GetDashboard(ctx context.Context, userID string, rng DateRange, separateCurrencies bool) (*Dashboard, error) {
	db := s.db.WithContext(ctx)

	rows, err := s.fetchRows(db, userID, rng)
	if err != nil {
		return nil, err
	}
	categories, err := fetchCategoryInfo(db, userID)
	if err != nil {
		return nil, err
	}

	var accounts []models.Account
	if err := db.Where("user_id = ? AND is_active = ?", userID, true).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, wrapAggregateErr(err)
	}
	accountIDs := make([]string, len(accounts))
	for i := range accounts {
		accountIDs[i] = accounts[i].ID
	}
	balances, err := deriveBalances(db, userID, accountIDs)
	if err != nil {
		return nil, err
	}
	accountBalances := make([]AccountBalance, len(accounts))
	for i := range accounts {
		accountBalances[i] = AccountBalance{
			AccountID: accounts[i].ID,
			Name:      accounts[i].Name,
			Type:      accounts[i].Type,
			Currency:  accounts[i].Currency,
			Balance:   balances[accounts[i].ID],
		}
	}

	dashboard := &Dashboard{
		PeriodStart: rng.From,
		PeriodEnd:   rng.To,
	}

	if separateCurrencies {
		for _, currency := range currenciesOf(rows) {
			block := buildDashboardBlock(filterByCurrency(rows, currency), categories)
			block.Currency = currency
			for _, ab := range accountBalances {
				if ab.Currency == currency {
					block.AccountBalances = append(block.AccountBalances, ab)
				}
			}
			dashboard.ByCurrency = append(dashboard.ByCurrency, block)
		}
	} else {
		block := buildDashboardBlock(rows, categories)
		block.AccountBalances = accountBalances
		dashboard.Combined = block
	}

	var recent []models.Transaction
	if err := db.Where("user_id = ?", userID).
		Where("date >= ? AND date <= ?", rng.From, rng.To).
		Order("date DESC, created_at DESC").
		Limit(dashboardRecentLimit).
		Preload("Account").
		Preload("Category").
		Find(&recent).Error; err != nil {
		return nil, wrapAggregateErr(err)
	}
	dashboard.RecentTransactions = recent

	var upcoming []models.RecurringTransaction
	deadline := time.Now().AddDate(0, 0, dashboardUpcomingDays)
	if err := db.Where("user_id = ? AND is_active = ?", userID, true).
		Where("next_run_at <= ?", deadline).
		Where("end_date IS NULL OR next_run_at <= end_date").
		Order("next_run_at ASC").
		Preload("Account").
		Preload("Category").
		Find(&upcoming).Error; err != nil {
		return nil, wrapAggregateErr(err)
	}
	dashboard.UpcomingRecurring = upcoming

	return dashboard, nil
}

// GenerateReport builds a financial report. Named report types derive their
// own calendar window; custom reports require an explicit range. The
// currency-separated path runs under a deadline since it fans out one pass
// per currency.
func (s *financialService) GenerateReport(ctx context.Context, userID string, req ReportRequest) (*Report, error) {
	switch req.ReportType {
	case "":
		return nil, apperrors.ErrReportTypeRequired
	case ReportTypeMonthly, ReportTypeQuarterly, ReportTypeAnnual, ReportTypeCustom:
	default:
		return nil, apperrors.ErrInvalidReportType
	}

	rng, err := reportWindow(req, time.Now())
	if err != nil {
		return nil, err
	}

	granularity := chooseGranularity(rng)
	if req.Granularity != nil {
		granularity = *req.Granularity
	}

	if req.SeparateCurrencies {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, currencyReportTimeout)
		defer cancel()
	}
	db := s.db.WithContext(ctx)

	rows, err := s.fetchRows(db, userID, rng)
	if err != nil {
		return nil, err
	}
	categories, err := fetchCategoryInfo(db, userID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ReportType:  req.ReportType,
		PeriodStart: rng.From,
		PeriodEnd:   rng.To,
		Granularity: granularity,
	}

	if req.SeparateCurrencies {
		for _, currency := range currenciesOf(rows) {
			if err := ctx.Err(); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrReportTimeout, err)
			}
			block := buildReportBlock(filterByCurrency(rows, currency), categories, rng, granularity)
			block.Currency = currency
			report.ByCurrency = append(report.ByCurrency, block)
		}
	} else {
		report.Combined = buildReportBlock(rows, categories, rng, granularity)
	}

	return report, nil
}

// GetInsights evaluates the insight rules over the period and returns any
// findings, most severe first.
func (s *financialService) GetInsights(ctx context.Context, userID string, rng DateRange) ([]Insight, error) {
	db := s.db.WithContext(ctx)

	rows, err := s.fetchRows(db, userID, rng)
	if err != nil {
		return nil, err
	}
	categories, err := fetchCategoryInfo(db, userID)
	if err != nil {
		return nil, err
	}

	// Same-length window immediately before this one, for trend rules.
	span := rng.To.Sub(rng.From)
	prevRng := DateRange{From: rng.From.Add(-span - time.Nanosecond), To: rng.From.Add(-time.Nanosecond)}
	prevRows, err := s.fetchRows(db, userID, prevRng)
	if err != nil {
		return nil, err
	}

	income, expenses := sumByType(rows)
	prevExpenses := decimal.Zero
	for _, r := range prevRows {
		if r.Type == models.TransactionTypeExpense {
			prevExpenses = prevExpenses.Add(r.Amount)
		}
	}

	var insights []Insight

	if expenses.GreaterThan(income) {
		insights = append(insights, Insight{
			Severity: InsightSeverityAlert,
			Code:     "expenses_exceed_income",
			Title:    "Spending more than you earn",
			Message:  fmt.Sprintf("Expenses (%s) exceeded income (%s) this period.", expenses.StringFixed(2), income.StringFixed(2)),
		})
	}

	if expenses.IsPositive() {
		top := topCategoryAmounts(rows, categories, 1)
		if len(top) == 1 {
			share := top[0].Amount.Div(expenses).InexactFloat64()
			if share > topCategoryShareThreshold {
				insights = append(insights, Insight{
					Severity: InsightSeverityWarning,
					Code:     "category_concentration",
					Title:    "One category dominates your spending",
					Message:  fmt.Sprintf("%s accounts for %.0f%% of your expenses this period.", top[0].Name, share*100),
				})
			}
		}
	}

	if income.IsPositive() {
		savingsRate := income.Sub(expenses).Div(income).InexactFloat64()
		if savingsRate >= healthySavingsRate {
			insights = append(insights, Insight{
				Severity: InsightSeverityPositive,
				Code:     "healthy_savings_rate",
				Title:    "Healthy savings rate",
				Message:  fmt.Sprintf("You saved %.0f%% of your income this period.", savingsRate*100),
			})
		}
	}

	progress, err := s.budgetService.GetActiveBudgetProgress(userID, nil)
	if err != nil {
		return nil, err
	}
	for _, p := range progress {
		switch {
		case p.Percentage > 100:
			insights = append(insights, Insight{
				Severity: InsightSeverityAlert,
				Code:     "budget_exceeded",
				Title:    "Budget exceeded",
				Message:  fmt.Sprintf("Budget %q is at %.0f%% (%s of %s spent).", p.Name, p.Percentage, p.Spent.StringFixed(2), p.Budgeted.StringFixed(2)),
			})
		case p.Percentage >= budgetWarningPercentage:
			insights = append(insights, Insight{
				Severity: InsightSeverityWarning,
				Code:     "budget_nearly_exceeded",
				Title:    "Budget nearly exceeded",
				Message:  fmt.Sprintf("Budget %q is at %.0f%% (%s of %s spent).", p.Name, p.Percentage, p.Spent.StringFixed(2), p.Budgeted.StringFixed(2)),
			})
		}
	}

	if prevExpenses.IsPositive() {
		ratio := expenses.Div(prevExpenses).InexactFloat64()
		if ratio >= spendingSpikeRatio {
			insights = append(insights, Insight{
				Severity: InsightSeverityWarning,
				Code:     "spending_spike",
				Title:    "Spending is up sharply",
				Message:  fmt.Sprintf("Expenses rose to %s from %s in the previous period.", expenses.StringFixed(2), prevExpenses.StringFixed(2)),
			})
		}
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return severityRank(insights[i].Severity) < severityRank(insights[j].Severity)
	})
	return insights, nil
}

// GetBudgetAnalysis aggregates progress across all active budgets.
func (s *financialService) GetBudgetAnalysis(ctx context.Context, userID string, period *models.BudgetPeriod) (*BudgetAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	progress, err := s.budgetService.GetActiveBudgetProgress(userID, period)
	if err != nil {
		return nil, err
	}

	analysis := &BudgetAnalysis{Budgets: progress}
	for _, p := range progress {
		analysis.TotalBudgeted = analysis.TotalBudgeted.Add(p.Budgeted)
		analysis.TotalSpent = analysis.TotalSpent.Add(p.Spent)
		if p.Percentage > 100 {
			analysis.OverBudget++
		} else {
			analysis.OnTrack++
		}
	}
	analysis.TotalRemaining = analysis.TotalBudgeted.Sub(analysis.TotalSpent)

	return analysis, nil
}

// GetSummary returns the compact period summary.
func (s *financialService) GetSummary(ctx context.Context, userID string, rng DateRange) (*FinancialSummary, error) {
	rows, err := s.fetchRows(s.db.WithContext(ctx), userID, rng)
	if err != nil {
		return nil, err
	}

	summary := &FinancialSummary{
		PeriodStart: rng.From,
		PeriodEnd:   rng.To,
		CountsByType: map[models.TransactionType]int64{
			models.TransactionTypeIncome:     0,
			models.TransactionTypeExpense:    0,
			models.TransactionTypeTransfer:   0,
			models.TransactionTypeAdjustment: 0,
		},
	}
	for _, r := range rows {
		summary.TransactionCount++
		summary.CountsByType[r.Type]++
		switch r.Type {
		case models.TransactionTypeIncome:
			summary.TotalIncome = summary.TotalIncome.Add(r.Amount)
		case models.TransactionTypeExpense:
			summary.TotalExpenses = summary.TotalExpenses.Add(r.Amount)
		}
	}
	summary.Net = summary.TotalIncome.Sub(summary.TotalExpenses)

	return summary, nil
}

// fetchRows loads the slim projection of countable transactions in the
// window: soft-deleted, failed, and cancelled rows are excluded.
func (s *financialService) fetchRows(db *gorm.DB, userID string, rng DateRange) ([]txRow, error) {
	var rows []txRow
	if err := db.Table("transactions").
		Select("category_id, type, amount, currency, date").
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Where("status IN ?", []models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusCompleted}).
		Where("date >= ? AND date <= ?", rng.From, rng.To).
		Scan(&rows).Error; err != nil {
		return nil, wrapAggregateErr(err)
	}
	return rows, nil
}

// fetchCategoryInfo loads name and path for every category the user has,
// including soft-deleted ones so historical breakdowns keep their labels.
func fetchCategoryInfo(db *gorm.DB, userID string) (map[string]categoryInfo, error) {
	var categories []models.Category
	if err := db.Unscoped().Where("user_id = ?", userID).Find(&categories).Error; err != nil {
		return nil, wrapAggregateErr(err)
	}

	info := make(map[string]categoryInfo, len(categories))
	for i := range categories {
		info[categories[i].ID] = categoryInfo{Name: categories[i].Name, Path: categories[i].Path}
	}
	return info, nil
}

func wrapAggregateErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrReportTimeout, err)
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// reportWindow derives the inclusive date range for a report request.
func reportWindow(req ReportRequest, now time.Time) (DateRange, error) {
	switch req.ReportType {
	case ReportTypeMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return DateRange{From: start, To: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}, nil
	case ReportTypeQuarterly:
		quarterMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		start := time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, now.Location())
		return DateRange{From: start, To: start.AddDate(0, 3, 0).Add(-time.Nanosecond)}, nil
	case ReportTypeAnnual:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return DateRange{From: start, To: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}, nil
	default: // custom
		if req.From == nil || req.To == nil {
			return DateRange{}, apperrors.WithMessage(apperrors.ErrInvalidDateRange, "Custom reports require from and to dates")
		}
		if req.To.Before(*req.From) {
			return DateRange{}, apperrors.ErrInvalidDateRange
		}
		return DateRange{From: *req.From, To: *req.To}, nil
	}
}

// chooseGranularity picks a trend bucket size so a chart of the window
// stays readable: day up to a month, week up to a quarter, month up to two
// years, quarter beyond.
func chooseGranularity(rng DateRange) Granularity {
	days := rng.To.Sub(rng.From).Hours() / 24
	switch {
	case days <= 31:
		return GranularityDay
	case days <= 92:
		return GranularityWeek
	case days <= 730:
		return GranularityMonth
	default:
		return GranularityQuarter
	}
}

// bucketStart truncates t to the start of its bucket. Weeks are ISO weeks
// starting on Monday.
func bucketStart(t time.Time, g Granularity) time.Time {
	switch g {
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case GranularityWeek:
		return startOfISOWeek(t)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default: // quarter
		quarterMonth := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), quarterMonth, 1, 0, 0, 0, 0, t.Location())
	}
}

// nextBucket advances a bucket start to the next bucket.
func nextBucket(t time.Time, g Granularity) time.Time {
	switch g {
	case GranularityDay:
		return t.AddDate(0, 0, 1)
	case GranularityWeek:
		return t.AddDate(0, 0, 7)
	case GranularityMonth:
		return t.AddDate(0, 1, 0)
	default: // quarter
		return t.AddDate(0, 3, 0)
	}
}

// bucketLabel renders a stable chart label for a bucket start.
func bucketLabel(t time.Time, g Granularity) string {
	switch g {
	case GranularityDay, GranularityWeek:
		return t.Format("2006-01-02")
	case GranularityMonth:
		return t.Format("2006-01")
	default: // quarter
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	}
}

func currenciesOf(rows []txRow) []string {
	seen := make(map[string]struct{})
	var currencies []string
	for _, r := range rows {
		if _, ok := seen[r.Currency]; !ok {
			seen[r.Currency] = struct{}{}
			currencies = append(currencies, r.Currency)
		}
	}
	sort.Strings(currencies)
	return currencies
}

func filterByCurrency(rows []txRow, currency string) []txRow {
	var filtered []txRow
	for _, r := range rows {
		if r.Currency == currency {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func sumByType(rows []txRow) (income, expenses decimal.Decimal) {
	for _, r := range rows {
		switch r.Type {
		case models.TransactionTypeIncome:
			income = income.Add(r.Amount)
		case models.TransactionTypeExpense:
			expenses = expenses.Add(r.Amount)
		}
	}
	return income, expenses
}

// topCategoryAmounts groups expense rows by category and returns the top n
// by amount. Rows without a category go into an "Uncategorized" bucket.
func topCategoryAmounts(rows []txRow, categories map[string]categoryInfo, n int) []CategoryAmount {
	totals := make(map[string]decimal.Decimal)
	for _, r := range rows {
		if r.Type != models.TransactionTypeExpense {
			continue
		}
		key := ""
		if r.CategoryID != nil {
			key = *r.CategoryID
		}
		totals[key] = totals[key].Add(r.Amount)
	}

	result := make([]CategoryAmount, 0, len(totals))
	for id, amount := range totals {
		ca := CategoryAmount{CategoryID: id, Name: "Uncategorized", Amount: amount}
		if info, ok := categories[id]; ok {
			ca.Name = info.Name
			ca.Path = info.Path
		}
		result = append(result, ca)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Amount.Equal(result[j].Amount) {
			return result[i].Name < result[j].Name
		}
		return result[i].Amount.GreaterThan(result[j].Amount)
	})

	if len(result) > n {
		result = result[:n]
	}
	return result
}

func buildDashboardBlock(rows []txRow, categories map[string]categoryInfo) *DashboardBlock {
	block := &DashboardBlock{
		TransactionCount: int64(len(rows)),
		TopCategories:    topCategoryAmounts(rows, categories, dashboardTopCategories),
	}
	for _, r := range rows {
		switch r.Type {
		case models.TransactionTypeIncome:
			block.TotalIncome = block.TotalIncome.Add(r.Amount)
		case models.TransactionTypeExpense:
			block.TotalExpenses = block.TotalExpenses.Add(r.Amount)
		case models.TransactionTypeTransfer:
			block.TransferVolume = block.TransferVolume.Add(r.Amount)
		}
	}
	block.Net = block.TotalIncome.Sub(block.TotalExpenses)
	return block
}

func buildReportBlock(rows []txRow, categories map[string]categoryInfo, rng DateRange, granularity Granularity) *ReportBlock {
	block := &ReportBlock{
		Summary: ReportSummary{TransactionCount: int64(len(rows))},
	}
	for _, r := range rows {
		switch r.Type {
		case models.TransactionTypeIncome:
			block.Summary.TotalIncome = block.Summary.TotalIncome.Add(r.Amount)
		case models.TransactionTypeExpense:
			block.Summary.TotalExpenses = block.Summary.TotalExpenses.Add(r.Amount)
		case models.TransactionTypeTransfer:
			block.Summary.TransferVolume = block.Summary.TransferVolume.Add(r.Amount)
		}
	}
	block.Summary.Net = block.Summary.TotalIncome.Sub(block.Summary.TotalExpenses)

	block.IncomeByCategory = categoryBreakdown(rows, categories, models.TransactionTypeIncome, block.Summary.TotalIncome)
	block.ExpenseByCategory = categoryBreakdown(rows, categories, models.TransactionTypeExpense, block.Summary.TotalExpenses)
	block.Trend = buildTrend(rows, rng, granularity)

	return block
}

// categoryBreakdown groups rows of one type by category, sorted by amount
// descending, with each row's share of the block total.
func categoryBreakdown(rows []txRow, categories map[string]categoryInfo, txType models.TransactionType, total decimal.Decimal) []CategoryBreakdownItem {
	sums := make(map[string]decimal.Decimal)
	for _, r := range rows {
		if r.Type != txType {
			continue
		}
		key := ""
		if r.CategoryID != nil {
			key = *r.CategoryID
		}
		sums[key] = sums[key].Add(r.Amount)
	}

	items := make([]CategoryBreakdownItem, 0, len(sums))
	for id, amount := range sums {
		item := CategoryBreakdownItem{CategoryID: id, Name: "Uncategorized", Amount: amount}
		if info, ok := categories[id]; ok {
			item.Name = info.Name
			item.Path = info.Path
		}
		if total.IsPositive() {
			item.Share = amount.Div(total).InexactFloat64()
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Amount.Equal(items[j].Amount) {
			return items[i].Name < items[j].Name
		}
		return items[i].Amount.GreaterThan(items[j].Amount)
	})
	return items
}

// buildTrend bucketizes income and expenses over the window. Every bucket
// in the window appears, including empty ones, so charts stay continuous.
func buildTrend(rows []txRow, rng DateRange, granularity Granularity) []TrendPoint {
	var points []TrendPoint
	index := make(map[int64]int)

	for start := bucketStart(rng.From, granularity); !start.After(rng.To); start = nextBucket(start, granularity) {
		points = append(points, TrendPoint{
			PeriodStart: start,
			Label:       bucketLabel(start, granularity),
		})
		index[start.UnixNano()] = len(points) - 1
	}

	// Row dates come back from the database in their own location (usually
	// UTC); bucket them on the range's calendar so the keys line up.
	loc := rng.From.Location()
	for _, r := range rows {
		j, ok := index[bucketStart(r.Date.In(loc), granularity).UnixNano()]
		if !ok {
			continue
		}
		switch r.Type {
		case models.TransactionTypeIncome:
			points[j].Income = points[j].Income.Add(r.Amount)
		case models.TransactionTypeExpense:
			points[j].Expenses = points[j].Expenses.Add(r.Amount)
		}
	}

	for j := range points {
		points[j].Net = points[j].Income.Sub(points[j].Expenses)
	}
	return points
}

func severityRank(severity InsightSeverity) int {
	switch severity {
	case InsightSeverityAlert:
		return 0
	case InsightSeverityWarning:
		return 1
	default:
		return 2
	}
}
