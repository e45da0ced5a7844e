package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
)

// exportService renders a user's transaction history into downloadable
// files. Unlike the reporting aggregations, exports include transactions of
// every status so the file is a faithful copy of the ledger.
type exportService struct {
	db *gorm.DB
}

// NewExportService creates a new ExportServicer.
func NewExportService(db *gorm.DB) ExportServicer {
	return &exportService{db: db}
}

type exportSummary struct {
	TransactionCount int             `json:"transaction_count"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	TotalTransfers   decimal.Decimal `json:"total_transfers"`
}

type exportCategory struct {
	ID    string              `json:"id"`
	Name  string              `json:"name"`
	Type  models.CategoryType `json:"type"`
	Path  []string            `json:"path"`
	Level int                 `json:"level"`
}

type exportTransaction struct {
	ID            string                   `json:"id"`
	Date          string                   `json:"date"`
	Type          models.TransactionType   `json:"type"`
	Status        models.TransactionStatus `json:"status"`
	Amount        decimal.Decimal          `json:"amount"`
	Currency      string                   `json:"currency"`
	Account       string                   `json:"account"`
	ToAccount     string                   `json:"to_account,omitempty"`
	Category      string                   `json:"category,omitempty"`
	PaymentMethod models.PaymentMethod     `json:"payment_method"`
	Description   string                   `json:"description,omitempty"`
}

type exportFile struct {
	GeneratedAt  time.Time           `json:"generated_at"`
	PeriodStart  *time.Time          `json:"period_start,omitempty"`
	PeriodEnd    *time.Time          `json:"period_end,omitempty"`
	Summary      exportSummary       `json:"summary"`
	Categories   []exportCategory    `json:"categories"`
	Transactions []exportTransaction `json:"transactions"`
}

// periodLabel renders the export window for human-readable formats.
func (f *exportFile) periodLabel() string {
	switch {
	case f.PeriodStart != nil && f.PeriodEnd != nil:
		return f.PeriodStart.Format("2006-01-02") + " to " + f.PeriodEnd.Format("2006-01-02")
	case f.PeriodStart != nil:
		return "from " + f.PeriodStart.Format("2006-01-02")
	case f.PeriodEnd != nil:
		return "until " + f.PeriodEnd.Format("2006-01-02")
	}
	return "all time"
}

// Export renders the user's transactions in the window into the requested
// format.
func (s *exportService) Export(ctx context.Context, userID string, format ExportFormat, rng DateRange) (*ExportResult, error) {
	switch format {
	case ExportFormatJSON, ExportFormatCSV, ExportFormatXLSX, ExportFormatPDF:
	default:
		return nil, apperrors.ErrInvalidExportFormat
	}

	db := s.db.WithContext(ctx)

	file, err := s.buildExportFile(db, userID, rng)
	if err != nil {
		return nil, err
	}

	var data []byte
	var contentType string
	switch format {
	case ExportFormatJSON:
		data, err = renderJSON(file)
		contentType = "application/json"
	case ExportFormatCSV:
		data, err = renderCSV(file)
		contentType = "text/csv"
	case ExportFormatXLSX:
		data, err = renderXLSX(file)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatPDF:
		data, err = renderPDF(file)
		contentType = "application/pdf"
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("fintrack_export_%s.%s", time.Now().Format("20060102"), format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (s *exportService) buildExportFile(db *gorm.DB, userID string, rng DateRange) (*exportFile, error) {
	file := &exportFile{GeneratedAt: time.Now()}

	query := db.Where("user_id = ?", userID)
	if !rng.From.IsZero() {
		query = query.Where("date >= ?", rng.From)
		file.PeriodStart = &rng.From
	}
	if !rng.To.IsZero() {
		query = query.Where("date <= ?", rng.To)
		file.PeriodEnd = &rng.To
	}

	var transactions []models.Transaction
	if err := query.Order("date ASC, created_at ASC").Find(&transactions).Error; err != nil {
		return nil, wrapAggregateErr(err)
	}

	// Labels are resolved through unscoped lookups so rows keep their
	// account and category names even after those were deleted.
	var accounts []models.Account
	if err := db.Unscoped().Where("user_id = ?", userID).Find(&accounts).Error; err != nil {
		return nil, wrapAggregateErr(err)
	}
	accountNames := make(map[string]string, len(accounts))
	for i := range accounts {
		accountNames[accounts[i].ID] = accounts[i].Name
	}

	categories, err := fetchCategoryInfo(db, userID)
	if err != nil {
		return nil, err
	}

	var catalog []models.Category
	if err := db.Where("user_id = ?", userID).Order("level ASC, name ASC").Find(&catalog).Error; err != nil {
		return nil, wrapAggregateErr(err)
	}

	for i := range catalog {
		file.Categories = append(file.Categories, exportCategory{
			ID:    catalog[i].ID,
			Name:  catalog[i].Name,
			Type:  catalog[i].Type,
			Path:  catalog[i].Path,
			Level: catalog[i].Level,
		})
	}

	for i := range transactions {
		t := &transactions[i]

		row := exportTransaction{
			ID:            t.ID,
			Date:          t.Date.Format("2006-01-02"),
			Type:          t.Type,
			Status:        t.Status,
			Amount:        t.Amount,
			Currency:      t.Currency,
			Account:       accountNames[t.AccountID],
			PaymentMethod: t.PaymentMethod,
			Description:   t.Description,
		}
		if t.ToAccountID != nil {
			row.ToAccount = accountNames[*t.ToAccountID]
		}
		if t.CategoryID != nil {
			if info, ok := categories[*t.CategoryID]; ok {
				row.Category = categoryLabel(info)
			}
		}
		file.Transactions = append(file.Transactions, row)

		file.Summary.TransactionCount++
		switch t.Type {
		case models.TransactionTypeIncome:
			file.Summary.TotalIncome = file.Summary.TotalIncome.Add(t.Amount)
		case models.TransactionTypeExpense:
			file.Summary.TotalExpenses = file.Summary.TotalExpenses.Add(t.Amount)
		case models.TransactionTypeTransfer:
			file.Summary.TotalTransfers = file.Summary.TotalTransfers.Add(t.Amount)
		}
	}

	return file, nil
}

// categoryLabel renders a category's full path, e.g. "Food > Groceries".
func categoryLabel(info categoryInfo) string {
	if len(info.Path) == 0 {
		return info.Name
	}
	parts := make([]string, 0, len(info.Path)+1)
	parts = append(parts, info.Path...)
	parts = append(parts, info.Name)
	return strings.Join(parts, " > ")
}

func renderJSON(file *exportFile) ([]byte, error) {
	return json.MarshalIndent(file, "", "  ")
}

var exportHeader = []string{"id", "date", "type", "status", "amount", "currency", "account", "to_account", "category", "payment_method", "description"}

func renderCSV(file *exportFile) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, row := range file.Transactions {
		record := []string{
			row.ID,
			row.Date,
			string(row.Type),
			string(row.Status),
			row.Amount.String(),
			row.Currency,
			row.Account,
			row.ToAccount,
			row.Category,
			string(row.PaymentMethod),
			row.Description,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(file *exportFile) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Transactions"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	for i, header := range exportHeader {
		cell := fmt.Sprintf("%c1", 'A'+i)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for idx, t := range file.Transactions {
		row := idx + 2
		values := []interface{}{
			t.ID,
			t.Date,
			string(t.Type),
			string(t.Status),
			t.Amount.InexactFloat64(),
			t.Currency,
			t.Account,
			t.ToAccount,
			t.Category,
			string(t.PaymentMethod),
			t.Description,
		}
		for i, v := range values {
			cell := fmt.Sprintf("%c%d", 'A'+i, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	f.SetColWidth(sheet, "A", "A", 38)
	f.SetColWidth(sheet, "B", "B", 12)
	f.SetColWidth(sheet, "C", "D", 12)
	f.SetColWidth(sheet, "E", "F", 12)
	f.SetColWidth(sheet, "G", "I", 24)
	f.SetColWidth(sheet, "J", "K", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPDF(file *exportFile) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Transaction Export", false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Transaction Export")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Period: "+file.periodLabel())
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Transactions: %d", file.Summary.TransactionCount))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Income: %s   Expenses: %s   Transfers: %s",
		file.Summary.TotalIncome.StringFixed(2),
		file.Summary.TotalExpenses.StringFixed(2),
		file.Summary.TotalTransfers.StringFixed(2)))
	pdf.Ln(10)

	headers := []string{"Date", "Type", "Status", "Amount", "Cur", "Category", "Account"}
	widths := []float64{20, 18, 20, 24, 12, 50, 46}

	pdf.SetFont("Helvetica", "B", 8)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 7, header, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, t := range file.Transactions {
		pdf.CellFormat(widths[0], 6, t.Date, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, string(t.Type), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, string(t.Status), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, t.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, t.Currency, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[5], 6, truncateLabel(t.Category, 36), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[6], 6, truncateLabel(t.Account, 32), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncateLabel(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
